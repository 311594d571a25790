package source

import (
	"context"
	"fmt"

	"github.com/kbukum/entitypipe/errors"
	"github.com/kbukum/entitypipe/observability"
	"github.com/kbukum/entitypipe/pipeline"
)

// Consumer is a processor that hands each entity to a DataSink. The
// operation is read from the Context under OperationKey.
type Consumer[E, O any] struct {
	*pipeline.BasicProcessor[E]
	writer sinkWriter[E, O]
}

// NewConsumer builds a consumer. The operation type O is inferred from sink
// and parse, e.g. NewConsumer[*User]("save", store, source.ParseOperation).
func NewConsumer[E, O any](name string, sink DataSink[E, O], parse OperationParser[O], opts ...pipeline.Option) *Consumer[E, O] {
	c := &Consumer[E, O]{writer: sinkWriter[E, O]{name: name, sink: sink, parse: parse}}
	c.BasicProcessor = pipeline.NewProcessor(name, c.hook, opts...)
	return c
}

func (c *Consumer[E, O]) hook(ctx context.Context, data E, pctx *pipeline.Context, resp *pipeline.Response[E]) (*pipeline.Response[E], error) {
	out, state, err := c.writer.write(ctx, []E{data}, pctx)
	if err != nil {
		return resp.SetError(state, err), nil
	}
	if len(out) == 0 {
		var zero E
		resp.Data = zero
		return resp.SetState(pipeline.NullData), nil
	}
	return resp.OK(out[0]), nil
}

// CollectionConsumer hands the members matching its condition to a
// DataSink in one call.
type CollectionConsumer[E comparable, O any] struct {
	*pipeline.CollectionProcessor[E]
	writer sinkWriter[E, O]
}

// NewCollectionConsumer builds a collection consumer.
func NewCollectionConsumer[E comparable, O any](name string, sink DataSink[E, O], parse OperationParser[O], opts ...pipeline.Option) *CollectionConsumer[E, O] {
	c := &CollectionConsumer[E, O]{writer: sinkWriter[E, O]{name: name, sink: sink, parse: parse}}
	c.CollectionProcessor = pipeline.NewCollectionProcessor(name, c.hook, opts...)
	return c
}

func (c *CollectionConsumer[E, O]) hook(ctx context.Context, _, matched []E, pctx *pipeline.Context, resp *pipeline.Response[[]E]) (*pipeline.Response[[]E], error) {
	out, state, err := c.writer.write(ctx, matched, pctx)
	if err != nil {
		return resp.SetError(state, err), nil
	}
	return resp.OK(out), nil
}

type sinkWriter[E, O any] struct {
	name  string
	sink  DataSink[E, O]
	parse OperationParser[O]
}

// write resolves the operation and calls the sink. On failure it returns
// the state the response should carry: FatalError when no operation is
// set, StopWithError for an unknown operation or a sink failure.
func (w sinkWriter[E, O]) write(ctx context.Context, items []E, pctx *pipeline.Context) ([]E, pipeline.ResponseState, error) {
	raw, ok := pctx.Get(OperationKey)
	if !ok || raw == nil {
		return nil, pipeline.FatalError, errors.InvalidInput(OperationKey, "no operation set on the context")
	}
	op, err := w.parse(raw)
	if err != nil {
		if !errors.HasCode(err, errors.ErrCodeUnsupportedOperation) {
			err = errors.UnsupportedOperation(fmt.Sprint(raw)).WithCause(err)
		}
		return nil, pipeline.StopWithError, err
	}
	ctx, span := observability.StartSinkSpan(ctx, w.name, fmt.Sprint(op), len(items), pctx.ID())
	out, err := w.sink.Process(ctx, items, op, pctx)
	observability.EndSpan(span, "", err)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeUnsupportedOperation) {
			return nil, pipeline.StopWithError, err
		}
		return nil, pipeline.StopWithError, errors.DataSink(w.name, err)
	}
	return out, pipeline.OK, nil
}
