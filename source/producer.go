package source

import (
	"context"
	"fmt"

	"github.com/kbukum/entitypipe/errors"
	"github.com/kbukum/entitypipe/logger"
	"github.com/kbukum/entitypipe/observability"
	"github.com/kbukum/entitypipe/pipeline"
	"github.com/kbukum/entitypipe/stream"
)

// Producer fetches a batch from a DataSource and runs it through a
// collection processor, usually a collection pipeline.
type Producer[E any] struct {
	source DataSource[E]
	proc   pipeline.Processor[[]E]
	log    *logger.Logger
}

// NewProducer couples source with proc.
func NewProducer[E any](source DataSource[E], proc pipeline.Processor[[]E]) *Producer[E] {
	return &Producer[E]{
		source: source,
		proc:   proc,
		log:    logger.WithComponent("source").WithFields(logger.Fields(logger.FieldPipeline, proc.Name())),
	}
}

// Read fetches with query and processes the result. It returns nil, nil
// when the source yields nothing or the pipeline reports NullData.
func (p *Producer[E]) Read(ctx context.Context, query string, pctx *pipeline.Context) ([]E, error) {
	if pctx == nil {
		pctx = pipeline.NewContext()
	}
	ctx = pctx.Bind(ctx)
	data, err := fetch(ctx, p.source, p.proc.Name(), query, pctx)
	if err != nil || len(data) == 0 {
		return nil, err
	}
	p.log.WithContext(ctx).Debug("Fetched batch", logger.Fields(logger.FieldCount, len(data)))

	resp, err := p.proc.Execute(ctx, data, "", pctx)
	return outcome(p.proc.Name(), resp, err)
}

// ReadBatches fetches with query and runs the result through the processor
// size entities at a time, in fetch order. Batches the pipeline nulls out
// contribute nothing; the first failing batch ends the read.
func (p *Producer[E]) ReadBatches(ctx context.Context, query string, size int, pctx *pipeline.Context) ([]E, error) {
	if pctx == nil {
		pctx = pipeline.NewContext()
	}
	ctx = pctx.Bind(ctx)
	data, err := fetch(ctx, p.source, p.proc.Name(), query, pctx)
	if err != nil || len(data) == 0 {
		return nil, err
	}

	run := func(ctx context.Context, batch []E) ([]E, error) {
		resp, err := p.proc.Execute(ctx, batch, "", pctx)
		return outcome(p.proc.Name(), resp, err)
	}
	batches, err := stream.Collect(ctx, stream.Map(stream.Batch(stream.FromSlice(data), size), run))
	if err != nil {
		return nil, err
	}
	p.log.WithContext(ctx).Debug("Processed batches", logger.Fields(
		logger.FieldCount, len(data),
		"batches", len(batches),
	))

	var out []E
	for _, b := range batches {
		out = append(out, b...)
	}
	return out, nil
}

// EntityOption configures an EntityProducer.
type EntityOption func(*entityConfig)

type entityConfig struct {
	workers int
}

// WithWorkers lets ReadEach process up to n entities at once. Results keep
// the fetch order.
func WithWorkers(n int) EntityOption {
	return func(c *entityConfig) { c.workers = n }
}

// EntityProducer reads single entities through a KeyedSource and runs each
// one through a single-entity processor.
type EntityProducer[K comparable, E any] struct {
	source  KeyedSource[K, E]
	proc    pipeline.Processor[E]
	workers int
}

// NewEntityProducer couples source with proc.
func NewEntityProducer[K comparable, E any](source KeyedSource[K, E], proc pipeline.Processor[E], opts ...EntityOption) *EntityProducer[K, E] {
	cfg := entityConfig{workers: 1}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &EntityProducer[K, E]{source: source, proc: proc, workers: cfg.workers}
}

// Find looks key up and processes the entity. A missing key is a NOT_FOUND
// error; an entity the pipeline nulls out yields the zero value and no error.
func (p *EntityProducer[K, E]) Find(ctx context.Context, key K, pctx *pipeline.Context) (E, error) {
	var zero E
	if pctx == nil {
		pctx = pipeline.NewContext()
	}
	ctx = pctx.Bind(ctx)
	entity, found, err := p.source.Find(ctx, key, pctx)
	if err != nil {
		return zero, asSourceError(p.proc.Name(), err)
	}
	if !found {
		return zero, errors.NotFound(p.proc.EntityType().String(), fmt.Sprint(key))
	}
	resp, err := p.proc.Execute(ctx, entity, "", pctx)
	return outcome(p.proc.Name(), resp, err)
}

// ReadEach fetches with query and processes every entity on its own,
// keeping the results whose state is OK-like and whose data survived.
func (p *EntityProducer[K, E]) ReadEach(ctx context.Context, query string, pctx *pipeline.Context) ([]E, error) {
	if pctx == nil {
		pctx = pipeline.NewContext()
	}
	ctx = pctx.Bind(ctx)
	data, err := fetch(ctx, p.source, p.proc.Name(), query, pctx)
	if err != nil || len(data) == 0 {
		return nil, err
	}

	each := func(ctx context.Context, entity E) (processed[E], error) {
		resp, err := p.proc.Execute(ctx, entity, "", pctx)
		out, err := outcome(p.proc.Name(), resp, err)
		if err != nil {
			return processed[E]{}, err
		}
		return processed[E]{data: out, kept: resp.State != pipeline.NullData}, nil
	}
	survived := stream.Filter(
		stream.Parallel(stream.FromSlice(data), p.workers, each),
		func(r processed[E]) bool { return r.kept },
	)
	rs, err := stream.Collect(ctx, survived)
	if err != nil {
		return nil, err
	}

	results := make([]E, 0, len(rs))
	for _, r := range rs {
		results = append(results, r.data)
	}
	return results, nil
}

type processed[E any] struct {
	data E
	kept bool
}

func fetch[E any](ctx context.Context, src DataSource[E], name, query string, pctx *pipeline.Context) ([]E, error) {
	ctx, span := observability.StartFetchSpan(ctx, name, query, pctx.ID())
	data, err := src.Fetch(ctx, query, pctx)
	if err != nil {
		err = asSourceError(name, err)
		observability.EndSpan(span, "", err)
		return nil, err
	}
	observability.SetCount(span, len(data))
	observability.EndSpan(span, "", nil)
	return data, nil
}

func asSourceError(name string, err error) error {
	if errors.IsAppError(err) {
		return err
	}
	return errors.DataSource(name, err)
}

// outcome maps a processor result onto the producer contract: OK-like
// states return the data, NullData returns the zero value, anything else
// is an error.
func outcome[T any](name string, resp *pipeline.Response[T], err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if resp == nil {
		return zero, errors.NullResponse(name)
	}
	switch resp.State {
	case pipeline.OK, pipeline.StopWithOk, pipeline.Skipped, pipeline.ContinueWithError:
		return resp.Data, nil
	case pipeline.NullData:
		return zero, nil
	case pipeline.StopWithError:
		return zero, errors.PipelineStopped(name, resp.Err)
	default:
		if resp.Err != nil {
			return zero, resp.Err
		}
		return zero, errors.Internal(fmt.Errorf("processor %s ended in state %s", name, resp.State))
	}
}
