package pipeline

import (
	"context"
	"fmt"
	"reflect"

	"github.com/kbukum/entitypipe/errors"
)

// TransformFunc converts an entity of type S into type T.
type TransformFunc[S, T any] func(ctx context.Context, in S) (T, error)

// Transformer is a Processor over S that converts its input to T and runs
// an inner Processor[T] on the result. The response keeps the original S
// data and takes its state from the inner processor.
type Transformer[S, T any] struct {
	*BasicProcessor[S]
	inner Processor[T]
}

// NewTransformer creates a transformer. Init and Dispose cascade to inner.
func NewTransformer[S, T any](name string, transform TransformFunc[S, T], inner Processor[T], opts ...Option) *Transformer[S, T] {
	t := &Transformer[S, T]{inner: inner}
	t.BasicProcessor = NewProcessor(name, func(ctx context.Context, data S, pctx *Context, resp *Response[S]) (*Response[S], error) {
		out, err := transform(ctx, data)
		if err != nil {
			return resp.SetError(FatalError, fmt.Errorf("transforming %s: %w", reflect.TypeOf((*S)(nil)).Elem(), err)), nil
		}
		if isNil(any(out)) {
			var zero S
			resp.Data = zero
			return resp.SetState(NullData), nil
		}
		return carry(name, resp, inner, func() (*Response[T], error) {
			return inner.Execute(ctx, out, "", pctx)
		}), nil
	}, opts...)
	return t
}

// Inner returns the wrapped processor.
func (t *Transformer[S, T]) Inner() Processor[T] { return t.inner }

func (t *Transformer[S, T]) Init() error {
	return t.BasicProcessor.life.initialize(t.Name(), func() error {
		if t.opts.init != nil {
			if err := t.opts.init(); err != nil {
				return err
			}
		}
		return t.inner.Init()
	})
}

func (t *Transformer[S, T]) Dispose() {
	if !t.BasicProcessor.life.dispose() {
		return
	}
	if t.opts.dispose != nil {
		t.opts.dispose()
	}
	t.inner.Dispose()
}

// CollectionTransformer converts each member of a []S to T and runs an
// inner collection processor on the converted slice. Members that convert
// to nil are dropped.
type CollectionTransformer[S, T comparable] struct {
	*CollectionProcessor[S]
	inner Processor[[]T]
}

func NewCollectionTransformer[S, T comparable](name string, transform TransformFunc[S, T], inner Processor[[]T], opts ...Option) *CollectionTransformer[S, T] {
	t := &CollectionTransformer[S, T]{inner: inner}
	t.CollectionProcessor = NewCollectionProcessor(name, func(ctx context.Context, data, _ []S, pctx *Context, resp *Response[[]S]) (*Response[[]S], error) {
		out := make([]T, 0, len(data))
		for _, e := range data {
			v, err := transform(ctx, e)
			if err != nil {
				return resp.SetError(FatalError, fmt.Errorf("transforming %s: %w", reflect.TypeOf((*S)(nil)).Elem(), err)), nil
			}
			if !isNil(any(v)) {
				out = append(out, v)
			}
		}
		if len(out) == 0 {
			resp.Data = nil
			return resp.SetState(NullData), nil
		}
		return carry(name, resp, inner, func() (*Response[[]T], error) {
			return inner.Execute(ctx, out, "", pctx)
		}), nil
	}, opts...)
	return t
}

func (t *CollectionTransformer[S, T]) Inner() Processor[[]T] { return t.inner }

func (t *CollectionTransformer[S, T]) Init() error {
	return t.CollectionProcessor.life.initialize(t.Name(), func() error {
		if t.opts.init != nil {
			if err := t.opts.init(); err != nil {
				return err
			}
		}
		return t.inner.Init()
	})
}

func (t *CollectionTransformer[S, T]) Dispose() {
	if !t.CollectionProcessor.life.dispose() {
		return
	}
	if t.opts.dispose != nil {
		t.opts.dispose()
	}
	t.inner.Dispose()
}

// carry runs the inner call and copies its outcome onto resp. A call error
// or an inner FatalError makes resp FatalError.
func carry[S, T any](name string, resp *Response[S], inner Processor[T], call func() (*Response[T], error)) *Response[S] {
	r, err := call()
	if err != nil {
		return resp.SetError(FatalError, errors.Unhandled(name, err))
	}
	if r == nil {
		return resp.SetError(FatalError, errors.NullResponse(inner.Name()))
	}
	if r.State == FatalError {
		return resp.SetError(FatalError, r.Err)
	}
	if r.HasError() {
		return resp.SetError(r.State, r.Err)
	}
	return resp.SetState(r.State)
}
