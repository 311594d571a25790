package stream

import "context"

// Map transforms each value with fn. The first error ends the stream.
func Map[I, O any](s *Stream[I], fn func(context.Context, I) (O, error)) *Stream[O] {
	return &Stream[O]{create: func(ctx context.Context) Iterator[O] {
		return &mapIter[I, O]{source: s.create(ctx), fn: fn}
	}}
}

// Filter keeps the values keep accepts.
func Filter[T any](s *Stream[T], keep func(T) bool) *Stream[T] {
	return &Stream[T]{create: func(ctx context.Context) Iterator[T] {
		return &filterIter[T]{source: s.create(ctx), keep: keep}
	}}
}

// Take yields at most n values and then reports the stream exhausted
// without pulling the source again.
func Take[T any](s *Stream[T], n int) *Stream[T] {
	return &Stream[T]{create: func(ctx context.Context) Iterator[T] {
		return &takeIter[T]{source: s.create(ctx), left: n}
	}}
}

type mapIter[I, O any] struct {
	source Iterator[I]
	fn     func(context.Context, I) (O, error)
}

func (it *mapIter[I, O]) Next(ctx context.Context) (O, bool, error) {
	var zero O
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return zero, false, err
	}
	out, err := it.fn(ctx, val)
	if err != nil {
		return zero, false, err
	}
	return out, true, nil
}

func (it *mapIter[I, O]) Close() error { return it.source.Close() }

type filterIter[T any] struct {
	source Iterator[T]
	keep   func(T) bool
}

func (it *filterIter[T]) Next(ctx context.Context) (T, bool, error) {
	for {
		val, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			return val, false, err
		}
		if it.keep(val) {
			return val, true, nil
		}
	}
}

func (it *filterIter[T]) Close() error { return it.source.Close() }

type takeIter[T any] struct {
	source Iterator[T]
	left   int
}

func (it *takeIter[T]) Next(ctx context.Context) (T, bool, error) {
	if it.left <= 0 {
		var zero T
		return zero, false, nil
	}
	val, ok, err := it.source.Next(ctx)
	if ok && err == nil {
		it.left--
	}
	return val, ok, err
}

func (it *takeIter[T]) Close() error { return it.source.Close() }
