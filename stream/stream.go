package stream

import "context"

// Iterator yields the values of a stream one at a time.
type Iterator[T any] interface {
	// Next returns the next value, or ok=false once the stream is exhausted.
	Next(ctx context.Context) (val T, ok bool, err error)
	Close() error
}

// Stream is a lazy sequence of values. Every Collect builds a fresh
// iterator chain.
type Stream[T any] struct {
	create func(ctx context.Context) Iterator[T]
}

// FromSlice streams the items of a slice in order.
func FromSlice[T any](items []T) *Stream[T] {
	return &Stream[T]{create: func(context.Context) Iterator[T] {
		return &sliceIter[T]{items: items}
	}}
}

// FromFunc streams the values of the iterator fn creates per run.
func FromFunc[T any](fn func(ctx context.Context) Iterator[T]) *Stream[T] {
	return &Stream[T]{create: fn}
}

// Collect pulls every value. On error it returns the values pulled so far
// together with the error.
func Collect[T any](ctx context.Context, s *Stream[T]) ([]T, error) {
	it := s.create(ctx)
	defer it.Close()

	var out []T
	for {
		val, ok, err := it.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, val)
	}
}

type sliceIter[T any] struct {
	items []T
	pos   int
}

func (it *sliceIter[T]) Next(context.Context) (T, bool, error) {
	if it.pos >= len(it.items) {
		var zero T
		return zero, false, nil
	}
	v := it.items[it.pos]
	it.pos++
	return v, true, nil
}

func (it *sliceIter[T]) Close() error { return nil }

// result carries one computed value between goroutines.
type result[T any] struct {
	val T
	err error
}
