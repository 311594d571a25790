package stream

import "context"

// Batch groups values into slices of up to size. The last batch holds
// whatever is left. A size below one is treated as one.
func Batch[T any](s *Stream[T], size int) *Stream[[]T] {
	if size < 1 {
		size = 1
	}
	return &Stream[[]T]{create: func(ctx context.Context) Iterator[[]T] {
		return &batchIter[T]{source: s.create(ctx), size: size}
	}}
}

type batchIter[T any] struct {
	source Iterator[T]
	size   int
	err    error
	done   bool
}

// Next returns a partial batch before a source error; the error surfaces
// on the following call.
func (it *batchIter[T]) Next(ctx context.Context) ([]T, bool, error) {
	if it.err != nil {
		return nil, false, it.err
	}
	if it.done {
		return nil, false, nil
	}

	batch := make([]T, 0, it.size)
	for len(batch) < it.size {
		val, ok, err := it.source.Next(ctx)
		if err != nil {
			it.err = err
			break
		}
		if !ok {
			it.done = true
			break
		}
		batch = append(batch, val)
	}
	if len(batch) == 0 {
		return nil, false, it.err
	}
	return batch, true, nil
}

func (it *batchIter[T]) Close() error { return it.source.Close() }
