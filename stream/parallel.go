package stream

import "context"

// Parallel applies fn with up to n calls in flight and yields the results
// in input order. With n below two it is Map. The first error cancels the
// context passed to calls still running and ends the stream.
func Parallel[I, O any](s *Stream[I], n int, fn func(context.Context, I) (O, error)) *Stream[O] {
	if n < 2 {
		return Map(s, fn)
	}
	return &Stream[O]{create: func(ctx context.Context) Iterator[O] {
		wctx, cancel := context.WithCancel(ctx)
		return &parallelIter[I, O]{source: s.create(ctx), fn: fn, n: n, ctx: wctx, cancel: cancel}
	}}
}

type parallelIter[I, O any] struct {
	source Iterator[I]
	fn     func(context.Context, I) (O, error)
	n      int
	ctx    context.Context
	cancel context.CancelFunc

	// pending holds one buffered channel per call in flight, oldest first.
	pending   []chan result[O]
	exhausted bool
	srcErr    error
	failed    error
}

func (it *parallelIter[I, O]) Next(ctx context.Context) (O, bool, error) {
	var zero O
	if it.failed != nil {
		return zero, false, it.failed
	}

	for !it.exhausted && it.srcErr == nil && len(it.pending) < it.n {
		val, ok, err := it.source.Next(ctx)
		if err != nil {
			it.srcErr = err
			break
		}
		if !ok {
			it.exhausted = true
			break
		}
		ch := make(chan result[O], 1)
		it.pending = append(it.pending, ch)
		go func(v I) {
			out, err := it.fn(it.ctx, v)
			ch <- result[O]{val: out, err: err}
		}(val)
	}

	if len(it.pending) == 0 {
		if it.srcErr != nil {
			it.failed = it.srcErr
		}
		return zero, false, it.srcErr
	}

	head := it.pending[0]
	it.pending = it.pending[1:]
	select {
	case r := <-head:
		if r.err != nil {
			it.fail(r.err)
			return zero, false, r.err
		}
		return r.val, true, nil
	case <-ctx.Done():
		it.fail(ctx.Err())
		return zero, false, ctx.Err()
	}
}

func (it *parallelIter[I, O]) fail(err error) {
	it.failed = err
	it.cancel()
}

// Close cancels calls still in flight. Their results are discarded.
func (it *parallelIter[I, O]) Close() error {
	it.cancel()
	return it.source.Close()
}
