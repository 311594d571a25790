package pipeline

import "context"

// ExceptionProcessor handles error responses inside a pipeline. A pipeline
// consults its handlers, in registration order, whenever a child returns
// an error-bearing state. Handle may change the state in either direction.
type ExceptionProcessor[T any] interface {
	Name() string
	// Condition restricts the handler to responses whose data matches it.
	// An empty condition always applies.
	Condition() string
	Handle(ctx context.Context, resp *Response[T], pctx *Context) *Response[T]
}

// ExceptionFunc is the body of a function-based exception handler.
type ExceptionFunc[T any] func(ctx context.Context, resp *Response[T], pctx *Context) *Response[T]

// ExceptionHandler is an ExceptionProcessor backed by a function.
type ExceptionHandler[T any] struct {
	name      string
	condition string
	fn        ExceptionFunc[T]
}

func NewExceptionHandler[T any](name, condition string, fn ExceptionFunc[T]) *ExceptionHandler[T] {
	return &ExceptionHandler[T]{name: name, condition: condition, fn: fn}
}

func (h *ExceptionHandler[T]) Name() string      { return h.name }
func (h *ExceptionHandler[T]) Condition() string { return h.condition }

func (h *ExceptionHandler[T]) Handle(ctx context.Context, resp *Response[T], pctx *Context) *Response[T] {
	return h.fn(ctx, resp, pctx)
}

// Downgrade returns a handler that rewrites any error to state, keeping
// the original error when the new state carries one.
func Downgrade[T any](name, condition string, state ResponseState) *ExceptionHandler[T] {
	return NewExceptionHandler(name, condition, func(_ context.Context, resp *Response[T], _ *Context) *Response[T] {
		if state.IsError() {
			return resp.SetError(state, resp.Err)
		}
		return resp.SetState(state)
	})
}
