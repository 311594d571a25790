package pipeline

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kbukum/entitypipe/condition"
	"github.com/kbukum/entitypipe/logger"
)

type user struct {
	Name   string
	Active bool `expr:"active"`
}

func newGates() *condition.Registry {
	return condition.NewRegistry(condition.NewExprFactory())
}

func quiet(gates *condition.Registry, opts ...Option) []Option {
	return append([]Option{WithGates(gates), WithLogger(logger.Nop())}, opts...)
}

// countingGate counts evaluations made through it.
type countingGate struct {
	inner condition.Gate
	calls atomic.Int32
}

func (g *countingGate) Matches(entity any, cond string) (bool, error) {
	g.calls.Add(1)
	return g.inner.Matches(entity, cond)
}

func (g *countingGate) Filter(entities []any, cond string) ([]any, error) {
	g.calls.Add(1)
	return g.inner.Filter(entities, cond)
}

func mustInit(t *testing.T, p interface{ Init() error }) {
	t.Helper()
	if err := p.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
}

// upper returns a processor that upper-cases the user name.
func upper(name string, gates *condition.Registry, opts ...Option) *BasicProcessor[*user] {
	return NewProcessor(name, func(_ context.Context, u *user, _ *Context, r *Response[*user]) (*Response[*user], error) {
		u.Name = strings.ToUpper(u.Name)
		return r.OK(u), nil
	}, quiet(gates, opts...)...)
}

// returning returns a processor that ends in state with err.
func returning(name string, gates *condition.Registry, state ResponseState, err error, calls *atomic.Int32) *BasicProcessor[*user] {
	return NewProcessor(name, func(_ context.Context, u *user, _ *Context, r *Response[*user]) (*Response[*user], error) {
		if calls != nil {
			calls.Add(1)
		}
		if state.IsError() {
			return r.SetError(state, err), nil
		}
		return r.SetState(state), nil
	}, quiet(gates)...)
}
