package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/kbukum/entitypipe/condition"
	"github.com/kbukum/entitypipe/logger"
	"github.com/kbukum/entitypipe/pipeline"
)

type account struct {
	ID      string
	Owner   string
	Balance int
	Closed  bool
}

func accountID(a *account) string { return a.ID }

func newGates() *condition.Registry {
	return condition.NewRegistry(condition.NewExprFactory())
}

func quiet(gates *condition.Registry, opts ...pipeline.Option) []pipeline.Option {
	return append([]pipeline.Option{pipeline.WithGates(gates), pipeline.WithLogger(logger.Nop())}, opts...)
}

func seeded(gates *condition.Registry) *MemoryStore[string, *account] {
	store := NewMemoryStore(gates, accountID)
	_, _ = store.Process(context.Background(), []*account{
		{ID: "a1", Owner: "alice", Balance: 50},
		{ID: "a2", Owner: "bob", Balance: 5},
		{ID: "a3", Owner: "carol", Balance: 120, Closed: true},
	}, Create, nil)
	return store
}

// capitalize upper-cases owners of the members it is given.
func capitalize(gates *condition.Registry) *pipeline.CollectionProcessor[*account] {
	return pipeline.NewCollectionProcessor("capitalize", func(_ context.Context, _, matched []*account, _ *pipeline.Context, r *pipeline.Response[[]*account]) (*pipeline.Response[[]*account], error) {
		for _, a := range matched {
			a.Owner = strings.ToUpper(a.Owner)
		}
		return r.OK(matched), nil
	}, quiet(gates)...)
}

// closing nulls out closed accounts and stops on a negative balance.
func closing(gates *condition.Registry) *pipeline.BasicProcessor[*account] {
	return pipeline.NewProcessor("closing", func(_ context.Context, a *account, _ *pipeline.Context, r *pipeline.Response[*account]) (*pipeline.Response[*account], error) {
		switch {
		case a.Balance < 0:
			return r.SetError(pipeline.StopWithError, fmt.Errorf("negative balance on %s", a.ID)), nil
		case a.Closed:
			r.Data = nil
			return r.SetState(pipeline.NullData), nil
		}
		return r.OK(a), nil
	}, quiet(gates)...)
}
