package source

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/kbukum/entitypipe/condition"
	"github.com/kbukum/entitypipe/errors"
	"github.com/kbukum/entitypipe/pipeline"
)

// MemorySource serves a fixed list. A non-empty query is evaluated as a
// condition against each entity through the gate registry.
type MemorySource[E any] struct {
	gates *condition.Registry
	items []E
}

// NewMemorySource returns a source over a copy of items.
func NewMemorySource[E any](gates *condition.Registry, items ...E) *MemorySource[E] {
	return &MemorySource[E]{gates: gates, items: slices.Clone(items)}
}

func (s *MemorySource[E]) Fetch(ctx context.Context, query string, _ *pipeline.Context) ([]E, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Filter(s.gates, s.items, query)
}

// MemoryStore is a keyed in-memory store that works as a KeyedSource and
// as a DataSink for the standard operations. Fetch returns entities in
// insertion order.
type MemoryStore[K comparable, E any] struct {
	gates *condition.Registry
	key   func(E) K

	mu    sync.RWMutex
	order []K
	items map[K]E
}

// NewMemoryStore returns an empty store keyed by key.
func NewMemoryStore[K comparable, E any](gates *condition.Registry, key func(E) K) *MemoryStore[K, E] {
	return &MemoryStore[K, E]{gates: gates, key: key, items: make(map[K]E)}
}

func (s *MemoryStore[K, E]) Fetch(ctx context.Context, query string, _ *pipeline.Context) ([]E, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Filter(s.gates, s.Snapshot(), query)
}

func (s *MemoryStore[K, E]) Find(ctx context.Context, key K, _ *pipeline.Context) (E, bool, error) {
	if err := ctx.Err(); err != nil {
		var zero E
		return zero, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[key]
	return e, ok, nil
}

// Process applies op to every item. The batch is validated before any
// write, so a Create conflict or an Update of a missing key changes nothing.
func (s *MemoryStore[K, E]) Process(ctx context.Context, items []E, op Operation, _ *pipeline.Context) ([]E, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		k := s.key(item)
		_, exists := s.items[k]
		switch op {
		case Create:
			if exists {
				return nil, errors.InvalidInput("key", fmt.Sprintf("entity %v already exists", k))
			}
		case Update, Delete:
			if !exists {
				return nil, errors.NotFound("entity", fmt.Sprint(k))
			}
		case Upsert:
		default:
			return nil, errors.UnsupportedOperation(op.String())
		}
	}

	out := make([]E, 0, len(items))
	for _, item := range items {
		k := s.key(item)
		switch op {
		case Delete:
			out = append(out, s.items[k])
			delete(s.items, k)
			s.order = slices.DeleteFunc(s.order, func(o K) bool { return o == k })
		default:
			if _, exists := s.items[k]; !exists {
				s.order = append(s.order, k)
			}
			s.items[k] = item
			out = append(out, item)
		}
	}
	return out, nil
}

// Snapshot returns the stored entities in insertion order.
func (s *MemoryStore[K, E]) Snapshot() []E {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]E, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.items[k])
	}
	return out
}

// Len returns the number of stored entities.
func (s *MemoryStore[K, E]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Filter returns the items matching query through the gate registered for
// E. An empty query keeps every item.
func Filter[E any](gates *condition.Registry, items []E, query string) ([]E, error) {
	if query == "" {
		return slices.Clone(items), nil
	}
	if gates == nil {
		return nil, errors.InvalidCondition(query, fmt.Errorf("no condition registry configured"))
	}
	gate, err := condition.For[E](gates)
	if err != nil {
		return nil, conditionError(query, err)
	}
	out := make([]E, 0, len(items))
	for _, item := range items {
		ok, err := gate.Matches(item, query)
		if err != nil {
			return nil, conditionError(query, err)
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func conditionError(query string, err error) error {
	if errors.IsAppError(err) {
		return err
	}
	return errors.InvalidCondition(query, err)
}
