package condition

import (
	"fmt"
	"reflect"
	"sync"
)

// Factory creates the Gate for an entity type.
type Factory func(t reflect.Type) (Gate, error)

// Registry memoizes one Gate per entity type. It is safe for concurrent
// use; concurrent first requests for the same type share a single Gate.
type Registry struct {
	mu      sync.RWMutex
	gates   map[reflect.Type]Gate
	factory Factory
}

// NewRegistry creates a registry that builds gates with factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		gates:   make(map[reflect.Type]Gate),
		factory: factory,
	}
}

// Gate returns the Gate for t, creating it on first use.
func (r *Registry) Gate(t reflect.Type) (Gate, error) {
	if t == nil {
		return nil, fmt.Errorf("condition: nil entity type")
	}

	r.mu.RLock()
	g, ok := r.gates[t]
	r.mu.RUnlock()
	if ok {
		return g, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.gates[t]; ok {
		return g, nil
	}
	if r.factory == nil {
		return nil, fmt.Errorf("condition: no gate registered for %s", t)
	}
	g, err := r.factory(t)
	if err != nil {
		return nil, fmt.Errorf("condition: creating gate for %s: %w", t, err)
	}
	r.gates[t] = g
	return g, nil
}

// Register installs g for t, replacing any existing gate.
func (r *Registry) Register(t reflect.Type, g Gate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gates[t] = g
}

// Len returns the number of gates created or registered so far.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.gates)
}

// For returns the Gate for entity type E.
func For[E any](r *Registry) (Gate, error) {
	return r.Gate(reflect.TypeOf((*E)(nil)).Elem())
}
