package loader

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/kbukum/entitypipe/errors"
	"github.com/kbukum/entitypipe/logger"
	"github.com/kbukum/entitypipe/pipeline"
	"github.com/kbukum/entitypipe/validation"
)

// Spec is what a factory receives for one processor or handler.
type Spec struct {
	Name      string
	Pipeline  string
	Condition string
	Settings  Settings
	// Options carry the owning pipeline's gates, logger and filtering.
	Options []pipeline.Option
	Log     *logger.Logger
}

// ProcessorFactory builds a processor over T, where T is the entity type
// for basic pipelines and a slice of it for collection pipelines.
type ProcessorFactory[T any] func(spec Spec) (pipeline.Processor[T], error)

// HandlerFactory builds an exception handler over T.
type HandlerFactory[T any] func(spec Spec) (pipeline.ExceptionProcessor[T], error)

type entityEntry struct {
	typ        reflect.Type
	basic      func(name string, opts []pipeline.Option) assembly
	collection func(name string, opts []pipeline.Option) assembly
}

type factoryEntry struct {
	target reflect.Type
	build  func(spec Spec) (any, error)
}

// factories holds every factory registered under one type name, at most
// one per target type.
type factories []factoryEntry

// pick returns the factory for target, or the first one so the caller
// can report the mismatch.
func (fs factories) pick(target reflect.Type) factoryEntry {
	for _, f := range fs {
		if f.target == target {
			return f
		}
	}
	return fs[0]
}

// Catalog maps the type names used in definition files to Go types and
// factories. It is safe for concurrent use.
type Catalog struct {
	mu         sync.RWMutex
	entities   map[string]entityEntry
	processors map[string]factories
	handlers   map[string]factories
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		entities:   make(map[string]entityEntry),
		processors: make(map[string]factories),
		handlers:   make(map[string]factories),
	}
}

// RegisterEntity makes E available as entity_type name, for both basic
// (E) and collection ([]E) pipelines.
func RegisterEntity[E comparable](c *Catalog, name string) error {
	if err := checkTypeName("entity", name); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entities[name]; exists {
		return fmt.Errorf("loader: entity type %q already registered", name)
	}
	c.entities[name] = entityEntry{
		typ: reflect.TypeOf((*E)(nil)).Elem(),
		basic: func(name string, opts []pipeline.Option) assembly {
			return &typed[E]{p: pipeline.NewPipeline[E](name, opts...)}
		},
		collection: func(name string, opts []pipeline.Option) assembly {
			return &typed[[]E]{p: pipeline.NewCollectionPipeline[E](name, opts...)}
		},
	}
	return nil
}

// RegisterProcessor makes a processor factory available as type name.
// One name may carry a factory per T, typically E and []E, and the
// pipeline being built picks the one over its own value type.
func RegisterProcessor[T any](c *Catalog, name string, f ProcessorFactory[T]) error {
	return c.register(c.processors, "processor", name, factoryEntry{
		target: reflect.TypeOf((*T)(nil)).Elem(),
		build:  func(spec Spec) (any, error) { return f(spec) },
	})
}

// RegisterHandler makes an exception handler factory available as type name.
func RegisterHandler[T any](c *Catalog, name string, f HandlerFactory[T]) error {
	return c.register(c.handlers, "handler", name, factoryEntry{
		target: reflect.TypeOf((*T)(nil)).Elem(),
		build:  func(spec Spec) (any, error) { return f(spec) },
	})
}

func (c *Catalog) register(m map[string]factories, kind, name string, e factoryEntry) error {
	if err := checkTypeName(kind, name); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range m[name] {
		if f.target == e.target {
			return fmt.Errorf("loader: %s type %q already registered for %s", kind, name, e.target)
		}
	}
	m[name] = append(m[name], e)
	return nil
}

// checkTypeName rejects names a definition file could not refer to.
func checkTypeName(kind, name string) error {
	if appErr := validation.New().Required(kind, name).Identifier(kind, name).Validate(); appErr != nil {
		return appErr
	}
	return nil
}

func (c *Catalog) entity(name string) (entityEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entities[name]
	if !ok {
		return entityEntry{}, errors.FactoryNotRegistered("entity", name)
	}
	return e, nil
}

func (c *Catalog) processor(name string, target reflect.Type) (factoryEntry, error) {
	return c.lookup(c.processors, "processor", name, target)
}

func (c *Catalog) handler(name string, target reflect.Type) (factoryEntry, error) {
	return c.lookup(c.handlers, "handler", name, target)
}

func (c *Catalog) lookup(m map[string]factories, kind, name string, target reflect.Type) (factoryEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fs, ok := m[name]
	if !ok {
		return factoryEntry{}, errors.FactoryNotRegistered(kind, name)
	}
	return fs.pick(target), nil
}

// Types lists the registered names per kind ("entity", "processor",
// "handler"), sorted.
func (c *Catalog) Types() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return map[string][]string{
		"entity":    sortedKeys(c.entities),
		"processor": sortedKeys(c.processors),
		"handler":   sortedKeys(c.handlers),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
