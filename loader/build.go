package loader

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"github.com/kbukum/entitypipe/errors"
	"github.com/kbukum/entitypipe/logger"
	"github.com/kbukum/entitypipe/pipeline"
)

// Build validates the loaded definitions, builds every pipeline and
// initializes them. A pipeline referenced from several places is built
// once and shared. On failure nothing is left initialized.
func (l *Loader) Build(ctx context.Context) (*Set, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}

	defs := l.Definitions()
	b := &builder{
		loader: l,
		defs:   make(map[string]PipelineDef, len(defs)),
		built:  make(map[string]*Built, len(defs)),
	}
	for _, d := range defs {
		b.defs[d.Name] = d
	}

	set := &Set{pipelines: make(map[string]*Built, len(defs))}
	for _, d := range defs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		built, err := b.build(d.Name, nil)
		if err != nil {
			return nil, err
		}
		set.pipelines[d.Name] = built
		set.order = append(set.order, d.Name)
	}

	for _, name := range set.order {
		if err := set.pipelines[name].asm.init(); err != nil {
			set.Dispose()
			return nil, errors.InvalidDefinition(name, "initialization failed").WithCause(err)
		}
	}

	l.log.Info("Pipelines built", logger.Fields(logger.FieldCount, len(set.order)))
	return set, nil
}

type builder struct {
	loader *Loader
	defs   map[string]PipelineDef
	built  map[string]*Built
}

func (b *builder) build(name string, stack []string) (*Built, error) {
	if built, ok := b.built[name]; ok {
		return built, nil
	}
	if slices.Contains(stack, name) {
		return nil, errors.ReferenceCycle(append(slices.Clone(stack), name))
	}
	def, ok := b.defs[name]
	if !ok {
		return nil, errors.InvalidDefinition(name, "no such pipeline")
	}
	stack = append(stack, name)

	entity, err := b.loader.catalog.entity(def.EntityType)
	if err != nil {
		return nil, err
	}

	log := b.loader.log.WithFields(logger.Fields(logger.FieldPipeline, def.Name))
	opts := []pipeline.Option{
		pipeline.WithGates(b.loader.gates),
		pipeline.WithLogger(b.loader.log),
		pipeline.WithIncludeFiltered(def.Filtered()),
	}

	var asm assembly
	if def.Kind() == KindCollection {
		asm = entity.collection(def.Name, opts)
	} else {
		asm = entity.basic(def.Name, opts)
	}

	for _, pd := range def.Processors {
		child, err := b.child(def, pd, asm.valueType(), opts, log, stack)
		if err != nil {
			return nil, err
		}
		if err := asm.add(child, pd.Condition, b.loader.inst); err != nil {
			return nil, errors.InvalidDefinition(def.Name, fmt.Sprintf("processor %q: %v", pd.Label(), err)).WithCause(err)
		}
	}

	for _, hd := range def.ErrorHandlers {
		f, err := b.loader.catalog.handler(hd.Type, asm.valueType())
		if err != nil {
			return nil, err
		}
		h, err := f.build(b.spec(def, hd.Label(), hd.Condition, hd.Settings, opts, log))
		if err != nil {
			return nil, errors.InvalidDefinition(def.Name, fmt.Sprintf("handler %q: %v", hd.Label(), err)).WithCause(err)
		}
		if err := asm.addHandler(h); err != nil {
			return nil, errors.InvalidDefinition(def.Name, fmt.Sprintf("handler %q: %v", hd.Label(), err)).WithCause(err)
		}
	}

	built := &Built{def: def, asm: asm}
	b.built[name] = built
	return built, nil
}

func (b *builder) child(def PipelineDef, pd ProcessorDef, target reflect.Type, opts []pipeline.Option, log *logger.Logger, stack []string) (any, error) {
	if pd.Reference != "" {
		ref, err := b.build(pd.Reference, stack)
		if err != nil {
			return nil, err
		}
		return ref.asm.processor(), nil
	}
	f, err := b.loader.catalog.processor(pd.Type, target)
	if err != nil {
		return nil, err
	}
	proc, err := f.build(b.spec(def, pd.Name, pd.Condition, pd.Settings, opts, log))
	if err != nil {
		return nil, errors.InvalidDefinition(def.Name, fmt.Sprintf("processor %q: %v", pd.Label(), err)).WithCause(err)
	}
	if proc == nil {
		return nil, errors.InvalidDefinition(def.Name, fmt.Sprintf("processor %q: factory returned nil", pd.Label()))
	}
	return proc, nil
}

func (b *builder) spec(def PipelineDef, name, cond string, settings Settings, opts []pipeline.Option, log *logger.Logger) Spec {
	return Spec{
		Name:      name,
		Pipeline:  def.Name,
		Condition: cond,
		Settings:  settings,
		Options:   slices.Clone(opts),
		Log:       log.WithFields(logger.Fields(logger.FieldProcessor, name)),
	}
}

// Built is one constructed pipeline with its definition. It implements
// Runner.
type Built struct {
	def PipelineDef
	asm assembly
}

// Name returns the pipeline name.
func (b *Built) Name() string { return b.def.Name }

// Kind returns "basic" or "collection".
func (b *Built) Kind() string { return b.def.Kind() }

// EntityType returns the catalog entity type name.
func (b *Built) EntityType() string { return b.def.EntityType }

// Definition returns the definition the pipeline was built from.
func (b *Built) Definition() PipelineDef { return b.def }

// State returns the pipeline's lifecycle state.
func (b *Built) State() pipeline.ProcessState { return b.asm.state() }

// Processors returns the child names in execution order.
func (b *Built) Processors() []string { return b.asm.children() }

// Run decodes input as the pipeline's value type (an entity, or a JSON
// array of entities for collection pipelines), executes the pipeline and
// encodes the outcome. Only fatal outcomes are returned as errors.
func (b *Built) Run(ctx context.Context, input []byte, pctx *pipeline.Context) (*Result, error) {
	return b.asm.run(ctx, input, pctx)
}

// Runner executes a pipeline without knowing its entity type.
type Runner interface {
	Name() string
	Kind() string
	EntityType() string
	Run(ctx context.Context, input []byte, pctx *pipeline.Context) (*Result, error)
}

// Set holds the pipelines produced by Build.
type Set struct {
	pipelines map[string]*Built
	order     []string
}

// Names returns the pipeline names in definition order.
func (s *Set) Names() []string { return slices.Clone(s.order) }

// Get returns the named pipeline.
func (s *Set) Get(name string) (*Built, bool) {
	b, ok := s.pipelines[name]
	return b, ok
}

// Runner returns the named pipeline as a Runner.
func (s *Set) Runner(name string) (Runner, bool) {
	b, ok := s.pipelines[name]
	if !ok {
		return nil, false
	}
	return b, true
}

// Dispose disposes every pipeline. Shared children are disposed once.
func (s *Set) Dispose() {
	for i := len(s.order) - 1; i >= 0; i-- {
		s.pipelines[s.order[i]].asm.dispose()
	}
}

// Lookup returns the named basic pipeline over E.
func Lookup[E any](s *Set, name string) (*pipeline.Pipeline[E], error) {
	return lookup[E](s, name)
}

// LookupCollection returns the named collection pipeline over E.
func LookupCollection[E any](s *Set, name string) (*pipeline.Pipeline[[]E], error) {
	return lookup[[]E](s, name)
}

func lookup[T any](s *Set, name string) (*pipeline.Pipeline[T], error) {
	b, ok := s.pipelines[name]
	if !ok {
		return nil, errors.NotFound("pipeline", name)
	}
	p, ok := b.asm.instance().(*pipeline.Pipeline[T])
	if !ok {
		return nil, errors.InvalidDefinition(name, fmt.Sprintf("pipeline processes %s, not %s", b.asm.valueType(), reflect.TypeOf((*T)(nil)).Elem()))
	}
	return p, nil
}
