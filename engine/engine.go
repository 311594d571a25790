package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kbukum/entitypipe/component"
	"github.com/kbukum/entitypipe/condition"
	"github.com/kbukum/entitypipe/config"
	"github.com/kbukum/entitypipe/errors"
	"github.com/kbukum/entitypipe/loader"
	"github.com/kbukum/entitypipe/logger"
	"github.com/kbukum/entitypipe/pipeline"
)

// ComponentName is the name the engine registers under.
const ComponentName = "pipelines"

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The loader logs through it too.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithGates sets the condition registry shared by every pipeline.
func WithGates(r *condition.Registry) Option {
	return func(e *Engine) { e.gates = r }
}

// WithInstrumentation decorates every processor the engine builds.
func WithInstrumentation(inst loader.Instrumentation) Option {
	return func(e *Engine) { e.inst = inst }
}

// Info describes one built pipeline.
type Info struct {
	Name        string   `json:"name"`
	Kind        string   `json:"type"`
	EntityType  string   `json:"entity_type"`
	Description string   `json:"description,omitempty"`
	Processors  []string `json:"processors"`
	State       string   `json:"state"`
}

// Engine loads pipeline definitions at Start and serves them by name
// until Stop. It implements component.Component.
type Engine struct {
	catalog *loader.Catalog
	cfg     config.PipelinesConfig
	gates   *condition.Registry
	inst    loader.Instrumentation
	log     *logger.Logger

	mu        sync.RWMutex
	set       *loader.Set
	defs      []loader.PipelineDef
	startedAt time.Time
}

// New creates an engine that builds the definitions listed in cfg with
// the factories in catalog.
func New(catalog *loader.Catalog, cfg config.PipelinesConfig, opts ...Option) *Engine {
	e := &Engine{
		catalog: catalog,
		cfg:     cfg,
		log:     logger.WithComponent("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return ComponentName }

// Start loads and builds every configured definition. Either all
// pipelines are available afterwards or none are.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set != nil {
		return fmt.Errorf("engine already started")
	}

	opts := []loader.Option{
		loader.WithLogger(e.log),
		loader.WithStrict(e.cfg.Strict),
		loader.WithInstrumentation(e.inst),
	}
	if e.gates != nil {
		opts = append(opts, loader.WithGates(e.gates))
	}
	l := loader.New(e.catalog, opts...)

	for _, f := range e.cfg.Files {
		if err := l.LoadFile(f); err != nil {
			return err
		}
	}
	for _, d := range e.cfg.Dirs {
		if err := l.LoadDir(d); err != nil {
			return err
		}
	}

	set, err := l.Build(ctx)
	if err != nil {
		return err
	}
	e.set = set
	e.defs = l.Definitions()
	e.startedAt = time.Now()

	e.log.Info("pipelines started", logger.Fields(logger.FieldCount, len(e.defs)))
	return nil
}

// Stop disposes every pipeline. Calling it on a stopped engine is a no-op.
func (e *Engine) Stop(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set == nil {
		return nil
	}
	e.set.Dispose()
	e.set = nil
	e.log.Info("pipelines stopped")
	return nil
}

// Health is unhealthy before Start and degraded while any pipeline is in
// the Error state.
func (e *Engine) Health(_ context.Context) component.Health {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h := component.Health{Name: ComponentName, Status: component.StatusHealthy}
	if e.set == nil {
		h.Status = component.StatusUnhealthy
		h.Message = "not started"
		return h
	}

	var failed []string
	for _, name := range e.set.Names() {
		b, _ := e.set.Get(name)
		if b.State() == pipeline.StateError {
			failed = append(failed, name)
		}
	}
	h.Details = map[string]any{
		"pipelines": len(e.defs),
		"uptime":    time.Since(e.startedAt).Round(time.Second).String(),
	}
	if len(failed) > 0 {
		h.Status = component.StatusDegraded
		h.Message = fmt.Sprintf("%d pipeline(s) in error state", len(failed))
		h.Details["failed"] = failed
	}
	return h
}

// Run executes the named pipeline on JSON input.
func (e *Engine) Run(ctx context.Context, name string, input []byte, pctx *pipeline.Context) (*loader.Result, error) {
	r, err := e.runner(name)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, input, pctx)
}

// Runner returns the named pipeline.
func (e *Engine) Runner(name string) (loader.Runner, error) {
	return e.runner(name)
}

func (e *Engine) runner(name string) (loader.Runner, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.set == nil {
		return nil, errors.Unavailable(ComponentName, "not started")
	}
	r, ok := e.set.Runner(name)
	if !ok {
		return nil, errors.NotFound("pipeline", name)
	}
	return r, nil
}

// Set returns the built pipelines for typed lookups, or nil before Start.
func (e *Engine) Set() *loader.Set {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.set
}

// Pipelines describes every built pipeline, sorted by name.
func (e *Engine) Pipelines() []Info {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.set == nil {
		return nil
	}
	out := make([]Info, 0, len(e.defs))
	for _, name := range e.set.Names() {
		b, _ := e.set.Get(name)
		out = append(out, Info{
			Name:        b.Name(),
			Kind:        b.Kind(),
			EntityType:  b.EntityType(),
			Description: b.Definition().Description,
			Processors:  b.Processors(),
			State:       b.State().String(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Definitions returns the loaded definitions in load order.
func (e *Engine) Definitions() []loader.PipelineDef {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]loader.PipelineDef(nil), e.defs...)
}

var _ component.Component = (*Engine)(nil)
