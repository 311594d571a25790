package pipeline

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/kbukum/entitypipe/errors"
	"github.com/kbukum/entitypipe/logger"
)

type child[T any] struct {
	name      string
	proc      Processor[T]
	condition string
}

// Pipeline is a Processor that runs named child processors in registration
// order. Children are added before Init; the set is read-only afterwards.
type Pipeline[T any] struct {
	core[T]

	mu       sync.RWMutex
	children []child[T]
	index    map[string]int
	handlers []ExceptionProcessor[T]

	// handlerMatch evaluates an exception handler condition against data.
	handlerMatch func(data T, cond string) (bool, error)
}

// NewPipeline creates a pipeline over single entities of type E.
func NewPipeline[E any](name string, opts ...Option) *Pipeline[E] {
	p := newPipeline[E](name, reflect.TypeOf((*E)(nil)).Elem(), opts)
	p.handlerMatch = func(data E, cond string) (bool, error) {
		g, err := p.gate()
		if err != nil {
			return false, err
		}
		return g.Matches(data, cond)
	}
	return p
}

// NewCollectionPipeline creates a pipeline over slices of E. Its own
// condition filters the input like a CollectionProcessor: the chain runs
// on the matched members and, unless disabled with WithIncludeFiltered,
// the rest are appended to the chain output.
func NewCollectionPipeline[E comparable](name string, opts ...Option) *Pipeline[[]E] {
	p := newPipeline[[]E](name, reflect.TypeOf((*E)(nil)).Elem(), opts)
	p.admit = filterAdmit(&p.core)
	p.handlerMatch = func(data []E, cond string) (bool, error) {
		g, err := p.gate()
		if err != nil {
			return false, err
		}
		in := make([]any, len(data))
		for i, e := range data {
			in[i] = e
		}
		out, err := g.Filter(in, cond)
		return len(out) > 0, err
	}
	return p
}

func newPipeline[T any](name string, entityType reflect.Type, opts []Option) *Pipeline[T] {
	p := &Pipeline[T]{index: make(map[string]int)}
	p.setup(name, entityType, opts)
	p.log = p.opts.log.WithFields(logger.Fields(logger.FieldPipeline, name))
	return p
}

// AddProcessor appends proc to the chain. cond gates it; empty always runs.
func (p *Pipeline[T]) AddProcessor(proc Processor[T], cond string) error {
	if proc == nil || isNil(proc) {
		return errors.InvalidDefinition(p.name, "nil processor")
	}
	if st := p.State(); st != StateUninitialized {
		return errors.InvalidDefinition(p.name, fmt.Sprintf("cannot add processor %q: pipeline is %s", proc.Name(), st))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.index[proc.Name()]; ok {
		return errors.InvalidDefinition(p.name, fmt.Sprintf("duplicate processor name %q", proc.Name()))
	}
	p.index[proc.Name()] = len(p.children)
	p.children = append(p.children, child[T]{name: proc.Name(), proc: proc, condition: cond})
	return nil
}

// AddExceptionProcessor appends an error handler.
func (p *Pipeline[T]) AddExceptionProcessor(h ExceptionProcessor[T]) error {
	if h == nil || isNil(h) {
		return errors.InvalidDefinition(p.name, "nil exception processor")
	}
	if st := p.State(); st != StateUninitialized {
		return errors.InvalidDefinition(p.name, fmt.Sprintf("cannot add exception processor %q: pipeline is %s", h.Name(), st))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, h)
	return nil
}

// Processors returns the child names in execution order.
func (p *Pipeline[T]) Processors() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, len(p.children))
	for i, c := range p.children {
		names[i] = c.name
	}
	return names
}

// Processor returns the named child.
func (p *Pipeline[T]) Processor(name string) (Processor[T], bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	i, ok := p.index[name]
	if !ok {
		return nil, false
	}
	return p.children[i].proc, true
}

// Condition returns the condition registered for the named child.
func (p *Pipeline[T]) Condition(name string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i, ok := p.index[name]; ok {
		return p.children[i].condition
	}
	return ""
}

func (p *Pipeline[T]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.children)
}

// ExceptionProcessors returns the number of registered error handlers.
func (p *Pipeline[T]) ExceptionProcessors() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handlers)
}

// Init initializes the pipeline and then every child. A child failure
// leaves the pipeline in StateError. Children shared with other pipelines
// are initialized once.
func (p *Pipeline[T]) Init() error {
	return p.life.initialize(p.name, func() error {
		if p.opts.init != nil {
			if err := p.opts.init(); err != nil {
				return err
			}
		}
		for _, c := range p.snapshot() {
			if err := c.proc.Init(); err != nil {
				return fmt.Errorf("child %q: %w", c.name, err)
			}
		}
		return nil
	})
}

// Dispose disposes the pipeline and then its children. It is a no-op on a
// pipeline already disposed or in StateError.
func (p *Pipeline[T]) Dispose() {
	if !p.life.dispose() {
		return
	}
	if p.opts.dispose != nil {
		p.opts.dispose()
	}
	for _, c := range p.snapshot() {
		c.proc.Dispose()
	}
}

func (p *Pipeline[T]) snapshot() []child[T] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]child[T], len(p.children))
	copy(out, p.children)
	return out
}

// Execute runs the chain. A pipeline without children returns Skipped
// without consulting its condition. A FatalError or UnhandledError outcome
// is returned together with a PIPELINE_FATAL error.
func (p *Pipeline[T]) Execute(ctx context.Context, data T, cond string, pctx *Context) (*Response[T], error) {
	if st := p.State(); st != StateAvailable {
		return nil, errors.Unavailable(p.name, st.String())
	}
	children := p.snapshot()
	if len(children) == 0 {
		return NewResponse(data).SetState(Skipped), nil
	}

	resp, err := p.execute(ctx, data, cond, pctx, func(ctx context.Context, _, matched T, pctx *Context, _ *Response[T]) (*Response[T], error) {
		return p.chain(ctx, matched, pctx, children)
	})
	if err == nil && resp != nil && resp.State.IsFatal() {
		err = errors.PipelineFatal(p.name, p.name, resp.Err)
	}
	return resp, err
}

func (p *Pipeline[T]) chain(ctx context.Context, data T, pctx *Context, children []child[T]) (*Response[T], error) {
	log := p.log.WithContext(ctx)
	r := NewResponse(data)

	for _, c := range children {
		if err := ctx.Err(); err != nil {
			r = NewResponse(r.Data).SetError(UnhandledError, errors.Unhandled(p.name, err))
			log.Error("pipeline cancelled", p.fields(c.name, r))
			return r, errors.PipelineFatal(p.name, c.name, r.Err)
		}

		next, err := c.proc.Execute(ctx, r.Data, c.condition, pctx)
		if err != nil {
			fatal := NewResponse(r.Data).SetError(FatalError, err)
			if appErr, ok := errors.AsAppError(err); ok && appErr.Code == errors.ErrCodeProcessorUnavailable {
				log.Error("pipeline aborted", p.fields(c.name, fatal))
				return fatal, errors.PipelineFatal(p.name, c.name, err)
			}
			next = fatal
		} else if next == nil {
			next = NewResponse(r.Data).SetError(FatalError, errors.NullResponse(c.name))
		}
		next.mergeElementErrors(r.ElementErrors())
		r = next

		if r.HasError() {
			r = p.handle(ctx, r, pctx)
		}

		switch r.State {
		case FatalError, UnhandledError:
			log.Error("pipeline aborted", p.fields(c.name, r))
			return r, errors.PipelineFatal(p.name, c.name, r.Err)
		case StopWithError:
			log.Error("pipeline stopped with error", p.fields(c.name, r))
			return r, nil
		case ContinueWithError:
			log.Warn("pipeline continuing after error", p.fields(c.name, r))
		case StopWithOk:
			return r, nil
		}

		if isNil(any(r.Data)) {
			log.Debug("processor returned nil data, stopping", p.fields(c.name, r))
			break
		}
	}
	return r, nil
}

// handle passes r through every applicable exception handler in order.
func (p *Pipeline[T]) handle(ctx context.Context, r *Response[T], pctx *Context) *Response[T] {
	p.mu.RLock()
	handlers := p.handlers
	p.mu.RUnlock()

	for _, h := range handlers {
		if !p.applies(ctx, h, r) {
			continue
		}
		out := p.safeHandle(ctx, h, r, pctx)
		if out == nil {
			p.log.WithContext(ctx).Warn("exception processor returned nil response", logger.Fields(logger.FieldProcessor, h.Name()))
			continue
		}
		if out != r {
			out.mergeElementErrors(r.ElementErrors())
		}
		r = out
	}
	return r
}

func (p *Pipeline[T]) applies(ctx context.Context, h ExceptionProcessor[T], r *Response[T]) bool {
	cond := h.Condition()
	if cond == "" || isNil(any(r.Data)) {
		return true
	}
	ok, err := p.handlerMatch(r.Data, cond)
	if err != nil {
		p.log.WithContext(ctx).Warn("exception processor condition failed", logger.MergeWithError(
			logger.Fields(logger.FieldProcessor, h.Name(), logger.FieldCondition, cond), err))
		return false
	}
	return ok
}

func (p *Pipeline[T]) safeHandle(ctx context.Context, h ExceptionProcessor[T], r *Response[T], pctx *Context) (out *Response[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.WithContext(ctx).Error("exception processor panicked", logger.Fields(
				logger.FieldProcessor, h.Name(), logger.FieldError, fmt.Sprint(rec)))
			out = r
		}
	}()
	return h.Handle(ctx, r, pctx)
}

func (p *Pipeline[T]) fields(child string, r *Response[T]) map[string]interface{} {
	f := logger.Fields(
		logger.FieldProcessor, child,
		logger.FieldState, r.State.String(),
	)
	return logger.MergeWithError(f, r.Err)
}

var _ Processor[int] = (*Pipeline[int])(nil)
