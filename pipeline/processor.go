package pipeline

import (
	"context"
	"fmt"
	"reflect"

	"github.com/kbukum/entitypipe/condition"
	"github.com/kbukum/entitypipe/errors"
	"github.com/kbukum/entitypipe/logger"
)

// Processor is a unit of work over data of type T.
//
// Execute returns a non-nil error only when the call itself could not be
// honored: the processor is not Available, or (for pipelines) a child
// failed fatally. Every other outcome, including hook failures, is
// reported through the Response state.
type Processor[T any] interface {
	Name() string
	// EntityType is the type condition strings are evaluated against.
	EntityType() reflect.Type
	State() ProcessState
	Init() error
	Dispose()
	Execute(ctx context.Context, data T, condition string, pctx *Context) (*Response[T], error)
}

// Hook is the work a processor performs once its condition admitted the data.
// resp is pre-populated with data in state Unknown. Returning an error marks
// the response UnhandledError; returning a nil response marks it FatalError.
type Hook[T any] func(ctx context.Context, data T, pctx *Context, resp *Response[T]) (*Response[T], error)

// Option configures a processor or pipeline.
type Option func(*options)

type options struct {
	gates           *condition.Registry
	log             *logger.Logger
	includeFiltered bool
	init            func() error
	dispose         func()
}

func newOptions(opts []Option) options {
	o := options{includeFiltered: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.WithComponent("pipeline")
	}
	return o
}

// WithGates sets the registry used to evaluate condition strings.
func WithGates(r *condition.Registry) Option {
	return func(o *options) { o.gates = r }
}

// WithLogger sets the processor logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithIncludeFiltered controls whether collection members rejected by the
// condition are appended to the output. Defaults to true.
func WithIncludeFiltered(include bool) Option {
	return func(o *options) { o.includeFiltered = include }
}

// WithInit runs fn during Init. A failure moves the processor to StateError.
func WithInit(fn func() error) Option {
	return func(o *options) { o.init = fn }
}

// WithDispose runs fn the first time the processor is disposed.
func WithDispose(fn func()) Option {
	return func(o *options) { o.dispose = fn }
}

// admission is the outcome of evaluating a condition before the body runs.
// A non-nil skip short-circuits the call; otherwise the body sees matched
// and merge is applied to its response.
type admission[T any] struct {
	skip    *Response[T]
	matched T
	merge   func(*Response[T])
}

type admitFunc[T any] func(data T, condition string) (admission[T], error)

type bodyFunc[T any] func(ctx context.Context, data, matched T, pctx *Context, resp *Response[T]) (*Response[T], error)

// core carries what every processor shares: identity, lifecycle, condition
// admission and the fault-isolating execution wrapper.
type core[T any] struct {
	name       string
	entityType reflect.Type
	opts       options
	log        *logger.Logger
	life       lifecycle
	admit      admitFunc[T]
}

func (c *core[T]) setup(name string, entityType reflect.Type, opts []Option) {
	c.name = name
	c.entityType = entityType
	c.opts = newOptions(opts)
	c.log = c.opts.log.WithFields(logger.Fields(logger.FieldProcessor, name))
}

func (c *core[T]) Name() string             { return c.name }
func (c *core[T]) EntityType() reflect.Type { return c.entityType }
func (c *core[T]) State() ProcessState      { return c.life.State() }

// Err returns the initialization fault of a processor in StateError.
func (c *core[T]) Err() error { return c.life.Err() }

func (c *core[T]) Init() error {
	return c.life.initialize(c.name, c.opts.init)
}

func (c *core[T]) Dispose() {
	if c.life.dispose() && c.opts.dispose != nil {
		c.opts.dispose()
	}
}

func (c *core[T]) gate() (condition.Gate, error) {
	if c.opts.gates == nil {
		return nil, fmt.Errorf("no condition gates configured for processor %q", c.name)
	}
	return c.opts.gates.Gate(c.entityType)
}

// matchAdmit admits data when the condition is empty or matches it.
func (c *core[T]) matchAdmit(data T, cond string) (admission[T], error) {
	if cond == "" {
		return admission[T]{matched: data}, nil
	}
	g, err := c.gate()
	if err != nil {
		return admission[T]{}, err
	}
	ok, err := g.Matches(data, cond)
	if err != nil {
		return admission[T]{}, err
	}
	if !ok {
		return admission[T]{skip: NewResponse(data).SetState(Skipped)}, nil
	}
	return admission[T]{matched: data}, nil
}

// execute runs body under the shared processor contract.
func (c *core[T]) execute(ctx context.Context, data T, cond string, pctx *Context, body bodyFunc[T]) (*Response[T], error) {
	if st := c.life.State(); st != StateAvailable {
		return nil, errors.Unavailable(c.name, st.String())
	}
	ctx = pctx.Bind(ctx)

	adm, err := c.safeAdmit(data, cond)
	if err != nil {
		r := NewResponse(data).SetError(UnhandledError, errors.Unhandled(c.name, err))
		c.logOutcome(ctx, r)
		return r, nil
	}
	if adm.skip != nil {
		return adm.skip, nil
	}

	resp, escape := c.invoke(ctx, data, adm.matched, pctx, body)
	if escape != nil {
		return resp, escape
	}
	if adm.merge != nil {
		adm.merge(resp)
	}
	c.logOutcome(ctx, resp)
	return resp, nil
}

func (c *core[T]) safeAdmit(data T, cond string) (adm admission[T], err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic evaluating condition %q: %v", cond, rec)
		}
	}()
	if c.admit == nil {
		return c.matchAdmit(data, cond)
	}
	return c.admit(data, cond)
}

// invoke calls body, converting panics to UnhandledError and a nil
// response to FatalError. A returned error is passed through untouched.
func (c *core[T]) invoke(ctx context.Context, data, matched T, pctx *Context, body bodyFunc[T]) (resp *Response[T], escape error) {
	defer func() {
		if rec := recover(); rec != nil {
			resp = NewResponse(data).SetError(UnhandledError,
				errors.Unhandled(c.name, fmt.Errorf("panic: %v", rec)))
			escape = nil
		}
	}()
	resp, escape = body(ctx, data, matched, pctx, NewResponse(data))
	if escape != nil {
		return resp, escape
	}
	if resp == nil {
		resp = NewResponse(data).SetError(FatalError, errors.NullResponse(c.name))
	}
	return resp, nil
}

func (c *core[T]) logOutcome(ctx context.Context, r *Response[T]) {
	switch {
	case r.State.IsFatal():
		c.log.WithContext(ctx).Error("processor failed", outcomeFields(r))
	case r.State == ContinueWithError:
		c.log.WithContext(ctx).Warn("processor continued with error", outcomeFields(r))
	}
}

func outcomeFields[T any](r *Response[T]) map[string]interface{} {
	return logger.MergeWithError(logger.Fields(logger.FieldState, r.State.String()), r.Err)
}

// hookBody adapts a Hook into a body, turning a hook error into UnhandledError.
func hookBody[T any](name string, hook Hook[T]) bodyFunc[T] {
	return func(ctx context.Context, data, _ T, pctx *Context, resp *Response[T]) (*Response[T], error) {
		r, err := hook(ctx, data, pctx, resp)
		if err != nil {
			return resp.SetError(UnhandledError, errors.Unhandled(name, err)), nil
		}
		return r, nil
	}
}

// BasicProcessor runs a Hook against a single entity.
type BasicProcessor[T any] struct {
	core[T]
	hook Hook[T]
}

// NewProcessor creates a single-entity processor. It must be initialized
// before use.
func NewProcessor[T any](name string, hook Hook[T], opts ...Option) *BasicProcessor[T] {
	p := &BasicProcessor[T]{hook: hook}
	p.setup(name, reflect.TypeOf((*T)(nil)).Elem(), opts)
	return p
}

func (p *BasicProcessor[T]) Execute(ctx context.Context, data T, cond string, pctx *Context) (*Response[T], error) {
	return p.execute(ctx, data, cond, pctx, hookBody(p.name, p.hook))
}

var _ Processor[int] = (*BasicProcessor[int])(nil)
