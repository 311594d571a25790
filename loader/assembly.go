package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/kbukum/entitypipe/errors"
	"github.com/kbukum/entitypipe/logger"
	"github.com/kbukum/entitypipe/observability"
	"github.com/kbukum/entitypipe/pipeline"
)

// Instrumentation selects the decorators wrapped around every child a
// loader adds to a pipeline.
type Instrumentation struct {
	Tracing bool
	Metrics *observability.Metrics
	Logger  *logger.Logger
}

func instrument[T any](p pipeline.Processor[T], inst Instrumentation) pipeline.Processor[T] {
	if inst.Logger != nil {
		p = pipeline.WithLogging(p, inst.Logger)
	}
	if inst.Metrics != nil {
		p = pipeline.WithMetrics(p, inst.Metrics)
	}
	if inst.Tracing {
		p = pipeline.WithTracing(p)
	}
	return p
}

// assembly is a pipeline under construction with its value type erased.
type assembly interface {
	processor() any
	instance() any
	valueType() reflect.Type
	add(child any, cond string, inst Instrumentation) error
	addHandler(h any) error
	run(ctx context.Context, input []byte, pctx *pipeline.Context) (*Result, error)
	init() error
	dispose()
	state() pipeline.ProcessState
	children() []string
}

type typed[T any] struct {
	p *pipeline.Pipeline[T]
}

func (a *typed[T]) processor() any               { return pipeline.Processor[T](a.p) }
func (a *typed[T]) instance() any                { return a.p }
func (a *typed[T]) valueType() reflect.Type      { return reflect.TypeOf((*T)(nil)).Elem() }
func (a *typed[T]) init() error                  { return a.p.Init() }
func (a *typed[T]) dispose()                     { a.p.Dispose() }
func (a *typed[T]) state() pipeline.ProcessState { return a.p.State() }
func (a *typed[T]) children() []string           { return a.p.Processors() }

func (a *typed[T]) add(child any, cond string, inst Instrumentation) error {
	proc, ok := child.(pipeline.Processor[T])
	if !ok {
		return fmt.Errorf("type mismatch: %s does not process %s", describe(child), reflect.TypeOf((*T)(nil)).Elem())
	}
	return a.p.AddProcessor(instrument(proc, inst), cond)
}

func (a *typed[T]) addHandler(h any) error {
	handler, ok := h.(pipeline.ExceptionProcessor[T])
	if !ok {
		return fmt.Errorf("type mismatch: %s does not handle %s", describe(h), reflect.TypeOf((*T)(nil)).Elem())
	}
	return a.p.AddExceptionProcessor(handler)
}

func (a *typed[T]) run(ctx context.Context, input []byte, pctx *pipeline.Context) (*Result, error) {
	var data T
	if len(input) > 0 && string(input) != "null" {
		if err := json.Unmarshal(input, &data); err != nil {
			return nil, errors.InvalidInput("data", fmt.Sprintf("cannot decode %s: %v", reflect.TypeOf((*T)(nil)).Elem(), err))
		}
	}
	if pctx == nil {
		pctx = pipeline.NewContext()
	}

	resp, err := a.p.Execute(ctx, data, "", pctx)
	if err != nil {
		return nil, err
	}
	return newResult(resp, pctx)
}

func describe(v any) string {
	if n, ok := v.(interface{ Name() string }); ok {
		return fmt.Sprintf("%q (%T)", n.Name(), v)
	}
	return fmt.Sprintf("%T", v)
}

// Result is the JSON-friendly outcome of a Runner call.
type Result struct {
	State         pipeline.ResponseState `json:"state"`
	Data          json.RawMessage        `json:"data,omitempty"`
	Error         string                 `json:"error,omitempty"`
	ErrorCode     errors.ErrorCode       `json:"error_code,omitempty"`
	ElementErrors map[string]string      `json:"element_errors,omitempty"`
	ExecutionID   string                 `json:"execution_id"`

	// Err is the response error itself.
	Err error `json:"-"`
}

func newResult[T any](resp *pipeline.Response[T], pctx *pipeline.Context) (*Result, error) {
	data, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("encoding %T: %w", resp.Data, err))
	}
	res := &Result{
		State:       resp.State,
		Data:        data,
		ExecutionID: pctx.ID(),
		Err:         resp.Err,
	}
	if resp.Err != nil {
		res.Error = resp.Err.Error()
		if appErr, ok := errors.AsAppError(resp.Err); ok {
			res.ErrorCode = appErr.Code
		}
	}
	if resp.HasErrors() {
		res.ElementErrors = make(map[string]string)
		for elem, e := range resp.ElementErrors() {
			res.ElementErrors[elementKey(elem)] = e.Error()
		}
	}
	return res, nil
}

// elementKey names a collection member in ElementErrors.
func elementKey(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v)
}
