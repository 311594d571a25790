package condition

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/kbukum/entitypipe/errors"
)

// DefaultMaxPrograms bounds the compiled program cache of an expr gate.
const DefaultMaxPrograms = 256

// ExprOption configures gates created by NewExprFactory.
type ExprOption func(*exprConfig)

type exprConfig struct {
	maxPrograms int
	options     []expr.Option
}

// WithMaxPrograms sets how many compiled conditions a gate keeps.
// The cache is dropped and rebuilt once the limit is reached.
func WithMaxPrograms(n int) ExprOption {
	return func(c *exprConfig) {
		if n > 0 {
			c.maxPrograms = n
		}
	}
}

// WithExprOptions appends expr compile options, for example custom functions.
func WithExprOptions(opts ...expr.Option) ExprOption {
	return func(c *exprConfig) { c.options = append(c.options, opts...) }
}

// NewExprFactory returns a Factory whose gates compile conditions as expr
// boolean expressions. Struct fields are addressed by name or by their
// `expr` tag; map entities expose their keys.
func NewExprFactory(opts ...ExprOption) Factory {
	cfg := exprConfig{maxPrograms: DefaultMaxPrograms}
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(t reflect.Type) (Gate, error) {
		return newExprGate(t, cfg), nil
	}
}

type exprGate struct {
	entityType reflect.Type
	options    []expr.Option
	max        int

	mu       sync.RWMutex
	programs map[string]*vm.Program
}

func newExprGate(t reflect.Type, cfg exprConfig) *exprGate {
	opts := []expr.Option{expr.AsBool()}
	if env, ok := envFor(t); ok {
		opts = append(opts, expr.Env(env))
	}
	if t.Kind() == reflect.Map {
		opts = append(opts, expr.AllowUndefinedVariables())
	}
	opts = append(opts, cfg.options...)
	return &exprGate{
		entityType: t,
		options:    opts,
		max:        cfg.maxPrograms,
		programs:   make(map[string]*vm.Program),
	}
}

// envFor returns a zero value usable as an expr environment for t.
func envFor(t reflect.Type) (any, bool) {
	switch {
	case t.Kind() == reflect.Struct:
		return reflect.New(t).Elem().Interface(), true
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct:
		return reflect.New(t.Elem()).Interface(), true
	case t.Kind() == reflect.Map && t.Key().Kind() == reflect.String:
		return reflect.MakeMap(t).Interface(), true
	default:
		return nil, false
	}
}

func (g *exprGate) program(condition string) (*vm.Program, error) {
	g.mu.RLock()
	p, ok := g.programs[condition]
	g.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := expr.Compile(condition, g.options...)
	if err != nil {
		return nil, errors.InvalidCondition(condition, err).WithDetail("entity_type", g.entityType.String())
	}

	g.mu.Lock()
	if len(g.programs) >= g.max {
		g.programs = make(map[string]*vm.Program)
	}
	g.programs[condition] = p
	g.mu.Unlock()
	return p, nil
}

func (g *exprGate) Matches(entity any, condition string) (bool, error) {
	if entity == nil {
		return false, nil
	}
	if v := reflect.ValueOf(entity); v.Kind() == reflect.Pointer && v.IsNil() {
		return false, nil
	}
	p, err := g.program(condition)
	if err != nil {
		return false, err
	}
	out, err := expr.Run(p, entity)
	if err != nil {
		return false, errors.InvalidCondition(condition, err).WithDetail("entity_type", g.entityType.String())
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, errors.InvalidCondition(condition, fmt.Errorf("result is %T, not bool", out))
	}
	return ok, nil
}

func (g *exprGate) Filter(entities []any, condition string) ([]any, error) {
	if _, err := g.program(condition); err != nil {
		return nil, err
	}
	return filterWith(entities, condition, g.Matches)
}
