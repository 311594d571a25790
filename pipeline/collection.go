package pipeline

import (
	"context"
	"reflect"

	"github.com/kbukum/entitypipe/errors"
)

// CollectionHook is the work of a collection processor. data is the full
// input; matched is the subset admitted by the condition, in input order.
// The hook returns the members it produced; when filtered members are
// included they are appended after the hook output.
type CollectionHook[E comparable] func(ctx context.Context, data, matched []E, pctx *Context, resp *Response[[]E]) (*Response[[]E], error)

// CollectionProcessor runs a CollectionHook over a slice of entities, using
// its condition as a filter rather than a yes/no gate.
type CollectionProcessor[E comparable] struct {
	core[[]E]
	hook CollectionHook[E]
}

// NewCollectionProcessor creates a collection processor. Members are
// compared with ==, so pointer entities are matched by identity.
func NewCollectionProcessor[E comparable](name string, hook CollectionHook[E], opts ...Option) *CollectionProcessor[E] {
	p := &CollectionProcessor[E]{hook: hook}
	p.setup(name, reflect.TypeOf((*E)(nil)).Elem(), opts)
	p.admit = filterAdmit(&p.core)
	return p
}

// IncludeFiltered reports whether filtered members are merged back.
func (p *CollectionProcessor[E]) IncludeFiltered() bool { return p.opts.includeFiltered }

func (p *CollectionProcessor[E]) Execute(ctx context.Context, data []E, cond string, pctx *Context) (*Response[[]E], error) {
	return p.execute(ctx, data, cond, pctx, p.run)
}

func (p *CollectionProcessor[E]) run(ctx context.Context, data, matched []E, pctx *Context, resp *Response[[]E]) (*Response[[]E], error) {
	r, err := p.hook(ctx, data, matched, pctx, resp)
	if err != nil {
		return resp.SetError(UnhandledError, errors.Unhandled(p.name, err)), nil
	}
	return r, nil
}

// filterAdmit partitions the input with the gate's Filter. When nothing
// matches the call is Skipped with the original input, or NullData with a
// nil output if filtered members are not included. Otherwise the filtered
// members are appended to the body output.
func filterAdmit[E comparable](c *core[[]E]) admitFunc[[]E] {
	return func(data []E, cond string) (admission[[]E], error) {
		if cond == "" {
			return admission[[]E]{matched: data}, nil
		}
		g, err := c.gate()
		if err != nil {
			return admission[[]E]{}, err
		}

		in := make([]any, len(data))
		for i, e := range data {
			in[i] = e
		}
		out, err := g.Filter(in, cond)
		if err != nil {
			return admission[[]E]{}, err
		}

		keep := make(map[E]struct{}, len(out))
		for _, m := range out {
			if e, ok := m.(E); ok {
				keep[e] = struct{}{}
			}
		}
		var matched, rest []E
		for _, e := range data {
			if _, ok := keep[e]; ok {
				matched = append(matched, e)
			} else {
				rest = append(rest, e)
			}
		}

		if len(matched) == 0 {
			r := NewResponse(data).SetState(Skipped)
			if !c.opts.includeFiltered {
				r.Data = nil
				r.SetState(NullData)
			}
			return admission[[]E]{skip: r}, nil
		}

		adm := admission[[]E]{matched: matched}
		if c.opts.includeFiltered && len(rest) > 0 {
			adm.merge = func(r *Response[[]E]) {
				merged := make([]E, 0, len(r.Data)+len(rest))
				merged = append(merged, r.Data...)
				r.Data = append(merged, rest...)
			}
		}
		return adm, nil
	}
}

var _ Processor[[]int] = (*CollectionProcessor[int])(nil)
