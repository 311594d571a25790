package demo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/entitypipe/logger"
	"github.com/kbukum/entitypipe/pipeline"
)

// entityFunc updates one entity. A nil result drops it.
type entityFunc func(e *Entity) *Entity

func single(name string, fn entityFunc, opts []pipeline.Option) *pipeline.BasicProcessor[*Entity] {
	return pipeline.NewProcessor(name, func(_ context.Context, e *Entity, _ *pipeline.Context, r *pipeline.Response[*Entity]) (*pipeline.Response[*Entity], error) {
		if e != nil {
			e = fn(e)
		}
		if e == nil {
			r.Data = nil
			return r.SetState(pipeline.NullData), nil
		}
		return r.OK(e), nil
	}, opts...)
}

func each(name string, fn entityFunc, opts []pipeline.Option) *pipeline.CollectionProcessor[*Entity] {
	return pipeline.NewCollectionProcessor(name, func(_ context.Context, _, matched []*Entity, _ *pipeline.Context, r *pipeline.Response[[]*Entity]) (*pipeline.Response[[]*Entity], error) {
		kept := make([]*Entity, 0, len(matched))
		for _, e := range matched {
			if e == nil {
				continue
			}
			if out := fn(e); out != nil {
				kept = append(kept, out)
			}
		}
		return r.OK(kept), nil
	}, opts...)
}

func dropRemoved(e *Entity) *Entity {
	if e.Removed() {
		return nil
	}
	return e
}

// NewStateFilter returns NullData for deleted and unknown entities.
func NewStateFilter(name string, opts ...pipeline.Option) *pipeline.BasicProcessor[*Entity] {
	return single(name, dropRemoved, opts)
}

// NewCollectionStateFilter drops deleted and unknown entities.
func NewCollectionStateFilter(name string, opts ...pipeline.Option) *pipeline.CollectionProcessor[*Entity] {
	return each(name, dropRemoved, opts)
}

func namer(prefix string, log *logger.Logger) (entityFunc, error) {
	if prefix == "" {
		return nil, fmt.Errorf("name prefix is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	return func(e *Entity) *Entity {
		if e.Name != "" {
			return e
		}
		e.Name = prefix + " " + randomSuffix()
		log.Debug("entity name set", logger.Fields("entity_id", e.ID, "name", e.Name))
		return e
	}, nil
}

func randomSuffix() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:20]
}

// NewNameProcessor names unnamed entities "<prefix> <random suffix>".
func NewNameProcessor(name, prefix string, log *logger.Logger, opts ...pipeline.Option) (*pipeline.BasicProcessor[*Entity], error) {
	fn, err := namer(prefix, log)
	if err != nil {
		return nil, err
	}
	return single(name, fn, opts), nil
}

// NewCollectionNameProcessor is NewNameProcessor over a collection.
func NewCollectionNameProcessor(name, prefix string, log *logger.Logger, opts ...pipeline.Option) (*pipeline.CollectionProcessor[*Entity], error) {
	fn, err := namer(prefix, log)
	if err != nil {
		return nil, err
	}
	return each(name, fn, opts), nil
}

func dateChecker(cutOff time.Time) entityFunc {
	return func(e *Entity) *Entity {
		if e.DateTime.Before(cutOff) {
			e.Active = Inactive
		}
		return e
	}
}

// NewDateChecker marks entities dated before cutOff INACTIVE.
func NewDateChecker(name string, cutOff time.Time, opts ...pipeline.Option) *pipeline.BasicProcessor[*Entity] {
	return single(name, dateChecker(cutOff), opts)
}

// NewCollectionDateChecker is NewDateChecker over a collection.
func NewCollectionDateChecker(name string, cutOff time.Time, opts ...pipeline.Option) *pipeline.CollectionProcessor[*Entity] {
	return each(name, dateChecker(cutOff), opts)
}

// NewExceptionLogger logs every error it sees and rewrites the response
// to state.
func NewExceptionLogger[T any](name, cond string, state pipeline.ResponseState, log *logger.Logger) *pipeline.ExceptionHandler[T] {
	if log == nil {
		log = logger.Nop()
	}
	downgrade := pipeline.Downgrade[T](name, cond, state)
	return pipeline.NewExceptionHandler(name, cond, func(ctx context.Context, resp *pipeline.Response[T], pctx *pipeline.Context) *pipeline.Response[T] {
		log.WithContext(pctx.Bind(ctx)).Error("pipeline error handled", logger.MergeWithError(logger.Fields(
			logger.FieldState, resp.State.String(),
		), resp.Err))
		return downgrade.Handle(ctx, resp, pctx)
	})
}
