package source

import (
	"context"

	"github.com/kbukum/entitypipe/pipeline"
)

// DataSource fetches the input of a producer. The query is interpreted by
// the source; in-memory sources treat it as a condition.
type DataSource[E any] interface {
	Fetch(ctx context.Context, query string, pctx *pipeline.Context) ([]E, error)
}

// KeyedSource is a DataSource that can also look entities up by key.
// Find reports found=false, not an error, for a missing key.
type KeyedSource[K comparable, E any] interface {
	DataSource[E]
	Find(ctx context.Context, key K, pctx *pipeline.Context) (E, bool, error)
}

// DataSink applies an operation to a batch of entities and returns the
// entities as stored. Single-entity consumers pass a batch of one.
type DataSink[E, O any] interface {
	Process(ctx context.Context, items []E, op O, pctx *pipeline.Context) ([]E, error)
}

// SourceFunc adapts a function to DataSource.
type SourceFunc[E any] func(ctx context.Context, query string, pctx *pipeline.Context) ([]E, error)

func (f SourceFunc[E]) Fetch(ctx context.Context, query string, pctx *pipeline.Context) ([]E, error) {
	return f(ctx, query, pctx)
}

// SinkFunc adapts a function to DataSink.
type SinkFunc[E, O any] func(ctx context.Context, items []E, op O, pctx *pipeline.Context) ([]E, error)

func (f SinkFunc[E, O]) Process(ctx context.Context, items []E, op O, pctx *pipeline.Context) ([]E, error) {
	return f(ctx, items, op, pctx)
}
