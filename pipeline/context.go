package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/entitypipe/logger"
)

// Context is the key/value bag passed unchanged through every processor in
// a chain. It is safe for concurrent use. A nil *Context reads as empty
// and ignores writes.
type Context struct {
	id     string
	mu     sync.RWMutex
	values map[string]any
}

// NewContext returns an empty Context with a fresh execution ID.
func NewContext() *Context {
	return &Context{id: uuid.NewString(), values: make(map[string]any)}
}

// NewContextWith returns a Context seeded with values.
func NewContextWith(values map[string]any) *Context {
	c := NewContext()
	for k, v := range values {
		c.values[k] = v
	}
	return c
}

// ID returns the execution ID, used to correlate log lines of one call.
func (c *Context) ID() string {
	if c == nil {
		return ""
	}
	return c.id
}

// Bind returns ctx carrying the execution ID, so loggers derived with
// logger.WithContext tag their lines with it.
func (c *Context) Bind(ctx context.Context) context.Context {
	id := c.ID()
	if id == "" {
		return ctx
	}
	if cur, ok := logger.ExecutionIDFromContext(ctx); ok && cur == id {
		return ctx
	}
	return logger.ContextWithExecutionID(ctx, id)
}

// Get returns the value stored under key.
func (c *Context) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Value returns the value stored under key, or nil.
func (c *Context) Value(key string) any {
	v, _ := c.Get(key)
	return v
}

// Set stores value under key.
func (c *Context) Set(key string, value any) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = make(map[string]any)
	}
	c.values[key] = value
}

// Keys returns the stored keys in sorted order.
func (c *Context) Keys() []string {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Read returns the value under key asserted to V.
func Read[V any](c *Context, key string) (V, bool) {
	var zero V
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(V)
	if !ok {
		return zero, false
	}
	return typed, true
}
