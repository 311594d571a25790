package database

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/kbukum/entitypipe/component"
	"github.com/kbukum/entitypipe/logger"
)

// Component owns a DB for the component registry.
type Component struct {
	cfg       Config
	log       *logger.Logger
	dialector gorm.Dialector
	models    []any

	mu sync.RWMutex
	db *DB
}

var _ component.Component = (*Component)(nil)

// Option configures a Component.
type Option func(*Component)

// WithDialector replaces the dialector chosen from Config.Driver.
func WithDialector(d gorm.Dialector) Option {
	return func(c *Component) { c.dialector = d }
}

// WithModels registers the models migrated on Start when
// Config.AutoMigrate is set.
func WithModels(models ...any) Option {
	return func(c *Component) { c.models = append(c.models, models...) }
}

// NewComponent creates a database component; the connection is opened on
// Start.
func NewComponent(cfg Config, log *logger.Logger, opts ...Option) *Component {
	if log == nil {
		log = logger.Nop()
	}
	c := &Component{cfg: cfg, log: log.WithComponent("database")}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DB returns the connection, or nil before Start.
func (c *Component) DB() *DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

func (c *Component) Name() string { return "database" }

// Start opens the connection and runs auto-migration.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		return fmt.Errorf("database: already started")
	}

	cfg := c.cfg
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}
	dialector := c.dialector
	if dialector == nil {
		d, err := Dialector(cfg)
		if err != nil {
			return err
		}
		dialector = d
	}

	db, err := Open(ctx, cfg, dialector, c.log)
	if err != nil {
		return fmt.Errorf("database start: %w", err)
	}
	if cfg.AutoMigrate && len(c.models) > 0 {
		if err := db.AutoMigrate(c.models...); err != nil {
			_ = db.Close()
			return fmt.Errorf("database auto-migrate: %w", err)
		}
	}
	c.db = db
	return nil
}

// Stop closes the connection.
func (c *Component) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func (c *Component) Health(ctx context.Context) component.Health {
	db := c.DB()
	if db == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	if err := db.PingContext(ctx); err != nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: err.Error()}
	}
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Details: map[string]any{"driver": c.cfg.Driver},
	}
}
