package redis

import (
	"fmt"
	"time"
)

// Config holds the connection and key layout of a Redis-backed store.
type Config struct {
	// Enabled controls whether the Redis component is registered.
	Enabled bool `mapstructure:"enabled"`

	// Addr is the server address (host:port).
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
	MaxRetries   int `mapstructure:"max_retries"`

	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// KeyPrefix namespaces every entity key as "<prefix>:<key>".
	KeyPrefix string `mapstructure:"key_prefix"`

	// TTL expires written entities. Zero keeps them forever.
	TTL time.Duration `mapstructure:"ttl"`

	// ScanCount is the COUNT hint passed to SCAN when fetching.
	ScanCount int64 `mapstructure:"scan_count"`
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.MinIdleConns <= 0 {
		c.MinIdleConns = 2
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 3 * time.Second
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "entity"
	}
	if c.ScanCount <= 0 {
		c.ScanCount = 100
	}
}

// Validate checks the fields a connection needs.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("redis pool_size must be > 0")
	}
	if c.TTL < 0 {
		return fmt.Errorf("redis ttl must not be negative")
	}
	return nil
}
