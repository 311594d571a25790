package config

import (
	"fmt"
	"time"

	"github.com/kbukum/entitypipe/logger"
)

// ServiceConfig contains the fields every entitypipe process needs.
type ServiceConfig struct {
	Name        string        `yaml:"name" mapstructure:"name"`
	Environment string        `yaml:"environment" mapstructure:"environment"`
	Version     string        `yaml:"version" mapstructure:"version"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`
}

// ApplyDefaults applies default values to the service fields.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "entitypipe"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	c.Logging.ApplyDefaults()
}

// Validate validates the service fields.
func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config.name is required")
	}
	switch c.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("config.environment must be one of [development, staging, production] (got: %s)", c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	return nil
}

// PipelinesConfig tells the engine where pipeline definitions live.
type PipelinesConfig struct {
	Files []string `yaml:"files" mapstructure:"files"`
	Dirs  []string `yaml:"dirs" mapstructure:"dirs"`
	// Strict rejects unknown fields in definition files.
	Strict bool `yaml:"strict" mapstructure:"strict"`
	// Instrument wraps every built processor with tracing, metrics and
	// logging decorators.
	Instrument bool `yaml:"instrument" mapstructure:"instrument"`
}

func (c *PipelinesConfig) Validate() error {
	if len(c.Files) == 0 && len(c.Dirs) == 0 {
		return fmt.Errorf("pipelines: at least one of files or dirs is required")
	}
	return nil
}

// ConditionConfig configures the condition gates.
type ConditionConfig struct {
	// CacheSize bounds the compiled conditions kept per entity type.
	CacheSize int `yaml:"cache_size" mapstructure:"cache_size"`
}

func (c *ConditionConfig) ApplyDefaults() {
	if c.CacheSize <= 0 {
		c.CacheSize = 256
	}
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
	Insecure   bool    `yaml:"insecure" mapstructure:"insecure"`
}

// MetricsConfig configures the OTLP metric exporter.
type MetricsConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
	Insecure bool          `yaml:"insecure" mapstructure:"insecure"`
}

type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

func (c *ObservabilityConfig) ApplyDefaults() {
	if c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = "localhost:4318"
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 1.0
	}
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = "localhost:4318"
	}
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = 15 * time.Second
	}
}

func (c *ObservabilityConfig) Validate() error {
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("observability.tracing.sample_rate must be between 0 and 1 (got: %v)", c.Tracing.SampleRate)
	}
	if c.Metrics.Interval < 0 {
		return fmt.Errorf("observability.metrics.interval must be non-negative (got: %v)", c.Metrics.Interval)
	}
	return nil
}

// HTTPConfig configures the HTTP API server.
type HTTPConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

func (c *HTTPConfig) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 10 << 20
	}
}

func (c *HTTPConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("http.port must be between 0 and 65535 (got: %d)", c.Port)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 {
		return fmt.Errorf("http timeouts must be non-negative")
	}
	return nil
}

// Config is the full configuration of an entitypipe process.
//
//	name: orders
//	pipelines:
//	  dirs: [./pipelines]
//	http:
//	  enabled: true
//	  port: 8080
type Config struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Pipelines     PipelinesConfig     `yaml:"pipelines" mapstructure:"pipelines"`
	Condition     ConditionConfig     `yaml:"condition" mapstructure:"condition"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	HTTP          HTTPConfig          `yaml:"http" mapstructure:"http"`
}

// ApplyDefaults applies defaults to every section.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Condition.ApplyDefaults()
	c.Observability.ApplyDefaults()
	c.HTTP.ApplyDefaults()
}

// Validate validates every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Pipelines.Validate(); err != nil {
		return err
	}
	if err := c.Observability.Validate(); err != nil {
		return err
	}
	if c.HTTP.Enabled {
		if err := c.HTTP.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// EnvRoots lists the top-level keys environment variables may override.
func (c *Config) EnvRoots() []string {
	return []string{"name", "environment", "version", "debug", "logging", "pipelines", "condition", "observability", "http"}
}
