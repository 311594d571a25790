package kafka

import (
	"context"
	"fmt"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/entitypipe/component"
	"github.com/kbukum/entitypipe/logger"
)

// Component owns the writer, and with a GroupID the reader, of the
// configured topic.
type Component struct {
	cfg Config
	log *logger.Logger

	mu     sync.RWMutex
	writer *kafkago.Writer
	reader *kafkago.Reader
}

var _ component.Component = (*Component)(nil)

// NewComponent creates a Kafka component; connections are set up on Start.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Component{cfg: cfg, log: log.WithComponent("kafka")}
}

// Writer returns the writer, or nil before Start.
func (c *Component) Writer() *kafkago.Writer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.writer
}

// Reader returns the reader, or nil before Start or without a GroupID.
func (c *Component) Reader() *kafkago.Reader {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reader
}

func (c *Component) Name() string { return "kafka" }

// Start builds the writer and reader. kafka-go connects lazily, so broker
// failures surface on the first write or fetch.
func (c *Component) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writer != nil {
		return fmt.Errorf("kafka: already started")
	}
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("kafka config: %w", err)
	}

	w, err := NewWriter(c.cfg)
	if err != nil {
		return err
	}
	w.ErrorLogger = kafkago.LoggerFunc(func(msg string, args ...interface{}) {
		c.log.Error("writer: "+fmt.Sprintf(msg, args...), logger.Fields("topic", c.cfg.Topic))
	})
	if c.cfg.GroupID != "" {
		r, err := NewReader(c.cfg)
		if err != nil {
			_ = w.Close()
			return err
		}
		c.reader = r
	}
	c.writer = w
	c.log.Info("Kafka component started", logger.Fields(
		"brokers", c.cfg.Brokers,
		"topic", c.cfg.Topic,
		"group_id", c.cfg.GroupID,
	))
	return nil
}

// Stop flushes the writer and closes both ends.
func (c *Component) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.writer != nil {
		err = c.writer.Close()
		c.writer = nil
	}
	if c.reader != nil {
		if rerr := c.reader.Close(); err == nil {
			err = rerr
		}
		c.reader = nil
	}
	return err
}

func (c *Component) Health(_ context.Context) component.Health {
	w := c.Writer()
	if w == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	stats := w.Stats()
	h := component.Health{
		Name:   c.Name(),
		Status: component.StatusHealthy,
		Details: map[string]any{
			"topic":    c.cfg.Topic,
			"messages": stats.Messages,
			"errors":   stats.Errors,
		},
	}
	if stats.Errors > 0 {
		h.Status = component.StatusDegraded
		h.Message = fmt.Sprintf("%d write errors since last check", stats.Errors)
	}
	return h
}
