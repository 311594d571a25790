package pipeline

import (
	"context"
	"time"

	"github.com/kbukum/entitypipe/logger"
	"github.com/kbukum/entitypipe/observability"
)

// WithTracing wraps a Processor with OpenTelemetry span creation.
// Each execution creates a span named "processor.{name}".
func WithTracing[T any](p Processor[T]) Processor[T] {
	return &tracingProcessor[T]{Processor: p}
}

type tracingProcessor[T any] struct {
	Processor[T]
}

func (p *tracingProcessor[T]) Execute(ctx context.Context, data T, cond string, pctx *Context) (*Response[T], error) {
	var entityType string
	if p.EntityType() != nil {
		entityType = p.EntityType().String()
	}
	ctx, span := observability.StartProcessorSpan(ctx, p.Name(), entityType, cond, pctx.ID())

	resp, err := p.Processor.Execute(ctx, data, cond, pctx)
	var state string
	spanErr := err
	if resp != nil {
		state = resp.State.String()
		if spanErr == nil && resp.HasError() {
			spanErr = resp.Err
		}
	}
	observability.EndSpan(span, state, spanErr)
	return resp, err
}

// WithMetrics wraps a Processor with metric recording.
// Records execution count by state, duration, and errors.
func WithMetrics[T any](p Processor[T], metrics *observability.Metrics) Processor[T] {
	return &metricsProcessor[T]{Processor: p, metrics: metrics}
}

type metricsProcessor[T any] struct {
	Processor[T]
	metrics *observability.Metrics
}

func (p *metricsProcessor[T]) Execute(ctx context.Context, data T, cond string, pctx *Context) (*Response[T], error) {
	start := time.Now()
	resp, err := p.Processor.Execute(ctx, data, cond, pctx)
	duration := time.Since(start)

	state := "failed"
	if resp != nil {
		state = resp.State.String()
	}
	switch {
	case err != nil:
		p.metrics.RecordError(ctx, "execute", p.Name())
	case resp != nil && resp.HasError():
		p.metrics.RecordError(ctx, state, p.Name())
	}
	p.metrics.RecordExecution(ctx, p.Name(), state, duration)
	return resp, err
}

// WithLogging wraps a Processor with execution logging.
// Logs: processor name, state, duration, and error.
func WithLogging[T any](p Processor[T], log *logger.Logger) Processor[T] {
	return &loggingProcessor[T]{Processor: p, log: log}
}

type loggingProcessor[T any] struct {
	Processor[T]
	log *logger.Logger
}

func (p *loggingProcessor[T]) Execute(ctx context.Context, data T, cond string, pctx *Context) (*Response[T], error) {
	ctx = pctx.Bind(ctx)
	start := time.Now()
	resp, err := p.Processor.Execute(ctx, data, cond, pctx)

	fields := logger.Fields(
		logger.FieldProcessor, p.Name(),
		logger.FieldDuration, time.Since(start).Milliseconds(),
	)
	if resp != nil {
		fields[logger.FieldState] = resp.State.String()
	}

	log := p.log.WithContext(ctx)
	switch {
	case err != nil:
		log.Error("processor execution failed", logger.MergeWithError(fields, err))
	case resp != nil && resp.HasError():
		log.Warn("processor completed with error", logger.MergeWithError(fields, resp.Err))
	default:
		log.Debug("processor completed", fields)
	}
	return resp, err
}
