package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/entitypipe/logger"
)

// tracerName is the instrumentation scope of every engine span.
const tracerName = "github.com/kbukum/entitypipe"

// Span names. Processor spans carry the processor name as a suffix.
const (
	SpanProcessor  = "processor"
	SpanDataSource = "source.fetch"
	SpanDataSink   = "sink.process"
)

// Attribute keys set on engine spans.
const (
	AttrProcessor   = "pipeline.processor"
	AttrEntityType  = "pipeline.entity_type"
	AttrCondition   = "pipeline.condition"
	AttrState       = "pipeline.state"
	AttrExecutionID = "pipeline.execution_id"
	AttrQuery       = "source.query"
	AttrOperation   = "sink.operation"
	AttrCount       = "entity.count"
)

// TracerConfig configures the OTLP/HTTP trace exporter.
type TracerConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the collector host:port, e.g. "localhost:4318".
	Endpoint string
	Insecure bool
	// SampleRate applies to new traces; child spans follow their parent.
	SampleRate float64
}

// DefaultTracerConfig returns a config for a local collector that keeps
// every trace.
func DefaultTracerConfig(serviceName string) TracerConfig {
	return TracerConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		SampleRate:     1.0,
	}
}

// InitTracer installs a batching OTLP tracer provider as the global one.
// The caller shuts it down on exit.
func InitTracer(ctx context.Context, cfg TracerConfig) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	res, err := newResource(cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	logger.Info("tracer initialized", logger.Fields(
		"service", cfg.ServiceName,
		"endpoint", cfg.Endpoint,
		"sample_rate", cfg.SampleRate,
	))
	return tp, nil
}

// sampler samples new traces at rate and follows the parent otherwise.
func sampler(rate float64) sdktrace.Sampler {
	root := sdktrace.TraceIDRatioBased(rate)
	switch {
	case rate >= 1:
		root = sdktrace.AlwaysSample()
	case rate <= 0:
		root = sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(root)
}

func newResource(serviceName, serviceVersion, environment string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
			attribute.String("environment", environment),
		),
	)
}

// StartProcessorSpan starts the span of one processor execution. Empty
// entityType and cond are left off.
func StartProcessorSpan(ctx context.Context, processor, entityType, cond, executionID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrProcessor, processor),
		attribute.String(AttrExecutionID, executionID),
	}
	if entityType != "" {
		attrs = append(attrs, attribute.String(AttrEntityType, entityType))
	}
	if cond != "" {
		attrs = append(attrs, attribute.String(AttrCondition, cond))
	}
	return start(ctx, SpanProcessor+"."+processor, attrs)
}

// StartFetchSpan starts the span of a data source fetch made for the
// named pipeline.
func StartFetchSpan(ctx context.Context, pipeline, query, executionID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrProcessor, pipeline),
		attribute.String(AttrExecutionID, executionID),
	}
	if query != "" {
		attrs = append(attrs, attribute.String(AttrQuery, query))
	}
	return start(ctx, SpanDataSource, attrs)
}

// StartSinkSpan starts the span of a data sink write of count entities.
func StartSinkSpan(ctx context.Context, consumer, operation string, count int, executionID string) (context.Context, trace.Span) {
	return start(ctx, SpanDataSink, []attribute.KeyValue{
		attribute.String(AttrProcessor, consumer),
		attribute.String(AttrOperation, operation),
		attribute.Int(AttrCount, count),
		attribute.String(AttrExecutionID, executionID),
	})
}

func start(ctx context.Context, name string, attrs []attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// SetCount records how many entities the span dealt with.
func SetCount(span trace.Span, n int) {
	span.SetAttributes(attribute.Int(AttrCount, n))
}

// EndSpan records the outcome and ends span. An empty state is left off;
// a non-nil err marks the span failed.
func EndSpan(span trace.Span, state string, err error) {
	if state != "" {
		span.SetAttributes(attribute.String(AttrState, state))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
