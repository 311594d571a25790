package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/entitypipe/logger"
	"github.com/kbukum/entitypipe/observability"
)

func TestWithTracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	gates := newGates()
	p := WithTracing[*user](returning("stops", gates, StopWithError, fmt.Errorf("invalid"), nil))
	mustInit(t, p)

	resp, err := p.Execute(context.Background(), &user{Active: true}, "active == true", NewContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.State != StopWithError {
		t.Fatalf("expected StopWithError, got %s", resp.State)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "processor.stops" {
		t.Errorf("unexpected span name %q", spans[0].Name)
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status.Code)
	}
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[observability.AttrState] != "StopWithError" {
		t.Errorf("expected state attribute, got %v", attrs)
	}
	if attrs[observability.AttrCondition] != "active == true" {
		t.Errorf("expected condition attribute, got %v", attrs)
	}
}

func TestWithMetrics(t *testing.T) {
	metrics, err := observability.NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gates := newGates()
	p := WithMetrics[*user](upper("upper", gates), metrics)
	mustInit(t, p)

	resp, err := p.Execute(context.Background(), &user{Name: "ann"}, "", NewContext())
	if err != nil || resp.State != OK {
		t.Fatalf("expected OK, got %v %v", resp, err)
	}

	p.Dispose()
	if _, err := p.Execute(context.Background(), &user{}, "", NewContext()); err == nil {
		t.Error("expected decorated processor to report unavailability")
	}
}

func TestWithLogging(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "test", &buf)

	gates := newGates()
	p := WithLogging[*user](returning("warns", gates, ContinueWithError, fmt.Errorf("minor"), nil), log)
	mustInit(t, p)

	pctx := NewContext()
	if _, err := p.Execute(context.Background(), &user{}, "", pctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected one JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["level"] != "warn" {
		t.Errorf("expected warn level, got %v", entry["level"])
	}
	if entry[logger.FieldProcessor] != "warns" {
		t.Errorf("expected processor field, got %v", entry[logger.FieldProcessor])
	}
	if entry[logger.FieldExecutionID] != pctx.ID() {
		t.Errorf("expected execution id %s, got %v", pctx.ID(), entry[logger.FieldExecutionID])
	}
	if entry[logger.FieldState] != "ContinueWithError" {
		t.Errorf("expected state field, got %v", entry[logger.FieldState])
	}
}

func TestProcessor_LogsCarryExecutionID(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "warn", Format: "json"}, "test", &buf)

	p := NewProcessor("warns", func(_ context.Context, _ *user, _ *Context, r *Response[*user]) (*Response[*user], error) {
		return r.SetError(ContinueWithError, fmt.Errorf("minor")), nil
	}, WithGates(newGates()), WithLogger(log))
	mustInit(t, p)

	pctx := NewContext()
	if _, err := p.Execute(context.Background(), &user{}, "", pctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected one JSON log line, got %q: %v", buf.String(), err)
	}
	if entry[logger.FieldExecutionID] != pctx.ID() {
		t.Errorf("expected execution id %s, got %v", pctx.ID(), entry[logger.FieldExecutionID])
	}
}
