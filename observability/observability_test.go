package observability

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig("test-service")

	if cfg.ServiceName != "test-service" {
		t.Errorf("expected ServiceName 'test-service', got %s", cfg.ServiceName)
	}
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("expected Endpoint 'localhost:4318', got %s", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected SampleRate 1.0, got %f", cfg.SampleRate)
	}
	if !cfg.Insecure {
		t.Error("expected Insecure to be true")
	}
}

func TestDefaultMeterConfig(t *testing.T) {
	cfg := DefaultMeterConfig("test-service")

	if cfg.ServiceName != "test-service" {
		t.Errorf("expected ServiceName 'test-service', got %s", cfg.ServiceName)
	}
	if cfg.Interval != 15*time.Second {
		t.Errorf("expected Interval 15s, got %v", cfg.Interval)
	}
}

func TestNewMetrics_Noop(t *testing.T) {
	metrics, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}

	ctx := context.Background()
	metrics.RecordExecution(ctx, "normalize", "OK", 5*time.Millisecond)
	metrics.RecordError(ctx, "FatalError", "normalize")
	metrics.RecordRequestStart(ctx)
	metrics.RecordRequestEnd(ctx, "/pipelines/:name/execute", "POST", 200, 10*time.Millisecond)
}

func TestRecordExecution_Collected(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	metrics.RecordExecution(ctx, "normalize", "OK", time.Millisecond)
	metrics.RecordExecution(ctx, "normalize", "Skipped", time.Millisecond)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	var total int64
	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "pipeline.executions" {
				continue
			}
			found = true
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("expected Sum[int64], got %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	if !found {
		t.Fatal("expected pipeline.executions to be collected")
	}
	if total != 2 {
		t.Errorf("expected 2 executions, got %d", total)
	}
}

func recordSpans(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func attributesOf(s tracetest.SpanStub) map[string]string {
	attrs := map[string]string{}
	for _, kv := range s.Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	return attrs
}

func TestProcessorSpan(t *testing.T) {
	exporter := recordSpans(t)

	_, span := StartProcessorSpan(context.Background(), "normalize", "*demo.Entity", "Active == 'ACTIVE'", "exec-1")
	EndSpan(span, "StopWithError", fmt.Errorf("boom"))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	got := spans[0]
	if got.Name != "processor.normalize" {
		t.Errorf("expected span name 'processor.normalize', got %q", got.Name)
	}
	if got.Status.Code != codes.Error {
		t.Errorf("expected error status, got %v", got.Status.Code)
	}
	if len(got.Events) == 0 {
		t.Error("expected an exception event")
	}
	attrs := attributesOf(got)
	want := map[string]string{
		AttrProcessor:   "normalize",
		AttrEntityType:  "*demo.Entity",
		AttrCondition:   "Active == 'ACTIVE'",
		AttrExecutionID: "exec-1",
		AttrState:       "StopWithError",
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("expected %s=%q, got %q", k, v, attrs[k])
		}
	}
}

func TestProcessorSpan_OmitsEmptyAttributes(t *testing.T) {
	exporter := recordSpans(t)

	_, span := StartProcessorSpan(context.Background(), "normalize", "", "", "exec-1")
	EndSpan(span, "", nil)

	got := exporter.GetSpans()[0]
	if got.Status.Code == codes.Error {
		t.Error("expected no error status")
	}
	attrs := attributesOf(got)
	for _, k := range []string{AttrEntityType, AttrCondition, AttrState} {
		if _, ok := attrs[k]; ok {
			t.Errorf("expected %s to be left off", k)
		}
	}
}

func TestFetchAndSinkSpans(t *testing.T) {
	exporter := recordSpans(t)

	ctx, fetch := StartFetchSpan(context.Background(), "entities", "Active == 'ACTIVE'", "exec-2")
	_, sink := StartSinkSpan(ctx, "save", "Create", 3, "exec-2")
	EndSpan(sink, "", nil)
	SetCount(fetch, 5)
	EndSpan(fetch, "", nil)

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	sinkSpan, fetchSpan := spans[0], spans[1]
	if sinkSpan.Name != SpanDataSink || fetchSpan.Name != SpanDataSource {
		t.Fatalf("unexpected span names %q, %q", sinkSpan.Name, fetchSpan.Name)
	}
	if sinkSpan.Parent.SpanID() != fetchSpan.SpanContext.SpanID() {
		t.Error("expected the sink span to be a child of the fetch span")
	}

	fa := attributesOf(fetchSpan)
	if fa[AttrQuery] != "Active == 'ACTIVE'" || fa[AttrCount] != "5" || fa[AttrProcessor] != "entities" {
		t.Errorf("unexpected fetch attributes %v", fa)
	}
	sa := attributesOf(sinkSpan)
	if sa[AttrOperation] != "Create" || sa[AttrCount] != "3" || sa[AttrExecutionID] != "exec-2" {
		t.Errorf("unexpected sink attributes %v", sa)
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{2.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tc := range tests {
		desc := sampler(tc.rate).Description()
		if !strings.HasPrefix(desc, "ParentBased{") || !strings.Contains(desc, "root:"+tc.want) {
			t.Errorf("sampler(%v) = %s, want parent-based %s", tc.rate, desc, tc.want)
		}
	}
}

func TestInitTracerSamplingRates(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate float64
	}{
		{"always sample", 1.0},
		{"never sample", 0.0},
		{"ratio based", 0.5},
	}

	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultTracerConfig("test")
			cfg.SampleRate = tc.sampleRate
			tp, err := InitTracer(context.Background(), cfg)
			if err != nil {
				t.Skipf("InitTracer failed (resource schema conflict): %v", err)
			}
			defer tp.Shutdown(context.Background())
		})
	}
}

func TestInitMeter(t *testing.T) {
	prev := otel.GetMeterProvider()
	defer otel.SetMeterProvider(prev)

	cfg := DefaultMeterConfig("test-service")
	cfg.Interval = 0
	mp, err := InitMeter(context.Background(), cfg)
	if err != nil {
		t.Skipf("InitMeter failed (resource schema conflict): %v", err)
	}
	defer mp.Shutdown(context.Background())
}
