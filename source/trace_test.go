package source

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/entitypipe/observability"
	"github.com/kbukum/entitypipe/pipeline"
)

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

func spanNamed(t *testing.T, spans tracetest.SpanStubs, name string) tracetest.SpanStub {
	t.Helper()
	for _, s := range spans {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("no %q span among %d", name, len(spans))
	return tracetest.SpanStub{}
}

func attrs(s tracetest.SpanStub) map[string]string {
	out := map[string]string{}
	for _, kv := range s.Attributes {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func TestProducer_TracesFetch(t *testing.T) {
	exporter := recordSpans(t)
	gates := newGates()
	p := pipeline.NewCollectionPipeline[*account]("accounts", quiet(gates)...)
	require.NoError(t, p.AddProcessor(capitalize(gates), ""))
	require.NoError(t, p.Init())

	pctx := pipeline.NewContext()
	_, err := NewProducer(seeded(gates), p).Read(context.Background(), "!Closed", pctx)
	require.NoError(t, err)

	fetch := spanNamed(t, exporter.GetSpans(), observability.SpanDataSource)
	a := attrs(fetch)
	assert.Equal(t, "accounts", a[observability.AttrProcessor])
	assert.Equal(t, "!Closed", a[observability.AttrQuery])
	assert.Equal(t, "2", a[observability.AttrCount])
	assert.Equal(t, pctx.ID(), a[observability.AttrExecutionID])
}

func TestProducer_TracesFetchFailure(t *testing.T) {
	exporter := recordSpans(t)
	gates := newGates()
	p := pipeline.NewCollectionPipeline[*account]("accounts", quiet(gates)...)
	require.NoError(t, p.Init())

	failing := SourceFunc[*account](func(context.Context, string, *pipeline.Context) ([]*account, error) {
		return nil, fmt.Errorf("connection reset")
	})
	_, err := NewProducer(failing, p).Read(context.Background(), "", nil)
	require.Error(t, err)

	fetch := spanNamed(t, exporter.GetSpans(), observability.SpanDataSource)
	assert.Equal(t, codes.Error, fetch.Status.Code)
}

func TestConsumer_TracesSinkWrite(t *testing.T) {
	exporter := recordSpans(t)
	gates := newGates()
	c := NewConsumer[*account]("save", NewMemoryStore(gates, accountID), ParseOperation, quiet(gates)...)
	require.NoError(t, c.Init())

	pctx := WithOperation(nil, "create")
	_, err := c.Execute(context.Background(), &account{ID: "a1"}, "", pctx)
	require.NoError(t, err)
	_, err = c.Execute(context.Background(), &account{ID: "a1"}, "", pctx)
	require.NoError(t, err)

	var sinks tracetest.SpanStubs
	for _, s := range exporter.GetSpans() {
		if s.Name == observability.SpanDataSink {
			sinks = append(sinks, s)
		}
	}
	require.Len(t, sinks, 2)
	a := attrs(sinks[0])
	assert.Equal(t, "save", a[observability.AttrProcessor])
	assert.Equal(t, "Create", a[observability.AttrOperation])
	assert.Equal(t, "1", a[observability.AttrCount])
	assert.Equal(t, pctx.ID(), a[observability.AttrExecutionID])
	assert.NotEqual(t, codes.Error, sinks[0].Status.Code)
	assert.Equal(t, codes.Error, sinks[1].Status.Code, "creating an existing key fails in the sink")
}
