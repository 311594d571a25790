// Package observability provides OpenTelemetry tracing and metrics for the
// pipeline engine.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("pipectl"))
//	defer tp.Shutdown(ctx)
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("pipectl"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("pipectl"))
//	metrics.RecordExecution(ctx, "normalize", "OK", duration)
//
// Processors are instrumented with the decorators in package pipeline
// (WithTracing, WithMetrics, WithLogging).
package observability
