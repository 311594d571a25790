// Package bootstrap assembles a running entitypipe process from a
// config.Config: logging, OpenTelemetry exporters, the pipeline engine
// and, when enabled, the HTTP API, all managed by a component.Registry.
//
// Run is for long-running services and blocks until a shutdown signal.
// RunTask is for one-shot work, such as pipectl run, that needs the same
// wiring but ends when its task returns.
package bootstrap
