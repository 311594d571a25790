// Package httpapi exposes an engine's pipelines over HTTP.
//
//	GET  /health                    component health
//	GET  /info                      build information
//	GET  /graph                     pipeline composition as DOT
//	GET  /pipelines                 built pipelines
//	GET  /pipelines/:name           one pipeline
//	POST /pipelines/:name/execute   run a pipeline on {data, operation, values}
//
// Errors are written as errors.ErrorResponse with the AppError's status.
// A run that ends in any non-fatal state answers 200 with the state in
// the body; fatal failures answer 500.
//
// The Server serves cleartext HTTP/2 alongside HTTP/1.1 and implements
// component.Component.
package httpapi
