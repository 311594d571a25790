// Package errors provides the structured error type shared by processors,
// pipelines, loaders and data adapters.
//
// Every error carries a machine-readable code, an HTTP status hint used by
// the HTTP API, a retryable flag, and optional details. Use AsAppError to
// recover the code from a wrapped error.
package errors
