// Package component manages the lifecycle of the long-lived parts of an
// entitypipe process.
//
// The pipeline engine, the HTTP server and the storage adapters implement
// Component and are registered with a Registry, which starts them in
// registration order, stops them in reverse, and aggregates their health.
package component
