// Package engine hosts the pipelines of a running process. An Engine
// loads the definition files and directories named in the configuration
// when it starts, serves the built pipelines by name, and disposes them
// when it stops.
package engine
