// Package logger provides structured logging on top of zerolog.
//
// Loggers are cheap values that can be narrowed with WithComponent,
// WithFields and WithContext. Processors and pipelines log through a
// *Logger that carries their name, so every line can be traced back to a
// step in a chain.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.NewDefault("pipectl").WithComponent("engine")
//	log.Info("pipeline loaded", logger.Fields(logger.FieldPipeline, "orders"))
package logger
