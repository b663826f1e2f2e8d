// Package logging provides structured logging for the spoken device bridge.
//
// This package wraps Go's standard log/slog package so that every
// component logs with the same shape and default fields.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("refresh complete", "devices", 12)
//	logger.Warn("status unknown", "address", "1A 2B 3C 1")
//
// Never log controller credentials or tokens.
package logging
