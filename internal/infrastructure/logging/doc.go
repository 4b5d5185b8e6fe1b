// Package logging provides structured logging for robotlan.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same fields and format.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
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
//	apiLog := logger.With("component", "api")
//	apiLog.Info("listening", "addr", addr)
//
// # Security
//
// Never log robot secrets, broker passwords, or tokens.
package logging
