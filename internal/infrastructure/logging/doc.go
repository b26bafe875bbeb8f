// Package logging provides structured logging for the OTG controller.
//
// It wraps log/slog so every package logs the same way:
//
//   - JSON output for production, text output for development
//   - Default fields (service, version) on every entry
//   - Level-based filtering (debug, info, warn, error)
//
// Configuration lives in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("engine").Info("automation started", "devices", 3)
//
// Never log API keys, JWT secrets or screenshot payloads.
package logging
