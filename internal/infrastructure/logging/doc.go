// Package logging provides structured logging for the NLU bridge.
//
// It wraps log/slog so every component logs the same way.
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
// The --debug flag forces the level to debug.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("training finished", "intents", 3, "sentences", 120)
//	logger.Warn("decode failed", "topic", topic, "error", err)
//
// Never log broker passwords or InfluxDB tokens.
package logging
