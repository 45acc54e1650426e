// Package logging provides structured logging for the RF control core.
//
// It wraps the standard log/slog package so every component logs with the
// same handler, level filtering, and default fields (service, version).
//
// Logging is configured via the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("device added", "device_id", dev.ID)
//	logger.Error("publish failed", "error", err)
//
// Never log secrets such as the JWT secret, MQTT password, or InfluxDB token.
package logging
