// Package config handles loading and validating the RF control core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with RFCONTROL_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Sensitive values (MQTT password, InfluxDB token, JWT secret) should be set via
// environment variables rather than committed to the config file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	timeout := cfg.GetPublishTimeout()
package config
