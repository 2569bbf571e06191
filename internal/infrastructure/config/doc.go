// Package config handles loading and validating the NLU bridge configuration.
//
// This package manages:
//   - Loading configuration from an optional YAML file
//   - Overriding with NLUHERMES_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Command-line flags are applied by the caller between Load and Validate,
// giving the precedence defaults < file < environment < flags.
//
// Security Considerations:
//   - Broker passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("nlu-hermes.yaml")
//	if err != nil {
//	    return err
//	}
//	cfg.NLU.Fuzzy = false // flag override
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config
