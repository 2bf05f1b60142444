// Package config handles loading and validating Facility Core configuration.
//
// Configuration is loaded once at startup from a YAML file, overridden by
// FACILITY_* environment variables, and validated before use.
//
// Security Considerations:
//   - The shared secret must be supplied via FACILITY_SECRET and never
//     committed to a config file in a shipped build
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
