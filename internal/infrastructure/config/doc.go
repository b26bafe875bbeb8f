// Package config handles loading and validating OTG controller configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with OTG_* environment variables
//   - Validation of required fields and value ranges
//   - Default value handling
//
// Security Considerations:
//   - The vision API key and JWT secret should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.IMouseAddress())
package config
