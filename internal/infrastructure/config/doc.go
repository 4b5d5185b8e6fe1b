// Package config handles loading and validating robotlan configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Robot secrets should be set via ROBOTLAN_ROBOT_<ID>_PASSWORD or a .env file
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, r := range cfg.Robots {
//	    fmt.Println(r.ID, r.Family)
//	}
package config
