// Package config handles loading and validating the spoken device bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with HUEBRIDGE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Credentials (MQTT password, InfluxDB token) should be supplied through the
// environment rather than committed to the config file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Bridge.ID)
package config
