// Package config handles loading and validating eGeoffrey module configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with EGEOFFREY_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// A module can run from environment variables alone: Load("") starts from
// the defaults of a stock eGeoffrey install (gateway egeoffrey-gateway:443
// over websockets, house default_house).
//
// Security Considerations:
//   - The house passcode should be set via EGEOFFREY_PASSCODE
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load(os.Getenv("EGEOFFREY_CONFIG"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.House.ID)
package config
