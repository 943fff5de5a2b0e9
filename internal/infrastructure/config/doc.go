// Package config loads the service configuration from YAML.
//
// Load reads the file, fills in defaults for missing sections, applies
// GRAYLOGIC_* environment overrides and validates the result. Secrets
// such as the MQTT password or the InfluxDB token are best supplied
// through the environment.
//
// The item tree is not part of this file: items.path points at the tree
// definition, which the itemconfig package loads, and items.scenes_dir
// holds the scene files.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	loc := cfg.Location()
package config
