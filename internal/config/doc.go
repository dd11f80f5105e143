// Package config loads and validates the modeswitch configuration.
//
// Configuration is read from a single YAML file. A missing file is not an
// error: the built-in defaults describe the stock DreamPi layout, with a
// factory "primary" mode and an "alternate" mode recognized by its DCNet
// marker tokens.
//
//	cfg, err := config.LoadConfig("/etc/modeswitch/config.yaml")
//	if err != nil {
//	    return err
//	}
//
// LoadConfig always validates the result and reports every problem it
// finds at once as ValidationErrors.
package config
