package config

import (
	"errors"
	"fmt"
	"os"

	"modeswitch/pkg/logging"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is read when no --config flag is given.
const DefaultConfigPath = "/etc/modeswitch/config.yaml"

// LoadConfig loads configuration from the given file on top of the defaults.
// A missing file yields the defaults. The result is always validated.
func LoadConfig(configPath string) (Config, error) {
	config := GetDefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("Config", "No config found at %s, using defaults", configPath)
			return config, config.Validate()
		}
		return Config{}, &LoadError{FilePath: configPath, ErrorType: "io", Err: err}
	}

	config, err = Parse(data)
	if err != nil {
		return Config{}, &LoadError{FilePath: configPath, ErrorType: "parse", Err: err}
	}

	if err := config.Validate(); err != nil {
		return Config{}, &LoadError{FilePath: configPath, ErrorType: "validation", Err: err}
	}

	logging.Info("Config", "Loaded configuration from %s", configPath)
	return config, nil
}

// Parse decodes YAML configuration over the defaults without validating it.
// A non-empty modes list replaces the default modes entirely.
func Parse(data []byte) (Config, error) {
	config := GetDefaultConfig()
	defaultModes := config.Modes
	config.Modes = nil

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("malformed configuration: %w", err)
	}
	if len(config.Modes) == 0 {
		config.Modes = defaultModes
	}
	return config, nil
}
