package app

import (
	"modeswitch/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug enables debug logging.
	Debug bool

	// LogFormat is "text" or "json".
	LogFormat string

	// ConfigPath is the YAML configuration file. Defaults are used when
	// the file does not exist.
	ConfigPath string

	// Listen overrides server.listen from the configuration file.
	Listen string

	// ModeSwitchConfig is the loaded configuration. Set it to skip loading.
	ModeSwitchConfig *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, logFormat, configPath, listen string) *Config {
	return &Config{
		Debug:      debug,
		LogFormat:  logFormat,
		ConfigPath: configPath,
		Listen:     listen,
	}
}
