package app

import (
	"context"
	"fmt"
	"os"

	"modeswitch/internal/config"
	"modeswitch/pkg/logging"
)

// Application represents the main application structure that bootstraps
// and runs the modeswitch server.
type Application struct {
	config   *Config
	services *Services
}

// NewApplication creates and initializes a new application instance with
// the provided configuration.
func NewApplication(cfg *Config) (*Application, error) {
	if err := initLogging(cfg); err != nil {
		return nil, err
	}

	if cfg.ModeSwitchConfig == nil {
		path := cfg.ConfigPath
		if path == "" {
			path = config.DefaultConfigPath
		}
		loaded, err := config.LoadConfig(path)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load configuration from %s", path)
			return nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
		}
		logging.Info("Bootstrap", "Loaded configuration from %s", path)
		cfg.ModeSwitchConfig = &loaded
	}

	if cfg.Listen != "" {
		cfg.ModeSwitchConfig.Server.Listen = cfg.Listen
	}

	services, err := InitializeServices(*cfg.ModeSwitchConfig)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Services returns the initialized services.
func (a *Application) Services() *Services {
	return a.services
}

// Run executes the application until ctx is cancelled or a termination
// signal arrives.
func (a *Application) Run(ctx context.Context) error {
	return runServer(ctx, a.services)
}

func initLogging(cfg *Config) error {
	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}

	format := logging.FormatText
	switch cfg.LogFormat {
	case "", string(logging.FormatText):
	case string(logging.FormatJSON):
		format = logging.FormatJSON
	default:
		return fmt.Errorf("unsupported log format %q (use text or json)", cfg.LogFormat)
	}

	logging.Init(logging.Options{Level: level, Format: format, Output: os.Stderr})
	return nil
}
