package config

import "time"

// ServiceManagerKind selects the adapter used to control the managed service.
type ServiceManagerKind string

const (
	ManagerAuto      ServiceManagerKind = "auto"
	ManagerSystemd   ServiceManagerKind = "systemd"
	ManagerSystemctl ServiceManagerKind = "systemctl"
	ManagerScript    ServiceManagerKind = "script"
)

// Config is the top-level configuration structure for modeswitch.
type Config struct {
	Server      ServerConfig   `yaml:"server"`
	Service     ServiceConfig  `yaml:"service"`
	Settle      SettleConfig   `yaml:"settle"`
	Artifacts   ArtifactConfig `yaml:"artifacts"`
	FactoryMode string         `yaml:"factoryMode"`
	Modes       []ModeConfig   `yaml:"modes"`
	Watch       WatchConfig    `yaml:"watch"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Listen string `yaml:"listen,omitempty"` // Address to bind to (default: :8080)
}

// ServiceConfig describes the managed service and where it reads its configuration.
type ServiceConfig struct {
	Unit             string             `yaml:"unit"`
	Manager          ServiceManagerKind `yaml:"manager,omitempty"`
	UseSudo          bool               `yaml:"useSudo,omitempty"`
	Script           ScriptConfig       `yaml:"script,omitempty"`
	InstalledPath    string             `yaml:"installedPath"`
	OperationTimeout time.Duration      `yaml:"operationTimeout,omitempty"`
}

// ScriptConfig configures the toggle-script service manager. Args maps a
// verb (stop, start, restart, status) to the arguments passed to the script.
type ScriptConfig struct {
	Path string              `yaml:"path,omitempty"`
	Args map[string][]string `yaml:"args,omitempty"`
}

// SettleConfig holds the fixed waits after stopping and starting the service.
type SettleConfig struct {
	Stop  time.Duration `yaml:"stop"`
	Start time.Duration `yaml:"start"`
}

// ArtifactConfig configures durable artifact storage.
type ArtifactConfig struct {
	Dir string `yaml:"dir"`
}

// ModeConfig describes one mode.
type ModeConfig struct {
	Name string `yaml:"name"`
	// Tokens are case-insensitive markers identifying this mode in the
	// installed artifact. The factory mode needs none.
	Tokens []string `yaml:"tokens,omitempty"`
	// AuthoredPath is an optional pre-authored artifact for this mode.
	AuthoredPath string `yaml:"authoredPath,omitempty"`
	// Marker is a template for the line prefixed onto the factory artifact
	// when this mode has to be synthesized. Empty means no synthesis path.
	Marker string `yaml:"marker,omitempty"`
}

// WatchConfig configures the filesystem watcher.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

// Mode returns the configuration for the named mode.
func (c Config) Mode(name string) (ModeConfig, bool) {
	for _, m := range c.Modes {
		if m.Name == name {
			return m, true
		}
	}
	return ModeConfig{}, false
}

// ModeNames returns the configured mode names in order.
func (c Config) ModeNames() []string {
	names := make([]string, 0, len(c.Modes))
	for _, m := range c.Modes {
		names = append(names, m.Name)
	}
	return names
}
