package config

import "time"

const (
	DefaultListen           = ":8080"
	DefaultUnit             = "dreampi"
	DefaultInstalledPath    = "/home/pi/dreampi/dreampi.py"
	DefaultArtifactDir      = "/home/pi/dreampi/modeswitch"
	DefaultOperationTimeout = 30 * time.Second
	DefaultSettleStop       = 2 * time.Second
	DefaultSettleStart      = 5 * time.Second
	DefaultWatchDebounce    = 500 * time.Millisecond

	DefaultFactoryMode   = "primary"
	DefaultAlternateMode = "alternate"

	DefaultPrimaryAuthoredPath   = "/home/pi/dreampi_custom_scripts/dreampi.py"
	DefaultAlternateAuthoredPath = "/home/pi/dreampi_custom_scripts/DCNET_V2/dreampi_dcnet.py"
	DefaultMarker                = "# modeswitch: {{ .Mode }} [{{ .Token }}]"
)

// DefaultAlternateTokens identify the DCNet build of the service script.
var DefaultAlternateTokens = []string{"dcnet", "dc-net", "flycast", "dcnet.rpi", "dreampi_dcnet"}

// GetDefaultConfig returns the default configuration for modeswitch.
func GetDefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Listen: DefaultListen,
		},
		Service: ServiceConfig{
			Unit:             DefaultUnit,
			Manager:          ManagerAuto,
			UseSudo:          true,
			InstalledPath:    DefaultInstalledPath,
			OperationTimeout: DefaultOperationTimeout,
		},
		Settle: SettleConfig{
			Stop:  DefaultSettleStop,
			Start: DefaultSettleStart,
		},
		Artifacts: ArtifactConfig{
			Dir: DefaultArtifactDir,
		},
		FactoryMode: DefaultFactoryMode,
		Modes: []ModeConfig{
			{
				Name:         DefaultFactoryMode,
				AuthoredPath: DefaultPrimaryAuthoredPath,
			},
			{
				Name:         DefaultAlternateMode,
				Tokens:       append([]string(nil), DefaultAlternateTokens...),
				AuthoredPath: DefaultAlternateAuthoredPath,
				Marker:       DefaultMarker,
			},
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: DefaultWatchDebounce,
		},
	}
}
