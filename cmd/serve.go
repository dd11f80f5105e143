package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"modeswitch/internal/app"
	"modeswitch/internal/config"
)

var (
	serveDebug      bool
	serveConfigPath string
	serveListen     string
	serveLogFormat  string
)

// serveCmd starts the HTTP API on the host of the managed service.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the modeswitch server",
	Long: `Starts the modeswitch HTTP server that owns the managed service.

The server detects the mode of the installed artifact, backs up the factory
artifact on the first switch, and swaps artifacts on request:

  GET  /api/status          current mode and service activity
  POST /api/switch/{mode}   switch to a mode
  POST /api/restart         restart without changing mode
  POST /api/setup           capture and synthesize artifacts ahead of time
  GET  /api/modes           configured modes
  GET  /metrics             Prometheus metrics

Configuration is read from --config (default ` + config.DefaultConfigPath + `).
Built-in defaults are used when the file does not exist.

Switching needs permission to write the installed artifact and to control
the service: run as root, or as a user allowed to run 'sudo -n systemctl'.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(serveDebug, serveLogFormat, serveConfigPath, serveListen)

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return application.Run(commandContext(cmd))
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", config.DefaultConfigPath, "Path to the configuration file")
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Address to listen on (overrides server.listen)")
	serveCmd.Flags().StringVar(&serveLogFormat, "log-format", "text", "Log format: text or json")
}
