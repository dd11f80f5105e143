package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"modeswitch/internal/controller"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeOperationFailed indicates the server ran the operation and it failed.
	ExitCodeOperationFailed = 2
	// ExitCodeBusy indicates another operation was running on the server.
	ExitCodeBusy = 3
)

// rootCmd represents the base command for the modeswitch application.
var rootCmd = &cobra.Command{
	Use:   "modeswitch",
	Short: "Switch a managed service between configuration modes",
	Long: `modeswitch swaps the configuration artifact a managed service reads at
startup and restarts the service so the new mode takes effect.

Run 'modeswitch serve' on the host of the managed service. The other
commands talk to that server over HTTP.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "modeswitch version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	var failed *operationFailedError
	if errors.As(err, &failed) {
		if failed.failure != nil && failed.failure.Kind == controller.KindBusy {
			return ExitCodeBusy
		}
		return ExitCodeOperationFailed
	}
	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().StringVar(&clientEndpoint, "endpoint", envOr("MODESWITCH_ENDPOINT", ""), "modeswitch server address (default http://localhost:8080, env MODESWITCH_ENDPOINT)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json or yaml")
	rootCmd.PersistentFlags().BoolVarP(&quietOutput, "quiet", "q", false, "Suppress progress indicators")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored table output")
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
