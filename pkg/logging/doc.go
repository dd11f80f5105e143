// Package logging provides the subsystem-tagged structured logging used
// throughout modeswitch.
//
// The package wraps Go's standard slog package. Every entry carries a
// subsystem identifier so operators can filter controller activity from
// server or watcher noise:
//
//	logging.InitForCLI(logging.LevelInfo, os.Stdout)
//	logging.Info("Controller", "Switching from %s to %s", from, to)
//	logging.Error("ServiceManager", err, "Failed to stop unit %s", unit)
//
// # Subsystems
//
//   - **Bootstrap**: Application initialization and startup
//   - **Config**: Configuration loading and validation
//   - **Controller**: Mode switch state machine
//   - **ArtifactStore**: Artifact capture, synthesis and persistence
//   - **Detector**: Mode classification of the installed artifact
//   - **ServiceManager**: Managed service start/stop/query
//   - **Watcher**: Out-of-band artifact change notifications
//   - **Server**: HTTP API
//
// # Output formats
//
// Text output (the default) suits interactive use. JSON output is meant for
// journald or log shippers when modeswitch itself runs as a system service:
//
//	logging.Init(logging.Options{Level: logging.LevelDebug, Format: logging.FormatJSON, Output: os.Stderr})
//
// The logger is safe for concurrent use.
package logging
