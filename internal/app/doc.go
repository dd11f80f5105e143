// Package app provides application bootstrap and lifecycle management for
// the modeswitch server.
//
// # Bootstrap
//
// NewApplication performs the whole initialization sequence:
//
//  1. Configures logging from the debug and log format settings
//  2. Loads and validates the YAML configuration (defaults when absent)
//  3. Builds the mode set, detector, artifact store and service manager
//  4. Creates the controller, the HTTP server and the artifact watcher
//
// # Run
//
// Run serves the HTTP API and watches the installed artifact until the
// context is cancelled or SIGINT/SIGTERM is received. When started by
// systemd with Type=notify, readiness is reported once the listener is up.
//
// Example usage:
//
//	cfg := app.NewConfig(false, "text", "/etc/modeswitch/config.yaml", "")
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	return application.Run(ctx)
package app
