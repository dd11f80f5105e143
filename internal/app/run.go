package app

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"modeswitch/pkg/logging"
)

// runServer serves the HTTP API and watches the installed artifact until
// ctx ends or SIGINT/SIGTERM is received.
func runServer(ctx context.Context, services *Services) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reportSources(ctx, services)

	if services.Watcher != nil {
		if err := services.Watcher.Start(); err != nil {
			logging.Warn("Bootstrap", "Artifact watcher disabled: %v", err)
		} else {
			defer func() { _ = services.Watcher.Stop() }()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return services.Server.Run(gctx)
	})
	g.Go(func() error {
		notifyReady(gctx, services)
		return nil
	})

	err := g.Wait()
	logging.Info("Bootstrap", "Shutting down")
	return err
}

// reportSources logs where each mode's artifact would come from so a
// misconfigured install is visible at startup.
func reportSources(ctx context.Context, services *Services) {
	st := services.Controller.GetStatus(ctx)
	logging.Info("Bootstrap", "Installed artifact %s detected as %s, service active: %t",
		services.Store.InstalledPath(), st.CurrentMode, st.ServiceActive)

	for _, src := range st.Sources {
		switch {
		case src.Stored:
			logging.Info("Bootstrap", "Mode %s: %s artifact stored", src.Mode, src.StoredOrigin)
		case src.AuthoredExist:
			logging.Info("Bootstrap", "Mode %s: authored artifact at %s", src.Mode, src.AuthoredPath)
		case src.AuthoredPath != "":
			logging.Warn("Bootstrap", "Mode %s: no artifact yet, %s does not exist", src.Mode, src.AuthoredPath)
		default:
			logging.Info("Bootstrap", "Mode %s: no artifact stored yet", src.Mode)
		}
	}
}

// notifyReady tells systemd the API is up once the listener is bound.
func notifyReady(ctx context.Context, services *Services) {
	for services.Server.Addr() == "" {
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}

	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	switch {
	case err != nil:
		logging.Warn("Bootstrap", "Failed to notify systemd: %v", err)
	case sent:
		logging.Debug("Bootstrap", "Notified systemd of readiness")
	}
	logging.Info("Bootstrap", "Serving modeswitch API on %s", services.Server.Addr())
}
