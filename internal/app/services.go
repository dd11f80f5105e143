package app

import (
	"fmt"
	"path/filepath"
	"time"

	"modeswitch/internal/artifact"
	"modeswitch/internal/config"
	"modeswitch/internal/controller"
	"modeswitch/internal/mode"
	"modeswitch/internal/server"
	"modeswitch/internal/servicemgr"
	"modeswitch/internal/watcher"
	"modeswitch/pkg/logging"
)

// Services holds all initialized components used by the application.
type Services struct {
	Config     config.Config
	Modes      *mode.Set
	Store      *artifact.Store
	Manager    servicemgr.Manager
	Controller *controller.Controller
	Server     *server.Server

	// Watcher is nil when watching is disabled.
	Watcher *watcher.Watcher
}

// InitializeServices builds every component from cfg, selecting the
// service manager from cfg.Service.
func InitializeServices(cfg config.Config) (*Services, error) {
	manager, err := servicemgr.New(cfg.Service)
	if err != nil {
		return nil, fmt.Errorf("failed to create service manager: %w", err)
	}
	return initializeServices(cfg, manager)
}

func initializeServices(cfg config.Config, manager servicemgr.Manager) (*Services, error) {
	modes, err := mode.NewSet(cfg)
	if err != nil {
		return nil, err
	}
	detector := mode.NewDetector(modes)

	store, err := artifact.NewStore(artifact.Options{
		Dir:           cfg.Artifacts.Dir,
		InstalledPath: cfg.Service.InstalledPath,
		Modes:         modes,
		Classifier:    detector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact store: %w", err)
	}

	ctrl, err := controller.New(controller.Options{
		Modes:            modes,
		Detector:         detector,
		Store:            store,
		Manager:          manager,
		SettleStop:       cfg.Settle.Stop,
		SettleStart:      cfg.Settle.Start,
		OperationTimeout: cfg.Service.OperationTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create controller: %w", err)
	}

	srv := server.New(ctrl, server.Options{
		Listen:       cfg.Server.Listen,
		WriteTimeout: switchBudget(cfg),
		Gatherer:     ctrl.Metrics().Registry(),
	})

	services := &Services{
		Config:     cfg,
		Modes:      modes,
		Store:      store,
		Manager:    manager,
		Controller: ctrl,
		Server:     srv,
	}

	if cfg.Watch.Enabled {
		files, onChange := watchTargets(cfg, ctrl)
		w, err := watcher.New(watcher.Config{
			Files:    files,
			Debounce: cfg.Watch.Debounce,
			OnChange: onChange,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create artifact watcher: %w", err)
		}
		services.Watcher = w
	}

	logging.Debug("Bootstrap", "Services initialized: modes %v, manager %T", modes.Names(), manager)
	return services, nil
}

// watchTargets lists the installed artifact and every authored artifact,
// and returns the callback routing their changes to the controller.
func watchTargets(cfg config.Config, ctrl *controller.Controller) ([]string, func(path string)) {
	installed := filepath.Clean(cfg.Service.InstalledPath)
	files := []string{installed}
	authored := make(map[string]mode.Mode)
	for _, m := range cfg.Modes {
		if m.AuthoredPath == "" {
			continue
		}
		path := filepath.Clean(m.AuthoredPath)
		if _, dup := authored[path]; dup || path == installed {
			continue
		}
		authored[path] = mode.Mode(m.Name)
		files = append(files, path)
	}

	return files, func(path string) {
		if m, ok := authored[filepath.Clean(path)]; ok {
			ctrl.NoteAuthoredChange(m)
			return
		}
		ctrl.NoteExternalChange(path)
	}
}

// switchBudget is the longest a switch can take: stop, start and the
// recovery start are each bounded by the operation timeout, plus the
// settle waits and two activity probes.
func switchBudget(cfg config.Config) time.Duration {
	return cfg.Settle.Stop + 2*cfg.Settle.Start + 5*cfg.Service.OperationTimeout + 10*time.Second
}
