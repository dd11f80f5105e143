package servicemgr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/util"

	"modeswitch/internal/config"
	"modeswitch/pkg/logging"
)

// Manager controls a single long-running service.
type Manager interface {
	Stop(ctx context.Context) error
	Start(ctx context.Context) error
	Restart(ctx context.Context) error
	IsActive(ctx context.Context) (bool, error)
}

// Describer is implemented by managers that can name their backend.
type Describer interface {
	Describe() string
}

// OperationError wraps a failed service operation.
type OperationError struct {
	Op   string
	Unit string
	Err  error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Unit, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// IsOperationError reports whether err is or wraps an OperationError.
func IsOperationError(err error) bool {
	var opErr *OperationError
	return errors.As(err, &opErr)
}

// ErrTimeout is wrapped into an OperationError when an operation's
// deadline passes.
var ErrTimeout = errors.New("operation timed out")

// wrap builds an OperationError, translating context expiry into ErrTimeout.
func wrap(ctx context.Context, op, unit string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return &OperationError{Op: op, Unit: unit, Err: err}
}

// New returns the Manager selected by cfg.Manager.
func New(cfg config.ServiceConfig) (Manager, error) {
	kind := cfg.Manager
	if kind == "" || kind == config.ManagerAuto {
		kind = detectKind()
		logging.Info("ServiceManager", "Auto-selected %s service manager", kind)
	}

	switch kind {
	case config.ManagerSystemd:
		return NewSystemd(cfg.Unit, nil), nil
	case config.ManagerSystemctl:
		return &Systemctl{Unit: cfg.Unit, UseSudo: cfg.UseSudo}, nil
	case config.ManagerScript:
		if cfg.Script.Path == "" {
			return nil, errors.New("script service manager requires a script path")
		}
		return &Script{Path: cfg.Script.Path, Args: cfg.Script.Args}, nil
	default:
		return nil, fmt.Errorf("unsupported service manager %q", cfg.Manager)
	}
}

// detectKind prefers D-Bus when systemd is the init system and we may talk
// to it directly; unprivileged processes go through sudo systemctl.
func detectKind() config.ServiceManagerKind {
	if util.IsRunningSystemd() && os.Geteuid() == 0 {
		return config.ManagerSystemd
	}
	return config.ManagerSystemctl
}

// execWaitDelay bounds how long a killed child may hold its output pipes.
const execWaitDelay = 2 * time.Second
