package servicemgr

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"

	"modeswitch/pkg/logging"
)

// DBusAPI is the subset of the go-systemd D-Bus connection used here.
type DBusAPI interface {
	StartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	StopUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	RestartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	GetUnitPropertyContext(ctx context.Context, unit string, propertyName string) (*dbus.Property, error)
	Close()
}

// DBusAPIFactory opens a D-Bus connection.
type DBusAPIFactory func(ctx context.Context) (DBusAPI, error)

// NewDBusAPI connects to the system bus.
func NewDBusAPI(ctx context.Context) (DBusAPI, error) {
	return dbus.NewWithContext(ctx)
}

// Systemd manages a unit through systemd's D-Bus API.
type Systemd struct {
	UnitName string
	newDBus  DBusAPIFactory
}

// NewSystemd returns a systemd manager for the named service. A ".service"
// suffix is added when missing. A nil factory connects to the system bus.
func NewSystemd(name string, newDBus DBusAPIFactory) *Systemd {
	if newDBus == nil {
		newDBus = NewDBusAPI
	}
	unit := name
	if len(unit) < 8 || unit[len(unit)-8:] != ".service" {
		unit += ".service"
	}
	return &Systemd{UnitName: unit, newDBus: newDBus}
}

// Describe implements Describer.
func (s *Systemd) Describe() string {
	return "systemd (dbus) " + s.UnitName
}

// Start implements Manager.
func (s *Systemd) Start(ctx context.Context) error {
	return s.job(ctx, "start", func(conn DBusAPI, ch chan<- string) (int, error) {
		return conn.StartUnitContext(ctx, s.UnitName, "replace", ch)
	})
}

// Stop implements Manager.
func (s *Systemd) Stop(ctx context.Context) error {
	return s.job(ctx, "stop", func(conn DBusAPI, ch chan<- string) (int, error) {
		return conn.StopUnitContext(ctx, s.UnitName, "replace", ch)
	})
}

// Restart implements Manager.
func (s *Systemd) Restart(ctx context.Context) error {
	return s.job(ctx, "restart", func(conn DBusAPI, ch chan<- string) (int, error) {
		return conn.RestartUnitContext(ctx, s.UnitName, "replace", ch)
	})
}

// IsActive implements Manager.
func (s *Systemd) IsActive(ctx context.Context) (bool, error) {
	conn, err := s.newDBus(ctx)
	if err != nil {
		return false, wrap(ctx, "query", s.UnitName, fmt.Errorf("connect to dbus: %w", err))
	}
	defer conn.Close()

	prop, err := conn.GetUnitPropertyContext(ctx, s.UnitName, "ActiveState")
	if err != nil {
		return false, wrap(ctx, "query", s.UnitName, err)
	}
	state, ok := prop.Value.Value().(string)
	if !ok {
		return false, wrap(ctx, "query", s.UnitName, fmt.Errorf("unexpected ActiveState value %v", prop.Value))
	}
	return state == "active", nil
}

func (s *Systemd) job(ctx context.Context, op string, enqueue func(DBusAPI, chan<- string) (int, error)) error {
	conn, err := s.newDBus(ctx)
	if err != nil {
		logging.Error("ServiceManager", err, "Failed to connect to dbus for %s", s.UnitName)
		return wrap(ctx, op, s.UnitName, fmt.Errorf("connect to dbus: %w", err))
	}
	defer conn.Close()

	statusCh := make(chan string, 1)
	if _, err := enqueue(conn, statusCh); err != nil {
		return wrap(ctx, op, s.UnitName, fmt.Errorf("dbus %s request failed: %w", op, err))
	}

	select {
	case status := <-statusCh:
		if status != "done" {
			return wrap(ctx, op, s.UnitName, fmt.Errorf("job finished with status %q", status))
		}
	case <-ctx.Done():
		return wrap(ctx, op, s.UnitName, ctx.Err())
	}

	logging.Debug("ServiceManager", "Unit %s: %s job done", s.UnitName, op)
	return nil
}
