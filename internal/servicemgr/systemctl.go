package servicemgr

import (
	"context"
)

// Systemctl manages a unit by running systemctl, optionally through sudo.
type Systemctl struct {
	Unit    string
	UseSudo bool
	// Binary overrides the systemctl executable.
	Binary string
}

// Describe implements Describer.
func (s *Systemctl) Describe() string {
	if s.UseSudo {
		return "sudo systemctl " + s.Unit
	}
	return "systemctl " + s.Unit
}

func (s *Systemctl) command(verb string) (string, []string) {
	bin := s.Binary
	if bin == "" {
		bin = "systemctl"
	}
	if s.UseSudo && verb != "is-active" {
		return "sudo", []string{"-n", bin, verb, s.Unit}
	}
	return bin, []string{verb, s.Unit}
}

func (s *Systemctl) do(ctx context.Context, verb string) error {
	name, args := s.command(verb)
	return wrap(ctx, verb, s.Unit, mustSucceed(run(ctx, name, args...)))
}

// Start implements Manager.
func (s *Systemctl) Start(ctx context.Context) error { return s.do(ctx, "start") }

// Stop implements Manager.
func (s *Systemctl) Stop(ctx context.Context) error { return s.do(ctx, "stop") }

// Restart implements Manager.
func (s *Systemctl) Restart(ctx context.Context) error { return s.do(ctx, "restart") }

// IsActive implements Manager. systemctl is-active exits non-zero for
// inactive units, so only its output is consulted.
func (s *Systemctl) IsActive(ctx context.Context) (bool, error) {
	name, args := s.command("is-active")
	res, err := run(ctx, name, args...)
	if err != nil {
		return false, wrap(ctx, "is-active", s.Unit, err)
	}
	return res.stdout == "active", nil
}
