package servicemgr

import (
	"context"
	"path/filepath"
)

// Script manages the service through an external toggle script. Each verb
// runs Path with Args[verb]; a verb without configured arguments gets the
// verb itself as its only argument. The script never receives stdin.
//
// For "status", exit code 0 means the service is active.
type Script struct {
	Path string
	Args map[string][]string
}

// Describe implements Describer.
func (s *Script) Describe() string {
	return "script " + s.Path
}

func (s *Script) args(verb string) []string {
	if a, ok := s.Args[verb]; ok {
		return a
	}
	return []string{verb}
}

func (s *Script) name() string {
	return filepath.Base(s.Path)
}

func (s *Script) do(ctx context.Context, verb string) error {
	return wrap(ctx, verb, s.name(), mustSucceed(run(ctx, s.Path, s.args(verb)...)))
}

// Start implements Manager.
func (s *Script) Start(ctx context.Context) error { return s.do(ctx, "start") }

// Stop implements Manager.
func (s *Script) Stop(ctx context.Context) error { return s.do(ctx, "stop") }

// Restart implements Manager.
func (s *Script) Restart(ctx context.Context) error { return s.do(ctx, "restart") }

// IsActive implements Manager.
func (s *Script) IsActive(ctx context.Context) (bool, error) {
	res, err := run(ctx, s.Path, s.args("status")...)
	if err != nil {
		return false, wrap(ctx, "status", s.name(), err)
	}
	return res.exitCode == 0, nil
}
