package mode

import (
	"fmt"
	"strings"

	"modeswitch/internal/config"
)

// Mode identifies one of the configured service modes.
type Mode string

// Unknown is reported when the installed artifact cannot be classified.
const Unknown Mode = "unknown"

func (m Mode) String() string {
	return string(m)
}

// Definition is a configured mode together with its detection tokens.
type Definition struct {
	Mode         Mode
	Tokens       []string
	AuthoredPath string
	Marker       string
	Factory      bool
}

// Set is the ordered, closed set of configured modes.
type Set struct {
	defs    []Definition
	factory Mode
}

// NewSet builds a Set from configuration.
func NewSet(cfg config.Config) (*Set, error) {
	s := &Set{factory: Mode(cfg.FactoryMode)}
	for _, m := range cfg.Modes {
		tokens := make([]string, 0, len(m.Tokens))
		for _, tok := range m.Tokens {
			tokens = append(tokens, strings.ToLower(tok))
		}
		s.defs = append(s.defs, Definition{
			Mode:         Mode(m.Name),
			Tokens:       tokens,
			AuthoredPath: m.AuthoredPath,
			Marker:       m.Marker,
			Factory:      m.Name == cfg.FactoryMode,
		})
	}
	if _, ok := s.Lookup(s.factory); !ok {
		return nil, fmt.Errorf("factory mode %q is not configured", cfg.FactoryMode)
	}
	return s, nil
}

// Factory returns the factory mode.
func (s *Set) Factory() Mode {
	return s.factory
}

// Lookup returns the definition for m.
func (s *Set) Lookup(m Mode) (Definition, bool) {
	for _, d := range s.defs {
		if d.Mode == m {
			return d, true
		}
	}
	return Definition{}, false
}

// Parse validates a mode name against the set.
func (s *Set) Parse(name string) (Mode, error) {
	m := Mode(name)
	if _, ok := s.Lookup(m); !ok {
		return "", fmt.Errorf("unknown mode %q, expected one of %s", name, strings.Join(s.Names(), ", "))
	}
	return m, nil
}

// Modes returns the configured modes in order.
func (s *Set) Modes() []Mode {
	out := make([]Mode, 0, len(s.defs))
	for _, d := range s.defs {
		out = append(out, d.Mode)
	}
	return out
}

// Names returns the configured mode names in order.
func (s *Set) Names() []string {
	out := make([]string, 0, len(s.defs))
	for _, d := range s.defs {
		out = append(out, string(d.Mode))
	}
	return out
}

// Definitions returns a copy of the configured definitions.
func (s *Set) Definitions() []Definition {
	out := make([]Definition, len(s.defs))
	copy(out, s.defs)
	return out
}
