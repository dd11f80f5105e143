package mode

import (
	"bytes"
	"os"

	"modeswitch/pkg/logging"
)

// Detector classifies artifacts into modes.
type Detector struct {
	set *Set
}

// NewDetector returns a detector for the given mode set.
func NewDetector(set *Set) *Detector {
	return &Detector{set: set}
}

// Detect reads the artifact at path and classifies it. Any read failure
// yields Unknown.
func (d *Detector) Detect(path string) Mode {
	content, err := os.ReadFile(path)
	if err != nil {
		logging.Debug("Detector", "Cannot read installed artifact %s: %v", path, err)
		return Unknown
	}
	return d.Classify(content)
}

// Classify returns the mode of the given artifact content.
func (d *Detector) Classify(content []byte) Mode {
	lower := bytes.ToLower(content)
	for _, def := range d.set.defs {
		if def.Factory {
			continue
		}
		for _, tok := range def.Tokens {
			if bytes.Contains(lower, []byte(tok)) {
				return def.Mode
			}
		}
	}
	return d.set.factory
}
