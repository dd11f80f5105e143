package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"modeswitch/internal/mode"
	"modeswitch/pkg/logging"
)

// Classifier maps artifact content to a mode.
type Classifier interface {
	Classify(content []byte) mode.Mode
}

// Options configures a Store.
type Options struct {
	// Dir is where captured and synthesized artifacts are persisted.
	Dir string
	// InstalledPath is the live artifact the managed service reads.
	InstalledPath string
	// Modes is the configured mode set.
	Modes *mode.Set
	// Classifier, when set, rejects content that does not classify as the
	// mode it is captured or synthesized for.
	Classifier Classifier
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Store holds one artifact per mode.
type Store struct {
	mu      sync.RWMutex
	opts    Options
	entries map[mode.Mode]Artifact
	// manifestMu serializes manifest read-modify-write cycles.
	manifestMu sync.Mutex
}

// NewStore creates a store. Persisted artifacts are loaded lazily.
func NewStore(opts Options) (*Store, error) {
	if opts.Modes == nil {
		return nil, errors.New("artifact store requires a mode set")
	}
	if opts.Dir == "" {
		return nil, errors.New("artifact store requires a directory")
	}
	if opts.InstalledPath == "" {
		return nil, errors.New("artifact store requires the installed artifact path")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		opts:    opts,
		entries: make(map[mode.Mode]Artifact),
	}, nil
}

// InstalledPath returns the live artifact location.
func (s *Store) InstalledPath() string {
	return s.opts.InstalledPath
}

// Capture stores the installed artifact as m's artifact. If m already has a
// stored artifact, that artifact is returned and nothing is read.
func (s *Store) Capture(m mode.Mode) (Artifact, error) {
	if _, ok := s.opts.Modes.Lookup(m); !ok {
		return Artifact{}, fmt.Errorf("capture %s: unknown mode", m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.storedLocked(m); ok {
		logging.Debug("ArtifactStore", "Artifact for %s already stored (%s), capture is a no-op", m, existing.Origin)
		return existing, nil
	}

	path := s.opts.InstalledPath
	content, info, err := readFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Artifact{}, fmt.Errorf("capture %s from %s: %w", m, path, ErrSourceMissing)
		}
		return Artifact{}, fmt.Errorf("capture %s from %s: %w", m, path, err)
	}

	if s.opts.Classifier != nil {
		if got := s.opts.Classifier.Classify(content); got != m {
			return Artifact{}, fmt.Errorf("capture %s: installed artifact classifies as %s: %w", m, got, ErrModeMismatch)
		}
	}

	a := New(m, content, path, info.Mode()&0111 != 0, OriginCaptured, s.opts.Now())
	if err := s.persistLocked(a); err != nil {
		return Artifact{}, err
	}
	s.entries[m] = a

	logging.Info("ArtifactStore", "Captured %s artifact from %s (%d bytes, sha256 %.12s)", m, path, a.Size(), a.Digest)
	return a, nil
}

// Synthesize derives to's artifact from from's stored artifact. If to
// already has a stored artifact it is returned unchanged.
func (s *Store) Synthesize(from, to mode.Mode, t Transform) (Artifact, error) {
	return s.synthesize(from, to, t, false)
}

// Resynthesize is like Synthesize but replaces any stored artifact for to.
func (s *Store) Resynthesize(from, to mode.Mode, t Transform) (Artifact, error) {
	return s.synthesize(from, to, t, true)
}

func (s *Store) synthesize(from, to mode.Mode, t Transform, replace bool) (Artifact, error) {
	if _, ok := s.opts.Modes.Lookup(to); !ok {
		return Artifact{}, fmt.Errorf("synthesize %s: unknown mode", to)
	}
	if t == nil {
		return Artifact{}, fmt.Errorf("synthesize %s: %w", to, ErrTransformUndefined)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !replace {
		if existing, ok := s.storedLocked(to); ok {
			return existing, nil
		}
	}

	source, ok := s.storedLocked(from)
	if !ok {
		return Artifact{}, fmt.Errorf("synthesize %s from %s: %w", to, from, ErrSourceNotCaptured)
	}

	content, err := t(source.Content())
	if err != nil {
		return Artifact{}, fmt.Errorf("synthesize %s from %s: %w", to, from, err)
	}

	if s.opts.Classifier != nil {
		if got := s.opts.Classifier.Classify(content); got != to {
			return Artifact{}, fmt.Errorf("synthesize %s from %s: result classifies as %s: %w", to, from, got, ErrModeMismatch)
		}
	}

	a := New(to, content, "", source.Executable, OriginSynthesized, s.opts.Now())
	if err := s.persistLocked(a); err != nil {
		return Artifact{}, err
	}
	s.entries[to] = a

	logging.Info("ArtifactStore", "Synthesized %s artifact from %s (%d bytes, sha256 %.12s)", to, from, a.Size(), a.Digest)
	return a, nil
}

// SynthesisTransform returns the marker transform configured for m.
func (s *Store) SynthesisTransform(m mode.Mode) (Transform, error) {
	def, ok := s.opts.Modes.Lookup(m)
	if !ok {
		return nil, fmt.Errorf("unknown mode %s", m)
	}
	marker, err := RenderMarker(def)
	if err != nil {
		return nil, err
	}
	return MarkerTransform(marker), nil
}

// Get returns the artifact for m: a captured artifact first, then the
// authored file, then a synthesized artifact.
func (s *Store) Get(m mode.Mode) (Artifact, error) {
	def, ok := s.opts.Modes.Lookup(m)
	if !ok {
		return Artifact{}, fmt.Errorf("get %s: unknown mode: %w", m, ErrNotFound)
	}

	s.mu.Lock()
	stored, haveStored := s.storedLocked(m)
	s.mu.Unlock()

	if haveStored && stored.Origin == OriginCaptured {
		return stored, nil
	}

	if def.AuthoredPath != "" {
		content, info, err := readFile(def.AuthoredPath)
		switch {
		case err == nil:
			return New(m, content, def.AuthoredPath, info.Mode()&0111 != 0, OriginAuthored, info.ModTime()), nil
		case !errors.Is(err, fs.ErrNotExist):
			logging.Warn("ArtifactStore", "Cannot read authored artifact for %s at %s: %v", m, def.AuthoredPath, err)
		}
	}

	if haveStored {
		return stored, nil
	}

	return Artifact{}, fmt.Errorf("get %s (checked %s): %w", m, s.checkedLocations(def), ErrNotFound)
}

// Known returns the modes for which an artifact is currently obtainable
// without synthesis.
func (s *Store) Known() []mode.Mode {
	var out []mode.Mode
	for _, m := range s.opts.Modes.Modes() {
		if _, err := s.Get(m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// SourceReport describes where an artifact for a mode could come from.
type SourceReport struct {
	Mode          mode.Mode `json:"mode" yaml:"mode"`
	Stored        bool      `json:"stored" yaml:"stored"`
	StoredOrigin  Origin    `json:"storedOrigin,omitempty" yaml:"storedOrigin,omitempty"`
	Persisted     bool      `json:"persisted" yaml:"persisted"`
	AuthoredPath  string    `json:"authoredPath,omitempty" yaml:"authoredPath,omitempty"`
	AuthoredExist bool      `json:"authoredExists" yaml:"authoredExists"`
}

// Sources reports artifact sources for every configured mode.
func (s *Store) Sources() []SourceReport {
	var out []SourceReport
	for _, def := range s.opts.Modes.Definitions() {
		r := SourceReport{Mode: def.Mode, AuthoredPath: def.AuthoredPath}

		s.mu.Lock()
		if a, ok := s.storedLocked(def.Mode); ok {
			r.Stored = true
			r.StoredOrigin = a.Origin
		}
		s.mu.Unlock()

		if _, err := os.Stat(s.contentPath(def.Mode)); err == nil {
			r.Persisted = true
		}
		if def.AuthoredPath != "" {
			if _, err := os.Stat(def.AuthoredPath); err == nil {
				r.AuthoredExist = true
			}
		}
		out = append(out, r)
	}
	return out
}

// Install writes a over the installed artifact and makes it executable.
// The file is replaced by rename so readers never see partial content.
func (s *Store) Install(a Artifact) error {
	if a.IsZero() {
		return errors.New("install: empty artifact")
	}
	if err := writeFileAtomic(s.opts.InstalledPath, a.content, 0755); err != nil {
		return fmt.Errorf("install %s artifact to %s: %w", a.Mode, s.opts.InstalledPath, err)
	}
	logging.Info("ArtifactStore", "Installed %s artifact (%s, sha256 %.12s) to %s", a.Mode, a.Origin, a.Digest, s.opts.InstalledPath)
	return nil
}

// storedLocked returns the captured or synthesized entry for m, loading it
// from disk on a memory miss. Callers must hold s.mu.
func (s *Store) storedLocked(m mode.Mode) (Artifact, bool) {
	if a, ok := s.entries[m]; ok {
		return a, true
	}
	a, err := s.loadPersisted(m)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.Warn("ArtifactStore", "Ignoring persisted artifact for %s: %v", m, err)
		}
		return Artifact{}, false
	}
	s.entries[m] = a
	return a, true
}

func (s *Store) checkedLocations(def mode.Definition) []string {
	locations := []string{s.contentPath(def.Mode)}
	if def.AuthoredPath != "" {
		locations = append(locations, def.AuthoredPath)
	}
	return locations
}

func readFile(path string) ([]byte, fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, err
	}
	if info.IsDir() {
		return nil, nil, fmt.Errorf("%s is a directory", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return content, info, nil
}

// writeFileAtomic writes data to a temp file next to path, then renames it.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return err
	}
	if err := keepOwner(path, tmpName); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
