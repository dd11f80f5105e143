package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"modeswitch/internal/mode"
)

const manifestFileName = "manifest.yaml"

// manifest is the on-disk index of persisted artifacts.
type manifest struct {
	Artifacts map[string]manifestEntry `yaml:"artifacts"`
}

type manifestEntry struct {
	Origin     Origin    `yaml:"origin"`
	SourcePath string    `yaml:"sourcePath,omitempty"`
	Digest     string    `yaml:"digest"`
	Executable bool      `yaml:"executable"`
	CreatedAt  time.Time `yaml:"createdAt"`
}

func (s *Store) contentPath(m mode.Mode) string {
	return filepath.Join(s.opts.Dir, string(m)+".artifact")
}

func (s *Store) manifestPath() string {
	return filepath.Join(s.opts.Dir, manifestFileName)
}

func (s *Store) readManifest() (manifest, error) {
	var mf manifest
	data, err := os.ReadFile(s.manifestPath())
	if err != nil {
		return mf, err
	}
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return mf, fmt.Errorf("parse %s: %w", s.manifestPath(), err)
	}
	return mf, nil
}

// persistLocked writes the artifact content and records it in the manifest.
func (s *Store) persistLocked(a Artifact) error {
	s.manifestMu.Lock()
	defer s.manifestMu.Unlock()

	if err := writeFileAtomic(s.contentPath(a.Mode), a.content, 0644); err != nil {
		return fmt.Errorf("persist %s artifact: %w", a.Mode, err)
	}

	mf, err := s.readManifest()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		// A corrupt manifest is rebuilt from this entry on.
		mf = manifest{}
	}
	if mf.Artifacts == nil {
		mf.Artifacts = make(map[string]manifestEntry)
	}
	mf.Artifacts[string(a.Mode)] = manifestEntry{
		Origin:     a.Origin,
		SourcePath: a.SourcePath,
		Digest:     a.Digest,
		Executable: a.Executable,
		CreatedAt:  a.CreatedAt.UTC(),
	}

	data, err := yaml.Marshal(&mf)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := writeFileAtomic(s.manifestPath(), data, 0644); err != nil {
		return fmt.Errorf("persist manifest: %w", err)
	}
	return nil
}

// loadPersisted reads m's artifact from disk. It returns an error wrapping
// fs.ErrNotExist when nothing is persisted for m.
func (s *Store) loadPersisted(m mode.Mode) (Artifact, error) {
	mf, err := s.readManifest()
	if err != nil {
		return Artifact{}, err
	}
	entry, ok := mf.Artifacts[string(m)]
	if !ok {
		return Artifact{}, fmt.Errorf("mode %s not in manifest: %w", m, fs.ErrNotExist)
	}
	if entry.Origin != OriginCaptured && entry.Origin != OriginSynthesized {
		return Artifact{}, fmt.Errorf("unexpected origin %q", entry.Origin)
	}

	content, err := os.ReadFile(s.contentPath(m))
	if err != nil {
		return Artifact{}, err
	}
	if got := Digest(content); got != entry.Digest {
		return Artifact{}, fmt.Errorf("digest mismatch for %s: manifest %.12s, file %.12s", s.contentPath(m), entry.Digest, got)
	}

	return New(m, content, entry.SourcePath, entry.Executable, entry.Origin, entry.CreatedAt), nil
}
