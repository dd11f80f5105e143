package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"modeswitch/internal/config"
	"modeswitch/internal/mode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const factoryScript = "#!/usr/bin/env python\nimport serial\nprint('dreampi')\n"

type fixture struct {
	dir       string
	installed string
	authored  string
	set       *mode.Set
	store     *Store
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	root := t.TempDir()

	cfg := config.GetDefaultConfig()
	cfg.Service.InstalledPath = filepath.Join(root, "dreampi", "dreampi.py")
	cfg.Artifacts.Dir = filepath.Join(root, "artifacts")
	cfg.Modes[0].AuthoredPath = filepath.Join(root, "scripts", "dreampi.py")
	cfg.Modes[1].AuthoredPath = filepath.Join(root, "scripts", "dreampi_dcnet.py")
	for _, fn := range mutate {
		fn(&cfg)
	}

	set, err := mode.NewSet(cfg)
	require.NoError(t, err)

	f := &fixture{
		dir:       cfg.Artifacts.Dir,
		installed: cfg.Service.InstalledPath,
		authored:  cfg.Modes[1].AuthoredPath,
		set:       set,
	}
	f.store = f.newStore(t)
	return f
}

func (f *fixture) newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(Options{
		Dir:           f.dir,
		InstalledPath: f.installed,
		Modes:         f.set,
		Classifier:    mode.NewDetector(f.set),
		Now:           func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) writeInstalled(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(f.installed), 0755))
	require.NoError(t, os.WriteFile(f.installed, []byte(content), 0755))
}

func (f *fixture) writeAuthored(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(f.authored), 0755))
	require.NoError(t, os.WriteFile(f.authored, []byte(content), 0644))
}

func TestCapture(t *testing.T) {
	f := newFixture(t)
	f.writeInstalled(t, factoryScript)

	a, err := f.store.Capture("primary")
	require.NoError(t, err)
	assert.Equal(t, OriginCaptured, a.Origin)
	assert.Equal(t, []byte(factoryScript), a.Content())
	assert.Equal(t, f.installed, a.SourcePath)
	assert.True(t, a.Executable)
	assert.FileExists(t, filepath.Join(f.dir, "primary.artifact"))
	assert.FileExists(t, filepath.Join(f.dir, "manifest.yaml"))

	// A second capture is a no-op even though the installed file changed.
	f.writeInstalled(t, "#!/usr/bin/env python\nprint('edited')\n")
	again, err := f.store.Capture("primary")
	require.NoError(t, err)
	assert.Equal(t, a.Digest, again.Digest)
	assert.Equal(t, []byte(factoryScript), again.Content())
}

func TestCapture_SourceMissing(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.Capture("primary")
	assert.True(t, errors.Is(err, ErrSourceMissing), "got %v", err)
}

func TestCapture_ModeMismatch(t *testing.T) {
	f := newFixture(t)
	f.writeInstalled(t, "host = 'dcnet.rpi'\n")

	_, err := f.store.Capture("primary")
	assert.True(t, errors.Is(err, ErrModeMismatch), "got %v", err)
}

func TestContentIsImmutable(t *testing.T) {
	f := newFixture(t)
	f.writeInstalled(t, factoryScript)

	a, err := f.store.Capture("primary")
	require.NoError(t, err)

	c := a.Content()
	c[0] = 'X'

	stored, err := f.store.Get("primary")
	require.NoError(t, err)
	assert.Equal(t, []byte(factoryScript), stored.Content())
}

func TestSynthesize(t *testing.T) {
	f := newFixture(t)
	f.writeInstalled(t, factoryScript)

	transform, err := f.store.SynthesisTransform("alternate")
	require.NoError(t, err)

	_, err = f.store.Synthesize("primary", "alternate", transform)
	require.True(t, errors.Is(err, ErrSourceNotCaptured), "got %v", err)

	_, err = f.store.Capture("primary")
	require.NoError(t, err)

	a, err := f.store.Synthesize("primary", "alternate", transform)
	require.NoError(t, err)
	assert.Equal(t, OriginSynthesized, a.Origin)
	assert.Empty(t, a.SourcePath)
	assert.Equal(t,
		"#!/usr/bin/env python\n# modeswitch: alternate [dcnet]\nimport serial\nprint('dreampi')\n",
		string(a.Content()))
	assert.Equal(t, mode.Mode("alternate"), mode.NewDetector(f.set).Classify(a.Content()))

	// Source is untouched.
	src, err := f.store.Get("primary")
	require.NoError(t, err)
	assert.Equal(t, []byte(factoryScript), src.Content())
}

func TestSynthesize_Deterministic(t *testing.T) {
	f := newFixture(t)
	f.writeInstalled(t, factoryScript)
	_, err := f.store.Capture("primary")
	require.NoError(t, err)

	transform, err := f.store.SynthesisTransform("alternate")
	require.NoError(t, err)

	first, err := f.store.Synthesize("primary", "alternate", transform)
	require.NoError(t, err)
	second, err := f.store.Resynthesize("primary", "alternate", transform)
	require.NoError(t, err)

	assert.Equal(t, first.Content(), second.Content())
	assert.Equal(t, first.Digest, second.Digest)

	// A fresh store over the same directory synthesizes the same bytes.
	other := f.newStore(t)
	third, err := other.Resynthesize("primary", "alternate", transform)
	require.NoError(t, err)
	assert.Equal(t, first.Content(), third.Content())
}

func TestSynthesize_DoesNotOverwrite(t *testing.T) {
	f := newFixture(t)
	f.writeInstalled(t, factoryScript)
	_, err := f.store.Capture("primary")
	require.NoError(t, err)

	transform, err := f.store.SynthesisTransform("alternate")
	require.NoError(t, err)
	first, err := f.store.Synthesize("primary", "alternate", transform)
	require.NoError(t, err)

	other := MarkerTransform("# dcnet something else")
	second, err := f.store.Synthesize("primary", "alternate", other)
	require.NoError(t, err)
	assert.Equal(t, first.Digest, second.Digest)

	replaced, err := f.store.Resynthesize("primary", "alternate", other)
	require.NoError(t, err)
	assert.NotEqual(t, first.Digest, replaced.Digest)
}

func TestSynthesize_ResultMustClassify(t *testing.T) {
	f := newFixture(t)
	f.writeInstalled(t, factoryScript)
	_, err := f.store.Capture("primary")
	require.NoError(t, err)

	_, err = f.store.Synthesize("primary", "alternate", MarkerTransform("# no token here"))
	assert.True(t, errors.Is(err, ErrModeMismatch), "got %v", err)
}

func TestSynthesisTransform_Undefined(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Modes[1].Marker = "" })

	_, err := f.store.SynthesisTransform("alternate")
	assert.True(t, errors.Is(err, ErrTransformUndefined), "got %v", err)

	_, err = f.store.Synthesize("primary", "alternate", nil)
	assert.True(t, errors.Is(err, ErrTransformUndefined), "got %v", err)
}

func TestGet_Precedence(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.Get("alternate")
	require.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	assert.Contains(t, err.Error(), f.authored, "error should name the checked locations")

	f.writeInstalled(t, factoryScript)
	_, err = f.store.Capture("primary")
	require.NoError(t, err)
	transform, err := f.store.SynthesisTransform("alternate")
	require.NoError(t, err)
	synth, err := f.store.Synthesize("primary", "alternate", transform)
	require.NoError(t, err)

	got, err := f.store.Get("alternate")
	require.NoError(t, err)
	assert.Equal(t, synth.Digest, got.Digest)

	// An authored artifact takes precedence over a synthesized one.
	f.writeAuthored(t, "connect('dcnet.rpi')\n")
	got, err = f.store.Get("alternate")
	require.NoError(t, err)
	assert.Equal(t, OriginAuthored, got.Origin)
	assert.Equal(t, f.authored, got.SourcePath)
	assert.Equal(t, "connect('dcnet.rpi')\n", string(got.Content()))

	// A captured backup takes precedence over an authored one.
	got, err = f.store.Get("primary")
	require.NoError(t, err)
	assert.Equal(t, OriginCaptured, got.Origin)
}

func TestPersistence_SurvivesRestart(t *testing.T) {
	f := newFixture(t)
	f.writeInstalled(t, factoryScript)
	captured, err := f.store.Capture("primary")
	require.NoError(t, err)

	// The installed file is gone, yet a new store still has the backup.
	require.NoError(t, os.Remove(f.installed))
	restarted := f.newStore(t)

	got, err := restarted.Get("primary")
	require.NoError(t, err)
	assert.Equal(t, captured.Digest, got.Digest)
	assert.Equal(t, OriginCaptured, got.Origin)
	assert.True(t, got.Executable)
}

func TestPersistence_DigestMismatchIgnored(t *testing.T) {
	f := newFixture(t)
	f.writeInstalled(t, factoryScript)
	_, err := f.store.Capture("primary")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "primary.artifact"), []byte("tampered"), 0644))

	restarted := f.newStore(t)
	_, err = restarted.Get("primary")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	// Capturing again repairs the entry.
	a, err := restarted.Capture("primary")
	require.NoError(t, err)
	assert.Equal(t, []byte(factoryScript), a.Content())
}

func TestInstall(t *testing.T) {
	f := newFixture(t)
	f.writeAuthored(t, "connect('dcnet.rpi')\n")

	a, err := f.store.Get("alternate")
	require.NoError(t, err)
	require.NoError(t, f.store.Install(a))

	content, err := os.ReadFile(f.installed)
	require.NoError(t, err)
	assert.Equal(t, a.Content(), content)

	info, err := os.Stat(f.installed)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(f.installed))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	assert.Error(t, f.store.Install(Artifact{}))
}

func TestKnownAndSources(t *testing.T) {
	f := newFixture(t)
	assert.Empty(t, f.store.Known())

	f.writeInstalled(t, factoryScript)
	_, err := f.store.Capture("primary")
	require.NoError(t, err)
	assert.Equal(t, []mode.Mode{"primary"}, f.store.Known())

	f.writeAuthored(t, "dcnet")
	assert.Equal(t, []mode.Mode{"primary", "alternate"}, f.store.Known())

	sources := f.store.Sources()
	require.Len(t, sources, 2)
	assert.Equal(t, mode.Mode("primary"), sources[0].Mode)
	assert.True(t, sources[0].Stored)
	assert.True(t, sources[0].Persisted)
	assert.Equal(t, OriginCaptured, sources[0].StoredOrigin)
	assert.True(t, sources[1].AuthoredExist)
	assert.False(t, sources[1].Stored)
}
