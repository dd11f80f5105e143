package controller

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modeswitch/internal/artifact"
	"modeswitch/internal/config"
	"modeswitch/internal/mode"
	"modeswitch/internal/servicemgr"
)

const (
	factoryScript  = "#!/usr/bin/env python\nimport serial\nprint('dreampi')\n"
	authoredScript = "#!/usr/bin/env python\n# DCNet build\nprint('dreampi_dcnet')\n"

	primary   = mode.Mode(config.DefaultFactoryMode)
	alternate = mode.Mode(config.DefaultAlternateMode)
)

// fakeManager is an in-memory service manager. Start and Stop toggle the
// active flag and never touch the installed artifact.
type fakeManager struct {
	mu     sync.Mutex
	active bool
	calls  []string

	// startActivates controls whether a successful Start leaves the service active.
	startActivates bool
	stopErr        error
	startErrs      []error
	activeErr      error

	// stopEntered is closed when Stop is first called; Stop then waits
	// for stopRelease, or for ctx when blockUntilDone is set.
	stopEntered    chan struct{}
	stopRelease    chan struct{}
	blockUntilDone bool
	enteredOnce    sync.Once
}

func newFakeManager(active bool) *fakeManager {
	return &fakeManager{active: active, startActivates: true}
}

func (f *fakeManager) record(op string) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()
}

func (f *fakeManager) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeManager) Stop(ctx context.Context) error {
	f.record("stop")
	if f.stopEntered != nil {
		f.enteredOnce.Do(func() { close(f.stopEntered) })
	}
	if f.blockUntilDone {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.stopRelease != nil {
		<-f.stopRelease
	}
	if f.stopErr != nil {
		return f.stopErr
	}
	f.mu.Lock()
	f.active = false
	f.mu.Unlock()
	return nil
}

func (f *fakeManager) Start(ctx context.Context) error {
	f.record("start")
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.startErrs) > 0 {
		err := f.startErrs[0]
		f.startErrs = f.startErrs[1:]
		if err != nil {
			return err
		}
	}
	f.active = f.startActivates
	return nil
}

func (f *fakeManager) Restart(ctx context.Context) error {
	f.record("restart")
	f.mu.Lock()
	f.active = f.startActivates
	f.mu.Unlock()
	return nil
}

func (f *fakeManager) IsActive(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, f.activeErr
}

type harness struct {
	ctrl      *Controller
	manager   *fakeManager
	store     *artifact.Store
	installed string
	authored  string
	// factoryAuthored is the primary mode's authored path.
	factoryAuthored string
}

func newHarness(t *testing.T, manager *fakeManager, mutate ...func(*config.Config)) *harness {
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
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.Service.InstalledPath), 0755))

	set, err := mode.NewSet(cfg)
	require.NoError(t, err)
	detector := mode.NewDetector(set)

	store, err := artifact.NewStore(artifact.Options{
		Dir:           cfg.Artifacts.Dir,
		InstalledPath: cfg.Service.InstalledPath,
		Modes:         set,
		Classifier:    detector,
	})
	require.NoError(t, err)

	ctrl, err := New(Options{
		Modes:            set,
		Detector:         detector,
		Store:            store,
		Manager:          manager,
		OperationTimeout: time.Second,
	})
	require.NoError(t, err)

	return &harness{
		ctrl:      ctrl,
		manager:   manager,
		store:     store,
		installed: cfg.Service.InstalledPath,
		authored:  cfg.Modes[1].AuthoredPath,

		factoryAuthored: cfg.Modes[0].AuthoredPath,
	}
}

func (h *harness) writeInstalled(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(h.installed, []byte(content), 0755))
}

func (h *harness) writeAuthored(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(h.authored), 0755))
	require.NoError(t, os.WriteFile(h.authored, []byte(content), 0644))
}

func (h *harness) state() State {
	h.ctrl.stateMu.RLock()
	defer h.ctrl.stateMu.RUnlock()
	return h.ctrl.state
}

func (h *harness) readInstalled(t *testing.T) []byte {
	t.Helper()
	content, err := os.ReadFile(h.installed)
	require.NoError(t, err)
	return content
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestSwitchTo_PrimaryToAlternate(t *testing.T) {
	h := newHarness(t, newFakeManager(true))
	h.writeInstalled(t, factoryScript)
	h.writeAuthored(t, authoredScript)

	res := h.ctrl.SwitchTo(context.Background(), string(alternate))

	require.Nil(t, res.Error)
	assert.True(t, res.Succeeded)
	assert.Equal(t, primary, res.PreviousMode)
	assert.Equal(t, alternate, res.ResultingMode)
	assert.True(t, res.ServiceActive)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, []string{"stop", "start"}, h.manager.Calls())
	assert.Equal(t, authoredScript, string(h.readInstalled(t)))

	info, err := os.Stat(h.installed)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	// The factory artifact was backed up on the way out.
	backup, err := h.store.Get(primary)
	require.NoError(t, err)
	assert.Equal(t, factoryScript, string(backup.Content()))

	states := make([]State, 0, len(res.Steps))
	for _, s := range res.Steps {
		states = append(states, s.State)
	}
	assert.Equal(t, []State{StateDetecting, StateStopping, StateInstalling, StateStarting, StateVerifying}, states)
	assert.Equal(t, StateSucceeded, h.state(), "the machine rests in its terminal state")

	m := h.ctrl.Metrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.switches.WithLabelValues("alternate", "succeeded", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeMode.WithLabelValues("alternate")))
}

func TestSwitchTo_AlreadyInModeIsNoop(t *testing.T) {
	h := newHarness(t, newFakeManager(true))
	h.writeInstalled(t, factoryScript)

	res := h.ctrl.SwitchTo(context.Background(), string(primary))

	assert.True(t, res.Succeeded)
	assert.Nil(t, res.Error)
	assert.Equal(t, primary, res.ResultingMode)
	assert.Empty(t, h.manager.Calls())
}

func TestSwitchTo_SameModeButInactiveRestarts(t *testing.T) {
	h := newHarness(t, newFakeManager(false))
	h.writeInstalled(t, factoryScript)

	res := h.ctrl.SwitchTo(context.Background(), string(primary))

	require.Nil(t, res.Error)
	assert.True(t, res.Succeeded)
	assert.Equal(t, []string{"stop", "start"}, h.manager.Calls())
	assert.Equal(t, factoryScript, string(h.readInstalled(t)))
}

func TestSwitchTo_RoundTripIsByteIdentical(t *testing.T) {
	h := newHarness(t, newFakeManager(true))
	h.writeInstalled(t, factoryScript)
	ctx := context.Background()

	// No authored file: the alternate artifact is synthesized.
	first := h.ctrl.SwitchTo(ctx, string(alternate))
	require.True(t, first.Succeeded, "%v", first.Error)
	afterFirst := h.readInstalled(t)

	back := h.ctrl.SwitchTo(ctx, string(primary))
	require.True(t, back.Succeeded, "%v", back.Error)
	assert.Equal(t, factoryScript, string(h.readInstalled(t)))

	again := h.ctrl.SwitchTo(ctx, string(alternate))
	require.True(t, again.Succeeded, "%v", again.Error)
	assert.Equal(t, afterFirst, h.readInstalled(t))
}

func TestSwitchTo_ArtifactUnavailableRestartsService(t *testing.T) {
	h := newHarness(t, newFakeManager(true), func(c *config.Config) {
		c.Modes[1].Marker = ""
	})
	h.writeInstalled(t, factoryScript)
	ctx := context.Background()

	res := h.ctrl.SwitchTo(ctx, string(alternate))

	assert.False(t, res.Succeeded)
	require.NotNil(t, res.Error)
	assert.Equal(t, KindArtifactUnavailable, res.Error.Kind)
	assert.Contains(t, res.Error.Message, h.authored)
	assert.Equal(t, []string{"stop", "start"}, h.manager.Calls())
	assert.Equal(t, factoryScript, string(h.readInstalled(t)))

	st := h.ctrl.GetStatus(ctx)
	assert.True(t, st.ServiceActive)
	assert.Equal(t, primary, st.CurrentMode)
	assert.Equal(t, ConfidenceKnown, st.Confidence)
	assert.Equal(t, PhaseIdle, st.Phase)
	require.NotNil(t, st.LastResult)
	assert.Equal(t, res.RequestID, st.LastResult.RequestID)
}

func TestSwitchTo_FactoryFallsBackToAuthoredCopy(t *testing.T) {
	h := newHarness(t, newFakeManager(true))
	// First sight is the alternate build, so the factory artifact was never captured.
	h.writeInstalled(t, authoredScript)

	res := h.ctrl.SwitchTo(context.Background(), string(primary))
	require.NotNil(t, res.Error)
	assert.Equal(t, KindArtifactUnavailable, res.Error.Kind)
	assert.Contains(t, res.Error.Message, h.factoryAuthored)
	assert.Equal(t, authoredScript, string(h.readInstalled(t)))

	require.NoError(t, os.MkdirAll(filepath.Dir(h.factoryAuthored), 0755))
	require.NoError(t, os.WriteFile(h.factoryAuthored, []byte(factoryScript), 0644))

	res = h.ctrl.SwitchTo(context.Background(), string(primary))
	require.Nil(t, res.Error)
	assert.True(t, res.Succeeded)
	assert.Equal(t, alternate, res.PreviousMode)
	assert.Equal(t, primary, res.ResultingMode)
	assert.Equal(t, factoryScript, string(h.readInstalled(t)))
}

func TestSwitchTo_VerificationRequiresActiveService(t *testing.T) {
	manager := newFakeManager(true)
	manager.startActivates = false
	h := newHarness(t, manager)
	h.writeInstalled(t, factoryScript)
	h.writeAuthored(t, authoredScript)

	res := h.ctrl.SwitchTo(context.Background(), string(alternate))

	assert.False(t, res.Succeeded)
	require.NotNil(t, res.Error)
	assert.Equal(t, KindVerificationMismatch, res.Error.Kind)
	assert.Equal(t, alternate, res.ResultingMode)
	assert.False(t, res.ServiceActive)
}

func TestSwitchTo_StartFailureRunsRecovery(t *testing.T) {
	manager := newFakeManager(true)
	manager.startErrs = []error{&servicemgr.OperationError{Op: "start", Unit: "dreampi.service", Err: errors.New("exit status 1")}}
	h := newHarness(t, manager)
	h.writeInstalled(t, factoryScript)
	h.writeAuthored(t, authoredScript)

	res := h.ctrl.SwitchTo(context.Background(), string(alternate))

	assert.False(t, res.Succeeded)
	require.NotNil(t, res.Error)
	assert.Equal(t, KindServiceManagerFault, res.Error.Kind)
	assert.Equal(t, []string{"stop", "start", "start"}, manager.Calls())
	assert.True(t, res.ServiceActive)
	assert.Equal(t, StateRecovering, res.Steps[len(res.Steps)-1].State)
	assert.Equal(t, StateFailed, h.state())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.ctrl.Metrics().recoveries.WithLabelValues("ok")))
}

func TestSwitchTo_CancelDuringStartSettleStillVerifies(t *testing.T) {
	manager := newFakeManager(true)
	h := newHarness(t, manager)
	h.ctrl.opts.SettleStart = 300 * time.Millisecond
	h.writeInstalled(t, factoryScript)
	h.writeAuthored(t, authoredScript)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(100*time.Millisecond, cancel)

	res := h.ctrl.SwitchTo(ctx, string(alternate))

	require.Nil(t, res.Error)
	assert.True(t, res.Succeeded)
	assert.Equal(t, alternate, res.ResultingMode)
	assert.True(t, res.ServiceActive)
	assert.Equal(t, []string{"stop", "start"}, manager.Calls())

	starting := res.Steps[3]
	assert.Equal(t, StateStarting, starting.State)
	assert.Equal(t, outcomeOK, starting.Outcome)
	assert.Contains(t, starting.Detail, "cut short")
}

func TestSwitchTo_StopTimeoutRunsRecovery(t *testing.T) {
	manager := newFakeManager(true)
	manager.blockUntilDone = true
	h := newHarness(t, manager)
	h.ctrl.opts.OperationTimeout = 50 * time.Millisecond
	h.writeInstalled(t, factoryScript)
	h.writeAuthored(t, authoredScript)

	res := h.ctrl.SwitchTo(context.Background(), string(alternate))

	assert.False(t, res.Succeeded)
	require.NotNil(t, res.Error)
	assert.Equal(t, KindServiceManagerFault, res.Error.Kind)
	assert.Contains(t, res.Error.Message, "timed out")
	assert.Equal(t, []string{"stop", "start"}, manager.Calls())
	// Nothing was installed.
	assert.Equal(t, factoryScript, string(h.readInstalled(t)))
}

func TestSwitchTo_StopFailureIsBestEffort(t *testing.T) {
	manager := newFakeManager(false)
	manager.stopErr = &servicemgr.OperationError{Op: "stop", Unit: "dreampi.service", Err: errors.New("not loaded")}
	h := newHarness(t, manager)
	h.writeInstalled(t, factoryScript)
	h.writeAuthored(t, authoredScript)

	res := h.ctrl.SwitchTo(context.Background(), string(alternate))

	require.Nil(t, res.Error)
	assert.True(t, res.Succeeded)
	assert.Equal(t, outcomeFailed, res.Steps[1].Outcome)
}

func TestSwitchTo_InstallFaultRunsRecovery(t *testing.T) {
	manager := newFakeManager(true)
	h := newHarness(t, manager)
	// A non-empty directory where the installed file should be cannot be replaced.
	require.NoError(t, os.MkdirAll(filepath.Join(h.installed, "keep"), 0755))
	h.writeAuthored(t, authoredScript)

	res := h.ctrl.SwitchTo(context.Background(), string(alternate))

	assert.False(t, res.Succeeded)
	require.NotNil(t, res.Error)
	assert.Equal(t, KindInstallFault, res.Error.Kind)
	assert.Equal(t, mode.Unknown, res.PreviousMode)
	assert.Equal(t, []string{"stop", "start"}, manager.Calls())
	assert.True(t, res.ServiceActive)
}

func TestSwitchTo_InvalidMode(t *testing.T) {
	h := newHarness(t, newFakeManager(true))
	h.writeInstalled(t, factoryScript)

	res := h.ctrl.SwitchTo(context.Background(), "bogus")

	assert.False(t, res.Succeeded)
	require.NotNil(t, res.Error)
	assert.Equal(t, KindInvalidMode, res.Error.Kind)
	assert.Empty(t, h.manager.Calls())
	assert.Nil(t, h.ctrl.GetStatus(context.Background()).LastResult)
}

func TestSwitchTo_ConcurrentRequestIsBusy(t *testing.T) {
	manager := newFakeManager(true)
	manager.stopEntered = make(chan struct{})
	manager.stopRelease = make(chan struct{})
	h := newHarness(t, manager)
	h.writeInstalled(t, factoryScript)
	h.writeAuthored(t, authoredScript)
	ctx := context.Background()

	done := make(chan SwitchResult, 1)
	go func() { done <- h.ctrl.SwitchTo(ctx, string(alternate)) }()

	select {
	case <-manager.stopEntered:
	case <-time.After(5 * time.Second):
		t.Fatal("first switch never reached Stop")
	}

	busy := h.ctrl.SwitchTo(ctx, string(primary))
	require.NotNil(t, busy.Error)
	assert.Equal(t, KindBusy, busy.Error.Kind)

	restart := h.ctrl.RestartService(ctx)
	require.NotNil(t, restart.Error)
	assert.Equal(t, KindBusy, restart.Error.Kind)

	st := h.ctrl.GetStatus(ctx)
	assert.Equal(t, PhaseSwitching, st.Phase)
	assert.Equal(t, ConfidenceTransitional, st.Confidence)
	assert.Equal(t, StateStopping, st.SwitchState)
	assert.Equal(t, alternate, st.SwitchTarget)
	assert.Empty(t, st.CurrentMode)

	close(manager.stopRelease)
	first := <-done
	assert.True(t, first.Succeeded)

	st = h.ctrl.GetStatus(ctx)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Equal(t, alternate, st.CurrentMode)
}

func TestGetStatus(t *testing.T) {
	t.Run("missing artifact is unknown", func(t *testing.T) {
		h := newHarness(t, newFakeManager(false))
		st := h.ctrl.GetStatus(context.Background())
		assert.Equal(t, mode.Unknown, st.CurrentMode)
		assert.Equal(t, ConfidenceUnknown, st.Confidence)
		assert.False(t, st.ServiceActive)
		assert.Empty(t, st.KnownArtifacts)
		assert.Len(t, st.Sources, 2)
	})

	t.Run("query errors are reported", func(t *testing.T) {
		manager := newFakeManager(true)
		manager.activeErr = errors.New("dbus unavailable")
		h := newHarness(t, manager)
		h.writeInstalled(t, factoryScript)

		st := h.ctrl.GetStatus(context.Background())
		assert.Equal(t, primary, st.CurrentMode)
		assert.False(t, st.ServiceActive)
		assert.Equal(t, "dbus unavailable", st.ServiceError)
	})

	t.Run("known artifacts", func(t *testing.T) {
		h := newHarness(t, newFakeManager(true))
		h.writeInstalled(t, factoryScript)
		h.writeAuthored(t, authoredScript)

		st := h.ctrl.GetStatus(context.Background())
		assert.Equal(t, []mode.Mode{alternate}, st.KnownArtifacts)
	})
}

func TestRestartService(t *testing.T) {
	h := newHarness(t, newFakeManager(false))
	h.writeInstalled(t, factoryScript)

	res := h.ctrl.RestartService(context.Background())
	assert.Nil(t, res.Error)
	assert.True(t, res.ServiceActive)
	assert.Equal(t, []string{"restart"}, h.manager.Calls())

	manager := newFakeManager(false)
	manager.startActivates = false
	h = newHarness(t, manager)
	res = h.ctrl.RestartService(context.Background())
	require.NotNil(t, res.Error)
	assert.Equal(t, KindServiceManagerFault, res.Error.Kind)
}

func TestEnsureArtifacts(t *testing.T) {
	h := newHarness(t, newFakeManager(true))
	h.writeInstalled(t, factoryScript)
	ctx := context.Background()

	res := h.ctrl.EnsureArtifacts(ctx)
	assert.True(t, res.OK, "%v", res.Errors)
	assert.Equal(t, []mode.Mode{primary, alternate}, res.ModesAvailable)
	assert.Empty(t, h.manager.Calls())
	assert.Equal(t, factoryScript, string(h.readInstalled(t)))

	synthesized, err := h.store.Get(alternate)
	require.NoError(t, err)
	assert.Equal(t, artifact.OriginSynthesized, synthesized.Origin)

	again := h.ctrl.EnsureArtifacts(ctx)
	assert.Equal(t, res, again)
}

func TestEnsureArtifacts_WrongInstalledMode(t *testing.T) {
	h := newHarness(t, newFakeManager(true))
	h.writeInstalled(t, authoredScript)

	res := h.ctrl.EnsureArtifacts(context.Background())
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Errors)
	assert.NotContains(t, res.ModesAvailable, primary)
}

func TestNoteExternalChange(t *testing.T) {
	h := newHarness(t, newFakeManager(true))
	h.writeInstalled(t, factoryScript)

	h.ctrl.NoteExternalChange(h.installed)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.ctrl.Metrics().externalChanges))
}

func TestNoteExternalChange_IgnoresLateSwitchEvents(t *testing.T) {
	h := newHarness(t, newFakeManager(true))
	h.writeInstalled(t, factoryScript)
	h.writeAuthored(t, authoredScript)
	externalChanges := func() float64 { return testutil.ToFloat64(h.ctrl.Metrics().externalChanges) }

	res := h.ctrl.SwitchTo(context.Background(), string(alternate))
	require.True(t, res.Succeeded, "%v", res.Error)

	// The debounced event for the switch's own install arrives after it ended.
	h.ctrl.NoteExternalChange(h.installed)
	assert.Zero(t, externalChanges())

	h.writeInstalled(t, factoryScript)
	h.ctrl.NoteExternalChange(h.installed)
	assert.Equal(t, 1.0, externalChanges())

	// A repeated notification for the same content is not a new change.
	h.ctrl.NoteExternalChange(h.installed)
	assert.Equal(t, 1.0, externalChanges())
}

func TestNoteAuthoredChange(t *testing.T) {
	h := newHarness(t, newFakeManager(true))
	authoredChanges := func(m mode.Mode) float64 {
		return testutil.ToFloat64(h.ctrl.Metrics().authoredChanges.WithLabelValues(string(m)))
	}

	h.writeAuthored(t, authoredScript)
	h.ctrl.NoteAuthoredChange(alternate)
	assert.Equal(t, 1.0, authoredChanges(alternate))

	require.NoError(t, os.Remove(h.authored))
	h.ctrl.NoteAuthoredChange(alternate)
	assert.Equal(t, 2.0, authoredChanges(alternate))

	h.ctrl.NoteAuthoredChange("bogus")
	assert.Equal(t, 1, testutil.CollectAndCount(h.ctrl.Metrics().authoredChanges))
	assert.Zero(t, testutil.ToFloat64(h.ctrl.Metrics().externalChanges))

	// New content is what the next switch installs.
	h.writeInstalled(t, factoryScript)
	h.writeAuthored(t, authoredScript+"# v2\n")
	res := h.ctrl.SwitchTo(context.Background(), string(alternate))
	require.True(t, res.Succeeded, "%v", res.Error)
	assert.Equal(t, authoredScript+"# v2\n", string(h.readInstalled(t)))
}

func TestListModes(t *testing.T) {
	h := newHarness(t, newFakeManager(true))

	modes := h.ctrl.ListModes()
	require.Len(t, modes, 2)
	assert.Equal(t, primary, modes[0].Name)
	assert.True(t, modes[0].Factory)
	assert.Empty(t, modes[0].Tokens)
	assert.Equal(t, alternate, modes[1].Name)
	assert.Equal(t, h.authored, modes[1].AuthoredPath)
	assert.Contains(t, modes[1].Tokens, "dcnet")
}
