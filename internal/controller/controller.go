package controller

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"modeswitch/internal/artifact"
	"modeswitch/internal/mode"
	"modeswitch/internal/servicemgr"
	"modeswitch/pkg/logging"
)

// Options configures a Controller.
type Options struct {
	Modes    *mode.Set
	Detector *mode.Detector
	Store    *artifact.Store
	Manager  servicemgr.Manager

	// SettleStop is waited after stopping the service so it releases the artifact.
	SettleStop time.Duration
	// SettleStart is waited after starting the service before verifying.
	SettleStart time.Duration
	// OperationTimeout bounds every service manager call.
	OperationTimeout time.Duration

	// Metrics may be nil, in which case a private registry is used.
	Metrics *Metrics
}

// Controller drives mode switches of a single managed service.
type Controller struct {
	opts    Options
	metrics *Metrics

	// opMu serializes switches, restarts and artifact setup.
	opMu sync.Mutex

	stateMu    sync.RWMutex
	state      State
	target     mode.Mode
	generation uint64
	lastResult *SwitchResult
	// installedDigest is the installed content as of the last switch or
	// external change.
	installedDigest string

	probes singleflight.Group
}

// New creates a Controller.
func New(opts Options) (*Controller, error) {
	switch {
	case opts.Modes == nil:
		return nil, errors.New("controller requires a mode set")
	case opts.Detector == nil:
		return nil, errors.New("controller requires a detector")
	case opts.Store == nil:
		return nil, errors.New("controller requires an artifact store")
	case opts.Manager == nil:
		return nil, errors.New("controller requires a service manager")
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = 30 * time.Second
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics("")
	}
	return &Controller{
		opts:    opts,
		metrics: metrics,
		state:   StateIdle,
	}, nil
}

// Metrics returns the controller metrics.
func (c *Controller) Metrics() *Metrics {
	return c.metrics
}

// Modes returns the configured mode set.
func (c *Controller) Modes() *mode.Set {
	return c.opts.Modes
}

// ListModes describes the configured modes in order.
func (c *Controller) ListModes() []ModeInfo {
	defs := c.opts.Modes.Definitions()
	out := make([]ModeInfo, 0, len(defs))
	for _, d := range defs {
		out = append(out, ModeInfo{
			Name:         d.Mode,
			Factory:      d.Factory,
			Tokens:       d.Tokens,
			AuthoredPath: d.AuthoredPath,
			Marker:       d.Marker,
		})
	}
	return out
}

// GetStatus reports the current mode and service activity. It never waits
// for an in-flight switch.
func (c *Controller) GetStatus(ctx context.Context) Status {
	c.stateMu.RLock()
	genBefore := c.generation
	state, target := c.state, c.target
	last := c.lastResult
	c.stateMu.RUnlock()

	current := c.detect()
	active, activeErr := c.sharedIsActive(ctx)

	c.stateMu.RLock()
	genAfter := c.generation
	c.stateMu.RUnlock()

	st := Status{
		ServiceActive:  active,
		KnownArtifacts: c.opts.Store.Known(),
		Phase:          PhaseIdle,
		Sources:        c.opts.Store.Sources(),
		Manager:        describe(c.opts.Manager),
	}
	if st.KnownArtifacts == nil {
		st.KnownArtifacts = []mode.Mode{}
	}
	if last != nil {
		copied := *last
		st.LastResult = &copied
	}
	if activeErr != nil {
		st.ServiceError = activeErr.Error()
	}

	switch {
	case isRunning(state) || genBefore != genAfter:
		// The installed artifact may be mid-replacement.
		st.Phase = PhaseSwitching
		st.Confidence = ConfidenceTransitional
		st.SwitchState = state
		st.SwitchTarget = target
	case current == mode.Unknown:
		st.Confidence = ConfidenceUnknown
		st.CurrentMode = mode.Unknown
	default:
		st.Confidence = ConfidenceKnown
		st.CurrentMode = current
	}
	return st
}

// NoteExternalChange is called when the installed artifact changes on disk.
// Changes made by a running switch are expected and ignored, as are late
// notifications whose content matches what the last switch installed.
func (c *Controller) NoteExternalChange(path string) {
	digest := fileDigest(path)

	c.stateMu.Lock()
	running := isRunning(c.state)
	own := digest != "" && digest == c.installedDigest
	if !running {
		c.installedDigest = digest
	}
	c.stateMu.Unlock()

	if running {
		return
	}
	if own {
		logging.Debug("Controller", "Ignoring change to %s: content unchanged", path)
		return
	}

	c.metrics.externalChange()
	logging.Warn("Controller", "Installed artifact %s changed outside of a switch, now detected as %s", path, c.detect())
}

// NoteAuthoredChange is called when the authored artifact of m changes on
// disk. The next switch to m picks up the new content.
func (c *Controller) NoteAuthoredChange(m mode.Mode) {
	def, ok := c.opts.Modes.Lookup(m)
	if !ok {
		return
	}
	c.metrics.authoredChange(m)

	if _, err := os.Stat(def.AuthoredPath); err != nil {
		logging.Warn("Controller", "Authored artifact for %s at %s is gone: %v", m, def.AuthoredPath, err)
		return
	}
	logging.Info("Controller", "Authored artifact for %s at %s changed", m, def.AuthoredPath)
}

func isRunning(s State) bool {
	switch s {
	case StateIdle, StateSucceeded, StateFailed, "":
		return false
	default:
		return true
	}
}

func (c *Controller) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
	c.metrics.transition(s)
	logging.Debug("Controller", "State -> %s", s)
}

func (c *Controller) beginSwitch(target mode.Mode) {
	c.stateMu.Lock()
	c.generation++
	c.target = target
	c.stateMu.Unlock()
	c.metrics.setInProgress(true)
}

func (c *Controller) endSwitch(res SwitchResult) {
	final := StateFailed
	if res.Succeeded {
		final = StateSucceeded
	}
	digest := fileDigest(c.opts.Store.InstalledPath())

	c.stateMu.Lock()
	c.generation++
	c.state = final
	c.installedDigest = digest
	c.target = ""
	copied := res
	c.lastResult = &copied
	c.stateMu.Unlock()
	c.metrics.transition(final)
	c.metrics.setInProgress(false)
}

// detect classifies the installed artifact.
func (c *Controller) detect() mode.Mode {
	m := c.opts.Detector.Detect(c.opts.Store.InstalledPath())
	c.metrics.detected(c.opts.Modes.Names(), string(m))
	return m
}

// sharedIsActive deduplicates concurrent activity probes from status readers.
func (c *Controller) sharedIsActive(ctx context.Context) (bool, error) {
	v, err, _ := c.probes.Do("is-active", func() (interface{}, error) {
		return c.isActive(context.WithoutCancel(ctx))
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (c *Controller) isActive(ctx context.Context) (bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, c.opts.OperationTimeout)
	defer cancel()

	start := time.Now()
	active, err := c.opts.Manager.IsActive(opCtx)
	c.metrics.serviceOp("is-active", time.Since(start), err)
	if err != nil {
		logging.Warn("Controller", "Cannot query service activity: %v", err)
	}
	return active, err
}

// callManager runs one bounded service manager operation.
func (c *Controller) callManager(ctx context.Context, op string, fn func(context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, c.opts.OperationTimeout)
	defer cancel()

	start := time.Now()
	err := fn(opCtx)
	c.metrics.serviceOp(op, time.Since(start), err)
	if err != nil {
		logging.Error("Controller", err, "Service %s failed", op)
	} else {
		logging.Info("Controller", "Service %s completed in %s", op, time.Since(start).Round(time.Millisecond))
	}
	return err
}

// settle waits d unless ctx ends first.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fileDigest returns the digest of the file at path, or "" if it cannot be read.
func fileDigest(path string) string {
	content, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return artifact.Digest(content)
}

func describe(m servicemgr.Manager) string {
	if d, ok := m.(servicemgr.Describer); ok {
		return d.Describe()
	}
	return ""
}
