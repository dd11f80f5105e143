package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"modeswitch/internal/artifact"
	"modeswitch/internal/mode"
	"modeswitch/internal/servicemgr"
	"modeswitch/pkg/logging"
)

// switchRun carries the per-request state of one switch.
type switchRun struct {
	c      *Controller
	ctx    context.Context
	target mode.Mode
	res    *SwitchResult
}

// SwitchTo moves the managed service to the named mode. It always returns a
// result; failures are described by result.Error.
func (c *Controller) SwitchTo(ctx context.Context, name string) SwitchResult {
	res := SwitchResult{
		RequestID:     uuid.NewString(),
		RequestedMode: mode.Mode(name),
		StartedAt:     time.Now(),
	}

	target, err := c.opts.Modes.Parse(name)
	if err != nil {
		res.Error = newFailure(KindInvalidMode, "%v", err)
		c.metrics.switchFinished(res, false)
		return res
	}

	if !c.opMu.TryLock() {
		res.Error = newFailure(KindBusy, "another operation is in progress, retry when it completes")
		c.metrics.switchFinished(res, false)
		logging.Warn("Controller", "Rejected switch to %s (request %s): busy", target, res.RequestID)
		return res
	}
	defer c.opMu.Unlock()

	logging.Info("Controller", "Switch to %s requested (request %s)", target, res.RequestID)

	c.beginSwitch(target)
	run := &switchRun{c: c, ctx: ctx, target: target, res: &res}
	ranProtocol := run.execute()

	res.Duration = time.Since(res.StartedAt)
	c.endSwitch(res)
	c.metrics.switchFinished(res, ranProtocol)

	if res.Succeeded {
		logging.Info("Controller", "Switch to %s succeeded in %s", target, res.Duration.Round(time.Millisecond))
	} else {
		logging.Error("Controller", res.Error, "Switch to %s failed: resulting mode %s, service active %t",
			target, res.ResultingMode, res.ServiceActive)
	}
	return res
}

// step records a finished state.
func (r *switchRun) step(state State, started time.Time, outcome, detail string) {
	r.res.Steps = append(r.res.Steps, Step{
		State:    state,
		Outcome:  outcome,
		Detail:   detail,
		Duration: time.Since(started),
	})
}

// execute runs the protocol. It reports whether the service was touched.
func (r *switchRun) execute() bool {
	c := r.c

	// Detecting
	c.setState(StateDetecting)
	started := time.Now()
	current := c.detect()
	r.res.PreviousMode = current
	active, activeErr := c.isActive(r.ctx)

	if current == r.target && active {
		r.step(StateDetecting, started, outcomeOK, fmt.Sprintf("already in %s and active", current))
		r.res.ResultingMode = current
		r.res.ServiceActive = true
		r.res.Succeeded = true
		return false
	}

	detail := fmt.Sprintf("current mode %s, active %t", current, active)
	if activeErr != nil {
		detail += fmt.Sprintf(" (query failed: %v)", activeErr)
	}
	if current == c.opts.Modes.Factory() {
		// First sight of the factory artifact: keep it as the backup.
		if _, err := c.opts.Store.Capture(current); err != nil {
			logging.Warn("Controller", "Could not back up the %s artifact: %v", current, err)
			detail += fmt.Sprintf("; backup failed: %v", err)
		}
	}
	r.step(StateDetecting, started, outcomeOK, detail)

	// Stopping
	c.setState(StateStopping)
	started = time.Now()
	if err := c.callManager(r.ctx, "stop", c.opts.Manager.Stop); err != nil {
		r.step(StateStopping, started, outcomeFailed, err.Error())
		if isTimeout(r.ctx, err) {
			r.attemptRecovery(classifyFault(err))
			return true
		}
		// The service may already be stopped, carry on.
	} else {
		r.step(StateStopping, started, outcomeOK, "")
	}
	if err := settle(r.ctx, c.opts.SettleStop); err != nil {
		r.attemptRecovery(classifyFault(err))
		return true
	}

	// Installing
	c.setState(StateInstalling)
	started = time.Now()
	var unavailable *Failure
	a, err := r.resolve()
	if err != nil {
		unavailable = newFailure(KindArtifactUnavailable, "no artifact for %s: %v", r.target, err)
		r.step(StateInstalling, started, outcomeSkipped, unavailable.Message)
		logging.Error("Controller", err, "No artifact available for %s, restarting with the installed artifact", r.target)
	} else if err := c.opts.Store.Install(a); err != nil {
		r.step(StateInstalling, started, outcomeFailed, err.Error())
		f := classifyFault(err)
		if f.Kind == KindUnknown {
			f.Kind = KindInstallFault
		}
		r.attemptRecovery(f)
		return true
	} else {
		r.step(StateInstalling, started, outcomeOK, fmt.Sprintf("%s artifact (sha256 %.12s)", a.Origin, a.Digest))
	}

	// Starting
	c.setState(StateStarting)
	started = time.Now()
	if err := c.callManager(r.ctx, "start", c.opts.Manager.Start); err != nil {
		r.step(StateStarting, started, outcomeFailed, err.Error())
		r.attemptRecovery(withPending(classifyFault(err), unavailable))
		return true
	}
	detail = ""
	if err := settle(r.ctx, c.opts.SettleStart); err != nil {
		// The service is already starting; a second Start would only race it.
		logging.Warn("Controller", "Start settle for %s cut short: %v", r.target, err)
		detail = fmt.Sprintf("settle cut short: %v", err)
		r.ctx = context.WithoutCancel(r.ctx)
	}
	r.step(StateStarting, started, outcomeOK, detail)

	// Verifying
	c.setState(StateVerifying)
	started = time.Now()
	r.observe(r.ctx)

	switch {
	case unavailable != nil:
		r.res.Error = unavailable
	case r.res.ResultingMode == mode.Unknown:
		r.res.Error = newFailure(KindUnknown, "requested %s, installed artifact could not be classified, service active %t",
			r.target, r.res.ServiceActive)
	case r.res.ResultingMode != r.target || !r.res.ServiceActive:
		r.res.Error = newFailure(KindVerificationMismatch, "requested %s, observed %s, service active %t",
			r.target, r.res.ResultingMode, r.res.ServiceActive)
	default:
		r.res.Succeeded = true
	}

	outcome := outcomeOK
	if !r.res.Succeeded {
		outcome = outcomeFailed
	}
	r.step(StateVerifying, started, outcome, fmt.Sprintf("mode %s, active %t", r.res.ResultingMode, r.res.ServiceActive))
	return true
}

// resolve finds the target artifact, synthesizing it from the factory
// artifact when nothing else is available.
func (r *switchRun) resolve() (artifact.Artifact, error) {
	store := r.c.opts.Store
	a, err := store.Get(r.target)
	if err == nil || !errors.Is(err, artifact.ErrNotFound) {
		return a, err
	}

	factory := r.c.opts.Modes.Factory()
	if r.target == factory {
		return artifact.Artifact{}, err
	}

	transform, terr := store.SynthesisTransform(r.target)
	if terr != nil {
		return artifact.Artifact{}, fmt.Errorf("%v; %w", err, terr)
	}
	a, serr := store.Synthesize(factory, r.target, transform)
	if serr != nil {
		return artifact.Artifact{}, fmt.Errorf("%v; %w", err, serr)
	}
	return a, nil
}

// observe records the resulting mode and service activity.
func (r *switchRun) observe(ctx context.Context) {
	r.res.ResultingMode = r.c.detect()
	active, err := r.c.isActive(ctx)
	r.res.ServiceActive = active && err == nil
}

// attemptRecovery makes a final attempt to start the service, then records fault
// as the result error. It runs on a context detached from the request so a
// cancelled caller cannot leave the service stopped.
func (r *switchRun) attemptRecovery(fault *Failure) {
	c := r.c
	c.setState(StateRecovering)
	started := time.Now()
	logging.Warn("Controller", "Switch to %s hit %s, attempting recovery start", r.target, fault.Kind)

	ctx := context.WithoutCancel(r.ctx)
	err := c.callManager(ctx, "start", c.opts.Manager.Start)
	c.metrics.recovery(err)
	if err == nil {
		// Give the service the usual time to come up before sampling it.
		_ = settle(ctx, c.opts.SettleStart)
		r.step(StateRecovering, started, outcomeOK, "")
	} else {
		r.step(StateRecovering, started, outcomeFailed, err.Error())
		fault.Message += fmt.Sprintf("; recovery start failed: %v", err)
	}

	r.observe(ctx)
	r.res.Error = fault
	r.res.Succeeded = false
}

func withPending(f, pending *Failure) *Failure {
	if pending != nil {
		f.Message += fmt.Sprintf(" (earlier: %s)", pending.Error())
	}
	return f
}

func isTimeout(ctx context.Context, err error) bool {
	return errors.Is(err, servicemgr.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		ctx.Err() != nil
}
