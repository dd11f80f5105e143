package controller

import (
	"context"
	"errors"
	"fmt"

	"modeswitch/internal/artifact"
	"modeswitch/internal/mode"
	"modeswitch/pkg/logging"
)

// RestartService restarts the managed service without changing its mode.
func (c *Controller) RestartService(ctx context.Context) RestartResult {
	if !c.opMu.TryLock() {
		return RestartResult{Error: newFailure(KindBusy, "another operation is in progress, retry when it completes")}
	}
	defer c.opMu.Unlock()

	logging.Info("Controller", "Restarting service")
	var res RestartResult
	if err := c.callManager(ctx, "restart", c.opts.Manager.Restart); err != nil {
		res.Error = classifyFault(err)
	} else if err := settle(ctx, c.opts.SettleStart); err != nil {
		res.Error = classifyFault(err)
	}

	active, err := c.isActive(context.WithoutCancel(ctx))
	res.ServiceActive = active && err == nil
	if res.Error == nil && !res.ServiceActive {
		res.Error = newFailure(KindServiceManagerFault, "service is not active after restart")
	}
	return res
}

// EnsureArtifacts makes an artifact available for every configured mode
// where possible. It captures the factory artifact when the installed one
// classifies as factory and synthesizes the remaining modes from it. The
// installed artifact is never modified.
func (c *Controller) EnsureArtifacts(ctx context.Context) SetupResult {
	if !c.opMu.TryLock() {
		return SetupResult{
			ModesAvailable: []mode.Mode{},
			Error:          newFailure(KindBusy, "another operation is in progress, retry when it completes"),
		}
	}
	defer c.opMu.Unlock()

	store := c.opts.Store
	factory := c.opts.Modes.Factory()
	res := SetupResult{ModesAvailable: []mode.Mode{}}

	if _, err := store.Get(factory); err != nil {
		if current := c.detect(); current == factory {
			if _, err := store.Capture(factory); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("capture %s: %v", factory, err))
			}
		} else {
			res.Errors = append(res.Errors, fmt.Sprintf("capture %s: installed artifact is detected as %s", factory, current))
		}
	}

	for _, def := range c.opts.Modes.Definitions() {
		if ctx.Err() != nil {
			res.Errors = append(res.Errors, ctx.Err().Error())
			break
		}
		_, err := store.Get(def.Mode)
		if err == nil {
			res.ModesAvailable = append(res.ModesAvailable, def.Mode)
			continue
		}
		if def.Factory || !errors.Is(err, artifact.ErrNotFound) {
			res.Errors = append(res.Errors, err.Error())
			continue
		}

		transform, err := store.SynthesisTransform(def.Mode)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("synthesize %s: %v", def.Mode, err))
			continue
		}
		if _, err := store.Synthesize(factory, def.Mode, transform); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("synthesize %s: %v", def.Mode, err))
			continue
		}
		res.ModesAvailable = append(res.ModesAvailable, def.Mode)
	}

	res.OK = len(res.ModesAvailable) == len(c.opts.Modes.Modes())
	if res.OK {
		logging.Info("Controller", "Artifacts available for all modes: %v", res.ModesAvailable)
	} else {
		logging.Warn("Controller", "Artifact setup incomplete: %v", res.Errors)
	}
	return res
}
