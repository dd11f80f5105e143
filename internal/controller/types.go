package controller

import (
	"time"

	"modeswitch/internal/artifact"
	"modeswitch/internal/mode"
)

// State is a state of the switch state machine.
type State string

const (
	StateIdle       State = "idle"
	StateDetecting  State = "detecting"
	StateStopping   State = "stopping"
	StateInstalling State = "installing"
	StateStarting   State = "starting"
	StateVerifying  State = "verifying"
	StateRecovering State = "recovering"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Phase tells status readers whether a switch is in flight.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseSwitching Phase = "switching"
)

// Confidence qualifies the reported current mode.
type Confidence string

const (
	ConfidenceKnown        Confidence = "known"
	ConfidenceUnknown      Confidence = "unknown"
	ConfidenceTransitional Confidence = "transitional"
)

// FailureKind classifies why an operation failed.
type FailureKind string

const (
	KindArtifactUnavailable  FailureKind = "ArtifactUnavailable"
	KindServiceManagerFault  FailureKind = "ServiceManagerFault"
	KindVerificationMismatch FailureKind = "VerificationMismatch"
	KindUnknown              FailureKind = "Unknown"
	KindInstallFault         FailureKind = "InstallFault"
	KindBusy                 FailureKind = "Busy"
	KindInvalidMode          FailureKind = "InvalidMode"
)

// Failure is the structured error carried in results.
type Failure struct {
	Kind    FailureKind `json:"kind" yaml:"kind"`
	Message string      `json:"message" yaml:"message"`
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

// Step records the outcome of one state of a switch.
type Step struct {
	State    State         `json:"state" yaml:"state"`
	Outcome  string        `json:"outcome" yaml:"outcome"`
	Detail   string        `json:"detail,omitempty" yaml:"detail,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

const (
	outcomeOK      = "ok"
	outcomeFailed  = "failed"
	outcomeSkipped = "skipped"
)

// SwitchResult is produced once per switch request.
type SwitchResult struct {
	RequestID     string        `json:"requestId" yaml:"requestId"`
	RequestedMode mode.Mode     `json:"requestedMode" yaml:"requestedMode"`
	PreviousMode  mode.Mode     `json:"previousMode,omitempty" yaml:"previousMode,omitempty"`
	ResultingMode mode.Mode     `json:"resultingMode,omitempty" yaml:"resultingMode,omitempty"`
	ServiceActive bool          `json:"serviceActive" yaml:"serviceActive"`
	Succeeded     bool          `json:"succeeded" yaml:"succeeded"`
	Error         *Failure      `json:"error,omitempty" yaml:"error,omitempty"`
	Steps         []Step        `json:"steps,omitempty" yaml:"steps,omitempty"`
	StartedAt     time.Time     `json:"startedAt" yaml:"startedAt"`
	Duration      time.Duration `json:"duration" yaml:"duration"`
}

// Status describes the observed state of the managed service.
type Status struct {
	CurrentMode    mode.Mode               `json:"currentMode,omitempty" yaml:"currentMode,omitempty"`
	Confidence     Confidence              `json:"detectorConfidence" yaml:"detectorConfidence"`
	ServiceActive  bool                    `json:"serviceActive" yaml:"serviceActive"`
	ServiceError   string                  `json:"serviceError,omitempty" yaml:"serviceError,omitempty"`
	KnownArtifacts []mode.Mode             `json:"knownArtifacts" yaml:"knownArtifacts"`
	Phase          Phase                   `json:"phase" yaml:"phase"`
	SwitchState    State                   `json:"switchState,omitempty" yaml:"switchState,omitempty"`
	SwitchTarget   mode.Mode               `json:"switchTarget,omitempty" yaml:"switchTarget,omitempty"`
	Sources        []artifact.SourceReport `json:"sources,omitempty" yaml:"sources,omitempty"`
	Manager        string                  `json:"manager,omitempty" yaml:"manager,omitempty"`
	LastResult     *SwitchResult           `json:"lastResult,omitempty" yaml:"lastResult,omitempty"`
}

// RestartResult is returned by RestartService.
type RestartResult struct {
	ServiceActive bool     `json:"serviceActive" yaml:"serviceActive"`
	Error         *Failure `json:"error,omitempty" yaml:"error,omitempty"`
}

// SetupResult is returned by EnsureArtifacts. Error is set only when setup
// could not run at all.
type SetupResult struct {
	OK             bool        `json:"ok" yaml:"ok"`
	ModesAvailable []mode.Mode `json:"modesAvailable" yaml:"modesAvailable"`
	Errors         []string    `json:"errors,omitempty" yaml:"errors,omitempty"`
	Error          *Failure    `json:"error,omitempty" yaml:"error,omitempty"`
}

// ModeInfo describes a configured mode.
type ModeInfo struct {
	Name         mode.Mode `json:"name" yaml:"name"`
	Factory      bool      `json:"factory" yaml:"factory"`
	Tokens       []string  `json:"tokens,omitempty" yaml:"tokens,omitempty"`
	AuthoredPath string    `json:"authoredPath,omitempty" yaml:"authoredPath,omitempty"`
	Marker       string    `json:"marker,omitempty" yaml:"marker,omitempty"`
}
