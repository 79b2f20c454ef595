package engine

import "github.com/deepnoodle-ai/effectvm/ids"

// StepMode controls when OnStep callbacks fire, mirrored from the
// teacher VM's own observer knobs.
type StepMode uint8

const (
	// StepAll calls OnStep for every transition.
	StepAll StepMode = iota
	// StepNone never calls OnStep.
	StepNone
	// StepSampled calls OnStep every N transitions.
	StepSampled
)

// ObserverConfig specifies what a given Observer wants to receive.
type ObserverConfig struct {
	StepMode       StepMode
	SampleInterval int
	ObserveDispatch bool
	ObserveHostCall bool
}

// NewObserverConfig builds a config with safe defaults.
func NewObserverConfig(mode StepMode) ObserverConfig {
	return ObserverConfig{
		StepMode:        mode,
		SampleInterval:  100,
		ObserveDispatch: true,
		ObserveHostCall: true,
	}
}

func normalizeConfig(cfg ObserverConfig) ObserverConfig {
	if cfg.StepMode == StepSampled && cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 1
	}
	return cfg
}

// TransitionEvent describes one internal step-machine transition, for
// tracing/debugging observers (not to be confused with Result, which is
// what Machine.Step returns to its driver).
type TransitionEvent struct {
	Mode      Mode
	SegmentID ids.SegmentID
}

// DispatchEvent describes one effect dispatch being started.
type DispatchEvent struct {
	DispatchID ids.DispatchID
	Marker     ids.Marker
}

// HostCallEvent describes one host call being issued by Machine.Step. The
// program start returned by Start/StartWithHandlers is not reported.
type HostCallEvent struct {
	Kind HostCallKind
}

// Observer lets callers trace machine execution without modifying the
// engine itself (spec.md §6's "externally observable" requirement).
// Implementations can embed NoOpObserver for the methods they don't
// need. Returning false from any method halts execution at the next
// opportunity, surfaced by Machine.Step as a Result with ResultError.
type Observer interface {
	Config() ObserverConfig
	OnStep(TransitionEvent) bool
	OnDispatch(DispatchEvent) bool
	OnHostCall(HostCallEvent) bool
}

// NoOpObserver implements Observer with no-ops and StepAll config.
type NoOpObserver struct{}

func (NoOpObserver) Config() ObserverConfig        { return NewObserverConfig(StepAll) }
func (NoOpObserver) OnStep(TransitionEvent) bool    { return true }
func (NoOpObserver) OnDispatch(DispatchEvent) bool  { return true }
func (NoOpObserver) OnHostCall(HostCallEvent) bool  { return true }

var _ Observer = NoOpObserver{}
