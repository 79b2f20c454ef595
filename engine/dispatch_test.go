package engine

import (
	"testing"

	"github.com/deepnoodle-ai/effectvm/handler"
	"github.com/deepnoodle-ai/effectvm/ids"
	"github.com/deepnoodle-ai/effectvm/segment"
	"github.com/deepnoodle-ai/effectvm/value"
)

// stubEffect is a user-defined effect for tests that don't care about the
// standard library effects.
type stubEffect struct{ name string }

func (stubEffect) EffectType() value.EffectType { return value.EffectHost }

// constInstance is a HandlerProgramInstance whose only step has already
// been produced by the factory; it exists purely so NewInstance's
// signature is satisfied without a real coroutine.
type constInstance struct{}

func (constInstance) Resume(value.Value) segment.ProgramStep {
	return segment.StepThrow(errUnexpectedResume)
}
func (constInstance) Throw(err error) segment.ProgramStep { return segment.StepThrow(err) }

var errUnexpectedResume = &stubErr{"constInstance: unexpected Resume"}

type stubErr struct{ msg string }

func (e *stubErr) Error() string { return e.msg }

func newTestMachine() *Machine {
	return New(Config{Store: handler.NewStore()})
}

// TestDelegateRoutesCallerToDelegatingHandlerSegment exercises the review
// fix to runDispatch's NativeProgramHandler branch: when an inner handler
// Delegates to an outer one, the outer handler's execution segment must
// have Caller set to the inner handler's own (delegating) segment, not to
// wherever the inner handler's prompt was installed — so that once the
// outer handler finishes, control flows back into the inner handler
// rather than into the program's dormant segment.
func TestDelegateRoutesCallerToDelegatingHandlerSegment(t *testing.T) {
	m := newTestMachine()

	progSeg := &segment.Segment{Kind: segment.Normal}
	progSegID := m.arena.Alloc(progSeg)

	innerMarker := m.counters.NextMarker()
	outerMarker := m.counters.NextMarker()
	scopeChain := []ids.Marker{innerMarker, outerMarker}
	progSeg.ScopeChain = scopeChain

	eff := stubEffect{name: "x"}

	innerHandler := &handler.NativeProgramHandler{
		Matches: func(e value.Effect) bool { return e == eff },
		NewInstance: func(e value.Effect, k *segment.Continuation, store *handler.Store) (segment.HandlerProgramInstance, segment.ProgramStep) {
			return constInstance{}, segment.StepYield(value.AsPrimitive(value.Delegate{}))
		},
	}
	outerReturnValue := value.NewInt(7)
	outerHandler := &handler.NativeProgramHandler{
		Matches: func(e value.Effect) bool { return e == eff },
		NewInstance: func(e value.Effect, k *segment.Continuation, store *handler.Store) (segment.HandlerProgramInstance, segment.ProgramStep) {
			return constInstance{}, segment.StepReturn(outerReturnValue)
		},
	}
	m.registry.Install(innerMarker, innerHandler, 0)
	m.registry.Install(outerMarker, outerHandler, 0)

	contID := m.counters.NextContID()
	dispatchID := m.counters.NextDispatchID()
	kUser := segment.Capture(progSeg, &dispatchID, contID)

	res := m.runDispatch(eff, kUser, scopeChain, progSeg.ID)
	if res.Kind != ResultContinue {
		t.Fatalf("initial runDispatch = %+v, want ResultContinue", res)
	}
	innerHandlerSegID := m.cur
	if innerHandlerSegID == progSegID {
		t.Fatalf("inner handler dispatch did not allocate its own segment")
	}

	// The program's segment stays put; the inner handler is now current,
	// in ModeHandleYield holding the Delegate primitive it yielded.
	if m.mode != ModeHandleYield {
		t.Fatalf("mode after inner dispatch = %v, want ModeHandleYield", m.mode)
	}

	// Drive the Delegate primitive: this must install the outer handler's
	// execution segment with Caller == innerHandlerSegID.
	res = m.Step()
	if res.Kind != ResultContinue {
		t.Fatalf("Step() on Delegate = %+v, want ResultContinue", res)
	}
	outerHandlerSegID := m.cur
	if outerHandlerSegID == innerHandlerSegID {
		t.Fatalf("Delegate did not allocate a distinct segment for the outer handler")
	}
	outerSeg := m.arena.Get(outerHandlerSegID)
	if outerSeg == nil {
		t.Fatalf("outer handler segment missing from arena")
	}
	if outerSeg.Caller == nil || *outerSeg.Caller != innerHandlerSegID {
		t.Fatalf("outer handler segment Caller = %v, want &%v (the delegating inner handler segment)", outerSeg.Caller, innerHandlerSegID)
	}

	// The outer handler's NewInstance already returned StepReturn, so the
	// machine is sitting in ModeReturn with no frames left in outerSeg;
	// advancing must fold control back to Caller == innerHandlerSegID,
	// not back to the program's own segment.
	if m.mode != ModeReturn {
		t.Fatalf("mode after outer handler's immediate return = %v, want ModeReturn", m.mode)
	}
	res = m.Step()
	if res.Kind != ResultContinue {
		t.Fatalf("Step() folding outer handler's return = %+v, want ResultContinue", res)
	}
	if m.cur != innerHandlerSegID {
		t.Fatalf("control after outer handler finished landed on segment %v, want the inner handler segment %v (not the program segment %v)", m.cur, innerHandlerSegID, progSegID)
	}
	if m.val != outerReturnValue {
		t.Fatalf("value folded back to inner handler = %v, want %v", m.val, outerReturnValue)
	}
}

// TestHandlerExecutionSegmentClearsBusyMarkerOnDirectReturn exercises the
// review fix to stepReturn: a handler-execution segment that finishes by
// directly returning a value (the documented "handler returns without
// Resume" abandonment pattern) must free its busy marker so a later
// dispatch in the same run can find that handler again.
func TestHandlerExecutionSegmentClearsBusyMarkerOnDirectReturn(t *testing.T) {
	m := newTestMachine()

	progSeg := &segment.Segment{Kind: segment.Normal}
	progSeg.ID = m.arena.Alloc(progSeg)

	marker := m.counters.NextMarker()
	progSeg.ScopeChain = []ids.Marker{marker}

	eff := stubEffect{name: "y"}
	h := &handler.NativeProgramHandler{
		Matches: func(e value.Effect) bool { return e == eff },
		NewInstance: func(e value.Effect, k *segment.Continuation, store *handler.Store) (segment.HandlerProgramInstance, segment.ProgramStep) {
			return constInstance{}, segment.StepReturn(value.NewInt(1))
		},
	}
	m.registry.Install(marker, h, 0)

	contID := m.counters.NextContID()
	dispatchID := m.counters.NextDispatchID()
	kUser := segment.Capture(progSeg, &dispatchID, contID)

	res := m.runDispatch(eff, kUser, progSeg.ScopeChain, progSeg.ID)
	if res.Kind != ResultContinue {
		t.Fatalf("runDispatch = %+v, want ResultContinue", res)
	}
	if !m.busy[marker] {
		t.Fatalf("marker not marked busy immediately after dispatch")
	}

	// The handler's first (and only) step already returned directly, so
	// the machine is in ModeReturn with an empty frame stack; advancing
	// must finish the handler segment and clear its busy marker.
	if m.mode != ModeReturn {
		t.Fatalf("mode after direct-return dispatch = %v, want ModeReturn", m.mode)
	}
	res = m.Step()
	if res.Kind != ResultContinue {
		t.Fatalf("Step() folding handler segment's return = %+v, want ResultContinue", res)
	}
	if m.busy[marker] {
		t.Fatalf("marker %v still busy after its handler-execution segment finished by direct return", marker)
	}

	// The marker must be visible again for a second dispatch of the same
	// effect in the same run (spec.md's busy boundary is scoped to "the
	// duration of that dispatch", not forever).
	idx, _, ok := m.findHandler(progSeg.ScopeChain, eff)
	if !ok {
		t.Fatalf("findHandler could not find handler for a second dispatch after the first one completed")
	}
	if progSeg.ScopeChain[idx] != marker {
		t.Fatalf("findHandler returned marker %v, want %v", progSeg.ScopeChain[idx], marker)
	}
}
