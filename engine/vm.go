package engine

import (
	"fmt"

	"github.com/deepnoodle-ai/effectvm/handler"
	"github.com/deepnoodle-ai/effectvm/ids"
	"github.com/deepnoodle-ai/effectvm/segment"
	"github.com/deepnoodle-ai/effectvm/value"
	"github.com/deepnoodle-ai/effectvm/verrors"
)

// HostCallKind discriminates the handful of things only the driver can
// actually perform, since they cross the host/embedded boundary
// (spec.md §4.6, §4.7).
type HostCallKind int

const (
	HostCallStartProgram HostCallKind = iota
	HostCallCoroutineNext
	HostCallCoroutineSend
	HostCallCoroutineThrow
	HostCallFunc
	HostCallHandler
)

// PendingHostCall describes one host call the driver must perform and
// report back via ReceiveHostResult.
type PendingHostCall struct {
	Kind      HostCallKind
	Program   value.Program
	Coroutine value.Coroutine
	Value     value.Value
	Err       error
	Func      value.Value
	Args      []value.Value
	Handler   *handler.HostCallableHandler
	Effect    value.Effect
}

// HostResult is what the driver reports back after performing a
// PendingHostCall.
type HostResult struct {
	Outcome   *value.Outcome  // for coroutine-shaped calls
	Coroutine value.Coroutine // set alongside Outcome when Kind was HostCallStartProgram
	Value     value.Value     // for CallFunc/CallHandler
	Err       error           // for CallFunc/CallHandler
}

// ResultKind discriminates the four things one Machine.Step call can
// produce (spec.md §4.2, §6).
type ResultKind int

const (
	ResultContinue ResultKind = iota
	ResultNeedsHostCall
	ResultDone
	ResultError
)

// Result is what Machine.Step returns.
type Result struct {
	Kind  ResultKind
	Call  *PendingHostCall
	Value value.Value
	Err   error
}

// resumePoint remembers what to do once a pending host call's result
// comes back: which segment was waiting, and in what Mode to re-enter
// it, plus any handler-specific continuation data.
type resumePoint struct {
	seg             ids.SegmentID
	standardCont    *standardContinuation
	hostHandlerCont *hostHandlerContinuation
}

type standardContinuation struct {
	handler *handler.StandardHandler
	context any
	kUser   *segment.Continuation
	marker  ids.Marker
	entry   handler.Entry
	issuer  ids.SegmentID
}

type hostHandlerContinuation struct {
	kUser  *segment.Continuation
	marker ids.Marker
	entry  handler.Entry
	issuer ids.SegmentID
}

// dispatchState is the bookkeeping kept for one in-flight effect
// dispatch, keyed by the segment id of the handler body running it (only
// NativeProgram handlers get one) so GetContinuation/GetHandlers/
// Delegate can find "the dispatch this handler body is currently
// running" (spec.md §4.4's "valid only from within a handler's own
// execution").
type dispatchState struct {
	id       ids.DispatchID
	marker   ids.Marker
	effect   value.Effect
	kUser    *segment.Continuation
	entry    handler.Entry
	handlers []value.HandlerRef // visible chain, innermost first, for GetHandlers
}

// Machine is the CESK-style step machine: current segment, mode, the
// arena/registry/store it draws on, and the bookkeeping needed to
// dispatch effects and resume after host calls.
type Machine struct {
	counters  *ids.Counters
	arena     *segment.Arena
	callbacks *ids.CallbackSlots
	registry  *handler.Registry
	store     *handler.Store
	observer  Observer

	cur  ids.SegmentID
	mode Mode
	val  value.Value
	err  error

	busy        map[ids.Marker]bool
	segDispatch map[ids.SegmentID]*dispatchState
	contUsed    map[ids.ContID]bool

	pendingCall  *PendingHostCall
	pendingAt    resumePoint

	stepCount int
	stepLimit int

	done      bool
	doneValue value.Value
	doneErr   error
}

// Config configures a new Machine.
type Config struct {
	Counters  *ids.Counters
	Registry  *handler.Registry
	Store     *handler.Store
	Observer  Observer
	StepLimit int // 0 means unlimited
}

// New builds a Machine ready to run program once Start is called.
func New(cfg Config) *Machine {
	counters := cfg.Counters
	if counters == nil {
		counters = &ids.Counters{}
	}
	obs := cfg.Observer
	if obs == nil {
		obs = NoOpObserver{}
	}
	registry := cfg.Registry
	if registry == nil {
		registry = handler.NewRegistry()
	}
	store := cfg.Store
	if store == nil {
		store = handler.NewStore()
	}
	return &Machine{
		counters:    counters,
		arena:       segment.NewArena(counters),
		callbacks:   ids.NewCallbackSlots(counters),
		registry:    registry,
		store:       store,
		observer:    obs,
		busy:        map[ids.Marker]bool{},
		segDispatch: map[ids.SegmentID]*dispatchState{},
		contUsed:    map[ids.ContID]bool{},
		stepLimit:   cfg.StepLimit,
	}
}

// Start begins executing program in a segment with an empty scope chain,
// so no handler is visible to it, whatever the Machine's registry holds.
// The first Result is always ResultNeedsHostCall{Kind: HostCallStartProgram}.
func (m *Machine) Start(program value.Program) Result {
	seg := &segment.Segment{Kind: segment.Normal}
	id := m.arena.Alloc(seg)
	m.cur = id
	m.mode = ModeDeliver
	m.pendingAt = resumePoint{seg: id}
	m.pendingCall = &PendingHostCall{Kind: HostCallStartProgram, Program: program}
	return Result{Kind: ResultNeedsHostCall, Call: m.pendingCall}
}

// StartWithHandlers begins executing program with handlers installed
// around it outermost-first, the same as resuming a CreateContinuation
// value but for the machine's very first segment (no caller to return
// to).
func (m *Machine) StartWithHandlers(program value.Program, handlers []value.HandlerRef) Result {
	newSeg := &segment.Segment{Kind: segment.Normal}
	id := m.arena.Alloc(newSeg)
	markers := make([]ids.Marker, len(handlers))
	for i, hr := range handlers {
		h, ok := hr.(handler.Handler)
		if !ok {
			return Result{Kind: ResultError, Err: verrors.New(verrors.TypeError, fmt.Errorf("handler value does not implement the native handler protocol"))}
		}
		markers[i] = m.counters.NextMarker()
		m.registry.Install(markers[i], h, id)
	}
	scope := make([]ids.Marker, len(markers))
	for i, marker := range markers {
		scope[len(markers)-1-i] = marker
	}
	newSeg.ScopeChain = scope
	m.cur = id
	m.mode = ModeDeliver
	m.pendingAt = resumePoint{seg: id}
	m.pendingCall = &PendingHostCall{Kind: HostCallStartProgram, Program: program}
	return Result{Kind: ResultNeedsHostCall, Call: m.pendingCall}
}

// curSeg returns the live segment the machine is presently executing.
func (m *Machine) curSeg() *segment.Segment {
	return m.arena.Get(m.cur)
}

func (m *Machine) observeStep() bool {
	cfg := normalizeConfig(m.observer.Config())
	switch cfg.StepMode {
	case StepNone:
		return true
	case StepSampled:
		if m.stepCount%cfg.SampleInterval != 0 {
			return true
		}
	}
	return m.observer.OnStep(TransitionEvent{Mode: m.mode, SegmentID: m.cur})
}

// Step advances the machine by one transition. Callers drive a Result
// loop: ResultContinue means call Step again immediately; ResultNeedsHostCall
// means perform Call and report back via ReceiveHostResult before calling
// Step again; ResultDone/ResultError end the run.
func (m *Machine) Step() Result {
	if m.done {
		if m.err != nil {
			return Result{Kind: ResultError, Err: m.doneErr}
		}
		return Result{Kind: ResultDone, Value: m.doneValue}
	}
	m.stepCount++
	if m.stepLimit > 0 && m.stepCount > m.stepLimit {
		return Result{Kind: ResultError, Err: verrors.New(verrors.RuntimeError, fmt.Errorf("step limit exceeded"))}
	}
	if !m.observeStep() {
		return Result{Kind: ResultError, Err: verrors.New(verrors.RuntimeError, fmt.Errorf("halted by observer"))}
	}

	seg := m.curSeg()
	if seg == nil {
		return Result{Kind: ResultError, Err: verrors.New(verrors.RuntimeError, fmt.Errorf("current segment missing"))}
	}

	var res Result
	switch m.mode {
	case ModeDeliver, ModeThrow:
		res = m.stepDeliverOrThrow(seg)
	case ModeHandleYield:
		res = m.stepHandleYield(seg)
	case ModeReturn:
		res = m.stepReturn(seg)
	default:
		return Result{Kind: ResultError, Err: verrors.New(verrors.RuntimeError, fmt.Errorf("unknown mode %v", m.mode))}
	}
	if res.Kind == ResultNeedsHostCall && m.observer.Config().ObserveHostCall {
		if !m.observer.OnHostCall(HostCallEvent{Kind: res.Call.Kind}) {
			return Result{Kind: ResultError, Err: verrors.New(verrors.RuntimeError, fmt.Errorf("halted by observer"))}
		}
	}
	return res
}

// stepDeliverOrThrow feeds m.val (or m.err) into the top frame. A host
// coroutine frame needs a host call (starting its first step, or
// sending/throwing into it); native handler program and native return
// frames are driven directly.
func (m *Machine) stepDeliverOrThrow(seg *segment.Segment) Result {
	if len(seg.Frames) == 0 {
		// Nothing left in this segment: its own last delivered value is
		// this segment's result. Fold straight into ModeReturn.
		m.mode = ModeReturn
		return Result{Kind: ResultContinue}
	}
	top := seg.Frames[len(seg.Frames)-1]
	switch top.Kind {
	case segment.FrameHostCoroutine:
		if !top.Started {
			seg.Frames[len(seg.Frames)-1].Started = true
			m.pendingCall = &PendingHostCall{Kind: HostCallCoroutineNext, Coroutine: top.Coroutine}
		} else if m.mode == ModeThrow {
			m.pendingCall = &PendingHostCall{Kind: HostCallCoroutineThrow, Coroutine: top.Coroutine, Err: m.err}
		} else {
			m.pendingCall = &PendingHostCall{Kind: HostCallCoroutineSend, Coroutine: top.Coroutine, Value: m.val}
		}
		m.pendingAt = resumePoint{seg: seg.ID}
		return Result{Kind: ResultNeedsHostCall, Call: m.pendingCall}
	case segment.FrameNativeHandlerProgram:
		var step segment.ProgramStep
		if m.mode == ModeThrow {
			step = top.Program.Throw(m.err)
		} else {
			step = top.Program.Resume(m.val)
		}
		return m.applyProgramStep(seg, step)
	case segment.FrameNativeReturn:
		cb, _ := m.callbacks.Remove(top.Callback)
		seg.PopFrame()
		if fn, ok := cb.(func(value.Value, error)); ok && fn != nil {
			fn(m.val, m.err)
		}
		return Result{Kind: ResultContinue}
	default:
		return Result{Kind: ResultError, Err: verrors.New(verrors.RuntimeError, fmt.Errorf("unknown frame kind"))}
	}
}

// applyProgramStep folds a HandlerProgramInstance's step result into the
// machine's mode, mirroring what a coroutine Outcome would do.
func (m *Machine) applyProgramStep(seg *segment.Segment, step segment.ProgramStep) Result {
	switch {
	case step.Err != nil:
		seg.PopFrame()
		m.mode = ModeThrow
		m.err = step.Err
		return Result{Kind: ResultContinue}
	case step.Returned != nil:
		seg.PopFrame()
		m.mode = ModeReturn
		m.val = *step.Returned
		return Result{Kind: ResultContinue}
	case step.Yielded != nil:
		m.mode = ModeHandleYield
		m.val = *step.Yielded
		return Result{Kind: ResultContinue}
	default:
		return Result{Kind: ResultError, Err: verrors.New(verrors.RuntimeError, fmt.Errorf("empty program step"))}
	}
}

// stepReturn pops the exhausted top frame and folds its value into
// whatever is beneath it, or finishes the segment entirely.
func (m *Machine) stepReturn(seg *segment.Segment) Result {
	if len(seg.Frames) > 0 {
		seg.PopFrame()
		m.mode = ModeDeliver
		return Result{Kind: ResultContinue}
	}
	if ds, ok := m.segDispatch[seg.ID]; ok {
		delete(m.busy, ds.marker)
	}
	delete(m.segDispatch, seg.ID)
	m.arena.Free(seg.ID)
	if seg.Caller == nil {
		m.done = true
		m.doneValue = m.val
		return Result{Kind: ResultDone, Value: m.val}
	}
	m.cur = *seg.Caller
	m.mode = ModeDeliver
	return Result{Kind: ResultContinue}
}

// ReceiveHostResult feeds the driver's answer to the last PendingHostCall
// back into the machine and advances past it.
func (m *Machine) ReceiveHostResult(res HostResult) Result {
	call := m.pendingCall
	m.pendingCall = nil
	if call == nil {
		return Result{Kind: ResultError, Err: verrors.New(verrors.RuntimeError, fmt.Errorf("no pending host call"))}
	}

	switch call.Kind {
	case HostCallStartProgram:
		return m.receiveCoroutineOutcome(res, true)
	case HostCallCoroutineNext, HostCallCoroutineSend, HostCallCoroutineThrow:
		return m.receiveCoroutineOutcome(res, false)
	case HostCallFunc:
		return m.receiveFuncResult(res)
	case HostCallHandler:
		return m.receiveHandlerResult(res)
	default:
		return Result{Kind: ResultError, Err: verrors.New(verrors.RuntimeError, fmt.Errorf("unknown host call kind"))}
	}
}

func (m *Machine) receiveCoroutineOutcome(res HostResult, isStart bool) Result {
	if res.Outcome == nil {
		return Result{Kind: ResultError, Err: verrors.New(verrors.RuntimeError, fmt.Errorf("missing coroutine outcome"))}
	}
	seg := m.arena.Get(m.pendingAt.seg)
	if seg == nil {
		return Result{Kind: ResultError, Err: verrors.New(verrors.RuntimeError, fmt.Errorf("resume segment missing"))}
	}
	if isStart {
		// The driver already built the concrete value.Coroutine from the
		// program and stepped it once; install the frame now.
		seg.PushFrame(segment.NewHostCoroutineFrame(res.Coroutine, true))
	}
	m.cur = seg.ID
	out := *res.Outcome
	switch out.Kind {
	case value.OutcomeYield:
		m.mode = ModeHandleYield
		m.val = out.Yielded
	case value.OutcomeReturn:
		seg.PopFrame()
		m.mode = ModeReturn
		m.val = out.Returned
	case value.OutcomeError:
		seg.PopFrame()
		m.mode = ModeThrow
		m.err = out.Err
	}
	return Result{Kind: ResultContinue}
}

// receiveFuncResult completes a Standard handler's NeedsHost round trip
// (only Modify currently issues these, to invoke its modifier function).
func (m *Machine) receiveFuncResult(res HostResult) Result {
	sc := m.pendingAt.standardCont
	m.pendingAt.standardCont = nil
	if sc == nil {
		return Result{Kind: ResultError, Err: verrors.New(verrors.RuntimeError, fmt.Errorf("no pending standard continuation"))}
	}
	if res.Err != nil {
		delete(m.busy, sc.marker)
		return m.materializeAndThrow(sc.kUser, verrors.New(verrors.HostException, res.Err), &sc.issuer)
	}
	action := sc.handler.Continue(res.Value, sc.context, sc.kUser, m.store)
	return m.applyHandlerAction(action, sc.entry, sc.marker, sc.kUser, &sc.issuer)
}

// receiveHandlerResult completes a HostCallable handler's invocation: a
// plain success value resumes the callsite, an error throws into it as a
// HostException.
func (m *Machine) receiveHandlerResult(res HostResult) Result {
	hc := m.pendingAt.hostHandlerCont
	m.pendingAt.hostHandlerCont = nil
	if hc == nil {
		return Result{Kind: ResultError, Err: verrors.New(verrors.RuntimeError, fmt.Errorf("no pending host handler continuation"))}
	}
	delete(m.busy, hc.marker)
	if res.Err != nil {
		return m.materializeAndThrow(hc.kUser, verrors.New(verrors.HostException, res.Err), &hc.issuer)
	}
	return m.materializeAndDeliver(hc.kUser, res.Value, &hc.issuer)
}
