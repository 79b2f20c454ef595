package engine

import (
	"fmt"

	"github.com/deepnoodle-ai/effectvm/handler"
	"github.com/deepnoodle-ai/effectvm/ids"
	"github.com/deepnoodle-ai/effectvm/segment"
	"github.com/deepnoodle-ai/effectvm/value"
	"github.com/deepnoodle-ai/effectvm/verrors"
)

// stepHandleYield classifies whatever the top frame just yielded
// (spec.md §4.5/§4.7) and dispatches to the right handling path.
func (m *Machine) stepHandleYield(seg *segment.Segment) Result {
	y := value.Classify(m.val)
	switch y.Kind {
	case value.YieldedPrimitive:
		return m.handlePrimitive(seg, y.Primitive)
	case value.YieldedEffect:
		return m.dispatchEffect(seg, y.Effect)
	case value.YieldedProgram:
		return m.startNestedProgram(y.Program, seg.ID)
	default:
		return Result{Kind: ResultError, Err: verrors.New(verrors.TypeError, fmt.Errorf("yielded value is neither a primitive, an effect, nor a program"))}
	}
}

func (m *Machine) startNestedProgram(program value.Program, callerSeg ids.SegmentID) Result {
	newSeg := &segment.Segment{Kind: segment.Normal, Caller: &callerSeg}
	if caller := m.arena.Get(callerSeg); caller != nil {
		newSeg.ScopeChain = append([]ids.Marker(nil), caller.ScopeChain...)
	}
	id := m.arena.Alloc(newSeg)
	m.cur = id
	m.mode = ModeDeliver
	m.pendingAt = resumePoint{seg: id}
	m.pendingCall = &PendingHostCall{Kind: HostCallStartProgram, Program: program}
	return Result{Kind: ResultNeedsHostCall, Call: m.pendingCall}
}

// dispatchEffect finds the innermost visible, non-busy handler for
// effect and invokes it according to its Kind (spec.md §4.4).
func (m *Machine) dispatchEffect(seg *segment.Segment, effect value.Effect) Result {
	contID := m.counters.NextContID()
	dispatchID := m.counters.NextDispatchID()
	kUser := segment.Capture(seg, &dispatchID, contID)
	return m.runDispatch(effect, kUser, seg.ScopeChain, seg.ID)
}

// runDispatch is shared by fresh effect dispatch and Delegate, which
// reuses an existing kUser rather than capturing a new one.
func (m *Machine) runDispatch(effect value.Effect, kUser *segment.Continuation, scopeChain []ids.Marker, issuerSeg ids.SegmentID) Result {
	idx, entry, ok := m.findHandler(scopeChain, effect)
	if !ok {
		return Result{Kind: ResultError, Err: verrors.Newf(verrors.UnhandledEffect, "no visible handler for effect %v", effect.EffectType())}
	}
	marker := scopeChain[idx]
	if m.observer.Config().ObserveDispatch && !m.observer.OnDispatch(DispatchEvent{DispatchID: contIDToDispatch(kUser), Marker: marker}) {
		return Result{Kind: ResultError, Err: verrors.New(verrors.RuntimeError, fmt.Errorf("halted by observer"))}
	}
	m.busy[marker] = true
	outerScope := scopeChain[idx+1:]

	switch h := entry.Handler.(type) {
	case *handler.StandardHandler:
		action := h.Handle(effect, kUser, m.store)
		if action.Kind == handler.ActionNeedsHost && h.Continue == nil {
			return Result{Kind: ResultError, Err: verrors.New(verrors.RuntimeError, fmt.Errorf("standard handler requested a host call with no Continue"))}
		}
		if action.Kind == handler.ActionNeedsHost {
			m.pendingAt = resumePoint{standardCont: &standardContinuation{
				handler: h, context: action.Context, kUser: kUser, marker: marker, entry: entry, issuer: issuerSeg,
			}}
			m.pendingCall = &PendingHostCall{Kind: HostCallFunc, Func: action.Call.Func, Args: action.Call.Args}
			return Result{Kind: ResultNeedsHostCall, Call: m.pendingCall}
		}
		return m.applyHandlerAction(action, entry, marker, kUser, &issuerSeg)

	case *handler.NativeProgramHandler:
		instance, first := h.NewInstance(effect, kUser, m.store)
		handlerSeg := &segment.Segment{Kind: segment.Normal, Marker: marker, ScopeChain: outerScope, Caller: &issuerSeg}
		id := m.arena.Alloc(handlerSeg)
		handlerSeg.PushFrame(segment.NewNativeHandlerProgramFrame(instance))
		m.segDispatch[id] = &dispatchState{
			id: contIDToDispatch(kUser), marker: marker, effect: effect, kUser: kUser, entry: entry,
			handlers: m.visibleHandlerRefs(outerScope),
		}
		m.cur = id
		return m.applyProgramStep(handlerSeg, first)

	case *handler.HostCallableHandler:
		m.pendingAt = resumePoint{hostHandlerCont: &hostHandlerContinuation{
			kUser: kUser, marker: marker, entry: entry, issuer: issuerSeg,
		}}
		m.pendingCall = &PendingHostCall{Kind: HostCallHandler, Handler: h, Effect: effect}
		return Result{Kind: ResultNeedsHostCall, Call: m.pendingCall}

	default:
		return Result{Kind: ResultError, Err: verrors.New(verrors.RuntimeError, fmt.Errorf("unknown handler implementation"))}
	}
}

func contIDToDispatch(k *segment.Continuation) ids.DispatchID {
	id, _ := k.DispatchID()
	return id
}

// findHandler walks scopeChain innermost-first looking for the first
// non-busy marker whose registered handler claims the effect (spec.md's
// "top-only busy boundary" handler visibility rule).
func (m *Machine) findHandler(scopeChain []ids.Marker, effect value.Effect) (int, handler.Entry, bool) {
	for i, marker := range scopeChain {
		if m.busy[marker] {
			continue
		}
		entry, ok := m.registry.Lookup(marker)
		if !ok {
			continue
		}
		if entry.Handler.CanHandle(effect) {
			return i, entry, true
		}
	}
	return 0, handler.Entry{}, false
}

func (m *Machine) visibleHandlerRefs(scopeChain []ids.Marker) []value.HandlerRef {
	out := make([]value.HandlerRef, 0, len(scopeChain))
	for _, marker := range scopeChain {
		if entry, ok := m.registry.Lookup(marker); ok {
			out = append(out, entry.Handler)
		}
	}
	return out
}

// applyHandlerAction folds a Standard handler's immediate HandlerAction
// into the machine's mode (spec.md §4.4).
func (m *Machine) applyHandlerAction(action handler.HandlerAction, entry handler.Entry, marker ids.Marker, kUser *segment.Continuation, issuer *ids.SegmentID) Result {
	delete(m.busy, marker)
	switch action.Kind {
	case handler.ActionResume:
		return m.materializeAndDeliver(kUser, action.Value, issuer)
	case handler.ActionTransfer:
		return m.materializeAndDeliver(kUser, action.Value, nil)
	case handler.ActionReturn:
		promptSeg := m.arena.Get(entry.PromptSegID)
		if promptSeg == nil {
			return Result{Kind: ResultError, Err: verrors.New(verrors.RuntimeError, fmt.Errorf("prompt segment missing"))}
		}
		promptSeg.Frames = nil
		m.cur = promptSeg.ID
		m.mode = ModeReturn
		m.val = action.Value
		return Result{Kind: ResultContinue}
	default:
		return Result{Kind: ResultError, Err: verrors.New(verrors.RuntimeError, fmt.Errorf("unexpected handler action kind"))}
	}
}

// materializeAndDeliver turns a captured continuation into a fresh live
// segment and makes it current, delivering v into it. It enforces the
// one-shot invariant: a captured continuation id may be materialized at
// most once (spec.md invariant I-ONESHOT).
func (m *Machine) materializeAndDeliver(k *segment.Continuation, v value.Value, caller *ids.SegmentID) Result {
	if !k.Started() {
		return Result{Kind: ResultError, Err: verrors.New(verrors.InvalidContinuationUse, fmt.Errorf("cannot Resume/Transfer an unstarted continuation, use ResumeContinuation"))}
	}
	if m.contUsed[k.ContID()] {
		return Result{Kind: ResultError, Err: verrors.New(verrors.ContinuationAlreadyResumed, fmt.Errorf("continuation %v already resumed", k.ContID()))}
	}
	m.contUsed[k.ContID()] = true
	seg := segment.Materialize(k, 0, caller)
	id := m.arena.Alloc(seg)
	m.cur = id
	m.mode = ModeDeliver
	m.val = v
	return Result{Kind: ResultContinue}
}

func (m *Machine) materializeAndThrow(k *segment.Continuation, err error, caller *ids.SegmentID) Result {
	if !k.Started() {
		return Result{Kind: ResultError, Err: verrors.New(verrors.InvalidContinuationUse, fmt.Errorf("cannot throw into an unstarted continuation"))}
	}
	if m.contUsed[k.ContID()] {
		return Result{Kind: ResultError, Err: verrors.New(verrors.ContinuationAlreadyResumed, fmt.Errorf("continuation %v already resumed", k.ContID()))}
	}
	m.contUsed[k.ContID()] = true
	seg := segment.Materialize(k, 0, caller)
	id := m.arena.Alloc(seg)
	m.cur = id
	m.mode = ModeThrow
	m.err = err
	return Result{Kind: ResultContinue}
}

// handlePrimitive applies one ControlPrimitive yielded by the top frame
// of seg (spec.md §4.6).
func (m *Machine) handlePrimitive(seg *segment.Segment, prim value.ControlPrimitive) Result {
	// A handler body that resumes, transfers, or delegates is done being
	// "busy" for its own marker: some later dispatch may re-enter the
	// same handler with a fresh instance while this one is dormant,
	// waiting on the continuation it just handed control to.
	if ds, ok := m.segDispatch[seg.ID]; ok {
		switch prim.(type) {
		case value.Resume, value.Transfer, value.Delegate:
			delete(m.busy, ds.marker)
		}
	}

	switch p := prim.(type) {
	case value.Resume:
		k, ok := p.K.(*segment.Continuation)
		if !ok {
			return Result{Kind: ResultError, Err: verrors.New(verrors.TypeError, fmt.Errorf("Resume target is not a continuation"))}
		}
		issuer := seg.ID
		return m.materializeAndDeliver(k, p.V, &issuer)

	case value.Transfer:
		k, ok := p.K.(*segment.Continuation)
		if !ok {
			return Result{Kind: ResultError, Err: verrors.New(verrors.TypeError, fmt.Errorf("Transfer target is not a continuation"))}
		}
		return m.materializeAndDeliver(k, p.V, nil)

	case value.Delegate:
		ds, ok := m.segDispatch[seg.ID]
		if !ok {
			return Result{Kind: ResultError, Err: verrors.New(verrors.InvalidContinuationUse, fmt.Errorf("Delegate used outside a handler's own execution"))}
		}
		eff := p.Effect
		if eff == nil {
			eff = ds.effect
		}
		return m.runDispatch(eff, ds.kUser, seg.ScopeChain, seg.ID)

	case value.GetContinuation:
		ds, ok := m.segDispatch[seg.ID]
		if !ok {
			return Result{Kind: ResultError, Err: verrors.New(verrors.InvalidContinuationUse, fmt.Errorf("GetContinuation used outside a handler's own execution"))}
		}
		m.mode = ModeDeliver
		m.val = &value.Continuation{Ref: ds.kUser}
		return Result{Kind: ResultContinue}

	case value.GetHandlers:
		ds, ok := m.segDispatch[seg.ID]
		if !ok {
			return Result{Kind: ResultError, Err: verrors.New(verrors.InvalidContinuationUse, fmt.Errorf("GetHandlers used outside a handler's own execution"))}
		}
		m.mode = ModeDeliver
		m.val = &value.HandlerList{Handlers: ds.handlers}
		return Result{Kind: ResultContinue}

	case value.CreateContinuation:
		contID := m.counters.NextContID()
		cont := segment.NewCreated(contID, p.Program, p.Handlers)
		m.mode = ModeDeliver
		m.val = &value.Continuation{Ref: cont}
		return Result{Kind: ResultContinue}

	case value.ResumeContinuation:
		k, ok := p.K.(*segment.Continuation)
		if !ok {
			return Result{Kind: ResultError, Err: verrors.New(verrors.TypeError, fmt.Errorf("ResumeContinuation target is not a continuation"))}
		}
		if k.Started() {
			issuer := seg.ID
			return m.materializeAndDeliver(k, p.V, &issuer)
		}
		return m.startCreatedContinuation(k, seg.ID)

	case value.WithHandler:
		h, ok := p.Handler.(handler.Handler)
		if !ok {
			return Result{Kind: ResultError, Err: verrors.New(verrors.TypeError, fmt.Errorf("handler value does not implement the native handler protocol"))}
		}
		return m.installAndRun(h, p.Program, seg.ID)

	default:
		return Result{Kind: ResultError, Err: verrors.New(verrors.RuntimeError, fmt.Errorf("unknown control primitive"))}
	}
}

// startCreatedContinuation installs an unstarted continuation's handler
// list (outermost-first, per segment.Continuation's doc comment) around a
// fresh scope and starts its program.
func (m *Machine) startCreatedContinuation(k *segment.Continuation, issuerSeg ids.SegmentID) Result {
	handlers := k.Handlers()
	markers := make([]ids.Marker, len(handlers))
	newSeg := &segment.Segment{Kind: segment.Normal, Caller: &issuerSeg}
	id := m.arena.Alloc(newSeg)
	for i, hr := range handlers {
		h, ok := hr.(handler.Handler)
		if !ok {
			return Result{Kind: ResultError, Err: verrors.New(verrors.TypeError, fmt.Errorf("handler value does not implement the native handler protocol"))}
		}
		markers[i] = m.counters.NextMarker()
		m.registry.Install(markers[i], h, id)
	}
	// Innermost-first scope chain: the last-installed (innermost) handler
	// comes first.
	scope := make([]ids.Marker, len(markers))
	for i, marker := range markers {
		scope[len(markers)-1-i] = marker
	}
	newSeg.ScopeChain = scope
	m.cur = id
	m.mode = ModeDeliver
	m.pendingAt = resumePoint{seg: id}
	m.pendingCall = &PendingHostCall{Kind: HostCallStartProgram, Program: k.Program()}
	return Result{Kind: ResultNeedsHostCall, Call: m.pendingCall}
}

// installAndRun implements the WithHandler primitive: a fresh marker and
// prompt segment, registered against h, with program run as a nested
// call that returns its result to issuerSeg.
func (m *Machine) installAndRun(h handler.Handler, program value.Program, issuerSeg ids.SegmentID) Result {
	marker := m.counters.NextMarker()
	var outerScope []ids.Marker
	if caller := m.arena.Get(issuerSeg); caller != nil {
		outerScope = caller.ScopeChain
	}
	promptSeg := &segment.Segment{
		Kind:          segment.PromptBoundary,
		Marker:        marker,
		HandledMarker: marker,
		Caller:        &issuerSeg,
		ScopeChain:    append([]ids.Marker{marker}, outerScope...),
	}
	id := m.arena.Alloc(promptSeg)
	m.registry.Install(marker, h, id)
	m.cur = id
	m.mode = ModeDeliver
	m.pendingAt = resumePoint{seg: id}
	m.pendingCall = &PendingHostCall{Kind: HostCallStartProgram, Program: program}
	return Result{Kind: ResultNeedsHostCall, Call: m.pendingCall}
}
