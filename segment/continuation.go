package segment

import (
	"github.com/deepnoodle-ai/effectvm/ids"
	"github.com/deepnoodle-ai/effectvm/value"
)

// Continuation is one of two shapes sharing a single wire type
// (spec.md §3):
//
//   - Captured (started=true): an immutable snapshot of a segment's
//     frames and scope chain, shared behind FramesSnapshot/ScopeSnapshot
//     so multiple captured continuations can share one capture cheaply.
//   - Created (started=false): a program to start plus the handler list
//     to install outermost-first; the snapshot fields are empty.
type Continuation struct {
	id         ids.ContID
	started    bool
	marker     ids.Marker
	dispatchID *ids.DispatchID // set iff this is a callsite continuation (k_user)

	// Captured fields (started == true).
	framesSnapshot *frameSnapshot

	// Created fields (started == false).
	program  value.Program
	handlers []value.HandlerRef
}

// frameSnapshot is the Arc-like shared, immutable payload of a captured
// continuation. Frames are small and cheaply cloneable (spec.md §4.3);
// the pointer indirection is what lets multiple Continuation values
// share one capture without copying it repeatedly.
type frameSnapshot struct {
	frames     []Frame
	scopeChain []ids.Marker
}

// NewCaptured builds a Captured continuation snapshot from a live
// segment. dispatchID is Some iff this continuation is the callsite
// continuation (k_user) for the dispatch currently in progress
// (spec.md invariant I1).
func NewCaptured(seg *Segment, dispatchID *ids.DispatchID, contID ids.ContID) *Continuation {
	framesCopy := make([]Frame, len(seg.Frames))
	copy(framesCopy, seg.Frames)
	scopeCopy := make([]ids.Marker, len(seg.ScopeChain))
	copy(scopeCopy, seg.ScopeChain)
	return &Continuation{
		id:         contID,
		started:    true,
		marker:     seg.Marker,
		dispatchID: dispatchID,
		framesSnapshot: &frameSnapshot{
			frames:     framesCopy,
			scopeChain: scopeCopy,
		},
	}
}

// NewCreated builds an unstarted continuation from a program and the
// handler list that should be installed around it.
func NewCreated(contID ids.ContID, program value.Program, handlers []value.HandlerRef) *Continuation {
	return &Continuation{
		id:       contID,
		started:  false,
		program:  program,
		handlers: handlers,
	}
}

func (c *Continuation) ContID() ids.ContID { return c.id }

func (c *Continuation) DispatchID() (ids.DispatchID, bool) {
	if c.dispatchID == nil {
		return 0, false
	}
	return *c.dispatchID, true
}

func (c *Continuation) Started() bool { return c.started }

func (c *Continuation) Marker() ids.Marker { return c.marker }

// Program and Handlers are valid only when Started() is false.
func (c *Continuation) Program() value.Program         { return c.program }
func (c *Continuation) Handlers() []value.HandlerRef     { return c.handlers }

// FramesSnapshot and ScopeSnapshot are valid only when Started() is true.
// They return copies: materializing a continuation must produce a fresh,
// independently mutable frame stack (spec.md §4.3 Materialization).
func (c *Continuation) FramesSnapshot() []Frame {
	out := make([]Frame, len(c.framesSnapshot.frames))
	copy(out, c.framesSnapshot.frames)
	return out
}

func (c *Continuation) ScopeSnapshot() []ids.Marker {
	out := make([]ids.Marker, len(c.framesSnapshot.scopeChain))
	copy(out, c.framesSnapshot.scopeChain)
	return out
}

var _ value.ContinuationRef = (*Continuation)(nil)

// Capture builds a Captured continuation from the given live segment.
func Capture(seg *Segment, dispatchID *ids.DispatchID, contID ids.ContID) *Continuation {
	return NewCaptured(seg, dispatchID, contID)
}

// Materialize creates a fresh segment from a captured continuation's
// snapshot. The caller link is set by the primitive that materializes it
// (Resume sets call-return semantics, Transfer sets none) — see
// package engine's dispatch primitives.
func Materialize(c *Continuation, newID ids.SegmentID, caller *ids.SegmentID) *Segment {
	return &Segment{
		ID:         newID,
		Marker:     c.marker,
		Frames:     c.FramesSnapshot(),
		Caller:     caller,
		ScopeChain: c.ScopeSnapshot(),
		Kind:       Normal,
	}
}
