// Package segment implements the delimited-continuation machinery of the
// engine (spec.md component C3): mutable Segments that hold the live
// frame stack during execution, and immutable Continuation snapshots
// captured from them. It depends only on ids and value — nothing here
// knows about handlers or the step machine that drives it.
package segment

import (
	"github.com/deepnoodle-ai/effectvm/ids"
	"github.com/deepnoodle-ai/effectvm/value"
)

// Kind distinguishes an ordinary segment from one that delimits a
// handler's installed scope.
type Kind int

const (
	Normal Kind = iota
	PromptBoundary
)

// FrameKind discriminates the three frame variants a segment can hold.
type FrameKind int

const (
	FrameNativeReturn FrameKind = iota
	FrameNativeHandlerProgram
	FrameHostCoroutine
)

// HandlerProgramInstance is the minimal protocol a native handler program
// (e.g. the scheduler) presents once started: resume it with a value or
// throw into it, and get back a coroutine-shaped step. Defined here,
// rather than in package handler, so Frame can reference it without
// segment depending on handler (which depends on segment).
type HandlerProgramInstance interface {
	Resume(v value.Value) ProgramStep
	Throw(err error) ProgramStep
}

// ProgramStep is what a HandlerProgramInstance produces for one step,
// mirroring value.Outcome's three-way split.
type ProgramStep struct {
	Yielded  *value.Value // set on yield
	Returned *value.Value // set on return
	Err      error        // set on throw-through
}

func StepYield(v value.Value) ProgramStep  { return ProgramStep{Yielded: &v} }
func StepReturn(v value.Value) ProgramStep { return ProgramStep{Returned: &v} }
func StepThrow(err error) ProgramStep      { return ProgramStep{Err: err} }

// Frame is one entry in a segment's frame stack. Exactly one of the
// payload fields is meaningful, selected by Kind; frames are small and
// cheaply copied by value so that capturing a continuation can clone an
// entire frame stack without touching whatever a frame ultimately refers
// to (spec.md §4.1).
type Frame struct {
	Kind FrameKind

	// FrameNativeReturn: the one-shot callback slot to consume on pop.
	Callback ids.CallbackID

	// FrameNativeHandlerProgram: a shared, lockable native handler
	// program instance. Frames holding this are cloneable (the pointer
	// is copied), but only one execution actually drives it forward.
	Program HandlerProgramInstance

	// FrameHostCoroutine: an opaque host coroutine handle plus whether
	// its first step has been taken.
	Coroutine value.Coroutine
	Started   bool
}

func NewNativeReturnFrame(cb ids.CallbackID) Frame {
	return Frame{Kind: FrameNativeReturn, Callback: cb}
}

func NewNativeHandlerProgramFrame(p HandlerProgramInstance) Frame {
	return Frame{Kind: FrameNativeHandlerProgram, Program: p}
}

func NewHostCoroutineFrame(c value.Coroutine, started bool) Frame {
	return Frame{Kind: FrameHostCoroutine, Coroutine: c, Started: started}
}

// Segment is a delimited continuation frame: a handler scope (marker), a
// mutable push/pop-at-end frame stack, an optional parent (the return
// target), the lexical scope chain visible at this point, and whether it
// delimits a handler's installed scope.
type Segment struct {
	ID            ids.SegmentID
	Marker        ids.Marker
	Frames        []Frame
	Caller        *ids.SegmentID
	ScopeChain    []ids.Marker // innermost-first
	Kind          Kind
	HandledMarker ids.Marker // valid when Kind == PromptBoundary
}

// PushFrame appends f to the top of the frame stack. O(1).
func (s *Segment) PushFrame(f Frame) {
	s.Frames = append(s.Frames, f)
}

// PopFrame removes and returns the top frame. O(1). The second return
// value is false if the stack was already empty.
func (s *Segment) PopFrame() (Frame, bool) {
	n := len(s.Frames)
	if n == 0 {
		return Frame{}, false
	}
	f := s.Frames[n-1]
	s.Frames = s.Frames[:n-1]
	return f, true
}

// IsPromptBoundary reports whether this segment delimits a handler scope.
func (s *Segment) IsPromptBoundary() bool {
	return s.Kind == PromptBoundary
}

// HandledMarkerOf returns the marker this prompt segment delimits, valid
// only when IsPromptBoundary() is true.
func (s *Segment) HandledMarkerOf() ids.Marker {
	return s.HandledMarker
}
