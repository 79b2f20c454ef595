// Package handler implements the engine's handler model (spec.md
// component C4): the three handler variants (native-immediate,
// native-generator-like, host-callable), the handler-action ADT, the
// standard library handlers over the state/reader/writer stores, and the
// marker-keyed handler registry. It depends on ids, value, and segment
// (for Continuation and the coroutine-shaped program-instance protocol);
// nothing below it depends on handler, so there is no cycle back.
package handler

import (
	"github.com/deepnoodle-ai/effectvm/ids"
	"github.com/deepnoodle-ai/effectvm/segment"
	"github.com/deepnoodle-ai/effectvm/value"
)

// Kind discriminates the three ways a handler can be invoked.
type Kind int

const (
	// Standard handlers are invoked immediately: Handle returns a
	// HandlerAction synchronously, no coroutine protocol involved.
	Standard Kind = iota
	// NativeProgram handlers mimic the generator-like protocol of host
	// programs: NewInstance starts them, and the returned instance is
	// driven forward with Resume/Throw like any other coroutine.
	NativeProgram
	// HostCallable handlers are implemented by the host language; the
	// engine can only invoke them via a NeedsHostCall round trip.
	HostCallable
)

// Handler is the common interface every handler variant implements. It
// embeds value.HandlerRef so handler values can flow as Value::HandlerList
// entries (e.g. returned by GetHandlers) without an adapter.
type Handler interface {
	value.HandlerRef
	Kind() Kind
}

// ActionKind discriminates the four things a Standard handler's
// immediate invocation can produce.
type ActionKind int

const (
	ActionResume ActionKind = iota
	ActionTransfer
	ActionReturn
	ActionNeedsHost
)

// HostCallRequest describes the one host call a standard handler may
// need mid-invocation: calling a user-supplied function (Modify's
// modifier) on some arguments. The driver (package driver) is what
// actually performs this call; handler only describes it.
type HostCallRequest struct {
	Func value.Value
	Args []value.Value
}

// HandlerAction is what a Standard handler's immediate Handle call
// returns: resume or transfer into the callsite continuation, return a
// value as the dispatch's own result, or ask the driver to perform a
// host call before continuing (spec.md §4.4).
type HandlerAction struct {
	Kind    ActionKind
	K       *segment.Continuation // set for Resume/Transfer
	Value   value.Value            // set for Resume/Transfer/Return
	Call    HostCallRequest        // set for NeedsHost
	Context any                    // remembered, handed back via the handler's Continue
}

func Resume(k *segment.Continuation, v value.Value) HandlerAction {
	return HandlerAction{Kind: ActionResume, K: k, Value: v}
}

func Transfer(k *segment.Continuation, v value.Value) HandlerAction {
	return HandlerAction{Kind: ActionTransfer, K: k, Value: v}
}

func Return(v value.Value) HandlerAction {
	return HandlerAction{Kind: ActionReturn, Value: v}
}

func NeedsHost(call HostCallRequest, context any) HandlerAction {
	return HandlerAction{Kind: ActionNeedsHost, Call: call, Context: context}
}

// StandardFunc is the shape of a Standard handler's immediate
// implementation.
type StandardFunc func(e value.Effect, k *segment.Continuation, store *Store) HandlerAction

// ContinueFunc resumes a Standard handler after its requested host call
// completes. It must not itself return ActionNeedsHost (spec.md §4.5:
// "This action must not itself be NeedsHost — no re-entry").
type ContinueFunc func(result value.Value, context any, k *segment.Continuation, store *Store) HandlerAction

// StandardHandler is a fast native handler reading/writing the L2 store
// directly, used for Get/Put/Modify/Ask/Tell.
type StandardHandler struct {
	Matches  func(e value.Effect) bool
	Handle   StandardFunc
	Continue ContinueFunc // nil if this handler never returns ActionNeedsHost
}

func (h *StandardHandler) CanHandle(e value.Effect) bool { return h.Matches(e) }
func (h *StandardHandler) Kind() Kind                    { return Standard }

// NativeProgramFactory starts a native handler program instance for one
// dispatch, returning both the instance (for subsequent Resume/Throw)
// and the first ProgramStep it produces.
type NativeProgramFactory func(e value.Effect, k *segment.Continuation, store *Store) (segment.HandlerProgramInstance, segment.ProgramStep)

// NativeProgramHandler mimics a host program's generator protocol but is
// implemented natively (the reference scheduler is one of these).
type NativeProgramHandler struct {
	Matches    func(e value.Effect) bool
	NewInstance NativeProgramFactory
}

func (h *NativeProgramHandler) CanHandle(e value.Effect) bool { return h.Matches(e) }
func (h *NativeProgramHandler) Kind() Kind                    { return NativeProgram }

// HostCallableHandler is implemented by the host language: invoking it
// always goes through a NeedsHostCall, since only host code knows how to
// run it. Opaque is whatever identifies the host-side callable to the
// driver's HandlerResolver (e.g. a registered name or a reflect.Value).
type HostCallableHandler struct {
	Matches func(e value.Effect) bool
	Opaque  any
}

func (h *HostCallableHandler) CanHandle(e value.Effect) bool { return h.Matches(e) }
func (h *HostCallableHandler) Kind() Kind                    { return HostCallable }

var (
	_ Handler = (*StandardHandler)(nil)
	_ Handler = (*NativeProgramHandler)(nil)
	_ Handler = (*HostCallableHandler)(nil)
)

// Entry is what the registry stores per marker, so dispatch does not
// need to linear-search for a handler's prompt segment (spec.md §4.4).
type Entry struct {
	Handler     Handler
	PromptSegID ids.SegmentID
}
