// Package value defines the tagged unions that flow through the engine:
// Value (data), Effect (what a program asks a handler to do), and the
// control-primitive / classification types a handler or driver uses to
// interpret what a coroutine yielded. It is a leaf package — it knows
// about ids, but nothing about segments, handlers, or the engine itself.
package value

import (
	"fmt"

	"github.com/deepnoodle-ai/effectvm/ids"
)

// Type names a Value's concrete variant.
type Type string

const (
	TypeUnit            Type = "unit"
	TypeInt             Type = "int"
	TypeString          Type = "string"
	TypeBool            Type = "bool"
	TypeNone            Type = "none"
	TypeHost            Type = "host"
	TypeContinuation     Type = "continuation"
	TypeHandlerList      Type = "handler_list"
	TypeTask             Type = "task"
	TypePromise          Type = "promise"
	TypeExternalPromise  Type = "external_promise"
	TypeList             Type = "list"
	TypeRaw              Type = "raw" // unclassifiable; exists to exercise TypeError paths
)

// Value is the tagged union of data that moves across frames, effects,
// and the host boundary. Every concrete variant in this file implements it.
type Value interface {
	Type() Type
	Inspect() string
	Interface() any
	Equals(other Value) bool
}

// ContinuationRef is the minimal view of a captured/created continuation
// that the value package needs in order to let a Continuation flow as a
// Value, without importing the segment package (which owns the full
// Continuation type and would otherwise create an import cycle).
type ContinuationRef interface {
	ContID() ids.ContID
	DispatchID() (ids.DispatchID, bool)
	Started() bool
}

// HandlerRef is the minimal view of an installed handler needed so that
// GetHandlers can hand back a Value::HandlerList without the value
// package depending on the handler package.
type HandlerRef interface {
	CanHandle(e Effect) bool
}

var (
	Nil  = &None{}
	True = &Bool{v: true}
	False = &Bool{v: false}
)

// Bool_ returns the shared True/False singleton for b.
func Bool_(b bool) *Bool {
	if b {
		return True
	}
	return False
}

type None struct{}

func (*None) Type() Type         { return TypeNone }
func (*None) Inspect() string    { return "none" }
func (*None) Interface() any     { return nil }
func (*None) Equals(o Value) bool {
	_, ok := o.(*None)
	return ok
}

type Unit struct{}

func (*Unit) Type() Type         { return TypeUnit }
func (*Unit) Inspect() string    { return "()" }
func (*Unit) Interface() any     { return struct{}{} }
func (*Unit) Equals(o Value) bool {
	_, ok := o.(*Unit)
	return ok
}

var TheUnit = &Unit{}

type Int struct{ v int64 }

func NewInt(v int64) *Int      { return &Int{v: v} }
func (i *Int) Value() int64    { return i.v }
func (*Int) Type() Type        { return TypeInt }
func (i *Int) Inspect() string { return fmt.Sprintf("%d", i.v) }
func (i *Int) Interface() any  { return i.v }
func (i *Int) Equals(o Value) bool {
	other, ok := o.(*Int)
	return ok && other.v == i.v
}

type String struct{ v string }

func NewString(v string) *String { return &String{v: v} }
func (s *String) Value() string  { return s.v }
func (*String) Type() Type       { return TypeString }
func (s *String) Inspect() string {
	return fmt.Sprintf("%q", s.v)
}
func (s *String) Interface() any { return s.v }
func (s *String) Equals(o Value) bool {
	other, ok := o.(*String)
	return ok && other.v == s.v
}

type Bool struct{ v bool }

func (b *Bool) Value() bool   { return b.v }
func (*Bool) Type() Type      { return TypeBool }
func (b *Bool) Inspect() string {
	if b.v {
		return "true"
	}
	return "false"
}
func (b *Bool) Interface() any { return b.v }
func (b *Bool) Equals(o Value) bool {
	other, ok := o.(*Bool)
	return ok && other.v == b.v
}

// Host wraps a reference-counted host object handle. Tag is the identity
// Equals compares, set by whoever builds the handle (handlers/blobstore
// and handlers/imageproc fill it with a fresh gofrs/uuid string); it is
// independent of SegmentID/ContID, which the engine recycles.
type Host struct {
	Tag    string
	Object any
}

func (*Host) Type() Type        { return TypeHost }
func (h *Host) Inspect() string { return fmt.Sprintf("host(%s)", h.Tag) }
func (h *Host) Interface() any  { return h.Object }
func (h *Host) Equals(o Value) bool {
	other, ok := o.(*Host)
	return ok && other.Tag == h.Tag
}

// Continuation wraps a ContinuationRef so captured/created continuations
// can flow as ordinary Values (e.g. delivered by GetContinuation).
type Continuation struct {
	Ref ContinuationRef
}

func (*Continuation) Type() Type { return TypeContinuation }
func (c *Continuation) Inspect() string {
	return fmt.Sprintf("continuation(%d)", c.Ref.ContID())
}
func (c *Continuation) Interface() any { return c.Ref }
func (c *Continuation) Equals(o Value) bool {
	other, ok := o.(*Continuation)
	return ok && other.Ref.ContID() == c.Ref.ContID()
}

// HandlerList wraps the handler chain returned by GetHandlers.
type HandlerList struct {
	Handlers []HandlerRef
}

func (*HandlerList) Type() Type        { return TypeHandlerList }
func (h *HandlerList) Inspect() string { return fmt.Sprintf("handlers(%d)", len(h.Handlers)) }
func (h *HandlerList) Interface() any   { return h.Handlers }
func (h *HandlerList) Equals(o Value) bool {
	other, ok := o.(*HandlerList)
	if !ok || len(other.Handlers) != len(h.Handlers) {
		return false
	}
	for i := range h.Handlers {
		if other.Handlers[i] != h.Handlers[i] {
			return false
		}
	}
	return true
}

// List wraps an ordered collection of values, used by Gather's result
// and any other operation that must hand back more than one Value.
type List struct{ Items []Value }

func NewList(items []Value) *List { return &List{Items: items} }
func (*List) Type() Type          { return TypeList }
func (l *List) Inspect() string   { return fmt.Sprintf("list(%d)", len(l.Items)) }
func (l *List) Interface() any    { return l.Items }
func (l *List) Equals(o Value) bool {
	other, ok := o.(*List)
	if !ok || len(other.Items) != len(l.Items) {
		return false
	}
	for i := range l.Items {
		if !l.Items[i].Equals(other.Items[i]) {
			return false
		}
	}
	return true
}

type Task struct{ ID ids.TaskID }

func (*Task) Type() Type        { return TypeTask }
func (t *Task) Inspect() string { return fmt.Sprintf("task(%d)", t.ID) }
func (t *Task) Interface() any  { return t.ID }
func (t *Task) Equals(o Value) bool {
	other, ok := o.(*Task)
	return ok && other.ID == t.ID
}

type Promise struct{ ID ids.PromiseID }

func (*Promise) Type() Type        { return TypePromise }
func (p *Promise) Inspect() string { return fmt.Sprintf("promise(%d)", p.ID) }
func (p *Promise) Interface() any  { return p.ID }
func (p *Promise) Equals(o Value) bool {
	other, ok := o.(*Promise)
	return ok && other.ID == p.ID
}

type ExternalPromise struct{ ID ids.PromiseID }

func (*ExternalPromise) Type() Type        { return TypeExternalPromise }
func (p *ExternalPromise) Inspect() string { return fmt.Sprintf("external_promise(%d)", p.ID) }
func (p *ExternalPromise) Interface() any  { return p.ID }
func (p *ExternalPromise) Equals(o Value) bool {
	other, ok := o.(*ExternalPromise)
	return ok && other.ID == p.ID
}

// Raw wraps an arbitrary Go value that fits no other variant. Classify
// does not construct one: its Unknown case carries the yielded Value as
// is, and any Raw yielded by a program lands there too.
type Raw struct{ Object any }

func (*Raw) Type() Type        { return TypeRaw }
func (r *Raw) Inspect() string { return fmt.Sprintf("raw(%v)", r.Object) }
func (r *Raw) Interface() any  { return r.Object }
func (r *Raw) Equals(o Value) bool {
	other, ok := o.(*Raw)
	return ok && other.Object == r.Object
}
