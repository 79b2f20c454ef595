// Package ids provides the engine's opaque identifier types and the two
// small allocators every other package builds on: a fresh-id counter set
// and a one-shot callback slot map. Nothing here knows about segments,
// values, or effects — it is pure bookkeeping.
package ids

import "sync/atomic"

// Marker identifies a handler installation (a WithHandler prompt).
type Marker int64

// NoMarker is the reserved placeholder used by unstarted continuations,
// which have no installed prompt yet.
const NoMarker Marker = 0

// SegmentID indexes a segment's slot in the arena.
type SegmentID int64

// ContID tracks a captured continuation for one-shot enforcement.
type ContID int64

// DispatchID identifies one in-progress effect dispatch.
type DispatchID int64

// CallbackID indexes a slot in the VM's one-shot native-callback map.
type CallbackID int64

// TaskID identifies a scheduler task.
type TaskID int64

// PromiseID identifies a scheduler promise.
type PromiseID int64

// Counters hands out fresh, monotonically increasing ids of each kind.
// Counters are owned by a single VM instance; they are not process-wide,
// per the spec's preference for per-VM uniqueness.
type Counters struct {
	marker   int64
	segment  int64
	cont     int64
	dispatch int64
	callback int64
	task     int64
	promise  int64
}

func (c *Counters) NextMarker() Marker {
	return Marker(atomic.AddInt64(&c.marker, 1))
}

func (c *Counters) NextSegmentID() SegmentID {
	return SegmentID(atomic.AddInt64(&c.segment, 1))
}

func (c *Counters) NextContID() ContID {
	return ContID(atomic.AddInt64(&c.cont, 1))
}

func (c *Counters) NextDispatchID() DispatchID {
	return DispatchID(atomic.AddInt64(&c.dispatch, 1))
}

func (c *Counters) NextCallbackID() CallbackID {
	return CallbackID(atomic.AddInt64(&c.callback, 1))
}

func (c *Counters) NextTaskID() TaskID {
	return TaskID(atomic.AddInt64(&c.task, 1))
}

func (c *Counters) NextPromiseID() PromiseID {
	return PromiseID(atomic.AddInt64(&c.promise, 1))
}
