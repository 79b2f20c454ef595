package ids

// CallbackSlots is a one-shot slot map: a handler installs a callback,
// gets back a CallbackID it can stash in a cheaply-cloneable Frame, and
// the engine removes (consumes) the callback exactly once when the frame
// holding its id is popped. Slots store `any` so this package stays free
// of a dependency on the engine's callback signature.
type CallbackSlots struct {
	counters *Counters
	slots    map[CallbackID]any
}

// NewCallbackSlots creates an empty slot map backed by the given counters.
func NewCallbackSlots(counters *Counters) *CallbackSlots {
	return &CallbackSlots{counters: counters, slots: map[CallbackID]any{}}
}

// Insert stores cb and returns the id it was assigned.
func (s *CallbackSlots) Insert(cb any) CallbackID {
	id := s.counters.NextCallbackID()
	s.slots[id] = cb
	return id
}

// Remove takes the callback out of the slot map. The second return value
// is false if the id was never inserted or was already removed, which
// the caller should treat as a RuntimeError (a one-shot violation on the
// engine's own bookkeeping, not a user-visible error).
func (s *CallbackSlots) Remove(id CallbackID) (any, bool) {
	cb, ok := s.slots[id]
	if !ok {
		return nil, false
	}
	delete(s.slots, id)
	return cb, true
}

// Len reports the number of callbacks currently awaiting consumption.
func (s *CallbackSlots) Len() int {
	return len(s.slots)
}
