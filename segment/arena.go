package segment

import "github.com/deepnoodle-ai/effectvm/ids"

// Arena owns every live Segment by arena-index id, with a free-list for
// O(1) reuse (spec.md component C1 — Identifier & Arena layer). Ids are
// not stable across freeing: once a segment is freed its slot may be
// handed back out under a different occupant, so callers must not retain
// a SegmentID past the point they know the segment is live.
type Arena struct {
	counters *ids.Counters
	slots    []*Segment
	free     []ids.SegmentID
}

// NewArena creates an empty arena backed by the given counters.
func NewArena(counters *ids.Counters) *Arena {
	return &Arena{counters: counters}
}

// Alloc stores s in the arena and returns its id, reusing a freed slot
// when one is available.
func (a *Arena) Alloc(s *Segment) ids.SegmentID {
	if n := len(a.free); n > 0 {
		id := a.free[n-1]
		a.free = a.free[:n-1]
		s.ID = id
		a.slots[id-1] = s
		return id
	}
	id := a.counters.NextSegmentID()
	s.ID = id
	a.slots = append(a.slots, s)
	return id
}

// Get returns the segment at id, or nil if that slot is currently free.
func (a *Arena) Get(id ids.SegmentID) *Segment {
	if int(id) < 1 || int(id) > len(a.slots) {
		return nil
	}
	return a.slots[id-1]
}

// Free clears id's slot (Get then returns nil) and pushes the id onto
// the free list for reuse.
func (a *Arena) Free(id ids.SegmentID) {
	if int(id) < 1 || int(id) > len(a.slots) {
		return
	}
	a.slots[id-1] = nil
	a.free = append(a.free, id)
}

// LiveCount reports the number of currently-allocated (non-freed) slots:
// an aggregate allocation count that does not depend on which
// particular ids are live.
func (a *Arena) LiveCount() int {
	count := 0
	for _, s := range a.slots {
		if s != nil {
			count++
		}
	}
	return count
}
