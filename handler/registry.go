package handler

import "github.com/deepnoodle-ai/effectvm/ids"

// Registry maps each installed handler's marker to its Entry, so dispatch
// can jump straight to the handler and its prompt segment instead of
// walking the segment chain looking for a match (spec.md §4.4).
type Registry struct {
	entries map[ids.Marker]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: map[ids.Marker]Entry{}}
}

func (r *Registry) Install(marker ids.Marker, h Handler, promptSegID ids.SegmentID) {
	r.entries[marker] = Entry{Handler: h, PromptSegID: promptSegID}
}

func (r *Registry) Lookup(marker ids.Marker) (Entry, bool) {
	e, ok := r.entries[marker]
	return e, ok
}

func (r *Registry) Uninstall(marker ids.Marker) {
	delete(r.entries, marker)
}
