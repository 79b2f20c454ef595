package handler

import "github.com/deepnoodle-ai/effectvm/value"

// Store is the L2 Native Store backing the standard library effects: a
// mutable state map (Get/Put/Modify), a read-only-per-task environment
// map (Ask), and an append-only log (Tell). It is plain data, not a
// handler itself — the State/Reader/Writer StandardHandlers close over
// one of these (spec.md §4.4, §5.2 per-task isolation).
type Store struct {
	State map[string]value.Value
	Env   map[string]value.Value
	Log   []value.Value
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{State: map[string]value.Value{}, Env: map[string]value.Value{}}
}

// Get reads key, defaulting to value.Nil when absent.
func (s *Store) Get(key string) value.Value {
	if v, ok := s.State[key]; ok {
		return v
	}
	return value.Nil
}

// Put writes key unconditionally, returning the previous value (or
// value.Nil).
func (s *Store) Put(key string, v value.Value) value.Value {
	old := s.Get(key)
	s.State[key] = v
	return old
}

// Ask reads the environment map, defaulting to value.Nil when absent.
func (s *Store) Ask(key string) value.Value {
	if v, ok := s.Env[key]; ok {
		return v
	}
	return value.Nil
}

// Tell appends a message to the log.
func (s *Store) Tell(msg value.Value) {
	s.Log = append(s.Log, msg)
}

// Snapshot is used when spawning an isolated task (effect.Spawn with
// StoreIsolatedLogsOnly): state and env are copied so the child cannot
// mutate the parent's. The child's log starts as the parent's entries
// (the slice header is copied); the parent does not see the child's Tell
// calls until MergeLogs appends them ("append logs only" merge policy).
func (s *Store) Snapshot() *Store {
	state := make(map[string]value.Value, len(s.State))
	for k, v := range s.State {
		state[k] = v
	}
	env := make(map[string]value.Value, len(s.Env))
	for k, v := range s.Env {
		env[k] = v
	}
	return &Store{State: state, Env: env, Log: s.Log}
}

// MergeLogs folds a task's accumulated log entries back into this store,
// appending only whatever the child appended beyond its starting
// snapshot.
func (s *Store) MergeLogs(child *Store, startLen int) {
	if len(child.Log) > startLen {
		s.Log = append(s.Log, child.Log[startLen:]...)
	}
}
