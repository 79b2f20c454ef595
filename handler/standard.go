package handler

import (
	"github.com/deepnoodle-ai/effectvm/segment"
	"github.com/deepnoodle-ai/effectvm/value"
)

// NewStateHandler builds the standard Get/Put/Modify handler over store.
// Get and Put resume immediately; Modify needs a host call to run the
// user-supplied modifier function, so it yields NeedsHost and completes
// in Continue once the driver reports the function's result.
func NewStateHandler(store *Store) *StandardHandler {
	return &StandardHandler{
		Matches: func(e value.Effect) bool {
			switch e.EffectType() {
			case value.EffectGet, value.EffectPut, value.EffectModify:
				return true
			default:
				return false
			}
		},
		Handle: func(e value.Effect, k *segment.Continuation, store2 *Store) HandlerAction {
			switch eff := e.(type) {
			case value.Get:
				return Resume(k, store.Get(eff.Key))
			case value.Put:
				old := store.Put(eff.Key, eff.Value)
				return Resume(k, old)
			case value.Modify:
				current := store.Get(eff.Key)
				return NeedsHost(
					HostCallRequest{Func: eff.Modifier, Args: []value.Value{current}},
					eff.Key,
				)
			default:
				return Resume(k, value.Nil)
			}
		},
		Continue: func(result value.Value, context any, k *segment.Continuation, store2 *Store) HandlerAction {
			key := context.(string)
			old := store.Put(key, result)
			return Resume(k, old)
		},
	}
}

// NewReaderHandler builds the standard Ask handler over store's
// environment map.
func NewReaderHandler(store *Store) *StandardHandler {
	return &StandardHandler{
		Matches: func(e value.Effect) bool { return e.EffectType() == value.EffectAsk },
		Handle: func(e value.Effect, k *segment.Continuation, _ *Store) HandlerAction {
			ask := e.(value.Ask)
			return Resume(k, store.Ask(ask.Key))
		},
	}
}

// NewWriterHandler builds the standard Tell handler appending to store's
// log.
func NewWriterHandler(store *Store) *StandardHandler {
	return &StandardHandler{
		Matches: func(e value.Effect) bool { return e.EffectType() == value.EffectTell },
		Handle: func(e value.Effect, k *segment.Continuation, _ *Store) HandlerAction {
			tell := e.(value.Tell)
			store.Tell(tell.Message)
			return Resume(k, value.TheUnit)
		},
	}
}
