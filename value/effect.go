package value

import (
	"fmt"

	"github.com/deepnoodle-ai/effectvm/ids"
)

// EffectType names an effect's concrete variant for handler matching.
// can_handle implementations switch on this rather than doing a type
// assertion against every handler's effect list.
type EffectType string

const (
	EffectGet                    EffectType = "Get"
	EffectPut                    EffectType = "Put"
	EffectModify                 EffectType = "Modify"
	EffectAsk                    EffectType = "Ask"
	EffectTell                   EffectType = "Tell"
	EffectSpawn                  EffectType = "Spawn"
	EffectGather                 EffectType = "Gather"
	EffectRace                   EffectType = "Race"
	EffectCreatePromise          EffectType = "CreatePromise"
	EffectCompletePromise        EffectType = "CompletePromise"
	EffectFailPromise            EffectType = "FailPromise"
	EffectCreateExternalPromise  EffectType = "CreateExternalPromise"
	EffectTaskCompleted          EffectType = "TaskCompleted"
	EffectHost                   EffectType = "Host"
)

// Effect is the tagged union of things a program can yield to ask a
// handler to do something on its behalf. All effects, standard or
// user-defined, go through dispatch identically (spec.md invariant I7).
type Effect interface {
	EffectType() EffectType
}

// Get requests the value stored under Key in the state store.
type Get struct{ Key string }

func (Get) EffectType() EffectType { return EffectGet }

// Put writes Value under Key in the state store.
type Put struct {
	Key   string
	Value Value
}

func (Put) EffectType() EffectType { return EffectPut }

// Modify asks the state handler to replace the value under Key with the
// result of calling Modifier on the old value. Modifier is an opaque
// callable Value (typically a Host-wrapped Go func); the standard state
// handler can only invoke it via a NeedsHost round trip (spec.md §4.4).
type Modify struct {
	Key      string
	Modifier Value
}

func (Modify) EffectType() EffectType { return EffectModify }

// Ask requests the value stored under Key in the read-only env/reader store.
type Ask struct{ Key string }

func (Ask) EffectType() EffectType { return EffectAsk }

// Tell appends Message to the writer log.
type Tell struct{ Message Value }

func (Tell) EffectType() EffectType { return EffectTell }

// StoreMode controls whether a spawned task shares the parent's L2 store
// or runs against an isolated snapshot of it.
type StoreMode int

const (
	// StoreShared means the task reads and writes the parent's live store.
	StoreShared StoreMode = iota
	// StoreIsolatedLogsOnly means the task gets its own L2 snapshot, and
	// only its log is merged back into the parent on completion.
	StoreIsolatedLogsOnly
)

// Spawn starts Program as an independent task under the scheduler.
type Spawn struct {
	Program   Program
	Handlers  []HandlerRef
	StoreMode StoreMode
}

func (Spawn) EffectType() EffectType { return EffectSpawn }

// Gather returns the results of every item (a Task or a Promise) in
// submission order. The reference scheduler does not wait: an item that
// has not completed or resolved yet makes Gather fail.
type Gather struct{ Items []Value }

func (Gather) EffectType() EffectType { return EffectGather }

// Race returns the result of the first item, in submission order, that
// has already completed or resolved without error. The reference
// scheduler does not wait for pending items.
type Race struct{ Items []Value }

func (Race) EffectType() EffectType { return EffectRace }

// CreatePromise allocates a new, unresolved promise.
type CreatePromise struct{}

func (CreatePromise) EffectType() EffectType { return EffectCreatePromise }

// CompletePromise resolves Promise with Value. No waiters are kept; a
// Gather or Race that runs afterwards reads the recorded result.
type CompletePromise struct {
	Promise Value
	Value   Value
}

func (CompletePromise) EffectType() EffectType { return EffectCompletePromise }

// FailPromise rejects Promise with Err; a later Gather or Race on it
// sees that error.
type FailPromise struct {
	Promise Value
	Err     error
}

func (FailPromise) EffectType() EffectType { return EffectFailPromise }

// CreateExternalPromise allocates a promise that only something outside
// the dispatch loop (e.g. an SQS receive loop) can complete.
type CreateExternalPromise struct{}

func (CreateExternalPromise) EffectType() EffectType { return EffectCreateExternalPromise }

// TaskCompleted records Result/Err as the outcome of Task when yielded
// to the scheduler. Nothing in this module yields it: the reference
// scheduler records a spawned task's outcome itself when the task ends.
type TaskCompleted struct {
	Task   ids.TaskID
	Result Value
	Err    error
}

func (TaskCompleted) EffectType() EffectType { return EffectTaskCompleted }

// HostEffect carries a user-defined effect. Name disambiguates user
// effect "types" for can_handle matching; Object is opaque to the core.
// Distinct from the Host Value variant (value.go), which wraps a
// reference-counted host object handle rather than a request.
type HostEffect struct {
	Name   string
	Object any
}

func (HostEffect) EffectType() EffectType { return EffectHost }

func (h HostEffect) String() string {
	return fmt.Sprintf("Host(%s)", h.Name)
}
