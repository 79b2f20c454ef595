// Package scheduler implements the engine's reference concurrency
// handler (spec.md component C8): Spawn/Gather/Race and the promise
// effects, built as a handler.NativeProgramHandler so it drives the
// exact same yield protocol a user program does rather than needing a
// second, parallel handler ABI.
//
// Tasks run eagerly to completion (or to their own first
// scheduler-effect, recursively) rather than being preempted and
// time-sliced: a fully preemptive ready-queue scheduler needs the step
// machine to hold several simultaneously-live segments and choose among
// them every tick, which this reference handler does not attempt. What
// it does implement is the handler-visibility and busy-marker protocol
// and isolated per-task state snapshots with the "append logs only"
// merge policy. Every handoff back to a caller (Spawn, Gather, Race and
// the promise effects) is a Resume; no scheduler path uses Transfer.
package scheduler

import (
	"fmt"

	"github.com/deepnoodle-ai/effectvm/handler"
	"github.com/deepnoodle-ai/effectvm/ids"
	"github.com/deepnoodle-ai/effectvm/segment"
	"github.com/deepnoodle-ai/effectvm/value"
)

type taskRecord struct {
	id     ids.TaskID
	done   bool
	result value.Value
	err    error
}

type promiseRecord struct {
	id       ids.PromiseID
	external bool // true if backed by a host-side completion (e.g. handlers/blobstore's SQS path) rather than a Spawn task
	resolved bool
	result   value.Value
	err      error
}

// Scheduler owns all task/promise bookkeeping across the whole run; a
// fresh handler.NativeProgramHandler instance is created per dispatch,
// but they all share this state.
type Scheduler struct {
	counters *ids.Counters
	root     *handler.Store
	tasks    map[ids.TaskID]*taskRecord
	promises map[ids.PromiseID]*promiseRecord
}

// New builds a Scheduler sharing root as the parent store that spawned
// tasks snapshot from.
func New(counters *ids.Counters, root *handler.Store) *Scheduler {
	return &Scheduler{
		counters: counters,
		root:     root,
		tasks:    map[ids.TaskID]*taskRecord{},
		promises: map[ids.PromiseID]*promiseRecord{},
	}
}

// Handler builds the handler.NativeProgramHandler to install around a
// program (typically via the top-level Options or an explicit
// WithHandler).
func (s *Scheduler) Handler() *handler.NativeProgramHandler {
	return &handler.NativeProgramHandler{
		Matches: func(e value.Effect) bool {
			switch e.EffectType() {
			case value.EffectSpawn, value.EffectGather, value.EffectRace,
				value.EffectCreatePromise, value.EffectCompletePromise, value.EffectFailPromise,
				value.EffectCreateExternalPromise, value.EffectTaskCompleted:
				return true
			default:
				return false
			}
		},
		NewInstance: s.newInstance,
	}
}

func (s *Scheduler) newInstance(e value.Effect, k *segment.Continuation, store *handler.Store) (segment.HandlerProgramInstance, segment.ProgramStep) {
	switch eff := e.(type) {
	case value.Spawn:
		inst := &spawnInstance{sched: s, kUser: k, spawn: eff, parent: store}
		return inst, inst.start()
	case value.Gather:
		inst := &gatherInstance{sched: s, kUser: k, items: eff.Items}
		return inst, inst.start()
	case value.Race:
		inst := &raceInstance{sched: s, kUser: k, items: eff.Items}
		return inst, inst.start()
	case value.CreatePromise:
		id := s.counters.NextPromiseID()
		s.promises[id] = &promiseRecord{id: id}
		inst := &immediateInstance{}
		return inst, segment.StepYield(value.AsPrimitive(value.Resume{K: k, V: &value.Promise{ID: id}}))
	case value.CreateExternalPromise:
		id := s.counters.NextPromiseID()
		s.promises[id] = &promiseRecord{id: id, external: true}
		inst := &immediateInstance{}
		return inst, segment.StepYield(value.AsPrimitive(value.Resume{K: k, V: &value.ExternalPromise{ID: id}}))
	case value.CompletePromise:
		return s.completePromise(eff, k, nil)
	case value.FailPromise:
		return s.completePromise(value.CompletePromise{Promise: eff.Promise}, k, eff.Err)
	case value.TaskCompleted:
		s.recordTaskCompletion(eff)
		inst := &immediateInstance{}
		return inst, segment.StepYield(value.AsPrimitive(value.Resume{K: k, V: value.TheUnit}))
	default:
		inst := &immediateInstance{}
		return inst, segment.StepThrow(fmt.Errorf("scheduler: unsupported effect %v", e.EffectType()))
	}
}

func (s *Scheduler) recordTaskCompletion(eff value.TaskCompleted) {
	t, ok := s.tasks[eff.Task]
	if !ok {
		t = &taskRecord{id: eff.Task}
		s.tasks[eff.Task] = t
	}
	t.done = true
	t.result = eff.Result
	t.err = eff.Err
}

func (s *Scheduler) completePromise(eff value.CompletePromise, k *segment.Continuation, failErr error) (segment.HandlerProgramInstance, segment.ProgramStep) {
	promiseVal, ok := asPromiseID(eff.Promise)
	inst := &immediateInstance{}
	if !ok {
		return inst, segment.StepThrow(fmt.Errorf("scheduler: CompletePromise target is not a promise"))
	}
	p, ok := s.promises[promiseVal]
	if !ok {
		return inst, segment.StepThrow(fmt.Errorf("scheduler: unknown promise %v", promiseVal))
	}
	p.resolved = true
	p.result = eff.Value
	p.err = failErr
	return inst, segment.StepYield(value.AsPrimitive(value.Resume{K: k, V: value.TheUnit}))
}

func asPromiseID(v value.Value) (ids.PromiseID, bool) {
	switch p := v.(type) {
	case *value.Promise:
		return p.ID, true
	case *value.ExternalPromise:
		return p.ID, true
	default:
		return 0, false
	}
}

// immediateInstance is used by effects that resolve in a single step
// with no further Resume/Throw expected.
type immediateInstance struct{}

func (immediateInstance) Resume(value.Value) segment.ProgramStep {
	return segment.StepThrow(fmt.Errorf("scheduler: instance already completed"))
}
func (immediateInstance) Throw(err error) segment.ProgramStep {
	return segment.StepThrow(err)
}

var _ segment.HandlerProgramInstance = (*immediateInstance)(nil)
