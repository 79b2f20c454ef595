package scheduler

import (
	"fmt"

	"github.com/deepnoodle-ai/effectvm/handler"
	"github.com/deepnoodle-ai/effectvm/ids"
	"github.com/deepnoodle-ai/effectvm/segment"
	"github.com/deepnoodle-ai/effectvm/value"
)

type spawnState int

const (
	spawnAwaitingContinuation spawnState = iota
	spawnAwaitingChildResult
	spawnAwaitingPassThrough
)

// spawnInstance drives one Spawn effect to completion: create the child
// continuation, run it eagerly to its own end, record the result under
// a fresh TaskID, hand the Task handle back to the spawner, then pass
// the spawner's eventual overall result straight through (the handler
// wraps the rest of the spawner's computation, per the usual effect
// handler shape).
type spawnInstance struct {
	sched  *Scheduler
	kUser  *segment.Continuation
	spawn  value.Spawn
	parent *handler.Store

	state      spawnState
	taskID     ids.TaskID
	childStore *handler.Store // set when StoreMode isolates state/env
	logStart   int
}

func (s *spawnInstance) start() segment.ProgramStep {
	s.state = spawnAwaitingContinuation
	handlers := s.spawn.Handlers
	if s.spawn.StoreMode == value.StoreIsolatedLogsOnly {
		s.childStore = s.parent.Snapshot()
		s.logStart = len(s.parent.Log)
		handlers = append([]value.HandlerRef{
			handler.NewStateHandler(s.childStore),
			handler.NewReaderHandler(s.childStore),
			handler.NewWriterHandler(s.childStore),
		}, handlers...)
	}
	return segment.StepYield(value.AsPrimitive(value.CreateContinuation{
		Program:  s.spawn.Program,
		Handlers: handlers,
	}))
}

func (s *spawnInstance) Resume(v value.Value) segment.ProgramStep {
	switch s.state {
	case spawnAwaitingContinuation:
		cont, ok := v.(*value.Continuation)
		if !ok {
			return segment.StepThrow(fmt.Errorf("scheduler: expected a created continuation"))
		}
		s.state = spawnAwaitingChildResult
		return segment.StepYield(value.AsPrimitive(value.ResumeContinuation{K: cont.Ref, V: value.TheUnit}))

	case spawnAwaitingChildResult:
		s.mergeChildLogs()
		s.taskID = s.sched.counters.NextTaskID()
		s.sched.tasks[s.taskID] = &taskRecord{id: s.taskID, done: true, result: v}
		s.state = spawnAwaitingPassThrough
		return segment.StepYield(value.AsPrimitive(value.Resume{K: s.kUser, V: &value.Task{ID: s.taskID}}))

	case spawnAwaitingPassThrough:
		return segment.StepReturn(v)

	default:
		return segment.StepThrow(fmt.Errorf("scheduler: spawn instance in unknown state"))
	}
}

func (s *spawnInstance) mergeChildLogs() {
	if s.childStore != nil {
		s.parent.MergeLogs(s.childStore, s.logStart)
	}
}

func (s *spawnInstance) Throw(err error) segment.ProgramStep {
	switch s.state {
	case spawnAwaitingChildResult:
		s.mergeChildLogs()
		s.taskID = s.sched.counters.NextTaskID()
		s.sched.tasks[s.taskID] = &taskRecord{id: s.taskID, done: true, err: err}
		s.state = spawnAwaitingPassThrough
		return segment.StepYield(value.AsPrimitive(value.Resume{K: s.kUser, V: &value.Task{ID: s.taskID}}))
	default:
		return segment.StepThrow(err)
	}
}

var _ segment.HandlerProgramInstance = (*spawnInstance)(nil)
