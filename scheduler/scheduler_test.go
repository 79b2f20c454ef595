package scheduler

import (
	"errors"
	"strings"
	"testing"

	"github.com/deepnoodle-ai/effectvm/handler"
	"github.com/deepnoodle-ai/effectvm/ids"
	"github.com/deepnoodle-ai/effectvm/value"
)

func newTestScheduler() *Scheduler {
	return New(&ids.Counters{}, handler.NewStore())
}

func TestResolveTask(t *testing.T) {
	s := newTestScheduler()
	s.tasks[1] = &taskRecord{id: 1, done: true, result: value.NewInt(42)}
	v, err := s.resolve(&value.Task{ID: 1})
	if err != nil {
		t.Fatalf("resolve(done task) returned error: %v", err)
	}
	if !v.Equals(value.NewInt(42)) {
		t.Fatalf("resolve(done task) = %v, want 42", v)
	}

	if _, err := s.resolve(&value.Task{ID: 2}); err == nil {
		t.Fatalf("resolve(unknown task) did not error")
	}
}

func TestResolvePromise(t *testing.T) {
	s := newTestScheduler()
	s.promises[1] = &promiseRecord{id: 1, resolved: true, result: value.NewString("done")}
	v, err := s.resolve(&value.Promise{ID: 1})
	if err != nil {
		t.Fatalf("resolve(resolved promise) returned error: %v", err)
	}
	if !v.Equals(value.NewString("done")) {
		t.Fatalf("resolve(resolved promise) = %v, want done", v)
	}

	s.promises[2] = &promiseRecord{id: 2}
	if _, err := s.resolve(&value.Promise{ID: 2}); err == nil {
		t.Fatalf("resolve(unresolved promise) did not error")
	}
}

func TestGatherPreservesSubmissionOrder(t *testing.T) {
	s := newTestScheduler()
	s.tasks[1] = &taskRecord{id: 1, done: true, result: value.NewInt(1)}
	s.tasks[2] = &taskRecord{id: 2, done: true, result: value.NewInt(2)}

	inst := &gatherInstance{sched: s, items: []value.Value{&value.Task{ID: 2}, &value.Task{ID: 1}}}
	step := inst.start()
	if step.Yielded == nil {
		t.Fatalf("gather.start() did not yield, err=%v", step.Err)
	}
	prim := value.Classify(*step.Yielded)
	resume, ok := prim.Primitive.(value.Resume)
	if !ok {
		t.Fatalf("gather.start() yielded %v, want a Resume primitive", prim.Kind)
	}
	list, ok := resume.V.(*value.List)
	if !ok {
		t.Fatalf("gather result = %v, want *value.List", resume.V)
	}
	if !list.Items[0].Equals(value.NewInt(2)) || !list.Items[1].Equals(value.NewInt(1)) {
		t.Fatalf("gather result = %v, want [2, 1] (submission order)", list.Items)
	}
	if !inst.handedOff {
		t.Fatalf("gather.start() did not mark handedOff")
	}
}

func TestGatherCombinesFailures(t *testing.T) {
	s := newTestScheduler()
	errA := errors.New("task a failed")
	errB := errors.New("task b failed")
	s.tasks[1] = &taskRecord{id: 1, done: true, err: errA}
	s.tasks[2] = &taskRecord{id: 2, done: true, err: errB}

	inst := &gatherInstance{sched: s, items: []value.Value{&value.Task{ID: 1}, &value.Task{ID: 2}}}
	step := inst.start()
	if step.Err == nil {
		t.Fatalf("gather.start() with failing items did not throw")
	}
	msg := step.Err.Error()
	if !strings.Contains(msg, "task a failed") || !strings.Contains(msg, "task b failed") {
		t.Fatalf("combined error %q does not mention both failures", msg)
	}
}

func TestRaceReturnsFirstSuccessInOrder(t *testing.T) {
	s := newTestScheduler()
	s.tasks[1] = &taskRecord{id: 1, done: true, err: errors.New("first failed")}
	s.tasks[2] = &taskRecord{id: 2, done: true, result: value.NewInt(99)}

	inst := &raceInstance{sched: s, items: []value.Value{&value.Task{ID: 1}, &value.Task{ID: 2}}}
	step := inst.start()
	if step.Yielded == nil {
		t.Fatalf("race.start() did not yield, err=%v", step.Err)
	}
	prim := value.Classify(*step.Yielded)
	resume := prim.Primitive.(value.Resume)
	if !resume.V.(*value.Int).Equals(value.NewInt(99)) {
		t.Fatalf("race result = %v, want 99", resume.V)
	}
}
