package scheduler

import (
	"fmt"

	multierror "github.com/hashicorp/go-multierror"

	"github.com/deepnoodle-ai/effectvm/segment"
	"github.com/deepnoodle-ai/effectvm/value"
)

// gatherInstance resolves every item of a Gather effect. Since tasks run
// eagerly to completion at Spawn time, every Task item already has a
// recorded result by the time Gather runs; item resolution here is a
// synchronous lookup rather than a real wait.
type gatherInstance struct {
	sched   *Scheduler
	kUser   *segment.Continuation
	items   []value.Value
	handedOff bool
}

func (g *gatherInstance) start() segment.ProgramStep {
	results := make([]value.Value, len(g.items))
	var combined *multierror.Error
	for i, item := range g.items {
		v, err := g.sched.resolve(item)
		if err != nil {
			combined = multierror.Append(combined, err)
			continue
		}
		results[i] = v
	}
	if combined != nil {
		return segment.StepThrow(combined.ErrorOrNil())
	}
	g.handedOff = true
	return segment.StepYield(value.AsPrimitive(value.Resume{K: g.kUser, V: value.NewList(results)}))
}

// Resume is called once: first never (start already yields directly),
// then again once kUser's onward computation finally finishes, whose
// value passes straight through.
func (g *gatherInstance) Resume(v value.Value) segment.ProgramStep {
	if g.handedOff {
		return segment.StepReturn(v)
	}
	return segment.StepThrow(fmt.Errorf("scheduler: gather instance resumed out of order"))
}

func (g *gatherInstance) Throw(err error) segment.ProgramStep {
	return segment.StepThrow(err)
}

var _ segment.HandlerProgramInstance = (*gatherInstance)(nil)

// resolve reads back a Task or Promise's recorded result.
func (s *Scheduler) resolve(v value.Value) (value.Value, error) {
	switch item := v.(type) {
	case *value.Task:
		t, ok := s.tasks[item.ID]
		if !ok || !t.done {
			return nil, fmt.Errorf("scheduler: task %d has not completed", item.ID)
		}
		return t.result, t.err
	case *value.Promise, *value.ExternalPromise:
		id, _ := asPromiseID(v)
		p, ok := s.promises[id]
		if !ok || !p.resolved {
			return nil, fmt.Errorf("scheduler: promise %d has not resolved", id)
		}
		return p.result, p.err
	default:
		return nil, fmt.Errorf("scheduler: gather/race item is not a task or promise")
	}
}
