package scheduler

import (
	"fmt"

	"github.com/deepnoodle-ai/effectvm/segment"
	"github.com/deepnoodle-ai/effectvm/value"
)

// raceInstance resolves a Race effect. Because every item has already
// run to completion by the time Race inspects it (spawn is eager), there
// is no real "first to finish" race left to run; the winner is simply
// the first item in source order whose result resolves without error,
// mirroring the intent (first success wins) without needing a live
// ready-queue to arbitrate actual concurrent finish order.
type raceInstance struct {
	sched     *Scheduler
	kUser     *segment.Continuation
	items     []value.Value
	handedOff bool
}

func (r *raceInstance) start() segment.ProgramStep {
	var lastErr error
	for _, item := range r.items {
		v, err := r.sched.resolve(item)
		if err == nil {
			r.handedOff = true
			return segment.StepYield(value.AsPrimitive(value.Resume{K: r.kUser, V: v}))
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("scheduler: race has no items")
	}
	return segment.StepThrow(lastErr)
}

func (r *raceInstance) Resume(v value.Value) segment.ProgramStep {
	if r.handedOff {
		return segment.StepReturn(v)
	}
	return segment.StepThrow(fmt.Errorf("scheduler: race instance resumed out of order"))
}

func (r *raceInstance) Throw(err error) segment.ProgramStep {
	return segment.StepThrow(err)
}

var _ segment.HandlerProgramInstance = (*raceInstance)(nil)
