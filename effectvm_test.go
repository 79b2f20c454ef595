package effectvm_test

import (
	"context"
	"fmt"
	"testing"

	effectvm "github.com/deepnoodle-ai/effectvm"
	"github.com/deepnoodle-ai/effectvm/coroutine"
	"github.com/deepnoodle-ai/effectvm/driver"
	"github.com/deepnoodle-ai/effectvm/engine"
	"github.com/deepnoodle-ai/effectvm/handler"
	"github.com/deepnoodle-ai/effectvm/segment"
	"github.com/deepnoodle-ai/effectvm/value"
	"github.com/deepnoodle-ai/effectvm/verrors"
)

// onceInstance is a segment.HandlerProgramInstance stub for handlers whose
// NewInstance already produces every step these tests need; Resume/Throw
// are never expected to be called on it.
type onceInstance struct{}

func (onceInstance) Resume(value.Value) segment.ProgramStep {
	return segment.StepThrow(fmt.Errorf("onceInstance: unexpected Resume"))
}
func (onceInstance) Throw(err error) segment.ProgramStep { return segment.StepThrow(err) }

// TestRunStateRoundTrip exercises a Put followed by a Get against the
// standard state handler, and checks that RawStore reflects the same
// write the program observed (spec.md §6, scenario S1).
func TestRunStateRoundTrip(t *testing.T) {
	program := coroutine.NewProgram(func(ctx context.Context, yield func(value.Value) value.Value) value.Value {
		yield(value.AsEffect(value.Put{Key: "n", Value: value.NewInt(42)}))
		return yield(value.AsEffect(value.Get{Key: "n"}))
	})

	result := effectvm.Run(context.Background(), program)
	if result.Err != nil {
		t.Fatalf("Run returned error: %v", result.Err)
	}
	if !result.Value.Equals(value.NewInt(42)) {
		t.Fatalf("Run() result = %v, want 42", result.Value)
	}
	got, ok := result.RawStore["n"]
	if !ok {
		t.Fatalf("RawStore missing key %q", "n")
	}
	if !got.Equals(value.NewInt(42)) {
		t.Fatalf("RawStore[%q] = %v, want 42", "n", got)
	}
}

// TestWriterAccumulatesLog exercises repeated Tell effects against the
// standard writer handler (spec.md scenario S2). It drives the lower-level
// driver/engine/handler packages directly, since RunResult does not expose
// the store's log.
func TestWriterAccumulatesLog(t *testing.T) {
	store := handler.NewStore()
	handlers := []value.HandlerRef{
		handler.NewStateHandler(store),
		handler.NewReaderHandler(store),
		handler.NewWriterHandler(store),
	}
	m := engine.New(engine.Config{Store: store})
	d := driver.New(nil, nil)

	program := coroutine.NewProgram(func(ctx context.Context, yield func(value.Value) value.Value) value.Value {
		yield(value.AsEffect(value.Tell{Message: value.NewString("first")}))
		yield(value.AsEffect(value.Tell{Message: value.NewString("second")}))
		return value.TheUnit
	})

	if _, err := d.RunWithHandlers(context.Background(), m, program, handlers); err != nil {
		t.Fatalf("RunWithHandlers returned error: %v", err)
	}
	if len(store.Log) != 2 {
		t.Fatalf("store.Log has %d entries, want 2: %v", len(store.Log), store.Log)
	}
	if !store.Log[0].Equals(value.NewString("first")) || !store.Log[1].Equals(value.NewString("second")) {
		t.Fatalf("store.Log = %v, want [first second]", store.Log)
	}
}

// TestOneShotContinuationEnforcement exercises spec.md's one-shot
// continuation invariant (scenario S4): resuming the same captured
// continuation a second time must fail with ContinuationAlreadyResumed,
// not silently re-run the resumed computation.
func TestOneShotContinuationEnforcement(t *testing.T) {
	var savedK *segment.Continuation

	splitHandler := &handler.NativeProgramHandler{
		Matches: func(e value.Effect) bool {
			h, ok := e.(value.HostEffect)
			return ok && h.Name == "split"
		},
		NewInstance: func(e value.Effect, k *segment.Continuation, store *handler.Store) (segment.HandlerProgramInstance, segment.ProgramStep) {
			savedK = k
			return onceInstance{}, segment.StepYield(value.AsPrimitive(value.Resume{K: k, V: value.NewString("ok")}))
		},
	}
	replayHandler := &handler.NativeProgramHandler{
		Matches: func(e value.Effect) bool {
			h, ok := e.(value.HostEffect)
			return ok && h.Name == "replay"
		},
		NewInstance: func(e value.Effect, k *segment.Continuation, store *handler.Store) (segment.HandlerProgramInstance, segment.ProgramStep) {
			return onceInstance{}, segment.StepYield(value.AsPrimitive(value.Resume{K: savedK, V: value.NewString("replay")}))
		},
	}

	program := coroutine.NewProgram(func(ctx context.Context, yield func(value.Value) value.Value) value.Value {
		v1 := yield(value.AsEffect(value.HostEffect{Name: "split"}))
		yield(value.AsEffect(value.HostEffect{Name: "replay"}))
		return v1
	})

	result := effectvm.Run(context.Background(), program, effectvm.WithHandlers(splitHandler, replayHandler))
	if result.Err == nil {
		t.Fatalf("Run() with a replayed one-shot continuation succeeded, want a ContinuationAlreadyResumed error")
	}
	if !verrors.Is(result.Err, verrors.ContinuationAlreadyResumed) {
		t.Fatalf("Run() error = %v, want Kind ContinuationAlreadyResumed", result.Err)
	}
}

// TestBusyMarkerFreedAfterHandlerDirectReturn exercises the busy-boundary
// non-divergence scenario (spec.md scenario S5): a handler that finishes
// by directly returning a value (the "handler returns without Resume"
// abandonment pattern, spec.md §5) must free its marker so the very same
// handler can serve a later effect in the same run.
func TestBusyMarkerFreedAfterHandlerDirectReturn(t *testing.T) {
	echoHandler := &handler.NativeProgramHandler{
		Matches: func(e value.Effect) bool {
			h, ok := e.(value.HostEffect)
			return ok && h.Name == "echo"
		},
		NewInstance: func(e value.Effect, k *segment.Continuation, store *handler.Store) (segment.HandlerProgramInstance, segment.ProgramStep) {
			h := e.(value.HostEffect)
			tag := h.Object.(string)
			return onceInstance{}, segment.StepReturn(value.NewString("handled:" + tag))
		},
	}

	program := coroutine.NewProgram(func(ctx context.Context, yield func(value.Value) value.Value) value.Value {
		v1 := yield(value.AsEffect(value.HostEffect{Name: "echo", Object: "first"}))
		v2 := yield(value.AsEffect(value.HostEffect{Name: "echo", Object: "second"}))
		return value.NewList([]value.Value{v1, v2})
	})

	result := effectvm.Run(context.Background(), program, effectvm.WithHandlers(echoHandler))
	if result.Err != nil {
		t.Fatalf("Run returned error: %v (the echo handler's marker was likely left busy after its first direct return)", result.Err)
	}
	want := value.NewList([]value.Value{value.NewString("handled:first"), value.NewString("handled:second")})
	if !result.Value.Equals(want) {
		t.Fatalf("Run() result = %v, want %v", result.Value, want)
	}
}

// TestSpawnGatherIsolatesChildStore exercises the reference scheduler's
// Spawn/Gather effects with an isolated per-task store snapshot (spec.md
// scenario S6): a spawned task's state mutations must not leak back into
// the parent's store.
func TestSpawnGatherIsolatesChildStore(t *testing.T) {
	child := coroutine.NewProgram(func(ctx context.Context, yield func(value.Value) value.Value) value.Value {
		old := yield(value.AsEffect(value.Get{Key: "n"}))
		yield(value.AsEffect(value.Put{Key: "n", Value: value.NewInt(999)}))
		return old
	})

	parent := coroutine.NewProgram(func(ctx context.Context, yield func(value.Value) value.Value) value.Value {
		taskVal := yield(value.AsEffect(value.Spawn{
			Program:   child,
			StoreMode: value.StoreIsolatedLogsOnly,
		}))
		task, ok := taskVal.(*value.Task)
		if !ok {
			panic(fmt.Sprintf("Spawn result = %v, want *value.Task", taskVal))
		}
		return yield(value.AsEffect(value.Gather{Items: []value.Value{task}}))
	})

	result := effectvm.Run(context.Background(), parent, effectvm.WithState(map[string]value.Value{"n": value.NewInt(1)}))
	if result.Err != nil {
		t.Fatalf("Run returned error: %v", result.Err)
	}
	list, ok := result.Value.(*value.List)
	if !ok || len(list.Items) != 1 {
		t.Fatalf("Run() result = %v, want a one-item *value.List", result.Value)
	}
	if !list.Items[0].Equals(value.NewInt(1)) {
		t.Fatalf("gathered child result = %v, want the pre-mutation snapshot value 1", list.Items[0])
	}
	if got := result.RawStore["n"]; !got.Equals(value.NewInt(1)) {
		t.Fatalf("parent RawStore[n] = %v, want 1 (child's Put must not leak into the parent's isolated store)", got)
	}
}
