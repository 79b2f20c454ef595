// Package driver implements the outer run loop (spec.md component C7):
// it pumps engine.Machine's Step/ReceiveHostResult cycle, performing
// each PendingHostCall itself since those are the only points where the
// step machine needs something only the host side can do (start a
// program, advance a coroutine, call a plain function, invoke an opaque
// host-callable handler). In this Go-hosts-Go realization that "host
// call" is an ordinary synchronous Go call; a different host runtime
// would swap this package out without touching engine at all.
package driver

import (
	"context"
	"fmt"
	"sync"

	"github.com/deepnoodle-ai/effectvm/engine"
	"github.com/deepnoodle-ai/effectvm/value"
	"github.com/deepnoodle-ai/effectvm/verrors"
)

// HostFunc is how a plain callable value is invoked for Modify's
// modifier and for HostCallable handlers.
type HostFunc func(ctx context.Context, args []value.Value) (value.Value, error)

// FuncResolver resolves a value.Value that denotes a callable into a
// HostFunc. Returns ok=false if v is not callable.
type FuncResolver func(v value.Value) (HostFunc, bool)

// HandlerResolver resolves a HostCallableHandler's opaque identity plus
// the effect it is handling into a HostFunc to run once.
type HandlerResolver func(opaque any, effect value.Effect) (HostFunc, bool)

// Driver owns the host-lock discipline around one Machine: only one
// host call is ever in flight at a time (spec.md §2).
type Driver struct {
	mu          sync.Mutex
	resolveFunc FuncResolver
	resolveHandler HandlerResolver
}

// New builds a Driver. Either resolver may be nil if the program never
// exercises that path.
func New(resolveFunc FuncResolver, resolveHandler HandlerResolver) *Driver {
	return &Driver{resolveFunc: resolveFunc, resolveHandler: resolveHandler}
}

// Run drives m to completion, starting program, and returns its final
// value or the first error encountered.
func (d *Driver) Run(ctx context.Context, m *engine.Machine, program value.Program) (value.Value, error) {
	res := m.Start(program)
	return d.pump(ctx, m, res)
}

// RunWithHandlers is Run, but installs handlers outermost-first around
// program before executing it (spec.md §3's top-level handler install).
func (d *Driver) RunWithHandlers(ctx context.Context, m *engine.Machine, program value.Program, handlers []value.HandlerRef) (value.Value, error) {
	res := m.StartWithHandlers(program, handlers)
	return d.pump(ctx, m, res)
}

func (d *Driver) pump(ctx context.Context, m *engine.Machine, res engine.Result) (value.Value, error) {
	for {
		switch res.Kind {
		case engine.ResultDone:
			return res.Value, nil
		case engine.ResultError:
			return nil, res.Err
		case engine.ResultContinue:
			res = m.Step()
		case engine.ResultNeedsHostCall:
			hostRes, err := d.execute(ctx, res.Call)
			if err != nil {
				return nil, err
			}
			res = m.ReceiveHostResult(hostRes)
		default:
			return nil, verrors.New(verrors.RuntimeError, fmt.Errorf("unknown result kind"))
		}
	}
}

// execute performs one PendingHostCall under the host lock.
func (d *Driver) execute(ctx context.Context, call *engine.PendingHostCall) (engine.HostResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch call.Kind {
	case engine.HostCallStartProgram:
		co, err := call.Program.Start(ctx)
		if err != nil {
			return engine.HostResult{}, verrors.New(verrors.HostException, err)
		}
		out := co.Next(ctx)
		return engine.HostResult{Outcome: &out, Coroutine: co}, nil

	case engine.HostCallCoroutineNext:
		out := call.Coroutine.Next(ctx)
		return engine.HostResult{Outcome: &out}, nil

	case engine.HostCallCoroutineSend:
		out := call.Coroutine.Send(ctx, call.Value)
		return engine.HostResult{Outcome: &out}, nil

	case engine.HostCallCoroutineThrow:
		out := call.Coroutine.Throw(ctx, call.Err)
		return engine.HostResult{Outcome: &out}, nil

	case engine.HostCallFunc:
		if d.resolveFunc == nil {
			return engine.HostResult{}, verrors.New(verrors.HostException, fmt.Errorf("no function resolver configured"))
		}
		fn, ok := d.resolveFunc(call.Func)
		if !ok {
			return engine.HostResult{}, verrors.New(verrors.TypeError, fmt.Errorf("value is not callable"))
		}
		v, err := fn(ctx, call.Args)
		if err != nil {
			return engine.HostResult{Err: err}, nil
		}
		return engine.HostResult{Value: v}, nil

	case engine.HostCallHandler:
		if d.resolveHandler == nil {
			return engine.HostResult{}, verrors.New(verrors.HostException, fmt.Errorf("no handler resolver configured"))
		}
		fn, ok := d.resolveHandler(call.Handler.Opaque, call.Effect)
		if !ok {
			return engine.HostResult{}, verrors.New(verrors.HostException, fmt.Errorf("unresolvable host-callable handler"))
		}
		v, err := fn(ctx, nil)
		if err != nil {
			return engine.HostResult{Err: err}, nil
		}
		return engine.HostResult{Value: v}, nil

	default:
		return engine.HostResult{}, verrors.New(verrors.RuntimeError, fmt.Errorf("unknown host call kind"))
	}
}
