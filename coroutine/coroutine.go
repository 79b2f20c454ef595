// Package coroutine supplies a concrete value.Coroutine/value.Program
// implementation for this realization of the engine, where the "host"
// and the "embedded" language are both Go. A coroutine's body runs on
// its own goroutine; Next/Send/Throw hand control back and forth over a
// pair of unbuffered channels, so exactly one side is ever running at a
// time (spec.md §2's host-lock discipline, mirrored here with channels
// instead of an FFI boundary).
package coroutine

import (
	"context"
	"fmt"

	"github.com/deepnoodle-ai/effectvm/value"
)

// Func is the body a Go-hosted coroutine runs. yield is called to
// suspend with a value and receive back whatever the driver sends
// (or a panic carrying a throwSignal if the driver threw into it).
type Func func(ctx context.Context, yield func(value.Value) value.Value) value.Value

type resumeKind int

const (
	resumeSend resumeKind = iota
	resumeThrow
)

type resumeMsg struct {
	kind resumeKind
	v    value.Value
	err  error
}

// throwSignal is recovered by the body goroutine's yield point to turn a
// Throw call into the panic/recover this package uses internally to
// unwind the body without it needing to check for an error return out of
// every yield call.
type throwSignal struct{ err error }

// Coroutine is a goroutine-backed value.Coroutine.
type Coroutine struct {
	resumeCh chan resumeMsg
	outcomeCh chan value.Outcome
	started  bool
	done     bool
}

// New builds the channels of an unstarted coroutine; it neither keeps nor
// runs fn. Program.Start spawns the body goroutine right after calling
// New, and that goroutine runs up to its first yield and waits there
// until Next reads the outcome.
func New(fn Func) *Coroutine {
	return &Coroutine{
		resumeCh:  make(chan resumeMsg),
		outcomeCh: make(chan value.Outcome),
		started:   false,
	}
}

func (c *Coroutine) Started() bool { return c.started }

func (c *Coroutine) spawn(ctx context.Context, fn Func) {
	go func() {
		yield := func(v value.Value) value.Value {
			c.outcomeCh <- value.Yield(v)
			msg := <-c.resumeCh
			if msg.kind == resumeThrow {
				panic(throwSignal{err: msg.err})
			}
			return msg.v
		}

		defer func() {
			if r := recover(); r != nil {
				if sig, ok := r.(throwSignal); ok {
					c.outcomeCh <- value.ErrOutcome(sig.err)
					return
				}
				c.outcomeCh <- value.ErrOutcome(fmt.Errorf("coroutine panic: %v", r))
			}
		}()

		result := fn(ctx, yield)
		c.outcomeCh <- value.Return(result)
	}()
}

// Next starts the coroutine's first step. Only valid when Started() is
// false.
func (c *Coroutine) Next(ctx context.Context) value.Outcome {
	c.started = true
	out := <-c.outcomeCh
	if out.Kind != value.OutcomeYield {
		c.done = true
	}
	return out
}

// Send resumes a suspended coroutine with v.
func (c *Coroutine) Send(ctx context.Context, v value.Value) value.Outcome {
	if c.done {
		return value.ErrOutcome(fmt.Errorf("coroutine already finished"))
	}
	c.resumeCh <- resumeMsg{kind: resumeSend, v: v}
	out := <-c.outcomeCh
	if out.Kind != value.OutcomeYield {
		c.done = true
	}
	return out
}

// Throw resumes a suspended coroutine by raising err at its yield point.
func (c *Coroutine) Throw(ctx context.Context, err error) value.Outcome {
	if c.done {
		return value.ErrOutcome(fmt.Errorf("coroutine already finished"))
	}
	c.resumeCh <- resumeMsg{kind: resumeThrow, err: err}
	out := <-c.outcomeCh
	if out.Kind != value.OutcomeYield {
		c.done = true
	}
	return out
}

var _ value.Coroutine = (*Coroutine)(nil)

// Program wraps a Func as a value.Program: Start spawns the backing
// goroutine and returns the not-yet-stepped Coroutine.
type Program struct {
	Fn Func
}

func NewProgram(fn Func) Program { return Program{Fn: fn} }

func (p Program) Start(ctx context.Context) (value.Coroutine, error) {
	c := New(p.Fn)
	c.spawn(ctx, p.Fn)
	return c, nil
}

var _ value.Program = Program{}
