package value

import "context"

// Coroutine is the engine's view of a host-language generator: something
// that can be driven forward with a value or an error, and that answers
// with a Yield, a Return, or an Error. The driver (engine's coroutine-
// boundary collaborator, component C7) only ever talks to this
// interface; the concrete implementation in package coroutine runs it on
// a goroutine, but a different host runtime (e.g. an embedded scripting
// language) could satisfy the same interface.
type Coroutine interface {
	// Started reports whether Next/Send has been called yet.
	Started() bool
	// Next advances an unstarted coroutine to its first yield or return.
	Next(ctx context.Context) Outcome
	// Send resumes a suspended coroutine with a value.
	Send(ctx context.Context, v Value) Outcome
	// Throw resumes a suspended coroutine by raising an error at its
	// suspension point, giving it a chance to catch it.
	Throw(ctx context.Context, err error) Outcome
}

// Program is an unstarted coroutine factory — the host-authored function
// before it has been turned into a running Coroutine.
type Program interface {
	Start(ctx context.Context) (Coroutine, error)
}

// OutcomeKind discriminates the three things a coroutine step can produce.
type OutcomeKind int

const (
	OutcomeYield OutcomeKind = iota
	OutcomeReturn
	OutcomeError
)

// Outcome is the result of one Coroutine step.
type Outcome struct {
	Kind     OutcomeKind
	Yielded  Value // valid when Kind == OutcomeYield
	Returned Value // valid when Kind == OutcomeReturn
	Err      error // valid when Kind == OutcomeError
}

func Yield(v Value) Outcome  { return Outcome{Kind: OutcomeYield, Yielded: v} }
func Return(v Value) Outcome { return Outcome{Kind: OutcomeReturn, Returned: v} }
func ErrOutcome(err error) Outcome {
	return Outcome{Kind: OutcomeError, Err: err}
}
