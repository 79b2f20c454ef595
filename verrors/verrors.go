// Package verrors defines the engine's structured error kinds (spec.md
// §7). Unlike the teacher's errors/errz packages, these carry no source
// location — effect programs are plain Go values and closures, not
// parsed source text, so there is no span to point at.
package verrors

import "fmt"

// Kind classifies why the engine stopped.
type Kind string

const (
	UnhandledEffect           Kind = "UnhandledEffect"
	UncaughtException         Kind = "UncaughtException"
	ContinuationAlreadyResumed Kind = "ContinuationAlreadyResumed"
	InvalidContinuationUse    Kind = "InvalidContinuationUse"
	TypeError                 Kind = "TypeError"
	HostException             Kind = "HostException"
	RuntimeError              Kind = "RuntimeError"
)

// VMError is the engine's one structured error type, tagged with Kind so
// callers can branch on what went wrong without string matching.
type VMError struct {
	Kind   Kind
	Err    error
	Detail string
}

func (e *VMError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *VMError) Unwrap() error { return e.Err }

// New builds a VMError of the given kind wrapping err.
func New(kind Kind, err error) *VMError {
	return &VMError{Kind: kind, Err: err}
}

// Newf builds a VMError of the given kind whose Err is formatted from
// detail and args; the Detail field stays empty.
func Newf(kind Kind, detail string, args ...any) *VMError {
	return &VMError{Kind: kind, Err: fmt.Errorf(detail, args...)}
}

// Is reports whether err is a *VMError of the given kind.
func Is(err error, kind Kind) bool {
	ve, ok := err.(*VMError)
	return ok && ve.Kind == kind
}
