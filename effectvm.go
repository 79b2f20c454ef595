// Package effectvm is the public entry point: Run/AsyncRun a value.Program
// under a configured set of handlers, and inspect the outcome via
// RunResult. The functional-options pattern here mirrors the teacher's
// own risor_options.go.
package effectvm

import (
	"context"

	"github.com/deepnoodle-ai/effectvm/driver"
	"github.com/deepnoodle-ai/effectvm/engine"
	"github.com/deepnoodle-ai/effectvm/handler"
	"github.com/deepnoodle-ai/effectvm/ids"
	"github.com/deepnoodle-ai/effectvm/internal/vmlog"
	"github.com/deepnoodle-ai/effectvm/scheduler"
	"github.com/deepnoodle-ai/effectvm/value"
	"github.com/deepnoodle-ai/effectvm/verrors"
)

type config struct {
	env          map[string]value.Value
	state        map[string]value.Value
	handlers     []value.HandlerRef
	observer     engine.Observer
	logger       vmlog.Logger
	stepLimit    int
	withScheduler bool
	resolveFunc    driver.FuncResolver
	resolveHandler driver.HandlerResolver
}

// Option describes a function used to configure a Run/AsyncRun call.
type Option func(*config)

// WithEnv supplies the read-only environment map the standard Ask
// handler serves.
func WithEnv(env map[string]value.Value) Option {
	return func(c *config) {
		for k, v := range env {
			c.env[k] = v
		}
	}
}

// WithState seeds the mutable state map the standard Get/Put/Modify
// handler serves.
func WithState(state map[string]value.Value) Option {
	return func(c *config) {
		for k, v := range state {
			c.state[k] = v
		}
	}
}

// WithHandlers installs additional handlers outermost-first around the
// program, beyond the standard library and (if enabled) the scheduler.
func WithHandlers(handlers ...value.HandlerRef) Option {
	return func(c *config) {
		c.handlers = append(c.handlers, handlers...)
	}
}

// WithoutScheduler disables installing the reference Spawn/Gather/Race
// scheduler handler, for programs that only need the standard library
// effects.
func WithoutScheduler() Option {
	return func(c *config) { c.withScheduler = false }
}

// WithObserver attaches an engine.Observer for tracing.
func WithObserver(o engine.Observer) Option {
	return func(c *config) { c.observer = o }
}

// WithLogger attaches a structured diagnostics sink.
func WithLogger(l vmlog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithStepLimit caps the number of step-machine transitions before
// aborting with a RuntimeError, guarding against runaway programs.
func WithStepLimit(n int) Option {
	return func(c *config) { c.stepLimit = n }
}

// WithFuncResolver supplies how the driver turns a callable Value (e.g.
// Modify's modifier) into a callable Go function.
func WithFuncResolver(r driver.FuncResolver) Option {
	return func(c *config) { c.resolveFunc = r }
}

// WithHandlerResolver supplies how the driver invokes a HostCallable
// handler's opaque identity.
func WithHandlerResolver(r driver.HandlerResolver) Option {
	return func(c *config) { c.resolveHandler = r }
}

func newConfig(opts []Option) *config {
	c := &config{
		env:           map[string]value.Value{},
		state:         map[string]value.Value{},
		withScheduler: true,
		logger:        vmlog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunResult is the outcome of running a program to completion.
type RunResult struct {
	Value value.Value
	Err   error

	// RawStore is a snapshot of the L2 native store's State map at the
	// moment the run finished (spec.md §6), taken whether the program
	// succeeded or failed.
	RawStore map[string]value.Value
}

func (r RunResult) IsOk() bool  { return r.Err == nil }
func (r RunResult) IsErr() bool { return r.Err != nil }

// Run executes program to completion and returns its RunResult.
func Run(ctx context.Context, program value.Program, opts ...Option) RunResult {
	cfg := newConfig(opts)
	counters := &ids.Counters{}
	store := handler.NewStore()
	store.Env = cfg.env
	for k, v := range cfg.state {
		store.State[k] = v
	}

	handlers := []value.HandlerRef{
		handler.NewStateHandler(store),
		handler.NewReaderHandler(store),
		handler.NewWriterHandler(store),
	}
	if cfg.withScheduler {
		sched := scheduler.New(counters, store)
		handlers = append(handlers, sched.Handler())
	}
	handlers = append(handlers, cfg.handlers...)

	obs := cfg.observer
	if obs == nil {
		obs = engine.NoOpObserver{}
	}
	m := engine.New(engine.Config{
		Counters:  counters,
		Store:     store,
		Observer:  obs,
		StepLimit: cfg.stepLimit,
	})
	d := driver.New(cfg.resolveFunc, cfg.resolveHandler)

	v, err := d.RunWithHandlers(ctx, m, program, handlers)
	rawStore := make(map[string]value.Value, len(store.State))
	for k, sv := range store.State {
		rawStore[k] = sv
	}
	if err != nil {
		cfg.logger.Error(err)
		return RunResult{Err: err, RawStore: rawStore}
	}
	return RunResult{Value: v, RawStore: rawStore}
}

// AsyncRun runs program on its own goroutine, returning a channel that
// receives exactly one RunResult once it finishes.
func AsyncRun(ctx context.Context, program value.Program, opts ...Option) <-chan RunResult {
	out := make(chan RunResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				out <- RunResult{Err: verrors.Newf(verrors.RuntimeError, "panic: %v", r)}
			}
		}()
		out <- Run(ctx, program, opts...)
	}()
	return out
}
