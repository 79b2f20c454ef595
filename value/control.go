package value

// ControlPrimitive is the tagged union of dispatch primitives a program
// or a handler body yields to ask the engine to do something other than
// perform an effect: resume or transfer into a continuation, delegate an
// effect outward, install a handler, or introspect the current dispatch.
// These are the "Primitive" variant of Yielded (spec.md §4.5/§4.6).
type ControlPrimitive interface {
	controlPrimitive()
}

// Resume invokes K such that, once it finishes, control returns to the
// handler that resumed it.
type Resume struct {
	K ContinuationRef
	V Value
}

func (Resume) controlPrimitive() {}

// Transfer invokes K abandoning the current handler execution — no
// return to the caller (used for scheduler context switches).
type Transfer struct {
	K ContinuationRef
	V Value
}

func (Transfer) controlPrimitive() {}

// Delegate passes Effect (or, if nil, the effect currently being
// handled) to the next outer visible handler, only valid from within a
// handler's own execution.
type Delegate struct {
	Effect Effect // nil means "the same effect this handler received"
}

func (Delegate) controlPrimitive() {}

// GetContinuation asks for the current dispatch's callsite continuation.
type GetContinuation struct{}

func (GetContinuation) controlPrimitive() {}

// GetHandlers asks for the handler chain visible at the current dispatch.
type GetHandlers struct{}

func (GetHandlers) controlPrimitive() {}

// CreateContinuation constructs an unstarted continuation from Program
// and the handler list that should be installed around it.
type CreateContinuation struct {
	Program  Program
	Handlers []HandlerRef
}

func (CreateContinuation) controlPrimitive() {}

// ResumeContinuation resumes K, starting it first (installing Handlers)
// if it has not yet run.
type ResumeContinuation struct {
	K ContinuationRef
	V Value
}

func (ResumeContinuation) controlPrimitive() {}

// WithHandler installs Handler around Program, running Program in a
// fresh prompt scope.
type WithHandler struct {
	Handler HandlerRef
	Program Program
}

func (WithHandler) controlPrimitive() {}

// YieldedKind discriminates the four ways a coroutine's yielded value can
// be classified (spec.md §4.5 HandleYield / §4.7 classification).
type YieldedKind int

const (
	YieldedPrimitive YieldedKind = iota
	YieldedEffect
	YieldedProgram
	YieldedUnknown
)

// Yielded is the result of classifying whatever a Coroutine yielded.
// Classification is total (spec.md invariant API-11): every value
// produced by a Send/Next/Throw lands in exactly one of these buckets.
type Yielded struct {
	Kind      YieldedKind
	Primitive ControlPrimitive
	Effect    Effect
	Program   Program
	Unknown   Value
}

// primitiveCarrier lets a Value smuggle a ControlPrimitive or an Effect
// across a coroutine yield point without the value package needing a
// dedicated Value variant for every primitive/effect shape. Handler and
// user-program authors construct these via AsPrimitive/AsEffect/AsProgram
// below; Classify recognizes them by type assertion.
type primitiveCarrier struct {
	prim ControlPrimitive
}

func (*primitiveCarrier) Type() Type         { return TypeRaw }
func (c *primitiveCarrier) Inspect() string   { return "control-primitive" }
func (c *primitiveCarrier) Interface() any    { return c.prim }
func (c *primitiveCarrier) Equals(o Value) bool {
	other, ok := o.(*primitiveCarrier)
	return ok && other.prim == c.prim
}

type effectCarrier struct {
	effect Effect
}

func (*effectCarrier) Type() Type        { return TypeRaw }
func (c *effectCarrier) Inspect() string  { return "effect" }
func (c *effectCarrier) Interface() any   { return c.effect }
func (c *effectCarrier) Equals(o Value) bool {
	other, ok := o.(*effectCarrier)
	return ok && other.effect == c.effect
}

type programCarrier struct {
	program Program
}

func (*programCarrier) Type() Type        { return TypeRaw }
func (c *programCarrier) Inspect() string  { return "program" }
func (c *programCarrier) Interface() any   { return c.program }
func (c *programCarrier) Equals(o Value) bool {
	other, ok := o.(*programCarrier)
	return ok && other.program == c.program
}

// AsPrimitive wraps a ControlPrimitive so it can be yielded by a Coroutine.
func AsPrimitive(p ControlPrimitive) Value { return &primitiveCarrier{prim: p} }

// AsEffect wraps an Effect so it can be yielded by a Coroutine.
func AsEffect(e Effect) Value { return &effectCarrier{effect: e} }

// AsProgram wraps a Program so it can be yielded by a Coroutine (nested
// program start, e.g. the body passed to WithHandler).
func AsProgram(p Program) Value { return &programCarrier{program: p} }

// Classify sorts a yielded Value into exactly one Yielded bucket.
func Classify(v Value) Yielded {
	switch c := v.(type) {
	case *primitiveCarrier:
		return Yielded{Kind: YieldedPrimitive, Primitive: c.prim}
	case *effectCarrier:
		return Yielded{Kind: YieldedEffect, Effect: c.effect}
	case *programCarrier:
		return Yielded{Kind: YieldedProgram, Program: c.program}
	default:
		return Yielded{Kind: YieldedUnknown, Unknown: v}
	}
}
