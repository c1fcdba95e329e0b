package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDecode   Phase = "decode"   // text/document to instructions
	PhaseValidate Phase = "validate" // static structural typing
	PhaseExecute  Phase = "execute"  // concrete execution
	PhaseEncode   Phase = "encode"   // instructions to a core module
	PhaseRuntime  Phase = "runtime"  // reference engine
	PhaseConfig   Phase = "config"   // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindStackUnderflow     Kind = "stack_underflow"
	KindTypeMismatch       Kind = "type_mismatch"
	KindInvalidLabel       Kind = "invalid_label"
	KindUninitializedLocal Kind = "uninitialized_local"
	KindHeightMismatch     Kind = "height_mismatch"
	KindUnsupportedOpcode  Kind = "unsupported_opcode"
	KindBudgetExceeded     Kind = "budget_exceeded"
	KindMalformed          Kind = "malformed"
	KindDivideByZero       Kind = "divide_by_zero"
	KindUnsupported        Kind = "unsupported"
	KindInvalidData        Kind = "invalid_data"
	KindInvalidInput       Kind = "invalid_input"
	KindUnreachable        Kind = "unreachable"
)

// NoOffset marks an error that is not tied to an instruction.
const NoOffset = -1

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	// Offset is the index of the failing instruction, or NoOffset.
	Offset int
	// Stack is the operand stack at failure time, bottom first.
	Stack []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Offset >= 0 {
		fmt.Fprintf(&b, " at #%d", e.Offset)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Stack != nil {
		b.WriteString(" stack=[")
		b.WriteString(strings.Join(e.Stack, ", "))
		b.WriteByte(']')
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether any *Error in err's chain has the given kind,
// regardless of phase.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Annotate attaches an instruction offset and a stack snapshot to err
// when it is an *Error that does not carry them yet. Other errors are
// returned unchanged.
func Annotate(err error, offset int, stack []string) error {
	var e *Error
	if !stderrors.As(err, &e) {
		return err
	}
	if e.Offset < 0 {
		e.Offset = offset
	}
	if e.Stack == nil {
		if stack == nil {
			stack = []string{}
		}
		e.Stack = stack
	}
	return err
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase:  phase,
			Kind:   kind,
			Offset: NoOffset,
		},
	}
}

// Offset sets the instruction index
func (b *Builder) Offset(pc int) *Builder {
	b.err.Offset = pc
	return b
}

// Stack sets the operand stack snapshot
func (b *Builder) Stack(stack []string) *Builder {
	b.err.Stack = stack
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

func newErr(phase Phase, kind Kind, detail string) *Error {
	return &Error{Phase: phase, Kind: kind, Detail: detail, Offset: NoOffset}
}

// StackUnderflow creates an operand stack underflow error
func StackUnderflow(phase Phase, size, base int) *Error {
	return newErr(phase, KindStackUnderflow,
		fmt.Sprintf("operand stack underflow: size %d at frame base %d", size, base))
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, expected, actual string) *Error {
	return newErr(phase, KindTypeMismatch,
		fmt.Sprintf("expected [%s], got [%s]", expected, actual))
}

// InvalidLabel creates an out-of-range branch label error
func InvalidLabel(phase Phase, label uint32, depth int) *Error {
	e := newErr(phase, KindInvalidLabel,
		fmt.Sprintf("label %d out of range (control depth %d)", label, depth))
	e.Value = label
	return e
}

// UninitializedLocal creates an access-before-declaration error
func UninitializedLocal(phase Phase, index uint32) *Error {
	e := newErr(phase, KindUninitializedLocal, fmt.Sprintf("local %d not initialized", index))
	e.Value = index
	return e
}

// HeightMismatch creates a frame-close height error
func HeightMismatch(phase Phase, kind string, size, want int) *Error {
	return newErr(phase, KindHeightMismatch,
		fmt.Sprintf("operand stack height mismatch closing %s: %d, want %d", kind, size, want))
}

// UnsupportedOpcode creates an unknown opcode error
func UnsupportedOpcode(phase Phase, op any) *Error {
	e := newErr(phase, KindUnsupportedOpcode, fmt.Sprintf("unsupported opcode: %v", op))
	e.Value = op
	return e
}

// BudgetExceeded creates a step budget exhaustion error
func BudgetExceeded(phase Phase, budget int) *Error {
	e := newErr(phase, KindBudgetExceeded, fmt.Sprintf("maximum execution count %d reached", budget))
	e.Value = budget
	return e
}

// Malformed creates a structural nesting error
func Malformed(phase Phase, detail string) *Error {
	return newErr(phase, KindMalformed, detail)
}

// DivideByZero creates an integer division trap
func DivideByZero(phase Phase) *Error {
	return newErr(phase, KindDivideByZero, "integer divide by zero")
}

// Unreachable creates the trap raised when execution reaches an
// unreachable instruction
func Unreachable(phase Phase) *Error {
	return newErr(phase, KindUnreachable, "unreachable executed")
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return newErr(phase, KindUnsupported, what)
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, detail string) *Error {
	return newErr(phase, KindInvalidData, detail)
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return newErr(phase, KindInvalidInput, detail)
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	e := newErr(phase, kind, detail)
	e.Cause = cause
	return e
}

// ParseFailed creates a decoding error
func ParseFailed(what string, cause error) *Error {
	return Wrap(PhaseDecode, KindInvalidData, cause, fmt.Sprintf("parse %s", what))
}
