package machine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/stackvm/code"
	"github.com/wippyai/stackvm/errors"
)

// Machine owns one operand stack and one control stack for the duration of
// a single validation or execution run. T is the stack element: a type tag
// for validation, a concrete value for execution.
//
// Control frames are addressed by relative depth, 0 being the innermost.
type Machine[T any] struct {
	typeOf  func(T) code.ValueType
	log     *zap.Logger
	values  []T
	frames  []Frame
	unknown T
	phase   errors.Phase
}

// New creates an empty machine. unknown is the element returned when popping
// past the base of an unreachable frame; typeOf reports an element's type.
func New[T any](phase errors.Phase, unknown T, typeOf func(T) code.ValueType) *Machine[T] {
	return &Machine[T]{
		phase:   phase,
		unknown: unknown,
		typeOf:  typeOf,
		log:     Logger().With(zap.String("mode", string(phase))),
	}
}

// Phase returns the phase stamped on errors raised by this machine.
func (m *Machine[T]) Phase() errors.Phase { return m.phase }

// Len returns the operand stack size.
func (m *Machine[T]) Len() int { return len(m.values) }

// Depth returns the number of open control frames.
func (m *Machine[T]) Depth() int { return len(m.frames) }

// Frame returns the frame at relative depth d, or nil when d is out of range.
// The pointer stays valid until the next frame push or pop.
func (m *Machine[T]) Frame(d int) *Frame {
	if d < 0 || d >= len(m.frames) {
		return nil
	}
	return &m.frames[len(m.frames)-1-d]
}

// Values returns a copy of the operand stack, bottom first.
func (m *Machine[T]) Values() []T {
	out := make([]T, len(m.values))
	copy(out, m.values)
	return out
}

// Frames returns a copy of the control stack, innermost first.
func (m *Machine[T]) Frames() []Frame {
	out := make([]Frame, len(m.frames))
	for i := range m.frames {
		out[i] = m.frames[len(m.frames)-1-i]
	}
	return out
}

// Snapshot renders the operand stack for diagnostics.
func (m *Machine[T]) Snapshot() []string {
	out := make([]string, len(m.values))
	for i, v := range m.values {
		out[i] = fmt.Sprint(v)
	}
	return out
}

// Restore replaces both stacks. frames is innermost first, as returned by
// Frames.
func (m *Machine[T]) Restore(values []T, frames []Frame) {
	m.values = append(m.values[:0], values...)
	m.frames = m.frames[:0]
	for i := len(frames) - 1; i >= 0; i-- {
		m.frames = append(m.frames, frames[i])
	}
}

// Reset empties both stacks.
func (m *Machine[T]) Reset() {
	m.values = m.values[:0]
	m.frames = m.frames[:0]
}

func (m *Machine[T]) innermostUnreachable() bool {
	return len(m.frames) > 0 && m.frames[len(m.frames)-1].Unreachable
}

// Push pushes v unless the innermost frame is unreachable.
func (m *Machine[T]) Push(v T) {
	if m.innermostUnreachable() {
		return
	}
	m.values = append(m.values, v)
}

// ForcePush pushes vs regardless of reachability.
func (m *Machine[T]) ForcePush(vs ...T) {
	m.values = append(m.values, vs...)
}

// Pop removes the top value. At the base of an unreachable frame it
// returns the unknown element and leaves the stack untouched.
func (m *Machine[T]) Pop() (T, error) {
	base := 0
	unreachable := false
	if f := m.Frame(0); f != nil {
		base = f.Base()
		unreachable = f.Unreachable
	}
	if len(m.values) <= base {
		if unreachable {
			return m.unknown, nil
		}
		var zero T
		return zero, errors.StackUnderflow(m.phase, len(m.values), base)
	}
	v := m.values[len(m.values)-1]
	m.values = m.values[:len(m.values)-1]
	return v, nil
}

// PopExpect pops one value and checks it against want.
func (m *Machine[T]) PopExpect(want code.ValueType) (T, error) {
	v, err := m.Pop()
	if err != nil {
		return v, err
	}
	if got := m.typeOf(v); !code.Matches(want, got) {
		return v, errors.TypeMismatch(m.phase, want.String(), got.String())
	}
	return v, nil
}

// PopTypes pops one value per entry of types, last entry first, and returns
// them in stack order.
func (m *Machine[T]) PopTypes(types []code.ValueType) ([]T, error) {
	out := make([]T, len(types))
	for i := len(types) - 1; i >= 0; i-- {
		v, err := m.PopExpect(types[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Truncate shrinks the operand stack to h values. It never grows it.
func (m *Machine[T]) Truncate(h int) {
	if h >= 0 && h < len(m.values) {
		m.values = m.values[:h]
	}
}

// Rebase moves the top keep values down so they start at height h, dropping
// everything in between.
func (m *Machine[T]) Rebase(h, keep int) {
	top := len(m.values) - keep
	if h < 0 || top < 0 || h >= top {
		return
	}
	n := copy(m.values[h:], m.values[top:])
	m.values = m.values[:h+n]
}

// PushFrame opens a frame and places args, the frame's inputs, on top of the
// stack. The frame is recorded first so args are never suppressed.
func (m *Machine[T]) PushFrame(entry int, kind Kind, in, out []code.ValueType, args []T) *Frame {
	m.frames = append(m.frames, Frame{
		Entry:   entry,
		Kind:    kind,
		Inputs:  in,
		Outputs: out,
	})
	m.values = append(m.values, args...)
	f := &m.frames[len(m.frames)-1]
	f.Height = len(m.values)
	m.log.Debug("push frame",
		zap.Stringer("kind", kind),
		zap.Int("entry", entry),
		zap.Int("height", f.Height),
		zap.Int("depth", len(m.frames)))
	return f
}

// CheckOutputs verifies that the innermost frame's outputs sit on top of the
// stack and that nothing else remains above its base. The stack is not
// modified.
func (m *Machine[T]) CheckOutputs() error {
	f := m.Frame(0)
	if f == nil {
		return errors.Malformed(m.phase, "no open control frame")
	}
	base := f.Base()
	avail := len(m.values) - base
	n := len(f.Outputs)
	if avail < n {
		return errors.StackUnderflow(m.phase, len(m.values), base)
	}
	top := m.values[len(m.values)-n:]
	for i, want := range f.Outputs {
		if got := m.typeOf(top[i]); !code.Matches(want, got) {
			return errors.TypeMismatch(m.phase, code.FormatTypes(f.Outputs), m.typesOf(top))
		}
	}
	if avail != n {
		return errors.HeightMismatch(m.phase, f.Kind.String(), len(m.values), base+n)
	}
	return nil
}

func (m *Machine[T]) typesOf(vs []T) string {
	types := make([]code.ValueType, len(vs))
	for i, v := range vs {
		types[i] = m.typeOf(v)
	}
	return code.FormatTypes(types)
}

// PopFrame closes the innermost frame. A reachable frame must satisfy
// CheckOutputs first. Values are left in place.
func (m *Machine[T]) PopFrame() (Frame, error) {
	f := m.Frame(0)
	if f == nil {
		return Frame{}, errors.Malformed(m.phase, "end without an open control frame")
	}
	if !f.Unreachable {
		if err := m.CheckOutputs(); err != nil {
			return *f, err
		}
	}
	closed := *f
	m.frames = m.frames[:len(m.frames)-1]
	m.log.Debug("pop frame",
		zap.Stringer("kind", closed.Kind),
		zap.Bool("unreachable", closed.Unreachable),
		zap.Int("height", len(m.values)),
		zap.Int("depth", len(m.frames)))
	return closed, nil
}

// Unwind discards the n innermost frames without any checks.
func (m *Machine[T]) Unwind(n int) {
	n = min(n, len(m.frames))
	m.frames = m.frames[:len(m.frames)-n]
}

// MarkUnreachable truncates the stack to the innermost frame's base and
// flags the frame unreachable.
func (m *Machine[T]) MarkUnreachable() {
	f := m.Frame(0)
	if f == nil {
		return
	}
	m.Truncate(f.Base())
	f.Unreachable = true
	m.log.Debug("unreachable", zap.Stringer("kind", f.Kind), zap.Int("height", len(m.values)))
}
