package machine

import (
	"go.uber.org/zap"

	"github.com/wippyai/stackvm/errors"
)

// Transfer is the effect of a resolved branch on control flow.
type Transfer struct {
	// Depth is the relative depth of the target frame.
	Depth int
	// Entry is the target frame's entry instruction index.
	Entry int
	// Arity is the number of label values carried to the target.
	Arity int
	// Reenter is set when the target is a loop, which stays open and resumes
	// at Entry. Otherwise the target is abandoned up to its end.
	Reenter bool
}

// Label resolves a relative branch depth to its frame.
func (m *Machine[T]) Label(depth uint32) (*Frame, error) {
	if uint64(depth) >= uint64(len(m.frames)) {
		return nil, errors.InvalidLabel(m.phase, depth, len(m.frames))
	}
	return m.Frame(int(depth)), nil
}

// Branch applies a branch to label depth. The target's label values are
// popped and checked and every frame inside the target is flagged
// unreachable. A non-loop target is flagged unreachable too and the stack is
// cut back to its base. A loop target stays reachable with its own operands
// in place; only the innermost frame is cut back. The carried values are
// then pushed again on top.
//
// The operands a loop body pushed before the branch are only discarded by a
// real jump; see Rebase.
func (m *Machine[T]) Branch(depth uint32) (Transfer, error) {
	target, err := m.Label(depth)
	if err != nil {
		return Transfer{}, err
	}
	carried, err := m.PopTypes(target.LabelTypes())
	if err != nil {
		return Transfer{}, err
	}

	d := int(depth)
	for i := 0; i < d; i++ {
		m.Frame(i).Unreachable = true
	}
	reenter := target.Kind == KindLoop
	if reenter {
		m.Truncate(m.Frame(0).Base())
	} else {
		target.Unreachable = true
		m.Truncate(target.Base())
	}
	m.ForcePush(carried...)

	m.log.Debug("branch",
		zap.Int("depth", d),
		zap.Stringer("kind", target.Kind),
		zap.Bool("reenter", reenter),
		zap.Int("height", len(m.values)))

	return Transfer{Depth: d, Entry: target.Entry, Arity: len(carried), Reenter: reenter}, nil
}
