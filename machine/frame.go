package machine

import (
	"fmt"

	"github.com/wippyai/stackvm/code"
)

// Kind tags a control frame.
type Kind uint8

const (
	KindFunction Kind = iota
	KindBlock
	KindLoop
	KindIf
	KindElse
)

var kindNames = [...]string{
	KindFunction: "function",
	KindBlock:    "block",
	KindLoop:     "loop",
	KindIf:       "if",
	KindElse:     "else",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// KindOf maps a structured opcode to the kind of frame it opens.
func KindOf(op code.Opcode) (Kind, bool) {
	switch op {
	case code.OpBlock:
		return KindBlock, true
	case code.OpLoop:
		return KindLoop, true
	case code.OpIf:
		return KindIf, true
	}
	return KindFunction, false
}

// Else is the transition taken by an else instruction. Only an If frame
// has one; every other kind reports false.
func (k Kind) Else() (Kind, bool) {
	if k == KindIf {
		return KindElse, true
	}
	return k, false
}

// Frame describes one open control region.
type Frame struct {
	Inputs  []code.ValueType `cbor:"1,keyasint,omitempty"`
	Outputs []code.ValueType `cbor:"2,keyasint,omitempty"`
	// Entry is the index of the first instruction of the region body.
	Entry int `cbor:"3,keyasint"`
	// Height is the operand stack size once the inputs are in place.
	Height      int   `cbor:"4,keyasint"`
	Cond        int32 `cbor:"5,keyasint,omitempty"`
	Kind        Kind  `cbor:"6,keyasint"`
	Unreachable bool  `cbor:"7,keyasint,omitempty"`
}

// Base is the stack size below the frame's inputs. Values under it belong
// to enclosing frames and cannot be popped from inside this one.
func (f *Frame) Base() int {
	return f.Height - len(f.Inputs)
}

// LabelTypes returns the types a branch to this frame carries: the inputs
// of a loop, the outputs of everything else.
func (f *Frame) LabelTypes() []code.ValueType {
	if f.Kind == KindLoop {
		return f.Inputs
	}
	return f.Outputs
}

// Taken reports whether the governing condition of an If or Else frame
// selected the consequent.
func (f *Frame) Taken() bool {
	return f.Cond > 0
}

func (f Frame) String() string {
	s := fmt.Sprintf("%s[%s]->[%s] h=%d", f.Kind, code.FormatTypes(f.Inputs), code.FormatTypes(f.Outputs), f.Height)
	if f.Unreachable {
		s += " unreachable"
	}
	return s
}
