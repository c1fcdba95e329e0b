package code

import (
	"fmt"
	"strings"

	"github.com/wippyai/stackvm/errors"
)

// Program is an instruction sequence together with the result signature of
// its implicit enclosing function.
type Program struct {
	Instructions []Instruction
	Signature    []ValueType
}

// Check verifies that every type mentioned by the program is a concrete
// member of ValueType and that every opcode is supported.
func (p *Program) Check(phase errors.Phase) error {
	if err := checkTypes(phase, "signature", p.Signature); err != nil {
		return err
	}
	for i := range p.Instructions {
		in := &p.Instructions[i]
		if !in.Opcode.Valid() {
			e := errors.UnsupportedOpcode(phase, in.Opcode)
			e.Offset = i
			return e
		}
		where := fmt.Sprintf("#%d %s", i, in.Opcode)
		if err := checkTypes(phase, where+" inputs", in.Inputs); err != nil {
			return err
		}
		if err := checkTypes(phase, where+" outputs", in.Outputs); err != nil {
			return err
		}
	}
	return nil
}

func checkTypes(phase errors.Phase, where string, types []ValueType) error {
	for _, t := range types {
		if !t.Concrete() {
			return errors.InvalidData(phase, fmt.Sprintf("%s: invalid type %s", where, t))
		}
	}
	return nil
}

// String renders the program in the text form accepted by decode.Text.
func (p *Program) String() string {
	var b strings.Builder
	if len(p.Signature) > 0 {
		b.WriteString("(result ")
		b.WriteString(strings.ReplaceAll(FormatTypes(p.Signature), ",", ""))
		b.WriteString(")\n")
	}
	depth := 0
	for _, in := range p.Instructions {
		if in.Opcode == OpEnd || in.Opcode == OpElse {
			depth = max(depth-1, 0)
		}
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(in.String())
		b.WriteByte('\n')
		if in.Opcode.Structured() || in.Opcode == OpElse {
			depth++
		}
	}
	return b.String()
}
