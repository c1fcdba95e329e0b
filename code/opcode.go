package code

import "fmt"

// Opcode identifies an instruction. The set is closed; see Opcodes.
type Opcode uint8

const (
	OpInvalid Opcode = iota
	OpConst          // numeric constant, typed by ConstImm
	OpAdd            // i32.add
	OpRemS           // i32.rem_s
	OpEq             // i32.eq
	OpLtS            // i32.lt_s
	OpDrop
	OpSelect
	OpLocal    // declare a local
	OpLocalGet // local.get
	OpLocalSet // local.set
	OpBlock
	OpLoop
	OpIf
	OpElse
	OpEnd
	OpBr
	OpBrIf
	OpUnreachable

	opcodeCount
)

var opcodeNames = [...]string{
	OpInvalid:     "invalid",
	OpConst:       "const",
	OpAdd:         "i32.add",
	OpRemS:        "i32.rem_s",
	OpEq:          "i32.eq",
	OpLtS:         "i32.lt_s",
	OpDrop:        "drop",
	OpSelect:      "select",
	OpLocal:       "local",
	OpLocalGet:    "local.get",
	OpLocalSet:    "local.set",
	OpBlock:       "block",
	OpLoop:        "loop",
	OpIf:          "if",
	OpElse:        "else",
	OpEnd:         "end",
	OpBr:          "br",
	OpBrIf:        "br_if",
	OpUnreachable: "unreachable",
}

// Opcodes returns every supported opcode in declaration order.
func Opcodes() []Opcode {
	ops := make([]Opcode, 0, opcodeCount-1)
	for op := OpConst; op < opcodeCount; op++ {
		ops = append(ops, op)
	}
	return ops
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return fmt.Sprintf("opcode(%d)", uint8(op))
}

// Valid reports whether op is a supported opcode.
func (op Opcode) Valid() bool {
	return op > OpInvalid && op < opcodeCount
}

// Structured reports whether op opens a control frame.
func (op Opcode) Structured() bool {
	return op == OpBlock || op == OpLoop || op == OpIf
}

// HasBlockType reports whether op carries input/output type lists.
func (op Opcode) HasBlockType() bool {
	return op.Structured()
}

// LookupMnemonic resolves a textual opcode. Constant mnemonics
// ("i32.const", "v128.const", ...) resolve to OpConst plus their type.
func LookupMnemonic(name string) (Opcode, ValueType, bool) {
	switch name {
	case "i32.const":
		return OpConst, I32, true
	case "i64.const":
		return OpConst, I64, true
	case "f32.const":
		return OpConst, F32, true
	case "f64.const":
		return OpConst, F64, true
	case "v128.const":
		return OpConst, V128, true
	case "const":
		return OpInvalid, Unknown, false
	}
	for op := OpConst + 1; op < opcodeCount; op++ {
		if opcodeNames[op] == name {
			return op, Unknown, true
		}
	}
	return OpInvalid, Unknown, false
}

// ConstMnemonic returns the textual form of a constant of type t.
func ConstMnemonic(t ValueType) string {
	return t.String() + ".const"
}
