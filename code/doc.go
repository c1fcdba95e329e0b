// Package code defines the instruction model shared by the validator and the
// interpreter.
//
// A Program is an ordered list of Instructions plus the result signature of
// the implicit enclosing function. Instructions come from an external decoder
// (see package decode) or are built directly:
//
//	prog := &code.Program{
//		Instructions: []code.Instruction{
//			code.I32Const(2),
//			code.I32Const(3),
//			code.Add(),
//		},
//		Signature: []code.ValueType{code.I32},
//	}
//
// The opcode vocabulary is closed: Opcodes lists every member and both
// consumers are tested against it.
package code
