package code

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wippyai/stackvm/errors"
)

// Instruction is one decoded instruction. Inputs and Outputs are populated
// only for block, loop and if.
type Instruction struct {
	Imm     any
	Inputs  []ValueType
	Outputs []ValueType
	Opcode  Opcode
}

// ConstImm holds the literal of a constant. Value is the raw payload: the
// signed integer for i32/i64/v128 and the IEEE bit pattern for f32/f64.
type ConstImm struct {
	Type  ValueType
	Value int64
}

// LocalImm holds the local index for local, local.get and local.set. Type is
// only meaningful for local.
type LocalImm struct {
	Index uint32
	Type  ValueType
}

// BranchImm holds the relative label depth for br and br_if.
type BranchImm struct {
	Depth uint32
}

// I32Const builds an i32 constant.
func I32Const(v int32) Instruction {
	return Const(I32, int64(v))
}

// Const builds a constant of type t.
func Const(t ValueType, v int64) Instruction {
	return Instruction{Opcode: OpConst, Imm: ConstImm{Type: t, Value: v}}
}

func Add() Instruction         { return Instruction{Opcode: OpAdd} }
func RemS() Instruction        { return Instruction{Opcode: OpRemS} }
func Eq() Instruction          { return Instruction{Opcode: OpEq} }
func LtS() Instruction         { return Instruction{Opcode: OpLtS} }
func Drop() Instruction        { return Instruction{Opcode: OpDrop} }
func Select() Instruction      { return Instruction{Opcode: OpSelect} }
func Else() Instruction        { return Instruction{Opcode: OpElse} }
func End() Instruction         { return Instruction{Opcode: OpEnd} }
func Unreachable() Instruction { return Instruction{Opcode: OpUnreachable} }

// Local declares local idx with type t.
func Local(idx uint32, t ValueType) Instruction {
	return Instruction{Opcode: OpLocal, Imm: LocalImm{Index: idx, Type: t}}
}

func LocalGet(idx uint32) Instruction {
	return Instruction{Opcode: OpLocalGet, Imm: LocalImm{Index: idx}}
}

func LocalSet(idx uint32) Instruction {
	return Instruction{Opcode: OpLocalSet, Imm: LocalImm{Index: idx}}
}

func Block(in, out []ValueType) Instruction {
	return Instruction{Opcode: OpBlock, Inputs: in, Outputs: out}
}

func Loop(in, out []ValueType) Instruction {
	return Instruction{Opcode: OpLoop, Inputs: in, Outputs: out}
}

func If(in, out []ValueType) Instruction {
	return Instruction{Opcode: OpIf, Inputs: in, Outputs: out}
}

func Br(depth uint32) Instruction {
	return Instruction{Opcode: OpBr, Imm: BranchImm{Depth: depth}}
}

func BrIf(depth uint32) Instruction {
	return Instruction{Opcode: OpBrIf, Imm: BranchImm{Depth: depth}}
}

// ConstImmediate returns the constant immediate or a malformed error.
func (in *Instruction) ConstImmediate(phase errors.Phase) (ConstImm, error) {
	imm, ok := in.Imm.(ConstImm)
	if !ok {
		return ConstImm{}, errors.Malformed(phase, fmt.Sprintf("%s requires a constant immediate", in.Opcode))
	}
	return imm, nil
}

// LocalImmediate returns the local immediate or a malformed error.
func (in *Instruction) LocalImmediate(phase errors.Phase) (LocalImm, error) {
	imm, ok := in.Imm.(LocalImm)
	if !ok {
		return LocalImm{}, errors.Malformed(phase, fmt.Sprintf("%s requires a local index immediate", in.Opcode))
	}
	return imm, nil
}

// BranchImmediate returns the branch immediate or a malformed error.
func (in *Instruction) BranchImmediate(phase errors.Phase) (BranchImm, error) {
	imm, ok := in.Imm.(BranchImm)
	if !ok {
		return BranchImm{}, errors.Malformed(phase, fmt.Sprintf("%s requires one immediate", in.Opcode))
	}
	return imm, nil
}

// String renders the instruction in the text form accepted by decode.Text.
func (in Instruction) String() string {
	var b strings.Builder
	switch in.Opcode {
	case OpConst:
		if imm, ok := in.Imm.(ConstImm); ok {
			b.WriteString(ConstMnemonic(imm.Type))
			b.WriteByte(' ')
			b.WriteString(formatConst(imm))
			return b.String()
		}
	case OpLocal:
		if imm, ok := in.Imm.(LocalImm); ok {
			fmt.Fprintf(&b, "local %d %s", imm.Index, imm.Type)
			return b.String()
		}
	case OpLocalGet, OpLocalSet:
		if imm, ok := in.Imm.(LocalImm); ok {
			fmt.Fprintf(&b, "%s %d", in.Opcode, imm.Index)
			return b.String()
		}
	case OpBr, OpBrIf:
		if imm, ok := in.Imm.(BranchImm); ok {
			fmt.Fprintf(&b, "%s %d", in.Opcode, imm.Depth)
			return b.String()
		}
	case OpBlock, OpLoop, OpIf:
		b.WriteString(in.Opcode.String())
		if len(in.Inputs) > 0 {
			b.WriteString(" (param ")
			b.WriteString(strings.ReplaceAll(FormatTypes(in.Inputs), ",", ""))
			b.WriteByte(')')
		}
		if len(in.Outputs) > 0 {
			b.WriteString(" (result ")
			b.WriteString(strings.ReplaceAll(FormatTypes(in.Outputs), ",", ""))
			b.WriteByte(')')
		}
		return b.String()
	}
	return in.Opcode.String()
}

// formatConst renders a literal so that decode.Text reads back the same bits.
// Floats use the hexadecimal form. NaNs keep their sign and payload.
func formatConst(imm ConstImm) string {
	var f float64
	var raw uint64
	bits, mant := 64, 52
	switch imm.Type {
	case F32:
		raw = uint64(uint32(imm.Value))
		f, bits, mant = float64(math.Float32frombits(uint32(raw))), 32, 23
	case F64:
		raw = uint64(imm.Value)
		f = math.Float64frombits(raw)
	default:
		return strconv.FormatInt(imm.Value, 10)
	}
	switch {
	case math.IsNaN(f):
		return formatNaN(raw, bits, mant)
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'x', -1, bits)
}

func formatNaN(raw uint64, bits, mant int) string {
	s := "nan"
	if payload := raw & (1<<mant - 1); payload != 1<<(mant-1) {
		s += ":0x" + strconv.FormatUint(payload, 16)
	}
	if raw>>(bits-1)&1 != 0 {
		s = "-" + s
	}
	return s
}
