package interp

import (
	"math"
	"strconv"

	"github.com/wippyai/stackvm/code"
)

// Value is a typed operand. Bits holds the raw payload: i32 values are stored
// zero-extended, floats as their IEEE bit pattern.
type Value struct {
	Bits uint64         `cbor:"1,keyasint"`
	Type code.ValueType `cbor:"2,keyasint"`
}

// I32 returns an i32 value.
func I32(v int32) Value {
	return Value{Type: code.I32, Bits: uint64(uint32(v))}
}

// I64 returns an i64 value.
func I64(v int64) Value {
	return Value{Type: code.I64, Bits: uint64(v)}
}

// F32 returns an f32 value.
func F32(v float32) Value {
	return Value{Type: code.F32, Bits: uint64(math.Float32bits(v))}
}

// F64 returns an f64 value.
func F64(v float64) Value {
	return Value{Type: code.F64, Bits: math.Float64bits(v)}
}

// Bool returns the i32 encoding of b: 1 or 0.
func Bool(b bool) Value {
	if b {
		return I32(1)
	}
	return I32(0)
}

// Zero returns the zero value of t.
func Zero(t code.ValueType) Value {
	return Value{Type: t}
}

// FromConst converts a constant immediate to a value.
func FromConst(imm code.ConstImm) Value {
	switch imm.Type {
	case code.I32, code.F32:
		return Value{Type: imm.Type, Bits: uint64(uint32(imm.Value))}
	default:
		return Value{Type: imm.Type, Bits: uint64(imm.Value)}
	}
}

// AsI32 interprets the payload as a signed 32-bit integer.
func (v Value) AsI32() int32 { return int32(uint32(v.Bits)) }

// AsI64 interprets the payload as a signed 64-bit integer.
func (v Value) AsI64() int64 { return int64(v.Bits) }

func (v Value) String() string {
	var s string
	switch v.Type {
	case code.I32:
		s = strconv.FormatInt(int64(v.AsI32()), 10)
	case code.F32:
		s = strconv.FormatFloat(float64(math.Float32frombits(uint32(v.Bits))), 'g', -1, 32)
	case code.F64:
		s = strconv.FormatFloat(math.Float64frombits(v.Bits), 'g', -1, 64)
	case code.Unknown:
		return "unknown"
	default:
		s = strconv.FormatInt(v.AsI64(), 10)
	}
	return v.Type.String() + ":" + s
}

func typeOf(v Value) code.ValueType { return v.Type }

var unknown = Value{Type: code.Unknown}
