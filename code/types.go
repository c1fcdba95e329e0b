package code

import (
	"fmt"
	"strings"
)

// ValueType is the type tag of an operand stack slot.
type ValueType uint8

// Unknown is the zero value: the polymorphic placeholder produced by popping
// an empty unreachable frame. It never appears in decoded input.
const (
	Unknown ValueType = iota
	I32
	I64
	F32
	F64
	V128
	FuncRef
	ExternRef
)

var valueTypeNames = [...]string{
	Unknown:   "unknown",
	I32:       "i32",
	I64:       "i64",
	F32:       "f32",
	F64:       "f64",
	V128:      "v128",
	FuncRef:   "funcref",
	ExternRef: "externref",
}

// ValueTypes lists the concrete types accepted from input.
func ValueTypes() []ValueType {
	return []ValueType{I32, I64, F32, F64, V128, FuncRef, ExternRef}
}

func (t ValueType) String() string {
	if int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return fmt.Sprintf("valtype(%d)", uint8(t))
}

// Valid reports whether t is a member of the enumeration.
func (t ValueType) Valid() bool {
	return t <= ExternRef
}

// Concrete reports whether t is a valid, non-placeholder type.
func (t ValueType) Concrete() bool {
	return t != Unknown && t.Valid()
}

// IsNum reports whether t can stand for a numeric operand. Unknown counts.
func (t ValueType) IsNum() bool {
	switch t {
	case I32, I64, F32, F64, Unknown:
		return true
	}
	return false
}

// IsVec reports whether t can stand for a vector operand. Unknown counts.
func (t ValueType) IsVec() bool {
	return t == V128 || t == Unknown
}

// IsRef reports whether t can stand for a reference operand. Unknown counts.
func (t ValueType) IsRef() bool {
	switch t {
	case FuncRef, ExternRef, Unknown:
		return true
	}
	return false
}

// Declarable reports whether a local may be declared with type t.
func (t ValueType) Declarable() bool {
	switch t {
	case I32, I64, F32, F64:
		return true
	}
	return false
}

// Matches reports whether got satisfies want. Unknown matches anything in
// either position.
func Matches(want, got ValueType) bool {
	return want == got || want == Unknown || got == Unknown
}

// ParseValueType parses a concrete type name. "unknown" is rejected.
func ParseValueType(s string) (ValueType, error) {
	for _, t := range ValueTypes() {
		if valueTypeNames[t] == s {
			return t, nil
		}
	}
	names := make([]string, 0, len(valueTypeNames)-1)
	for _, t := range ValueTypes() {
		names = append(names, t.String())
	}
	return Unknown, fmt.Errorf("invalid type %q, expected one of: %s", s, strings.Join(names, ", "))
}

// MarshalText implements encoding.TextMarshaler
func (t ValueType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *ValueType) UnmarshalText(b []byte) error {
	v, err := ParseValueType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// FormatTypes renders a type list as "i32, i64".
func FormatTypes(types []ValueType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// EqualTypes reports element-wise equality without placeholder matching.
func EqualTypes(a, b []ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
