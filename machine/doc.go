// Package machine implements the operand stack and control stack shared by
// validation and execution, together with branch resolution.
//
// A Machine is generic over its stack element. Validation instantiates it
// with code.ValueType, execution with a concrete value type; both see the
// same frame bookkeeping:
//
//	m := machine.New(errors.PhaseValidate, code.Unknown, func(t code.ValueType) code.ValueType { return t })
//	m.PushFrame(0, machine.KindFunction, nil, sig, nil)
//
// Every frame records Height, the stack size once its inputs are in place,
// and exposes Base, the size below those inputs. Pops never reach under the
// innermost frame's base: a reachable frame reports stack underflow, an
// unreachable one yields the unknown element instead.
//
// Branch resolves a relative label depth. Loops carry their inputs and stay
// open; every other target carries its outputs and is abandoned.
package machine
