// Package errors provides structured error types for stackvm.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// Errors raised while validating or executing also carry the offset of the failing
// instruction and a snapshot of the operand stack at failure time.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseValidate, errors.KindTypeMismatch).
//		Offset(4).
//		Detail("select operands must both be numeric or both vector").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidLabel(errors.PhaseExecute, 3, 2)
//	err := errors.StackUnderflow(errors.PhaseValidate, 0, 0)
//
// Kinds are shared by validation and execution; use IsKind to test for a kind
// without caring which phase raised it.
package errors
