// Package interp executes programs over concrete values.
//
// The interpreter shares its stack and frame bookkeeping with validation
// through package machine, adding a program counter, locals and an
// instruction budget. Code inside an unreachable frame is skipped
// instruction by instruction until the frame's own else or end. A frame
// becomes unreachable after a branch out of it or at an unreachable
// instruction; WithUnreachableTrap turns the latter into an error.
//
// Execute runs a program to completion:
//
//	stack, err := interp.Execute(prog, interp.WithBudget(1000))
//
// For step mode, create an Interpreter and call Step repeatedly. A paused
// run can be serialized with Snapshot and resumed in another Interpreter for
// the same program with RestoreSnapshot.
package interp
