// Package decode turns program listings into code.Program values.
//
// Two encodings are supported. The text form is a flat, WAT-like listing
// with an optional (result ...) header, block types written as (param ...)
// and (result ...) clauses, and ;; or (; ;) comments:
//
//	(result i32)
//	i32.const 2
//	i32.const 3
//	i32.add
//
// The tuple form is a JSON or YAML list of [opcode, [inputs], [outputs],
// [immediates]] entries, with // and /* */ comments allowed:
//
//	[["i32.const", [], [], [2]], ["i32.const", [], [], [3]], ["i32.add"]]
//
// Decoding checks type names and immediate shapes only. Structural checks
// belong to package validate.
package decode
