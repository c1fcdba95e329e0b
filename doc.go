// Package stackvm type-checks and runs programs for a small structured
// stack machine: a WebAssembly-like subset with i32 arithmetic, locals,
// block, loop, if/else and label branches.
//
// # Architecture Overview
//
//	stackvm/          Facade: Validate, Execute, NewStepper, Compare
//	├── code/         Instructions, opcodes, value types, programs
//	├── machine/      Operand stack, control frames, branch resolution
//	├── validate/     Static validator over abstract types
//	├── interp/       Interpreter over concrete values, step mode, snapshots
//	├── decode/       Text and tuple (JSON/YAML) program listings
//	├── oracle/       Core module encoder and wazero reference runs
//	├── metrics/      Prometheus collectors
//	├── config/       stackvm.toml loading
//	└── errors/       Structured error types
//
// # Quick Start
//
//	prog, err := decode.Text(`
//	    (result i32)
//	    i32.const 2
//	    i32.const 3
//	    i32.add`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := stackvm.Validate(prog); err != nil {
//	    log.Fatal(err)
//	}
//	stack, err := stackvm.Execute(prog, stackvm.WithBudget(1000))
//	fmt.Println(stack) // [i32:5]
//
// Errors carry a phase, a kind, the instruction offset and a rendering of
// the operand stack at the point of failure; see package errors.
package stackvm
