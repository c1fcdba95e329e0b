// Package oracle runs programs on a reference WebAssembly engine.
//
// Encode turns a code.Program into a core module with a single exported
// function; Runner executes that module under wazero and converts the results
// back to interp values so they can be compared with interp.Execute.
//
// The two engines agree on every program that passes validation, with two
// exceptions: conditions of br_if, if and select are taken when strictly
// positive by the interpreter but when non-zero by the engine, and the
// engine has no step budget, only a timeout.
package oracle
