// Package validate statically type-checks programs.
//
// Validation walks the instruction sequence once, tracking operand types and
// control frames, and finally compares the implicit function frame against
// the declared result signature. After br or unreachable the rest of the
// enclosing region is checked polymorphically.
package validate
