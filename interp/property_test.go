package interp_test

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/wippyai/stackvm/code"
	"github.com/wippyai/stackvm/errors"
	"github.com/wippyai/stackvm/interp"
	"github.com/wippyai/stackvm/validate"
)

// branchFree draws instructions from every opcode except br and br_if.
func branchFree() *rapid.Generator[code.Instruction] {
	return rapid.OneOf(
		rapid.Custom(func(t *rapid.T) code.Instruction {
			return code.I32Const(rapid.Int32Range(-3, 3).Draw(t, "i32"))
		}),
		rapid.Just(code.Const(i64, 1)),
		rapid.Just(code.Const(code.V128, 1)),
		rapid.Just(code.Add()),
		rapid.Just(code.RemS()),
		rapid.Just(code.Eq()),
		rapid.Just(code.LtS()),
		rapid.Just(code.Drop()),
		rapid.Just(code.Select()),
		rapid.Just(code.Local(0, i32)),
		rapid.Just(code.Local(1, i64)),
		rapid.Just(code.LocalGet(0)),
		rapid.Just(code.LocalSet(0)),
		rapid.Just(code.LocalGet(1)),
		rapid.Just(code.LocalSet(1)),
		rapid.Just(code.Block(nil, nil)),
		rapid.Just(code.Block(nil, types(i32))),
		rapid.Just(code.Block(types(i32), types(i32))),
		rapid.Just(code.Loop(nil, types(i32))),
		rapid.Just(code.If(nil, nil)),
		rapid.Just(code.If(nil, types(i32))),
		rapid.Just(code.If(types(i32), types(i32))),
		rapid.Just(code.Else()),
		rapid.Just(code.End()),
		rapid.Just(code.Unreachable()),
	)
}

// Programs without branches that validate never hit a structural error at
// run time. unreachable traps here: an abandoned region leaves its results
// unsupplied, which the validator models with placeholders.
func TestValidatedBranchFreeProgramsRunClean(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := &code.Program{
			Instructions: rapid.SliceOfN(branchFree(), 0, 24).Draw(t, "instructions"),
			Signature: rapid.SampledFrom([][]code.ValueType{
				nil, types(i32), types(i64), types(i32, i32),
			}).Draw(t, "signature"),
		}
		if validate.Program(p) != nil {
			return
		}

		_, err := interp.Execute(p, interp.WithUnreachableTrap())
		for _, kind := range []errors.Kind{
			errors.KindTypeMismatch,
			errors.KindStackUnderflow,
			errors.KindHeightMismatch,
		} {
			if errors.IsKind(err, kind) {
				t.Fatalf("validated program failed at run time: %v\n%s", err, p)
			}
		}
	})
}
