package oracle_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"pgregory.net/rapid"

	"github.com/wippyai/stackvm/code"
	"github.com/wippyai/stackvm/errors"
	"github.com/wippyai/stackvm/interp"
	"github.com/wippyai/stackvm/validate"
)

// instructions draws from the whole instruction set. Constants are kept
// non-negative so that every condition the program computes is read the
// same way by both engines.
func instructions() *rapid.Generator[code.Instruction] {
	return rapid.OneOf(
		rapid.Custom(func(t *rapid.T) code.Instruction {
			return code.I32Const(rapid.Int32Range(0, 3).Draw(t, "i32"))
		}),
		rapid.Just(code.Const(i64, 1)),
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
		rapid.Just(code.Block(nil, nil)),
		rapid.Just(code.Block(nil, types(i32))),
		rapid.Just(code.Block(types(i32), types(i32))),
		rapid.Just(code.Loop(nil, nil)),
		rapid.Just(code.Loop(nil, types(i32))),
		rapid.Just(code.Loop(types(i32), types(i32))),
		rapid.Just(code.If(nil, nil)),
		rapid.Just(code.If(nil, types(i32))),
		rapid.Just(code.Else()),
		rapid.Just(code.End()),
		rapid.Custom(func(t *rapid.T) code.Instruction {
			return code.Br(rapid.Uint32Range(0, 2).Draw(t, "depth"))
		}),
		rapid.Custom(func(t *rapid.T) code.Instruction {
			return code.BrIf(rapid.Uint32Range(0, 2).Draw(t, "depth"))
		}),
		rapid.Just(code.Unreachable()),
	)
}

// Validated programs produce the same results, or the same trap, on the
// interpreter and on the reference engine. The interpreter is the stricter
// of the two about locals read on a path that never declared them, and the
// validator does not type values left behind in unreachable regions, so
// those programs are not compared. Runs that exhaust the interpreter's
// budget, or that read a negative condition after a wrapping add, are not
// run on the engine at all.
func TestInterpreterAgreesWithEngine(t *testing.T) {
	r := newRunner(t)
	ctx := context.Background()

	rapid.Check(t, func(t *rapid.T) {
		p := &code.Program{
			Instructions: rapid.SliceOfN(instructions(), 0, 20).Draw(t, "instructions"),
			Signature: rapid.SampledFrom([][]code.ValueType{
				nil, types(i32), types(i64), types(i32, i32),
			}).Draw(t, "signature"),
		}
		if validate.Program(p) != nil {
			return
		}

		var last []interp.Value
		negative := false
		watch := interp.WithObserver(func(r interp.StepResult) {
			switch r.Op {
			case code.OpBrIf, code.OpIf, code.OpSelect:
				if !r.Skipped && len(last) > 0 && last[len(last)-1].AsI32() < 0 {
					negative = true
				}
			}
			last = r.Stack
		})
		want, interpErr := interp.Execute(p, interp.WithUnreachableTrap(), watch)
		if negative || errors.IsKind(interpErr, errors.KindBudgetExceeded) {
			return
		}
		got, err := r.Run(ctx, p)
		if errors.IsKind(err, errors.KindInvalidData) || errors.IsKind(err, errors.KindUnsupported) {
			return
		}

		switch {
		case interpErr == nil:
			if err != nil {
				t.Fatalf("engine failed: %v\n%s", err, p)
			}
			if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("results differ (-interp +engine):\n%s\n%s", diff, p)
			}
		case errors.IsKind(interpErr, errors.KindDivideByZero), errors.IsKind(interpErr, errors.KindUnreachable):
			kind, _ := errors.KindOf(interpErr)
			if !errors.IsKind(err, kind) {
				t.Fatalf("interp trapped with %v, engine returned %v, %v\n%s", interpErr, got, err, p)
			}
		}
	})
}
