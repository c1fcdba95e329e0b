package stackvm_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wippyai/stackvm"
	"github.com/wippyai/stackvm/code"
	"github.com/wippyai/stackvm/errors"
	"github.com/wippyai/stackvm/interp"
	"github.com/wippyai/stackvm/metrics"
)

func prog(sig []code.ValueType, ins ...code.Instruction) *code.Program {
	return &code.Program{Instructions: ins, Signature: sig}
}

var i32 = []code.ValueType{code.I32}

func TestValidateAndExecute(t *testing.T) {
	m := metrics.New()
	p := prog(i32, code.I32Const(2), code.I32Const(3), code.Add())

	if err := stackvm.Validate(p, stackvm.WithMetrics(m)); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	got, err := stackvm.Execute(p, stackvm.WithMetrics(m))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if diff := cmp.Diff([]interp.Value{interp.I32(5)}, got); diff != "" {
		t.Errorf("stack (-want +got):\n%s", diff)
	}

	bad := prog(i32, code.Add())
	if err := stackvm.Validate(bad, stackvm.WithMetrics(m)); !errors.IsKind(err, errors.KindStackUnderflow) {
		t.Errorf("Validate(bad) = %v, want stack underflow", err)
	}

	if n := testutil.CollectAndCount(m, "stackvm_runs_total"); n != 3 {
		t.Errorf("runs series = %d, want 3", n)
	}
}

func TestExecuteBudget(t *testing.T) {
	spin := prog(nil, code.Loop(nil, nil), code.Br(0), code.End())
	_, err := stackvm.Execute(spin, stackvm.WithBudget(50))
	if !errors.IsKind(err, errors.KindBudgetExceeded) {
		t.Fatalf("Execute = %v, want budget exceeded", err)
	}
}

func TestObserverAndStepper(t *testing.T) {
	p := prog(i32, code.I32Const(1), code.I32Const(2), code.Add())

	var seen []code.Opcode
	if _, err := stackvm.Execute(p, stackvm.WithObserver(func(r interp.StepResult) {
		if r.Executed >= 0 {
			seen = append(seen, r.Op)
		}
	})); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]code.Opcode{code.OpConst, code.OpConst, code.OpAdd}, seen); diff != "" {
		t.Errorf("observed (-want +got):\n%s", diff)
	}

	s, err := stackvm.NewStepper(p)
	if err != nil {
		t.Fatal(err)
	}
	for !s.Done() {
		if _, err := s.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff([]interp.Value{interp.I32(3)}, s.Stack()); diff != "" {
		t.Errorf("stack (-want +got):\n%s", diff)
	}
}

func TestCompare(t *testing.T) {
	ctx := context.Background()

	c, err := stackvm.Compare(ctx, prog(i32,
		code.I32Const(10), code.I32Const(20), code.I32Const(1), code.Select()))
	if err != nil {
		t.Fatal(err)
	}
	if !c.Agree() {
		t.Errorf("positive condition: interp %v / %v, engine %v / %v", c.Interp, c.InterpErr, c.Engine, c.EngineErr)
	}

	// A negative condition is false for the interpreter and true for the engine.
	c, err = stackvm.Compare(ctx, prog(i32,
		code.I32Const(10), code.I32Const(20), code.I32Const(-1), code.Select()))
	if err != nil {
		t.Fatal(err)
	}
	if c.Agree() {
		t.Errorf("negative condition should diverge, both gave %v", c.Interp)
	}

	c, err = stackvm.Compare(ctx, prog(i32, code.I32Const(1), code.I32Const(0), code.RemS()))
	if err != nil {
		t.Fatal(err)
	}
	if !c.Agree() || !errors.IsKind(c.EngineErr, errors.KindDivideByZero) {
		t.Errorf("rem_s by zero: interp %v, engine %v", c.InterpErr, c.EngineErr)
	}

	c, err = stackvm.Compare(ctx, prog(i32,
		code.Block(nil, nil), code.Unreachable(), code.End(), code.I32Const(7)))
	if err != nil {
		t.Fatal(err)
	}
	if !c.Agree() || !errors.IsKind(c.InterpErr, errors.KindUnreachable) {
		t.Errorf("unreachable: interp %v, engine %v", c.InterpErr, c.EngineErr)
	}

	if _, err := stackvm.Compare(ctx, prog(i32)); !errors.IsKind(err, errors.KindHeightMismatch) {
		t.Errorf("Compare(empty) = %v, want height mismatch", err)
	}
}
