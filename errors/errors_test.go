package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
		excludes []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseValidate,
				Kind:   KindTypeMismatch,
				Offset: 7,
				Detail: "expected [i32], got [i64]",
				Stack:  []string{"i32", "i64"},
			},
			contains: []string{"[validate]", "type_mismatch", "at #7", "expected [i32]", "stack=[i32, i64]"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase:  PhaseDecode,
				Kind:   KindInvalidData,
				Offset: NoOffset,
			},
			contains: []string{"[decode]", "invalid_data"},
			excludes: []string{"at #", "stack="},
		},
		{
			name: "empty stack snapshot",
			err: &Error{
				Phase:  PhaseExecute,
				Kind:   KindStackUnderflow,
				Offset: 0,
				Stack:  []string{},
			},
			contains: []string{"at #0", "stack=[]"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseRuntime,
				Kind:   KindInvalidData,
				Offset: NoOffset,
				Detail: "instantiate",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[runtime]", "invalid_data", "instantiate", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(msg, s) {
					t.Errorf("error message %q should not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(PhaseConfig, KindInvalidData, cause, "load")

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the cause")
	}
}

func TestError_Is(t *testing.T) {
	err := InvalidLabel(PhaseValidate, 3, 2)

	if !err.Is(&Error{Phase: PhaseValidate, Kind: KindInvalidLabel}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseExecute, Kind: KindInvalidLabel}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseValidate, Kind: KindStackUnderflow}) {
		t.Error("Is should not match different kind")
	}
}

func TestIsKind(t *testing.T) {
	inner := HeightMismatch(PhaseExecute, "block", 3, 1)
	wrapped := fmt.Errorf("step: %w", inner)
	chained := Wrap(PhaseRuntime, KindInvalidData, inner, "compare")

	if !IsKind(wrapped, KindHeightMismatch) {
		t.Error("IsKind should see through fmt wrapping")
	}
	if !IsKind(chained, KindHeightMismatch) {
		t.Error("IsKind should follow Cause chains")
	}
	if IsKind(wrapped, KindTypeMismatch) {
		t.Error("IsKind matched the wrong kind")
	}
	if IsKind(errors.New("plain"), KindTypeMismatch) {
		t.Error("IsKind matched a plain error")
	}
	if IsKind(nil, KindTypeMismatch) {
		t.Error("IsKind matched nil")
	}

	kind, ok := KindOf(wrapped)
	if !ok || kind != KindHeightMismatch {
		t.Errorf("KindOf = %v, %v", kind, ok)
	}
}

func TestAnnotate(t *testing.T) {
	err := StackUnderflow(PhaseValidate, 0, 0)
	got := Annotate(err, 4, []string{"i32"})

	var e *Error
	if !errors.As(got, &e) {
		t.Fatal("annotated error lost its type")
	}
	if e.Offset != 4 {
		t.Errorf("Offset = %d, want 4", e.Offset)
	}
	if len(e.Stack) != 1 || e.Stack[0] != "i32" {
		t.Errorf("Stack = %v", e.Stack)
	}

	// An already annotated error keeps its original position.
	Annotate(err, 9, []string{"i64"})
	if e.Offset != 4 || e.Stack[0] != "i32" {
		t.Errorf("re-annotation overwrote: offset=%d stack=%v", e.Offset, e.Stack)
	}

	plain := errors.New("plain")
	if Annotate(plain, 1, nil) != plain {
		t.Error("Annotate should pass through foreign errors")
	}

	empty := DivideByZero(PhaseExecute)
	Annotate(empty, 0, nil)
	if empty.Stack == nil {
		t.Error("nil snapshot should become an empty snapshot")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseExecute, KindTypeMismatch).
		Offset(12).
		Stack([]string{"i32"}).
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "i32", "v128").
		Build()

	if err.Phase != PhaseExecute {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseExecute)
	}
	if err.Kind != KindTypeMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
	}
	if err.Offset != 12 {
		t.Errorf("Offset = %v, want 12", err.Offset)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected i32, got v128" {
		t.Errorf("Detail = %v", err.Detail)
	}

	if New(PhaseDecode, KindInvalidData).Build().Offset != NoOffset {
		t.Error("builder should default to NoOffset")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *Error
		kind   Kind
		detail string
	}{
		{"StackUnderflow", StackUnderflow(PhaseValidate, 2, 2), KindStackUnderflow, "size 2"},
		{"TypeMismatch", TypeMismatch(PhaseValidate, "i32", "i64"), KindTypeMismatch, "expected [i32], got [i64]"},
		{"InvalidLabel", InvalidLabel(PhaseExecute, 5, 2), KindInvalidLabel, "label 5"},
		{"UninitializedLocal", UninitializedLocal(PhaseValidate, 3), KindUninitializedLocal, "local 3"},
		{"HeightMismatch", HeightMismatch(PhaseValidate, "loop", 4, 2), KindHeightMismatch, "closing loop: 4, want 2"},
		{"UnsupportedOpcode", UnsupportedOpcode(PhaseDecode, "i64.mul"), KindUnsupportedOpcode, "i64.mul"},
		{"BudgetExceeded", BudgetExceeded(PhaseExecute, 10000), KindBudgetExceeded, "10000"},
		{"Malformed", Malformed(PhaseValidate, "else without if"), KindMalformed, "else without if"},
		{"DivideByZero", DivideByZero(PhaseExecute), KindDivideByZero, "divide by zero"},
		{"Unreachable", Unreachable(PhaseExecute), KindUnreachable, "unreachable executed"},
		{"Unsupported", Unsupported(PhaseEncode, "v128 local"), KindUnsupported, "v128 local"},
		{"InvalidInput", InvalidInput(PhaseConfig, "budget must be positive"), KindInvalidInput, "budget"},
		{"ParseFailed", ParseFailed("signature", errors.New("eof")), KindInvalidData, "parse signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if tt.err.Offset != NoOffset {
				t.Errorf("Offset = %d, want NoOffset", tt.err.Offset)
			}
			if !strings.Contains(tt.err.Detail, tt.detail) {
				t.Errorf("Detail = %q, want it to contain %q", tt.err.Detail, tt.detail)
			}
		})
	}
}
