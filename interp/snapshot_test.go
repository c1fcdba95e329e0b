package interp_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/wippyai/stackvm/code"
	"github.com/wippyai/stackvm/errors"
	"github.com/wippyai/stackvm/interp"
)

func TestSnapshotResume(t *testing.T) {
	for _, pause := range []int{0, 1, 7, 12, 30, 60} {
		it, err := interp.New(countdown())
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < pause && !it.Done(); i++ {
			if _, err := it.Step(); err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
		}
		data, err := it.Snapshot()
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}

		resumed, err := interp.New(countdown())
		if err != nil {
			t.Fatal(err)
		}
		if err := resumed.RestoreSnapshot(data); err != nil {
			t.Fatalf("RestoreSnapshot after %d steps: %v", pause, err)
		}
		if diff := cmp.Diff(it.State(), resumed.State(), cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("restored state after %d steps (-want +got):\n%s", pause, diff)
		}

		want, err := it.Run()
		if err != nil {
			t.Fatal(err)
		}
		got, err := resumed.Run()
		if err != nil {
			t.Fatalf("resumed run: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("result after pause at %d (-want +got):\n%s", pause, diff)
		}
		if it.Steps() != resumed.Steps() {
			t.Errorf("steps %d vs %d", it.Steps(), resumed.Steps())
		}
	}
}

func TestSnapshotDeterministic(t *testing.T) {
	it, err := interp.New(countdown())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 9; i++ {
		if _, err := it.Step(); err != nil {
			t.Fatal(err)
		}
	}
	a, err := it.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	b, err := it.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Error("canonical encoding should be stable")
	}
}

func TestRestoreRejectsForeignState(t *testing.T) {
	it, err := interp.New(countdown())
	if err != nil {
		t.Fatal(err)
	}
	data, err := it.Snapshot()
	if err != nil {
		t.Fatal(err)
	}

	other, err := interp.New(prog(nil, code.I32Const(1)))
	if err != nil {
		t.Fatal(err)
	}
	if err := other.RestoreSnapshot(data); !errors.IsKind(err, errors.KindInvalidData) {
		t.Errorf("expected invalid data for a different program, got %v", err)
	}
	if err := other.RestoreSnapshot([]byte{0xff, 0x00}); !errors.IsKind(err, errors.KindInvalidData) {
		t.Errorf("expected invalid data for garbage, got %v", err)
	}

	bad := it.State()
	bad.Frames = nil
	if err := it.Restore(bad); !errors.IsKind(err, errors.KindInvalidData) {
		t.Errorf("expected invalid data without frames, got %v", err)
	}

	bad = it.State()
	bad.PC = 1000
	if err := it.Restore(bad); !errors.IsKind(err, errors.KindInvalidData) {
		t.Errorf("expected invalid data for pc, got %v", err)
	}
}
