package interp

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/wippyai/stackvm/errors"
	"github.com/wippyai/stackvm/machine"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("interp: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// State is everything a paused run needs to resume: the program counter,
// the locals and both stacks. The program itself is not included.
type State struct {
	Locals map[uint32]Value `cbor:"1,keyasint,omitempty"`
	Values []Value          `cbor:"2,keyasint,omitempty"`
	// Frames is innermost first.
	Frames []machine.Frame `cbor:"3,keyasint"`
	PC     int             `cbor:"4,keyasint"`
	Steps  int             `cbor:"5,keyasint"`
	Skip   int             `cbor:"6,keyasint,omitempty"`
	// Length is the instruction count of the program the state belongs to.
	Length int  `cbor:"7,keyasint"`
	Done   bool `cbor:"8,keyasint,omitempty"`
}

// State captures the current run state.
func (it *Interpreter) State() State {
	return State{
		Locals: it.Locals(),
		Values: it.m.Values(),
		Frames: it.m.Frames(),
		PC:     it.pc,
		Steps:  it.steps,
		Skip:   it.skip,
		Length: len(it.prog.Instructions),
		Done:   it.done,
	}
}

// Restore resumes from s. The state must have been taken from a run of the
// same program. A failed run cannot be restored into; its error is kept.
func (it *Interpreter) Restore(s State) error {
	if it.err != nil {
		return it.err
	}
	if err := s.check(len(it.prog.Instructions)); err != nil {
		return err
	}
	it.m.Restore(s.Values, s.Frames)
	it.locals = make(map[uint32]Value, len(s.Locals))
	for k, v := range s.Locals {
		it.locals[k] = v
	}
	it.pc = s.PC
	it.steps = s.Steps
	it.skip = s.Skip
	it.done = s.Done
	return nil
}

func (s *State) check(length int) error {
	bad := func(format string, args ...any) error {
		return errors.New(phase, errors.KindInvalidData).Detail("session state: "+format, args...).Build()
	}
	if s.Length != length {
		return bad("recorded for %d instructions, program has %d", s.Length, length)
	}
	if s.PC < 0 || s.PC > length {
		return bad("pc %d out of range", s.PC)
	}
	if s.Steps < 0 || s.Skip < 0 {
		return bad("negative counter")
	}
	if len(s.Frames) == 0 || s.Frames[len(s.Frames)-1].Kind != machine.KindFunction {
		return bad("missing function frame")
	}
	for _, f := range s.Frames {
		if f.Height > len(s.Values) || f.Base() < 0 {
			return bad("frame %s exceeds stack of %d", f, len(s.Values))
		}
	}
	return nil
}

// Snapshot encodes the current state as canonical CBOR.
func (it *Interpreter) Snapshot() ([]byte, error) {
	s := it.State()
	data, err := cborEncMode.Marshal(&s)
	if err != nil {
		return nil, errors.Wrap(phase, errors.KindInvalidData, err, "encode session state")
	}
	return data, nil
}

// RestoreSnapshot decodes data produced by Snapshot and resumes from it.
func (it *Interpreter) RestoreSnapshot(data []byte) error {
	var s State
	if err := cbor.Unmarshal(data, &s); err != nil {
		return errors.Wrap(phase, errors.KindInvalidData, err, "decode session state")
	}
	return it.Restore(s)
}
