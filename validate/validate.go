package validate

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/stackvm/code"
	"github.com/wippyai/stackvm/errors"
	"github.com/wippyai/stackvm/machine"
)

const phase = errors.PhaseValidate

func typeOf(t code.ValueType) code.ValueType { return t }

// Validator type-checks programs against their declared result signature.
// A Validator can be reused; each call to Validate starts from empty stacks.
type Validator struct {
	m      *machine.Machine[code.ValueType]
	locals map[uint32]code.ValueType
	log    *zap.Logger
}

// New creates a Validator.
func New() *Validator {
	return &Validator{
		m:      machine.New(phase, code.Unknown, typeOf),
		locals: make(map[uint32]code.ValueType),
		log:    Logger(),
	}
}

// Program validates prog with a fresh Validator.
func Program(prog *code.Program) error {
	return New().Validate(prog)
}

// Validate checks prog. Errors carry the offending instruction offset and the
// type stack at the point of failure.
func (v *Validator) Validate(prog *code.Program) error {
	if err := prog.Check(phase); err != nil {
		return err
	}

	v.m.Reset()
	clear(v.locals)
	v.m.PushFrame(0, machine.KindFunction, nil, prog.Signature, nil)

	for pc := range prog.Instructions {
		in := &prog.Instructions[pc]
		if err := v.step(pc, in); err != nil {
			return errors.Annotate(err, pc, v.m.Snapshot())
		}
		if ce := v.log.Check(zap.DebugLevel, "validate"); ce != nil {
			ce.Write(
				zap.Int("pc", pc),
				zap.Stringer("op", in),
				zap.Strings("stack", v.m.Snapshot()),
				zap.Int("depth", v.m.Depth()))
		}
	}

	end := len(prog.Instructions)
	if err := v.finish(prog.Signature); err != nil {
		return errors.Annotate(err, end, v.m.Snapshot())
	}
	return nil
}

// finish checks the implicit function frame against the signature.
func (v *Validator) finish(sig []code.ValueType) error {
	if v.m.Depth() != 1 {
		return errors.Malformed(phase, fmt.Sprintf("%d control frames left open", v.m.Depth()-1))
	}

	f := v.m.Frame(0)
	if f.Unreachable {
		if _, err := v.m.PopTypes(sig); err != nil {
			return err
		}
		if v.m.Len() != 0 {
			return errors.HeightMismatch(phase, f.Kind.String(), v.m.Len(), 0)
		}
		return nil
	}

	got := v.m.Values()
	if len(got) != len(sig) {
		return errors.HeightMismatch(phase, f.Kind.String(), len(got), len(sig))
	}
	if !code.EqualTypes(sig, got) {
		return errors.TypeMismatch(phase, code.FormatTypes(sig), code.FormatTypes(got))
	}
	return nil
}

func (v *Validator) step(pc int, in *code.Instruction) error {
	m := v.m

	switch in.Opcode {
	case code.OpConst:
		imm, err := in.ConstImmediate(phase)
		if err != nil {
			return err
		}
		if imm.Type.IsRef() {
			return errors.Unsupported(phase, fmt.Sprintf("%s constant", imm.Type))
		}
		m.Push(imm.Type)

	case code.OpAdd, code.OpRemS, code.OpEq, code.OpLtS:
		if _, err := m.PopExpect(code.I32); err != nil {
			return err
		}
		if _, err := m.PopExpect(code.I32); err != nil {
			return err
		}
		m.Push(code.I32)

	case code.OpDrop:
		if _, err := m.Pop(); err != nil {
			return err
		}

	case code.OpSelect:
		return v.selectOp()

	case code.OpLocal:
		imm, err := in.LocalImmediate(phase)
		if err != nil {
			return err
		}
		if !imm.Type.Declarable() {
			return errors.Unsupported(phase, fmt.Sprintf("local of type %s", imm.Type))
		}
		v.locals[imm.Index] = imm.Type

	case code.OpLocalGet:
		t, err := v.local(in)
		if err != nil {
			return err
		}
		m.Push(t)

	case code.OpLocalSet:
		t, err := v.local(in)
		if err != nil {
			return err
		}
		if _, err := m.PopExpect(t); err != nil {
			return err
		}

	case code.OpBlock, code.OpLoop:
		kind, _ := machine.KindOf(in.Opcode)
		if _, err := m.PopTypes(in.Inputs); err != nil {
			return err
		}
		m.PushFrame(pc+1, kind, in.Inputs, in.Outputs, in.Inputs)

	case code.OpIf:
		if _, err := m.PopExpect(code.I32); err != nil {
			return err
		}
		if _, err := m.PopTypes(in.Inputs); err != nil {
			return err
		}
		m.PushFrame(pc+1, machine.KindIf, in.Inputs, in.Outputs, in.Inputs)

	case code.OpElse:
		next, ok := m.Frame(0).Kind.Else()
		if !ok {
			return errors.Malformed(phase, fmt.Sprintf("else inside %s", m.Frame(0).Kind))
		}
		closed, err := m.PopFrame()
		if err != nil {
			return err
		}
		m.Truncate(closed.Base())
		m.PushFrame(pc+1, next, closed.Inputs, closed.Outputs, closed.Inputs)

	case code.OpEnd:
		if m.Depth() <= 1 {
			return errors.Malformed(phase, "end without matching block, loop or if")
		}
		closed, err := m.PopFrame()
		if err != nil {
			return err
		}
		if closed.Kind == machine.KindIf && !code.EqualTypes(closed.Inputs, closed.Outputs) {
			e := errors.TypeMismatch(phase, code.FormatTypes(closed.Outputs), code.FormatTypes(closed.Inputs))
			e.Detail = "if without else: " + e.Detail
			return e
		}
		if closed.Unreachable {
			m.Truncate(closed.Base())
			m.ForcePush(closed.Outputs...)
		}

	case code.OpBr:
		imm, err := in.BranchImmediate(phase)
		if err != nil {
			return err
		}
		if _, err := m.Branch(imm.Depth); err != nil {
			return err
		}
		m.MarkUnreachable()

	case code.OpBrIf:
		imm, err := in.BranchImmediate(phase)
		if err != nil {
			return err
		}
		if _, err := m.PopExpect(code.I32); err != nil {
			return err
		}
		target, err := m.Label(imm.Depth)
		if err != nil {
			return err
		}
		label := target.LabelTypes()
		if _, err := m.PopTypes(label); err != nil {
			return err
		}
		for _, t := range label {
			m.Push(t)
		}

	case code.OpUnreachable:
		m.MarkUnreachable()

	default:
		return errors.UnsupportedOpcode(phase, in.Opcode)
	}
	return nil
}

// selectOp pops the governing i32 and two operands that must be both numeric
// or both vector and agree with each other. unknown reconciles with either.
func (v *Validator) selectOp() error {
	m := v.m
	if _, err := m.PopExpect(code.I32); err != nil {
		return err
	}
	t1, err := m.Pop()
	if err != nil {
		return err
	}
	t2, err := m.Pop()
	if err != nil {
		return err
	}

	sameClass := (t1.IsNum() && t2.IsNum()) || (t1.IsVec() && t2.IsVec())
	if !sameClass || !code.Matches(t1, t2) {
		e := errors.TypeMismatch(phase, t2.String(), t1.String())
		e.Detail = "select operands must agree: " + e.Detail
		return e
	}
	if t1 == code.Unknown {
		m.Push(t2)
	} else {
		m.Push(t1)
	}
	return nil
}

func (v *Validator) local(in *code.Instruction) (code.ValueType, error) {
	imm, err := in.LocalImmediate(phase)
	if err != nil {
		return code.Unknown, err
	}
	t, ok := v.locals[imm.Index]
	if !ok {
		return code.Unknown, errors.UninitializedLocal(phase, imm.Index)
	}
	return t, nil
}
