package interp

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/stackvm/code"
	"github.com/wippyai/stackvm/errors"
	"github.com/wippyai/stackvm/machine"
)

const phase = errors.PhaseExecute

// DefaultBudget is the number of instructions a run may dispatch before it
// fails with a budget error.
const DefaultBudget = 10000

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithBudget overrides DefaultBudget. Non-positive values are ignored.
func WithBudget(n int) Option {
	return func(it *Interpreter) {
		if n > 0 {
			it.budget = n
		}
	}
}

// WithObserver registers a callback invoked after every dispatched
// instruction.
func WithObserver(fn func(StepResult)) Option {
	return func(it *Interpreter) {
		it.observer = fn
	}
}

// WithUnreachableTrap makes unreachable fail the run with an unreachable
// error, as a WebAssembly engine does. By default it only abandons the
// rest of the innermost region.
func WithUnreachableTrap() Option {
	return func(it *Interpreter) {
		it.trap = true
	}
}

// StepResult describes the machine after one instruction.
type StepResult struct {
	Stack  []Value
	Frames []machine.Frame
	// Executed is the instruction just dispatched, or -1 when the call only
	// finished the run.
	Executed int
	// PC is the next instruction to dispatch.
	PC      int
	Op      code.Opcode
	Skipped bool
	Done    bool
}

// Interpreter executes one program. It is single-use: once the run finishes
// or fails, further steps report the same outcome.
type Interpreter struct {
	prog     *code.Program
	m        *machine.Machine[Value]
	locals   map[uint32]Value
	observer func(StepResult)
	log      *zap.Logger
	err      error
	pc       int
	steps    int
	skip     int
	budget   int
	done     bool
	trap     bool
}

// New prepares prog for execution.
func New(prog *code.Program, opts ...Option) (*Interpreter, error) {
	if err := prog.Check(phase); err != nil {
		return nil, err
	}
	it := &Interpreter{
		prog:   prog,
		m:      machine.New(phase, unknown, typeOf),
		locals: make(map[uint32]Value),
		budget: DefaultBudget,
		log:    Logger(),
	}
	for _, opt := range opts {
		opt(it)
	}
	it.m.PushFrame(0, machine.KindFunction, nil, prog.Signature, nil)
	return it, nil
}

// Execute runs prog to completion and returns the final operand stack.
func Execute(prog *code.Program, opts ...Option) ([]Value, error) {
	it, err := New(prog, opts...)
	if err != nil {
		return nil, err
	}
	return it.Run()
}

// Run steps until the program finishes or fails.
func (it *Interpreter) Run() ([]Value, error) {
	for {
		res, err := it.Step()
		if err != nil {
			return nil, err
		}
		if res.Done {
			return res.Stack, nil
		}
	}
}

// Done reports whether the run has finished successfully.
func (it *Interpreter) Done() bool { return it.done }

// Err returns the error that stopped the run, if any.
func (it *Interpreter) Err() error { return it.err }

// PC returns the index of the next instruction.
func (it *Interpreter) PC() int { return it.pc }

// Steps returns the number of instructions dispatched so far.
func (it *Interpreter) Steps() int { return it.steps }

// Budget returns the instruction budget.
func (it *Interpreter) Budget() int { return it.budget }

// Program returns the program being executed.
func (it *Interpreter) Program() *code.Program { return it.prog }

// Stack returns a copy of the operand stack, bottom first.
func (it *Interpreter) Stack() []Value { return it.m.Values() }

// Frames returns a copy of the control stack, innermost first.
func (it *Interpreter) Frames() []machine.Frame { return it.m.Frames() }

// Locals returns a copy of the declared locals.
func (it *Interpreter) Locals() map[uint32]Value {
	out := make(map[uint32]Value, len(it.locals))
	for k, v := range it.locals {
		out[k] = v
	}
	return out
}

func (it *Interpreter) result(executed int, op code.Opcode, skipped bool) StepResult {
	return StepResult{
		Stack:    it.m.Values(),
		Frames:   it.m.Frames(),
		Executed: executed,
		PC:       it.pc,
		Op:       op,
		Skipped:  skipped,
		Done:     it.done,
	}
}

func (it *Interpreter) fail(err error, offset int) error {
	it.err = errors.Annotate(err, offset, it.m.Snapshot())
	return it.err
}

// Step dispatches one instruction. Once the last instruction has been
// dispatched, Step finishes the run and keeps reporting the final stack.
func (it *Interpreter) Step() (StepResult, error) {
	if it.err != nil {
		return it.result(-1, code.OpInvalid, false), it.err
	}
	if it.done {
		return it.result(-1, code.OpInvalid, false), nil
	}

	instrs := it.prog.Instructions
	if it.pc >= len(instrs) {
		if depth := it.m.Depth(); depth != 1 {
			return StepResult{}, it.fail(
				errors.Malformed(phase, fmt.Sprintf("%d control frames left open", depth-1)), it.pc)
		}
		it.done = true
		res := it.result(-1, code.OpInvalid, false)
		it.notify(res)
		return res, nil
	}

	if it.steps >= it.budget {
		return StepResult{}, it.fail(errors.BudgetExceeded(phase, it.budget), it.pc)
	}
	it.steps++

	pc := it.pc
	in := &instrs[pc]
	next := pc + 1
	skipped := it.m.Frame(0).Unreachable && !it.reached(in.Opcode)
	if !skipped {
		var err error
		next, err = it.exec(pc, in)
		if err != nil {
			return StepResult{}, it.fail(err, pc)
		}
	}
	it.pc = next

	if ce := it.log.Check(zap.DebugLevel, "execute"); ce != nil {
		ce.Write(
			zap.Int("pc", pc),
			zap.Stringer("op", in),
			zap.Bool("skipped", skipped),
			zap.Strings("stack", it.m.Snapshot()),
			zap.Int("depth", it.m.Depth()))
	}

	res := it.result(pc, in.Opcode, skipped)
	it.notify(res)
	return res, nil
}

func (it *Interpreter) notify(res StepResult) {
	if it.observer != nil {
		it.observer(res)
	}
}

// reached is consulted while the innermost frame is unreachable. Regions
// nested inside the abandoned code are tracked so that only the else or end
// belonging to the innermost frame is dispatched.
func (it *Interpreter) reached(op code.Opcode) bool {
	switch op {
	case code.OpBlock, code.OpLoop, code.OpIf:
		it.skip++
		return false
	case code.OpEnd:
		if it.skip > 0 {
			it.skip--
			return false
		}
		return true
	case code.OpElse:
		return it.skip == 0
	}
	return false
}

func (it *Interpreter) exec(pc int, in *code.Instruction) (int, error) {
	m := it.m
	next := pc + 1

	switch in.Opcode {
	case code.OpConst:
		imm, err := in.ConstImmediate(phase)
		if err != nil {
			return next, err
		}
		if imm.Type.IsRef() {
			return next, errors.Unsupported(phase, fmt.Sprintf("%s constant", imm.Type))
		}
		m.Push(FromConst(imm))

	case code.OpAdd, code.OpRemS, code.OpEq, code.OpLtS:
		v, err := it.binary(in.Opcode)
		if err != nil {
			return next, err
		}
		m.Push(v)

	case code.OpDrop:
		if _, err := m.Pop(); err != nil {
			return next, err
		}

	case code.OpSelect:
		c, err := m.PopExpect(code.I32)
		if err != nil {
			return next, err
		}
		first, err := m.Pop()
		if err != nil {
			return next, err
		}
		second, err := m.Pop()
		if err != nil {
			return next, err
		}
		if c.AsI32() > 0 {
			m.Push(second)
		} else {
			m.Push(first)
		}

	case code.OpLocal:
		imm, err := in.LocalImmediate(phase)
		if err != nil {
			return next, err
		}
		if !imm.Type.Declarable() {
			return next, errors.Unsupported(phase, fmt.Sprintf("local of type %s", imm.Type))
		}
		it.locals[imm.Index] = Zero(imm.Type)

	case code.OpLocalGet:
		_, cur, err := it.local(in)
		if err != nil {
			return next, err
		}
		m.Push(cur)

	case code.OpLocalSet:
		imm, cur, err := it.local(in)
		if err != nil {
			return next, err
		}
		v, err := m.PopExpect(cur.Type)
		if err != nil {
			return next, err
		}
		it.locals[imm.Index] = v

	case code.OpBlock, code.OpLoop:
		kind, _ := machine.KindOf(in.Opcode)
		args, err := m.PopTypes(in.Inputs)
		if err != nil {
			return next, err
		}
		m.PushFrame(pc+1, kind, in.Inputs, in.Outputs, args)

	case code.OpIf:
		c, err := m.PopExpect(code.I32)
		if err != nil {
			return next, err
		}
		args, err := m.PopTypes(in.Inputs)
		if err != nil {
			return next, err
		}
		f := m.PushFrame(pc+1, machine.KindIf, in.Inputs, in.Outputs, args)
		f.Cond = c.AsI32()
		// The inputs stay in place for a possible else arm.
		f.Unreachable = !f.Taken()

	case code.OpElse:
		f := m.Frame(0)
		kind, ok := f.Kind.Else()
		if !ok {
			return next, errors.Malformed(phase, fmt.Sprintf("else inside %s", f.Kind))
		}
		f.Kind = kind
		f.Entry = pc + 1
		f.Unreachable = f.Taken()

	case code.OpEnd:
		if m.Depth() <= 1 {
			return next, errors.Malformed(phase, "end without matching block, loop or if")
		}
		if _, err := m.PopFrame(); err != nil {
			return next, err
		}

	case code.OpBr:
		imm, err := in.BranchImmediate(phase)
		if err != nil {
			return next, err
		}
		return it.branch(next, imm.Depth)

	case code.OpBrIf:
		imm, err := in.BranchImmediate(phase)
		if err != nil {
			return next, err
		}
		c, err := m.PopExpect(code.I32)
		if err != nil {
			return next, err
		}
		if _, err := m.Label(imm.Depth); err != nil {
			return next, err
		}
		if c.AsI32() > 0 {
			return it.branch(next, imm.Depth)
		}

	case code.OpUnreachable:
		if it.trap {
			return next, errors.Unreachable(phase)
		}
		m.MarkUnreachable()

	default:
		return next, errors.UnsupportedOpcode(phase, in.Opcode)
	}
	return next, nil
}

// branch resolves a taken branch. A loop target is re-entered at its first
// body instruction with the frames inside it discarded and its stack back at
// its base plus the carried values; any other target is
// left to the skipping logic, which closes the abandoned frames at their end.
func (it *Interpreter) branch(next int, depth uint32) (int, error) {
	tr, err := it.m.Branch(depth)
	if err != nil {
		return next, err
	}
	if !tr.Reenter {
		return next, nil
	}
	it.m.Unwind(tr.Depth)
	it.m.Rebase(it.m.Frame(0).Base(), tr.Arity)
	return tr.Entry, nil
}

func (it *Interpreter) binary(op code.Opcode) (Value, error) {
	b, err := it.m.PopExpect(code.I32)
	if err != nil {
		return Value{}, err
	}
	a, err := it.m.PopExpect(code.I32)
	if err != nil {
		return Value{}, err
	}
	x, y := a.AsI32(), b.AsI32()

	switch op {
	case code.OpAdd:
		return I32(x + y), nil
	case code.OpRemS:
		if y == 0 {
			return Value{}, errors.DivideByZero(phase)
		}
		return I32(x % y), nil
	case code.OpEq:
		return Bool(x == y), nil
	default:
		return Bool(x < y), nil
	}
}

func (it *Interpreter) local(in *code.Instruction) (code.LocalImm, Value, error) {
	imm, err := in.LocalImmediate(phase)
	if err != nil {
		return imm, Value{}, err
	}
	v, ok := it.locals[imm.Index]
	if !ok {
		return imm, Value{}, errors.UninitializedLocal(phase, imm.Index)
	}
	return imm, v, nil
}
