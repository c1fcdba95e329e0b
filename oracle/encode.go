package oracle

import (
	"fmt"
	"slices"

	"github.com/wippyai/stackvm/code"
	"github.com/wippyai/stackvm/errors"
	"github.com/wippyai/stackvm/oracle/internal/binary"
)

// ExportName is the export under which the program's function is exposed.
const ExportName = "run"

const (
	sectionType     = 0x01
	sectionFunction = 0x03
	sectionExport   = 0x07
	sectionCode     = 0x0a

	blockTypeEmpty = 0x40
	funcTypeTag    = 0x60
	exportFunc     = 0x00
)

var opcodeBytes = map[code.Opcode]byte{
	code.OpUnreachable: 0x00,
	code.OpBlock:       0x02,
	code.OpLoop:        0x03,
	code.OpIf:          0x04,
	code.OpElse:        0x05,
	code.OpEnd:         0x0b,
	code.OpBr:          0x0c,
	code.OpBrIf:        0x0d,
	code.OpDrop:        0x1a,
	code.OpSelect:      0x1b,
	code.OpLocalGet:    0x20,
	code.OpLocalSet:    0x21,
	code.OpEq:          0x46,
	code.OpLtS:         0x48,
	code.OpAdd:         0x6a,
	code.OpRemS:        0x6f,
}

// valType returns the binary encoding of t.
func valType(t code.ValueType) (byte, bool) {
	switch t {
	case code.I32:
		return 0x7f, true
	case code.I64:
		return 0x7e, true
	case code.F32:
		return 0x7d, true
	case code.F64:
		return 0x7c, true
	case code.V128:
		return 0x7b, true
	case code.FuncRef:
		return 0x70, true
	case code.ExternRef:
		return 0x6f, true
	}
	return 0, false
}

type funcType struct {
	params, results []code.ValueType
}

type encoder struct {
	types  []funcType
	locals []code.ValueType
}

// typeIndex interns a function type and returns its index.
func (e *encoder) typeIndex(params, results []code.ValueType) uint32 {
	for i, ft := range e.types {
		if code.EqualTypes(ft.params, params) && code.EqualTypes(ft.results, results) {
			return uint32(i)
		}
	}
	e.types = append(e.types, funcType{params: params, results: results})
	return uint32(len(e.types) - 1)
}

// Encode translates prog into a core module exporting one function named
// ExportName. The function takes no parameters and returns the program's
// signature. Local declarations become dense function locals; every
// declaration of an index must agree on its type. A declaration executes as a
// store of zero so that re-declaring inside a loop resets the local.
//
// Encode does not validate prog.
func Encode(prog *code.Program) ([]byte, error) {
	if err := prog.Check(errors.PhaseEncode); err != nil {
		return nil, err
	}
	e := &encoder{}
	e.typeIndex(nil, prog.Signature)

	if err := e.collectLocals(prog); err != nil {
		return nil, err
	}
	body := binary.NewWriter()
	for i := range prog.Instructions {
		if err := e.instruction(body, &prog.Instructions[i]); err != nil {
			return nil, errors.Annotate(err, i, nil)
		}
	}
	body.Byte(opcodeBytes[code.OpEnd])

	return e.module(body)
}

func (e *encoder) collectLocals(prog *code.Program) error {
	for i := range prog.Instructions {
		in := &prog.Instructions[i]
		if in.Opcode != code.OpLocal && in.Opcode != code.OpLocalGet && in.Opcode != code.OpLocalSet {
			continue
		}
		imm, err := in.LocalImmediate(errors.PhaseEncode)
		if err != nil {
			return errors.Annotate(err, i, nil)
		}
		for uint32(len(e.locals)) <= imm.Index {
			e.locals = append(e.locals, code.Unknown)
		}
		if in.Opcode != code.OpLocal {
			continue
		}
		if !imm.Type.Declarable() {
			return errors.Annotate(errors.Unsupported(errors.PhaseEncode,
				fmt.Sprintf("local of type %s", imm.Type)), i, nil)
		}
		switch prev := e.locals[imm.Index]; prev {
		case code.Unknown:
			e.locals[imm.Index] = imm.Type
		case imm.Type:
		default:
			return errors.Annotate(errors.Unsupported(errors.PhaseEncode,
				fmt.Sprintf("local %d declared as both %s and %s", imm.Index, prev, imm.Type)), i, nil)
		}
	}
	// Indices that are read but never declared still need a slot.
	for i, t := range e.locals {
		if t == code.Unknown {
			e.locals[i] = code.I32
		}
	}
	return nil
}

func (e *encoder) instruction(w *binary.Writer, in *code.Instruction) error {
	phase := errors.PhaseEncode
	switch in.Opcode {
	case code.OpConst:
		imm, err := in.ConstImmediate(phase)
		if err != nil {
			return err
		}
		return constant(w, imm)

	case code.OpLocal:
		imm, err := in.LocalImmediate(phase)
		if err != nil {
			return err
		}
		if err := constant(w, code.ConstImm{Type: imm.Type}); err != nil {
			return err
		}
		w.Byte(opcodeBytes[code.OpLocalSet])
		w.U32(imm.Index)

	case code.OpLocalGet, code.OpLocalSet:
		imm, err := in.LocalImmediate(phase)
		if err != nil {
			return err
		}
		w.Byte(opcodeBytes[in.Opcode])
		w.U32(imm.Index)

	case code.OpBr, code.OpBrIf:
		imm, err := in.BranchImmediate(phase)
		if err != nil {
			return err
		}
		w.Byte(opcodeBytes[in.Opcode])
		w.U32(imm.Depth)

	case code.OpBlock, code.OpLoop, code.OpIf:
		w.Byte(opcodeBytes[in.Opcode])
		e.blockType(w, in.Inputs, in.Outputs)

	default:
		b, ok := opcodeBytes[in.Opcode]
		if !ok {
			return errors.UnsupportedOpcode(phase, in.Opcode)
		}
		w.Byte(b)
	}
	return nil
}

// blockType writes the short form when there are no inputs and at most one
// output, otherwise a type index.
func (e *encoder) blockType(w *binary.Writer, in, out []code.ValueType) {
	if len(in) == 0 && len(out) == 0 {
		w.Byte(blockTypeEmpty)
		return
	}
	if len(in) == 0 && len(out) == 1 {
		b, _ := valType(out[0])
		w.Byte(b)
		return
	}
	w.S64(int64(e.typeIndex(slices.Clone(in), slices.Clone(out))))
}

func constant(w *binary.Writer, imm code.ConstImm) error {
	switch imm.Type {
	case code.I32:
		w.Byte(0x41)
		w.S32(int32(imm.Value))
	case code.I64:
		w.Byte(0x42)
		w.S64(imm.Value)
	case code.F32:
		w.Byte(0x43)
		w.Fixed32(uint32(imm.Value))
	case code.F64:
		w.Byte(0x44)
		w.Fixed64(uint64(imm.Value))
	case code.V128:
		w.Byte(0xfd, 0x0c)
		w.Fixed64(uint64(imm.Value))
		w.Fixed64(0)
	default:
		return errors.Unsupported(errors.PhaseEncode, fmt.Sprintf("constant of type %s", imm.Type))
	}
	return nil
}

func (e *encoder) module(body *binary.Writer) ([]byte, error) {
	w := binary.NewWriter()
	w.Byte(0x00, 0x61, 0x73, 0x6d)
	w.Byte(0x01, 0x00, 0x00, 0x00)

	sec := binary.NewWriter()
	sec.U32(uint32(len(e.types)))
	for _, ft := range e.types {
		sec.Byte(funcTypeTag)
		if err := typeVector(sec, ft.params); err != nil {
			return nil, err
		}
		if err := typeVector(sec, ft.results); err != nil {
			return nil, err
		}
	}
	w.Section(sectionType, sec)

	sec = binary.NewWriter()
	sec.U32(1)
	sec.U32(0)
	w.Section(sectionFunction, sec)

	sec = binary.NewWriter()
	sec.U32(1)
	sec.Name(ExportName)
	sec.Byte(exportFunc)
	sec.U32(0)
	w.Section(sectionExport, sec)

	fn := binary.NewWriter()
	groups := localGroups(e.locals)
	fn.U32(uint32(len(groups)))
	for _, g := range groups {
		fn.U32(g.count)
		b, _ := valType(g.typ)
		fn.Byte(b)
	}
	fn.Byte(body.Bytes()...)

	sec = binary.NewWriter()
	sec.U32(1)
	sec.U32(uint32(fn.Len()))
	sec.Byte(fn.Bytes()...)
	w.Section(sectionCode, sec)

	return w.Bytes(), nil
}

func typeVector(w *binary.Writer, types []code.ValueType) error {
	w.U32(uint32(len(types)))
	for _, t := range types {
		b, ok := valType(t)
		if !ok {
			return errors.InvalidData(errors.PhaseEncode, fmt.Sprintf("type %s has no encoding", t))
		}
		w.Byte(b)
	}
	return nil
}

type localGroup struct {
	count uint32
	typ   code.ValueType
}

// localGroups run-length encodes consecutive locals of the same type.
func localGroups(locals []code.ValueType) []localGroup {
	var groups []localGroup
	for _, t := range locals {
		if n := len(groups); n > 0 && groups[n-1].typ == t {
			groups[n-1].count++
			continue
		}
		groups = append(groups, localGroup{count: 1, typ: t})
	}
	return groups
}
