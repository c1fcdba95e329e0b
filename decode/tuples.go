package decode

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/stackvm/code"
	"github.com/wippyai/stackvm/errors"
)

var (
	lineComment  = regexp.MustCompile(`(?m)//.*$`)
	blockComment = regexp.MustCompile(`/\*[\s\S]*?\*/`)
)

// StripComments removes // line comments and /* */ block comments. Block
// comments are replaced by as many newlines as they span so that line
// numbers in later errors stay accurate.
func StripComments(src []byte) []byte {
	src = blockComment.ReplaceAllFunc(src, func(m []byte) []byte {
		return []byte(strings.Repeat("\n", strings.Count(string(m), "\n")))
	})
	return lineComment.ReplaceAll(src, nil)
}

// Tuples parses an instruction list in tuple form:
//
//	[
//	  ["i32.const", [], [], [2]],
//	  ["block", ["i32"], ["i32"], []],   // block types
//	  ["local", [], [], [0, "i32"]]
//	]
//
// The first element is the mnemonic; the type lists and the immediates may be
// omitted. JSON is accepted as well as YAML. A top-level mapping with
// "signature" and "instructions" keys carries the signature along; otherwise
// the signature is empty and can be supplied with Signature.
func Tuples(src []byte) (*code.Program, error) {
	root, err := parseYAML(src)
	if err != nil {
		return nil, err
	}

	prog := &code.Program{}
	list := root
	if root.Kind == yaml.MappingNode {
		list = nil
		for i := 0; i+1 < len(root.Content); i += 2 {
			key, val := root.Content[i], root.Content[i+1]
			switch key.Value {
			case "signature":
				if prog.Signature, err = typeList(val); err != nil {
					return nil, err
				}
			case "instructions":
				list = val
			default:
				return nil, nodeError(key, "unknown key %q", key.Value)
			}
		}
		if list == nil {
			return nil, nodeError(root, "missing instructions")
		}
	}

	if list.Kind != yaml.SequenceNode {
		return nil, nodeError(list, "expected a list of instructions")
	}
	prog.Instructions = make([]code.Instruction, 0, len(list.Content))
	for _, n := range list.Content {
		in, err := tuple(n)
		if err != nil {
			return nil, err
		}
		prog.Instructions = append(prog.Instructions, in)
	}
	return prog, nil
}

// Signature parses a result signature written as a list, such as ["i32"].
func Signature(src []byte) ([]code.ValueType, error) {
	root, err := parseYAML(src)
	if err != nil {
		return nil, err
	}
	return typeList(root)
}

// ParseTypes parses a comma or space separated type list such as "i32,i64".
func ParseTypes(s string) ([]code.ValueType, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]code.ValueType, 0, len(fields))
	for _, f := range fields {
		vt, err := code.ParseValueType(f)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "signature")
		}
		out = append(out, vt)
	}
	return out, nil
}

func parseYAML(src []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(StripComments(src), &doc); err != nil {
		return nil, errors.ParseFailed("document", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return &yaml.Node{Kind: yaml.SequenceNode}, nil
	}
	return doc.Content[0], nil
}

func nodeError(n *yaml.Node, format string, args ...any) error {
	return errors.InvalidData(errors.PhaseDecode,
		fmt.Sprintf("line %d: %s", n.Line, fmt.Sprintf(format, args...)))
}

func typeList(n *yaml.Node) ([]code.ValueType, error) {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, nodeError(n, "expected a list of types")
	}
	out := make([]code.ValueType, 0, len(n.Content))
	for _, item := range n.Content {
		vt, err := typeName(item)
		if err != nil {
			return nil, err
		}
		out = append(out, vt)
	}
	return out, nil
}

func typeName(n *yaml.Node) (code.ValueType, error) {
	if n.Kind != yaml.ScalarNode {
		return code.Unknown, nodeError(n, "expected a type name")
	}
	vt, err := code.ParseValueType(n.Value)
	if err != nil {
		return code.Unknown, nodeError(n, "%v", err)
	}
	return vt, nil
}

func tuple(n *yaml.Node) (code.Instruction, error) {
	if n.Kind != yaml.SequenceNode || len(n.Content) == 0 {
		return code.Instruction{}, nodeError(n, "expected [opcode, [inputs], [outputs], [immediates]]")
	}
	if len(n.Content) > 4 {
		return code.Instruction{}, nodeError(n, "instruction has %d elements, at most 4 allowed", len(n.Content))
	}

	name := n.Content[0]
	op, constType, ok := code.LookupMnemonic(name.Value)
	if name.Kind != yaml.ScalarNode || !ok {
		e := errors.UnsupportedOpcode(errors.PhaseDecode, name.Value)
		e.Detail = fmt.Sprintf("line %d: %s", name.Line, e.Detail)
		return code.Instruction{}, e
	}
	in := code.Instruction{Opcode: op}

	var err error
	if len(n.Content) > 1 {
		if in.Inputs, err = typeList(n.Content[1]); err != nil {
			return in, err
		}
	}
	if len(n.Content) > 2 {
		if in.Outputs, err = typeList(n.Content[2]); err != nil {
			return in, err
		}
	}
	if !op.HasBlockType() {
		// Type lists are checked but only block, loop and if keep them.
		in.Inputs, in.Outputs = nil, nil
	}

	var imms []*yaml.Node
	if len(n.Content) > 3 {
		list := n.Content[3]
		if list.Kind != yaml.SequenceNode {
			return in, nodeError(list, "expected a list of immediates")
		}
		imms = list.Content
	}

	switch op {
	case code.OpConst:
		if len(imms) != 1 {
			return in, nodeError(n, "%s takes one immediate", name.Value)
		}
		v, err := parseConst(constType, imms[0].Value)
		if err != nil {
			return in, nodeError(imms[0], "%v", err)
		}
		in.Imm = code.ConstImm{Type: constType, Value: v}

	case code.OpLocal:
		if len(imms) != 2 {
			return in, nodeError(n, "local takes an index and a type")
		}
		idx, err := index(imms[0])
		if err != nil {
			return in, err
		}
		vt, err := typeName(imms[1])
		if err != nil {
			return in, err
		}
		in.Imm = code.LocalImm{Index: idx, Type: vt}

	case code.OpLocalGet, code.OpLocalSet, code.OpBr, code.OpBrIf:
		if len(imms) != 1 {
			return in, nodeError(n, "%s takes one immediate", op)
		}
		idx, err := index(imms[0])
		if err != nil {
			return in, err
		}
		if op == code.OpBr || op == code.OpBrIf {
			in.Imm = code.BranchImm{Depth: idx}
		} else {
			in.Imm = code.LocalImm{Index: idx}
		}

	default:
		if len(imms) != 0 {
			return in, nodeError(n, "%s takes no immediates", op)
		}
	}
	return in, nil
}

func index(n *yaml.Node) (uint32, error) {
	if n.Kind != yaml.ScalarNode {
		return 0, nodeError(n, "expected an index")
	}
	v, err := strconv.ParseUint(n.Value, 10, 32)
	if err != nil {
		return 0, nodeError(n, "invalid index %q", n.Value)
	}
	return uint32(v), nil
}
