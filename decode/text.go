package decode

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wippyai/stackvm/code"
	"github.com/wippyai/stackvm/decode/internal/token"
	"github.com/wippyai/stackvm/errors"
)

// Text parses the flat text listing:
//
//	(result i32)
//	local 0 i32
//	block $exit
//	  loop (param i32) (result i32)
//	    br_if $exit
//	  end
//	end
//
// An optional (result t*) header declares the signature. block, loop and if
// take an optional $label followed by (param t*) and (result t*) clauses.
// br and br_if accept either a relative depth or a label.
func Text(src string) (*code.Program, error) {
	tokens, err := token.Tokenize(src)
	if err != nil {
		return nil, errors.ParseFailed("text", err)
	}
	p := &textParser{tokens: tokens}
	return p.parse()
}

type textParser struct {
	tokens []token.Token
	// labels holds one entry per open region, innermost last; unnamed
	// regions are recorded as "".
	labels []string
	pos    int
}

func (p *textParser) peek() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos]
}

func (p *textParser) next() *token.Token {
	t := p.peek()
	if t != nil {
		p.pos++
	}
	return t
}

func (p *textParser) errorf(t *token.Token, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if t == nil {
		msg = "end of input: " + msg
	} else {
		msg = fmt.Sprintf("line %d: %s", t.Line, msg)
	}
	return errors.InvalidData(errors.PhaseDecode, msg)
}

func (p *textParser) expect(typ token.Type) (*token.Token, error) {
	t := p.next()
	if t == nil {
		return nil, p.errorf(nil, "expected %v", typ)
	}
	if t.Type != typ {
		return nil, p.errorf(t, "expected %v, got %q", typ, t.Value)
	}
	return t, nil
}

// clause reports whether the next tokens open "(keyword".
func (p *textParser) clause(keyword string) bool {
	if p.pos+1 >= len(p.tokens) {
		return false
	}
	return p.tokens[p.pos].Type == token.LParen &&
		p.tokens[p.pos+1].Type == token.Ident &&
		p.tokens[p.pos+1].Value == keyword
}

// typeList parses "(keyword t*)" and appends the types to dst.
func (p *textParser) typeList(dst []code.ValueType) ([]code.ValueType, error) {
	p.pos += 2
	for {
		t := p.next()
		if t == nil {
			return nil, p.errorf(nil, "unclosed type list")
		}
		if t.Type == token.RParen {
			return dst, nil
		}
		vt, err := p.valueType(t)
		if err != nil {
			return nil, err
		}
		dst = append(dst, vt)
	}
}

func (p *textParser) valueType(t *token.Token) (code.ValueType, error) {
	if t.Type != token.Ident {
		return code.Unknown, p.errorf(t, "expected a type, got %q", t.Value)
	}
	vt, err := code.ParseValueType(t.Value)
	if err != nil {
		return code.Unknown, p.errorf(t, "%v", err)
	}
	return vt, nil
}

func (p *textParser) parse() (*code.Program, error) {
	prog := &code.Program{}
	for p.clause("result") {
		sig, err := p.typeList(prog.Signature)
		if err != nil {
			return nil, err
		}
		prog.Signature = sig
	}

	for p.peek() != nil {
		in, err := p.instruction()
		if err != nil {
			return nil, err
		}
		prog.Instructions = append(prog.Instructions, in)
	}
	return prog, nil
}

func (p *textParser) instruction() (code.Instruction, error) {
	t := p.next()
	if t.Type != token.Ident {
		return code.Instruction{}, p.errorf(t, "expected an instruction, got %q", t.Value)
	}
	op, constType, ok := code.LookupMnemonic(t.Value)
	if !ok {
		e := errors.UnsupportedOpcode(errors.PhaseDecode, t.Value)
		e.Detail = fmt.Sprintf("line %d: %s", t.Line, e.Detail)
		return code.Instruction{}, e
	}

	in := code.Instruction{Opcode: op}
	switch op {
	case code.OpConst:
		n, err := p.expect(token.Number)
		if err != nil {
			return in, err
		}
		v, err := parseConst(constType, n.Value)
		if err != nil {
			return in, p.errorf(n, "%v", err)
		}
		in.Imm = code.ConstImm{Type: constType, Value: v}

	case code.OpLocal:
		idx, err := p.index()
		if err != nil {
			return in, err
		}
		tt := p.next()
		if tt == nil {
			return in, p.errorf(nil, "local %d needs a type", idx)
		}
		vt, err := p.valueType(tt)
		if err != nil {
			return in, err
		}
		in.Imm = code.LocalImm{Index: idx, Type: vt}

	case code.OpLocalGet, code.OpLocalSet:
		idx, err := p.index()
		if err != nil {
			return in, err
		}
		in.Imm = code.LocalImm{Index: idx}

	case code.OpBr, code.OpBrIf:
		depth, err := p.label()
		if err != nil {
			return in, err
		}
		in.Imm = code.BranchImm{Depth: depth}

	case code.OpBlock, code.OpLoop, code.OpIf:
		name := ""
		if next := p.peek(); next != nil && next.Type == token.Ident && strings.HasPrefix(next.Value, "$") {
			name = next.Value
			p.pos++
		}
		results := false
		for {
			var err error
			switch {
			case p.clause("param"):
				if results {
					return in, p.errorf(p.peek(), "param clause after result")
				}
				in.Inputs, err = p.typeList(in.Inputs)
			case p.clause("result"):
				results = true
				in.Outputs, err = p.typeList(in.Outputs)
			default:
				p.labels = append(p.labels, name)
				return in, nil
			}
			if err != nil {
				return in, err
			}
		}

	case code.OpEnd:
		if len(p.labels) > 0 {
			p.labels = p.labels[:len(p.labels)-1]
		}
	}
	return in, nil
}

func (p *textParser) index() (uint32, error) {
	n, err := p.expect(token.Number)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.ReplaceAll(n.Value, "_", ""), 0, 32)
	if err != nil {
		return 0, p.errorf(n, "invalid index %q", n.Value)
	}
	return uint32(v), nil
}

// label resolves a branch target given as a depth or a $name. Names resolve
// to the innermost open region carrying them.
func (p *textParser) label() (uint32, error) {
	t := p.peek()
	if t == nil || t.Type != token.Ident {
		return p.index()
	}
	p.pos++
	for i := len(p.labels) - 1; i >= 0; i-- {
		if p.labels[i] == t.Value {
			return uint32(len(p.labels) - 1 - i), nil
		}
	}
	return 0, p.errorf(t, "unknown label %s", t.Value)
}

// parseConst converts a literal to the raw immediate of a constant of type t.
func parseConst(t code.ValueType, s string) (int64, error) {
	s = strings.ReplaceAll(s, "_", "")
	switch t {
	case code.I32:
		if v, err := strconv.ParseInt(s, 0, 32); err == nil {
			return v, nil
		}
		u, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid i32 literal %q", s)
		}
		return int64(int32(uint32(u))), nil
	case code.F32:
		if v, ok, err := nanBits(s, 32); ok {
			return v, err
		}
		f, err := parseFloat(s, 32)
		if err != nil {
			return 0, err
		}
		return int64(math.Float32bits(float32(f))), nil
	case code.F64:
		if v, ok, err := nanBits(s, 64); ok {
			return v, err
		}
		f, err := parseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		return int64(math.Float64bits(f)), nil
	default:
		if v, err := strconv.ParseInt(s, 0, 64); err == nil {
			return v, nil
		}
		u, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s literal %q", t, s)
		}
		return int64(u), nil
	}
}

// nanBits encodes nan, -nan and nan:0xN literals bit for bit. ok is false
// when s is not a NaN literal. The payload must be non-zero and fit the
// mantissa.
func nanBits(s string, bits int) (v int64, ok bool, err error) {
	body := strings.TrimLeft(s, "+-")
	rest, found := strings.CutPrefix(body, "nan")
	if !found {
		return 0, false, nil
	}
	mant := 23
	if bits == 64 {
		mant = 52
	}
	payload := uint64(1) << (mant - 1)
	if rest != "" {
		hex, found := strings.CutPrefix(rest, ":0x")
		if !found {
			return 0, true, fmt.Errorf("invalid f%d literal %q", bits, s)
		}
		payload, err = strconv.ParseUint(hex, 16, mant)
		if err != nil || payload == 0 {
			return 0, true, fmt.Errorf("NaN payload of %q does not fit f%d", s, bits)
		}
	}
	exp := uint64(1)<<(bits-mant-1) - 1
	u := exp<<mant | payload
	if strings.HasPrefix(s, "-") {
		u |= 1 << (bits - 1)
	}
	return int64(u), true, nil
}

func parseFloat(s string, bits int) (float64, error) {
	switch strings.TrimLeft(s, "+-") {
	case "inf":
		if strings.HasPrefix(s, "-") {
			return math.Inf(-1), nil
		}
		return math.Inf(1), nil
	}
	f, err := strconv.ParseFloat(s, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid f%d literal %q", bits, s)
	}
	return f, nil
}
