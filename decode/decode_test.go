package decode_test

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/wippyai/stackvm/code"
	"github.com/wippyai/stackvm/decode"
	"github.com/wippyai/stackvm/errors"
	"github.com/wippyai/stackvm/interp"
	"github.com/wippyai/stackvm/validate"
)

var (
	i32 = code.I32
	i64 = code.I64
)

func types(ts ...code.ValueType) []code.ValueType { return ts }

// negQuietNaN is the bit pattern of -nan as an f64.
var negQuietNaN = uint64(0xfff8000000000000)

var equateEmpty = cmpopts.EquateEmpty()

func countdown() *code.Program {
	return &code.Program{
		Signature: types(i32),
		Instructions: []code.Instruction{
			code.Local(0, i32),
			code.Local(1, i32),
			code.I32Const(3),
			code.LocalSet(0),
			code.Block(nil, nil),
			code.Loop(nil, nil),
			code.LocalGet(0),
			code.I32Const(0),
			code.Eq(),
			code.BrIf(1),
			code.LocalGet(1),
			code.LocalGet(0),
			code.Add(),
			code.LocalSet(1),
			code.LocalGet(0),
			code.I32Const(-1),
			code.Add(),
			code.LocalSet(0),
			code.Br(0),
			code.End(),
			code.End(),
			code.LocalGet(1),
			code.I32Const(4),
			code.RemS(),
		},
	}
}

func TestFileFormats(t *testing.T) {
	for _, name := range []string{"countdown.wat", "countdown.json"} {
		t.Run(name, func(t *testing.T) {
			prog, err := decode.File(filepath.Join("testdata", name), decode.FormatAuto)
			if err != nil {
				t.Fatalf("File: %v", err)
			}
			if diff := cmp.Diff(countdown(), prog, equateEmpty); diff != "" {
				t.Errorf("program (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodedProgramsRun(t *testing.T) {
	prog, err := decode.File(filepath.Join("testdata", "countdown.wat"), decode.FormatAuto)
	if err != nil {
		t.Fatal(err)
	}
	if err := validate.Program(prog); err != nil {
		t.Fatalf("validate: %v", err)
	}
	got, err := interp.Execute(prog)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if diff := cmp.Diff([]interp.Value{interp.I32(2)}, got); diff != "" {
		t.Errorf("result (-want +got):\n%s", diff)
	}

	sel, err := decode.File(filepath.Join("testdata", "select.yaml"), decode.FormatAuto)
	if err != nil {
		t.Fatal(err)
	}
	if err := validate.Program(sel); !errors.IsKind(err, errors.KindTypeMismatch) {
		t.Errorf("validate(select.yaml) = %v, want type mismatch", err)
	}
}

func TestYAMLDocument(t *testing.T) {
	prog, err := decode.File(filepath.Join("testdata", "select.yaml"), decode.FormatAuto)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	want := &code.Program{
		Signature: types(i32),
		Instructions: []code.Instruction{
			code.Const(code.V128, 1), code.I32Const(2), code.I32Const(1), code.Select(),
		},
	}
	if diff := cmp.Diff(want, prog, equateEmpty); diff != "" {
		t.Errorf("program (-want +got):\n%s", diff)
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want *code.Program
	}{
		{
			"empty",
			"",
			&code.Program{},
		},
		{
			"signature only",
			"(result i32 i64) (result f32)",
			&code.Program{Signature: types(i32, i64, code.F32)},
		},
		{
			"block types",
			"block (param i32) (result i64)\nloop (result i32)\nif (param i32 i32)\nend end end",
			&code.Program{Instructions: []code.Instruction{
				code.Block(types(i32), types(i64)),
				code.Loop(nil, types(i32)),
				code.If(types(i32, i32), nil),
				code.End(), code.End(), code.End(),
			}},
		},
		{
			"constants",
			"i32.const 0xffffffff i32.const -5 i64.const 1_000 f32.const 1.5 f64.const -inf v128.const 7",
			&code.Program{Instructions: []code.Instruction{
				code.I32Const(-1),
				code.I32Const(-5),
				code.Const(i64, 1000),
				code.Const(code.F32, int64(math.Float32bits(1.5))),
				code.Const(code.F64, int64(math.Float64bits(math.Inf(-1)))),
				code.Const(code.V128, 7),
			}},
		},
		{
			"nan literals",
			"f32.const nan f32.const nan:0x1 f32.const -nan:0x20_0000 f64.const -nan f64.const +nan:0xf",
			&code.Program{Instructions: []code.Instruction{
				code.Const(code.F32, 0x7fc00000),
				code.Const(code.F32, 0x7f800001),
				code.Const(code.F32, 0xffa00000),
				code.Const(code.F64, int64(negQuietNaN)),
				code.Const(code.F64, 0x7ff000000000000f),
			}},
		},
		{
			"labels",
			"block $a\n block\n  loop $b\n   br $a\n   br_if $b\n   br 1\n  end\n end\nend",
			&code.Program{Instructions: []code.Instruction{
				code.Block(nil, nil),
				code.Block(nil, nil),
				code.Loop(nil, nil),
				code.Br(2),
				code.BrIf(0),
				code.Br(1),
				code.End(), code.End(), code.End(),
			}},
		},
		{
			"shadowed label",
			"block $x block $x br $x end end",
			&code.Program{Instructions: []code.Instruction{
				code.Block(nil, nil), code.Block(nil, nil), code.Br(0), code.End(), code.End(),
			}},
		},
		{
			"if else",
			"i32.const 1 if (result i32) i32.const 2 else i32.const 3 end",
			&code.Program{Instructions: []code.Instruction{
				code.I32Const(1), code.If(nil, types(i32)), code.I32Const(2), code.Else(), code.I32Const(3), code.End(),
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decode.Text(tt.src)
			if err != nil {
				t.Fatalf("Text: %v", err)
			}
			if diff := cmp.Diff(tt.want, got, equateEmpty); diff != "" {
				t.Errorf("program (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTextRoundTrip(t *testing.T) {
	prog := countdown()
	prog.Instructions = append(prog.Instructions,
		code.Block(types(i32), types(i32, i64)), code.End(),
		code.Const(code.F64, 12345), code.Const(code.V128, -1),
		code.Const(code.F32, 0x7f800001), code.Const(code.F32, 0xffc00000),
		code.Const(code.F64, int64(negQuietNaN)), code.Const(code.F64, 0x7ff0000000000abc))
	got, err := decode.Text(prog.String())
	if err != nil {
		t.Fatalf("Text(String()): %v", err)
	}
	if diff := cmp.Diff(prog, got, equateEmpty); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestTextErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind errors.Kind
	}{
		{"unknown mnemonic", "i32.mul", errors.KindUnsupportedOpcode},
		{"bad type", "(result i16)", errors.KindInvalidData},
		{"unknown type rejected", "block (result unknown) end", errors.KindInvalidData},
		{"missing immediate", "br", errors.KindInvalidData},
		{"i32 overflow", "i32.const 0x1ffffffff", errors.KindInvalidData},
		{"bad float", "f32.const 1.2.3", errors.KindInvalidData},
		{"unknown label", "block $a br $b end", errors.KindInvalidData},
		{"label after end", "block $a end br $a", errors.KindInvalidData},
		{"local without type", "local 0", errors.KindInvalidData},
		{"negative index", "local.get -1", errors.KindInvalidData},
		{"unclosed clause", "block (param i32", errors.KindInvalidData},
		{"lexer error", "i32.const #", errors.KindInvalidData},
		{"stray paren", "( i32.const 1 )", errors.KindInvalidData},
		{"param after result", "if (result i32) (param i32) end", errors.KindInvalidData},
		{"nan payload too wide", "f32.const nan:0x800000", errors.KindInvalidData},
		{"nan payload zero", "f64.const nan:0x0", errors.KindInvalidData},
		{"nan payload not hex", "f32.const nan:12", errors.KindInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decode.Text(tt.src)
			if !errors.IsKind(err, tt.kind) {
				t.Errorf("Text(%q) = %v, want kind %s", tt.src, err, tt.kind)
			}
		})
	}
}

func TestTuples(t *testing.T) {
	src := `[
  ["i32.const", [], [], [2]],   // two
  /* a block
     with a parameter */
  ["block", ["i32"], ["i32"], []],
  ["i32.add", ["i32", "i32"], ["i32"], []],
  ["end"],
  ["br_if", [], [], [0]],
  ["local", [], [], [4, "f64"]],
  ["f32.const", [], [], [0.25]],
  ["drop", null, null]
]`
	got, err := decode.Tuples([]byte(src))
	if err != nil {
		t.Fatalf("Tuples: %v", err)
	}
	want := &code.Program{Instructions: []code.Instruction{
		code.I32Const(2),
		code.Block(types(i32), types(i32)),
		code.Add(),
		code.End(),
		code.BrIf(0),
		code.Local(4, code.F64),
		code.Const(code.F32, int64(math.Float32bits(0.25))),
		code.Drop(),
	}}
	if diff := cmp.Diff(want, got, equateEmpty); diff != "" {
		t.Errorf("program (-want +got):\n%s", diff)
	}
}

func TestTuplesErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind errors.Kind
	}{
		{"not a list", `{"a": 1}`, errors.KindInvalidData},
		{"syntax", `[["i32.const", [], [], [1]]`, errors.KindInvalidData},
		{"unknown opcode", `[["i32.mul"]]`, errors.KindUnsupportedOpcode},
		{"bad type", `[["block", ["i8"], [], []]]`, errors.KindInvalidData},
		{"unknown placeholder", `[["block", [], ["unknown"], []]]`, errors.KindInvalidData},
		{"missing immediate", `[["br", [], [], []]]`, errors.KindInvalidData},
		{"extra immediate", `[["drop", [], [], [1]]]`, errors.KindInvalidData},
		{"local type", `[["local", [], [], [0]]]`, errors.KindInvalidData},
		{"negative depth", `[["br", [], [], [-1]]]`, errors.KindInvalidData},
		{"too many fields", `[["drop", [], [], [], []]]`, errors.KindInvalidData},
		{"empty tuple", `[[]]`, errors.KindInvalidData},
		{"missing instructions", `{"signature": ["i32"]}`, errors.KindInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decode.Tuples([]byte(tt.src))
			if !errors.IsKind(err, tt.kind) {
				t.Errorf("Tuples(%s) = %v, want kind %s", tt.src, err, tt.kind)
			}
		})
	}
}

func TestSignature(t *testing.T) {
	sig, err := decode.Signature([]byte(`["i32", "externref"] // result`))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(types(i32, code.ExternRef), sig); diff != "" {
		t.Errorf("signature (-want +got):\n%s", diff)
	}
	if _, err := decode.Signature([]byte(`["i33"]`)); !errors.IsKind(err, errors.KindInvalidData) {
		t.Errorf("expected invalid data, got %v", err)
	}

	sig, err = decode.ParseTypes("i32, i64 f32")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(types(i32, i64, code.F32), sig); diff != "" {
		t.Errorf("ParseTypes (-want +got):\n%s", diff)
	}
	if _, err := decode.ParseTypes("i32,unknown"); err == nil {
		t.Error("unknown must be rejected")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want decode.Format
		ok   bool
	}{
		{"", decode.FormatAuto, true},
		{"json", decode.FormatTuples, true},
		{"YAML", decode.FormatTuples, true},
		{"wat", decode.FormatText, true},
		{"binary", decode.FormatAuto, false},
	}
	for _, tt := range tests {
		got, err := decode.ParseFormat(tt.in)
		if got != tt.want || (err == nil) != tt.ok {
			t.Errorf("ParseFormat(%q) = %v, %v", tt.in, got, err)
		}
	}
	if decode.Detect("prog.yml") != decode.FormatTuples || decode.Detect("prog.wat") != decode.FormatText {
		t.Error("Detect picked the wrong format")
	}
}
