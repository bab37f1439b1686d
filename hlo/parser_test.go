package hlo

import (
	"math"
	"testing"

	"github.com/gomlx/hlo2llvm/dtypes"
	"github.com/gomlx/hlo2llvm/hlo/optypes"
	"github.com/gomlx/hlo2llvm/hlo/shapes"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addModule = `
HloModule add_module, entry_computation_layout={(f32[2]{0}, f32[2]{0})->f32[2]{0}}

// Comments are ignored.
ENTRY %main (p0: f32[2], p1: f32[2]) -> f32[2] {
  %p0 = f32[2]{0} parameter(0)
  p1 = f32[2]{0} parameter(1) /* block comment */
  ROOT add.1 = f32[2]{0} add(f32[2]{0} %p0, p1), metadata={op_name="add" source_line=3}
}
`

func TestLoadModuleFromText(t *testing.T) {
	module, err := LoadModuleFromText(addModule)
	require.NoError(t, err)
	require.Equal(t, "add_module", module.Name)
	require.Equal(t, "{(f32[2]{0}, f32[2]{0})->f32[2]{0}}", module.Attributes["entry_computation_layout"])
	require.Len(t, module.Computations, 1)

	main := module.Entry
	require.NotNil(t, main)
	require.Equal(t, "main", main.Name)
	require.True(t, main.IsEntry)
	require.Len(t, main.Parameters, 2)
	require.Equal(t, "p0", main.Parameters[0].Name)
	require.Equal(t, 1, main.Parameters[1].ParameterNumber)

	root := main.Root
	require.Equal(t, "add.1", root.Name)
	require.True(t, root.IsRoot)
	require.Equal(t, optypes.Add, root.OpType)
	require.Equal(t, []*Instruction{main.Parameters[0], main.Parameters[1]}, root.Operands)
	require.Equal(t, "f32[2]{0}", root.Shape.ToHLO())
	require.Equal(t, `{op_name="add" source_line=3}`, root.Attributes["metadata"])
	require.Same(t, main, root.Parent)
	require.Equal(t, "%add.1 (add)", root.String())

	require.Equal(t, []*Instruction{main.Parameters[0], main.Parameters[1], root}, main.PostOrder())
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name, text, msg string
		line, column    int
	}{
		{"empty", "", "expected 'HloModule', got end of input", 1, 1},
		{"blank", "\n\n  ", "expected 'HloModule', got end of input", 3, 3},
		{"no computations", "HloModule m\n", "module \"m\" has no computations", 2, 1},
		{"unknown opcode", "HloModule m\nENTRY e {\n  x = f32[] foo()\n}", "unknown HLO opcode \"foo\"", 3, 13},
		{"unknown dtype", "HloModule m\nENTRY e {\n  x = f8[] parameter(0)\n}", "unknown or unsupported element type \"f8\"", 3, 7},
		{"undefined operand", "HloModule m\nENTRY e {\n  ROOT x = f32[] negate(y)\n}", "instruction \"x\" uses undefined operand \"y\"", 3, 3},
		{"missing brace", "HloModule m\nENTRY e {\n  x = f32[] parameter(0)\n", "unexpected end of input in computation \"e\", missing '}'", 4, 1},
		{"unterminated comment", "HloModule m /* ...", "unterminated /* comment", 1, 13},
		{"dynamic dimension", "HloModule m\nENTRY e {\n  x = f32[<=4] parameter(0)\n}", "dynamic dimensions are not supported", 3, 11},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadModuleFromText(tc.text)
			require.Error(t, err)
			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr), "expected a *ParseError, got %T: %v", err, err)
			assert.Contains(t, parseErr.Msg, tc.msg)
			assert.Equal(t, tc.line, parseErr.Line, "line of %q", parseErr.Msg)
			assert.Equal(t, tc.column, parseErr.Column, "column of %q", parseErr.Msg)
		})
	}
}

func TestParseComputationStructure(t *testing.T) {
	module := must.M1(LoadModuleFromText(`
HloModule fusion_module

%fused_computation (param_0: f32[4], param_1: f32[4]) -> f32[4] {
  %param_0 = f32[4]{0} parameter(0)
  %param_1 = f32[4]{0} parameter(1)
  %multiply = f32[4]{0} multiply(%param_0, %param_1)
  ROOT %exp = f32[4]{0} exponential(%multiply)
}

%add_f32 {
  lhs = f32[] parameter(0)
  rhs = f32[] parameter(1)
  ROOT sum = f32[] add(lhs, rhs)
}

main {
  a = f32[4]{0} parameter(0)
  b = f32[4]{0} parameter(1)
  f = f32[4]{0} fusion(a, b), kind=kLoop, calls=%fused_computation
  zero = f32[] constant(0)
  ROOT r = f32[] reduce(f, zero), dimensions={0}, to_apply=%add_f32
}
`))
	require.Len(t, module.Computations, 3)

	// Without ENTRY the last computation is the entry.
	require.Equal(t, "main", module.Entry.Name)
	require.False(t, module.Computation("add_f32").IsEntry)

	f := module.Entry.Instruction("f")
	require.Equal(t, optypes.Fusion, f.OpType)
	require.Equal(t, "kLoop", f.Attributes["kind"])
	called, err := f.CalledComputation()
	require.NoError(t, err)
	require.Same(t, module.Computation("fused_computation"), called)

	r := module.Entry.Root
	require.Equal(t, optypes.Reduce, r.OpType)
	dims, err := r.IntListAttribute("dimensions")
	require.NoError(t, err)
	require.Equal(t, []int{0}, dims)
	called, err = r.CalledComputation()
	require.NoError(t, err)
	require.Equal(t, "add_f32", called.Name)

	require.Nil(t, module.Computation("missing"))
}

func TestParseLiterals(t *testing.T) {
	module := must.M1(LoadModuleFromText(`
HloModule constants
ENTRY e {
  a = f32[2,3]{1,0} constant({{1, -2.5, 3e2}, {inf, -inf, nan}})
  b = pred[2]{0} constant({true, false})
  c = s32[] constant(-7)
  d = u8[3]{0} constant({0, 128, 255})
  e = bf16[] constant(1.00390625)
  f = f16[] constant(0.1)
  ROOT t = (f32[2,3]{1,0}, pred[2]{0}, s32[], u8[3]{0}, bf16[], f16[]) tuple(a, b, c, d, e, f)
}
`))
	comp := module.Entry

	a := comp.Instruction("a").Literal
	require.Len(t, a.Values, 6)
	require.Equal(t, 1.0, a.Values[0])
	require.Equal(t, -2.5, a.Values[1])
	require.Equal(t, 300.0, a.Values[2])
	require.True(t, math.IsInf(a.Values[3].(float64), 1))
	require.True(t, math.IsInf(a.Values[4].(float64), -1))
	require.True(t, math.IsNaN(a.Values[5].(float64)))
	require.Equal(t, "{{1, -2.5, 300}, {inf, -inf, nan}}", a.String())

	require.Equal(t, []any{true, false}, comp.Instruction("b").Literal.Values)
	require.Equal(t, []any{int64(-7)}, comp.Instruction("c").Literal.Values)
	require.Equal(t, "-7", comp.Instruction("c").Literal.String())
	require.Equal(t, []any{uint64(0), uint64(128), uint64(255)}, comp.Instruction("d").Literal.Values)

	// 1.00390625 = 1 + 2^-8 is exactly halfway between two bf16 values: rounds to even (1.0).
	require.Equal(t, []any{1.0}, comp.Instruction("e").Literal.Values)

	// f16 rounding.
	require.Equal(t, float64(float32(0.0999755859375)), comp.Instruction("f").Literal.Values[0])

	tupleShape := comp.Root.Shape
	require.True(t, tupleShape.IsTuple())
	require.Equal(t, 6, tupleShape.TupleSize())
	require.Equal(t, dtypes.BFloat16, tupleShape.TupleShapes[4].DType)
}

func TestParseLiteralErrors(t *testing.T) {
	for _, text := range []string{
		"HloModule m\nENTRY e {\n  ROOT c = f32[3]{0} constant({1, 2})\n}",
		"HloModule m\nENTRY e {\n  ROOT c = s8[] constant(300)\n}",
		"HloModule m\nENTRY e {\n  ROOT c = f16[] constant(1e6)\n}",
		"HloModule m\nENTRY e {\n  ROOT c = pred[] constant(maybe)\n}",
		"HloModule m\nENTRY e {\n  ROOT c = f32[2]{0} constant(1)\n}",
	} {
		_, err := LoadModuleFromText(text)
		require.Error(t, err, "parsing %q should have failed", text)
		var parseErr *ParseError
		require.True(t, errors.As(err, &parseErr), "%q: expected *ParseError, got %v", text, err)
	}
}

func TestBFloat16FromFloat32(t *testing.T) {
	require.Equal(t, uint16(0x3f80), BFloat16FromFloat32(1.0))
	require.Equal(t, uint16(0xc000), BFloat16FromFloat32(-2.0))
	require.Equal(t, uint16(0x7f80), BFloat16FromFloat32(float32(math.Inf(1))))
	require.Equal(t, uint16(0x7fc0), BFloat16FromFloat32(float32(math.NaN())))
	// 1 + 2^-7 + 2^-9 rounds down, 1 + 2^-7 + 2^-8 + 2^-9 rounds up.
	require.Equal(t, uint16(0x3f81), BFloat16FromFloat32(1.0+1.0/128+1.0/512))
	require.Equal(t, uint16(0x3f82), BFloat16FromFloat32(1.0+1.0/128+1.0/256+1.0/512))
}

func TestInstructionAttributes(t *testing.T) {
	module := must.M1(LoadModuleFromText(`
HloModule attrs
ENTRY e {
  p = f32[4,6]{1,0} parameter(0)
  s = f32[2,2]{1,0} slice(p), slice={[0:2], [1:6:3]}
  i = s32[3]{0} iota(), iota_dimension=0
  lt = pred[2,2]{1,0} compare(s, s), direction=LT
  ROOT t = (f32[2,2]{1,0}, s32[3]{0}, pred[2,2]{1,0}) tuple(s, i, lt)
}
`))
	comp := module.Entry

	specs, err := comp.Instruction("s").SliceAttribute()
	require.NoError(t, err)
	require.Len(t, specs, 2)
	require.Equal(t, 0, specs[0].Start)
	require.Equal(t, 2, specs[0].Limit)
	require.Equal(t, 1, specs[0].Stride)
	require.Equal(t, 3, specs[1].Stride)

	axis, err := comp.Instruction("i").IntAttribute("iota_dimension")
	require.NoError(t, err)
	require.Equal(t, 0, axis)

	direction, err := comp.Instruction("lt").ComparisonDirection()
	require.NoError(t, err)
	require.Equal(t, "LT", direction)

	_, err = comp.Instruction("i").IntAttribute("index")
	require.Error(t, err)
	dims, err := comp.Instruction("p").IntListAttribute("dimensions")
	require.NoError(t, err)
	require.Empty(t, dims)
}

func TestVerify(t *testing.T) {
	testCases := []struct {
		name, body, msg string
	}{
		{"shape mismatch", `
  a = f32[2]{0} parameter(0)
  ROOT n = f32[3]{0} negate(a)`, "declares shape f32[3]{0}"},
		{"operand count", `
  a = f32[2]{0} parameter(0)
  ROOT n = f32[2]{0} add(a)`, "expects 2 operands"},
		{"dtype mismatch", `
  a = f32[2]{0} parameter(0)
  b = s32[2]{0} parameter(1)
  ROOT n = f32[2]{0} add(a, b)`, "DType"},
		{"missing direction", `
  a = f32[2]{0} parameter(0)
  ROOT n = pred[2]{0} compare(a, a)`, "direction"},
		{"bad broadcast", `
  a = f32[3]{0} parameter(0)
  ROOT n = f32[2,4]{1,0} broadcast(a), dimensions={1}`, "broadcast"},
		{"bad reshape", `
  a = f32[6]{0} parameter(0)
  ROOT n = f32[4]{0} reshape(a)`, "reshape"},
		{"bad tuple index", `
  a = f32[6]{0} parameter(0)
  t = (f32[6]{0}) tuple(a)
  ROOT n = f32[6]{0} get-tuple-element(t), index=1`, "out of range"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadModuleFromText("HloModule m\nENTRY e {" + tc.body + "\n}\n")
			require.Error(t, err)
			var parseErr *ParseError
			require.False(t, errors.As(err, &parseErr), "verification errors are not syntax errors: %v", err)
			require.ErrorContains(t, err, tc.msg)
			require.ErrorContains(t, err, `verifying module "m"`)
		})
	}

	// Parse without verification accepts it.
	module, err := Parse("HloModule m\nENTRY e {\n  a = f32[2]{0} parameter(0)\n  ROOT n = f32[3]{0} negate(a)\n}")
	require.NoError(t, err)
	require.True(t, module.Entry.Root.Shape.Equal(shapes.Make(dtypes.Float32, 3)))
}
