package gpu

import (
	"strings"
	"testing"

	"github.com/gomlx/hlo2llvm/hlo"
	"github.com/gomlx/hlo2llvm/llvmir"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lower parses and lowers an HLO module for the V100 profile, and returns the artifact and its IR.
func lower(t *testing.T, text string, options ...DebugOptions) (*Artifact, string) {
	t.Helper()
	module := must.M1(hlo.LoadModuleFromText(text))
	config := Compile(module).WithProfile(V100Profile())
	if len(options) > 0 {
		config = config.WithDebugOptions(options[0])
	}
	artifact, err := config.Done()
	require.NoError(t, err)
	return artifact, artifact.Module.String()
}

const addModule = `
HloModule add

ENTRY main {
  p0 = f32[4]{0} parameter(0)
  p1 = f32[4]{0} parameter(1)
  ROOT add.1 = f32[4]{0} add(p0, p1)
}
`

const wantAddIR = `; ModuleID = 'add'
source_filename = "add"
target datalayout = "e-i64:64-i128:128-v16:16-v32:32-n16:32:64"
target triple = "nvptx64-nvidia-cuda"

define void @add_1(ptr noalias align 16 dereferenceable(16) %arg0, ptr noalias align 16 dereferenceable(16) %arg1, ptr noalias align 16 dereferenceable(16) %arg2) {
entry:
  %block.id.x = call i32 @llvm.nvvm.read.ptx.sreg.ctaid.x(), !range !3
  %thread.id.x = call i32 @llvm.nvvm.read.ptx.sreg.tid.x(), !range !4
  %block.id = zext i32 %block.id.x to i64
  %0 = mul nuw nsw i64 %block.id, 32
  %thread.id = zext i32 %thread.id.x to i64
  %linear_index = add nuw nsw i64 %0, %thread.id
  %linear_index_in_range = icmp ult i64 %linear_index, 4
  br i1 %linear_index_in_range, label %linear_index_in_range-true, label %linear_index_in_range-after

linear_index_in_range-true:
  %1 = getelementptr inbounds float, ptr %arg0, i64 %linear_index
  %2 = load float, ptr %1, align 4, !invariant.load !5, !alias.scope !6, !noalias !9
  %3 = getelementptr inbounds float, ptr %arg1, i64 %linear_index
  %4 = load float, ptr %3, align 4, !invariant.load !5, !alias.scope !11, !noalias !9
  %5 = fadd float %2, %4
  %6 = getelementptr inbounds float, ptr %arg2, i64 %linear_index
  store float %5, ptr %6, align 4, !alias.scope !9, !noalias !13
  br label %linear_index_in_range-after

linear_index_in_range-after:
  ret void
}

declare i32 @llvm.nvvm.read.ptx.sreg.ctaid.x()

declare i32 @llvm.nvvm.read.ptx.sreg.tid.x()

!llvm.module.flags = !{!0}
!nvvm.annotations = !{!1, !2}

!0 = !{i32 4, !"nvvm-reflect-ftz", i32 0}
!1 = !{ptr @add_1, !"kernel", i32 1}
!2 = !{ptr @add_1, !"reqntidx", i32 32}
!3 = !{i32 0, i32 1}
!4 = !{i32 0, i32 32}
!5 = !{}
!6 = !{!7}
!7 = !{!"buffer: {index:0, offset:0, size:16}", !8}
!8 = !{!"XLA global AA domain"}
!9 = !{!10}
!10 = !{!"buffer: {index:2, offset:0, size:16}", !8}
!11 = !{!12}
!12 = !{!"buffer: {index:1, offset:0, size:16}", !8}
!13 = !{!7, !12}
`

func TestCompileElementwise(t *testing.T) {
	artifact, ir := lower(t, addModule)
	assert.Equal(t, wantAddIR, ir)
	require.Len(t, artifact.Kernels, 1)
	assert.Equal(t, KernelThunk{Name: "add_1", Instruction: "add.1",
		Launch: LaunchDimensions{BlockCount: 1, ThreadsPerBlock: 32}}, artifact.Kernels[0])

	// Lowering is deterministic, and each lowering uses its own context.
	artifact2, ir2 := lower(t, addModule)
	assert.Equal(t, ir, ir2)
	assert.NotSame(t, artifact.Module.Context(), artifact2.Module.Context())
}

func TestCompileConfig(t *testing.T) {
	module := must.M1(hlo.LoadModuleFromText(addModule))

	_, err := Compile(module).Done()
	require.ErrorContains(t, err, "no device profile")

	config := Compile(module).WithProfile(V100Profile())
	_, err = config.Done()
	require.NoError(t, err)
	_, err = config.Done()
	require.ErrorContains(t, err, "more than once")

	require.Panics(t, func() { Compile(module).WithProfile(V100Profile()).WithProfile(V100Profile()) })
	require.Panics(t, func() { Compile(module).WithContext(nil) })

	invalid := V100Profile()
	invalid.ThreadsPerWarp = 0
	_, err = Compile(module).WithProfile(invalid).Done()
	require.ErrorContains(t, err, "invalid device profile")

	ctx := llvmir.NewContext()
	artifact, err := Compile(module).WithProfile(V100Profile()).WithContext(ctx).Done()
	require.NoError(t, err)
	assert.Same(t, ctx, artifact.Module.Context())
}

func TestCompileDebugOptions(t *testing.T) {
	_, ir := lower(t, addModule, DebugOptions{FTZ: true})
	assert.Contains(t, ir, `!0 = !{i32 4, !"nvvm-reflect-ftz", i32 1}`)
	assert.NotContains(t, ir, "!invariant.load")
	assert.NotContains(t, ir, "!alias.scope")
	assert.NotContains(t, ir, "!noalias")
	assert.Contains(t, ir, "  %2 = load float, ptr %1, align 4\n")

	_, ir = lower(t, addModule, DebugOptions{EnableInvariantLoadMetadata: true})
	assert.Contains(t, ir, "!invariant.load")
	assert.NotContains(t, ir, "!alias.scope")
}

func TestCompileConstantsAndAliases(t *testing.T) {
	artifact, ir := lower(t, `
HloModule constants

ENTRY main {
  p0 = f32[2]{0} parameter(0)
  c = f32[2]{0} constant({1, 2.5})
  flags = pred[2]{0} constant({true, false})
  sum = f32[2]{0} add(p0, c)
  b = f32[2]{0} bitcast(sum)
  t = (f32[2]{0}, pred[2]{0}) tuple(b, flags)
  gte = f32[2]{0} get-tuple-element(t), index=0
  ROOT neg = f32[2]{0} negate(gte)
}
`)
	assert.Contains(t, ir,
		"@buffer_for_c = private unnamed_addr constant [2 x float] [float 1.000000e+00, float 2.500000e+00], align 64\n")
	assert.Contains(t, ir, "@buffer_for_flags = private unnamed_addr constant [2 x i8] [i8 1, i8 0], align 64\n")

	// Constants are not kernel arguments, and bitcast, tuple and get-tuple-element don't emit kernels.
	require.Len(t, artifact.Kernels, 2)
	assert.Equal(t, "sum", artifact.Kernels[0].Name)
	assert.Equal(t, "neg", artifact.Kernels[1].Name)
	assert.Contains(t, ir, "define void @sum(ptr noalias align 16 dereferenceable(8) %arg0, "+
		"ptr noalias align 16 dereferenceable(8) %arg1) {")
	assert.Contains(t, ir, "getelementptr inbounds float, ptr @buffer_for_c, i64 %linear_index")
	assert.Contains(t, ir, "fneg float")
}

func TestCompileFusionAndReduce(t *testing.T) {
	artifact, ir := lower(t, `
HloModule fusion_module

%fused_computation (param_0: f32[2,3], param_1: f32[2,3]) -> f32[2,3] {
  %param_0 = f32[2,3]{1,0} parameter(0)
  %param_1 = f32[2,3]{1,0} parameter(1)
  %multiply = f32[2,3]{1,0} multiply(%param_0, %param_1)
  ROOT %exp = f32[2,3]{1,0} exponential(%multiply)
}

%add_f32 {
  lhs = f32[] parameter(0)
  rhs = f32[] parameter(1)
  ROOT sum = f32[] add(lhs, rhs)
}

ENTRY main {
  a = f32[2,3]{1,0} parameter(0)
  f = f32[2,3]{1,0} fusion(a, a), kind=kLoop, calls=%fused_computation
  zero = f32[] constant(0)
  ROOT r = f32[2]{0} reduce(f, zero), dimensions={1}, to_apply=%add_f32
}
`)
	require.Len(t, artifact.Kernels, 2)
	assert.Equal(t, "f", artifact.Kernels[0].Name)
	assert.Equal(t, "r", artifact.Kernels[1].Name)

	// The same operand twice is passed once.
	assert.Contains(t, ir, "define void @f(ptr noalias align 16 dereferenceable(24) %arg0, "+
		"ptr noalias align 16 dereferenceable(24) %arg1) {")
	assert.Contains(t, ir, "call float @__nv_expf(float ")
	assert.Contains(t, ir, "declare float @__nv_expf(float)\n")
	assert.Equal(t, 1, strings.Count(ir, "declare float @__nv_expf"))

	// Reduce: a serial loop over the reduced axis, with the accumulator initialized from the constant.
	assert.Contains(t, ir, "@buffer_for_zero = private unnamed_addr constant [1 x float] zeroinitializer, align 64\n")
	assert.Contains(t, ir, "%accumulator = alloca float, align 4\n")
	assert.Contains(t, ir, "%reduce.1.invar_address = alloca i64, align 8\n")
	assert.Contains(t, ir, "\nreduce.1.loop_header:\n")
	assert.Contains(t, ir, "%reduce.1.indvar = load i64, ptr %reduce.1.invar_address, align 8\n")
	assert.Contains(t, ir, "icmp uge i64 %reduce.1.indvar, 3\n")
	assert.Contains(t, ir, "%reduce.1.invar_next = add nuw nsw i64 %reduce.1.indvar, 1\n")
	assert.Contains(t, ir, "\nreduce.1.loop_exit:\n")
	assert.Contains(t, ir, "!{ptr @r, !\"reqntidx\", i32 32}")
}

func TestCompileDataMovement(t *testing.T) {
	_, ir := lower(t, `
HloModule movement

ENTRY main {
  p0 = f32[3]{0} parameter(0)
  b = f32[2,3]{1,0} broadcast(p0), dimensions={1}
  t = f32[3,2]{1,0} transpose(b), dimensions={1,0}
  s = f32[3,1]{1,0} slice(t), slice={[0:3], [1:2]}
  r = f32[3]{0} reshape(s)
  rev = f32[3]{0} reverse(r), dimensions={0}
  i = s32[3]{0} iota(), iota_dimension=0
  c = f32[3]{0} convert(i)
  ROOT out = (f32[3]{0}, f32[3]{0}) tuple(rev, c)
}
`)
	for _, want := range []string{
		"define void @b(", "define void @t(", "define void @s(", "define void @r(", "define void @rev(",
		"define void @i(", "define void @c(",
		"urem i64 %linear_index, 3",
		"sitofp i32 ",
		"sub nuw nsw i64 2, ",
		"trunc i64 %linear_index to i32",
	} {
		assert.Contains(t, ir, want)
	}
}

func TestCompileTypes(t *testing.T) {
	_, ir := lower(t, `
HloModule types

ENTRY main {
  h0 = f16[2]{0} parameter(0)
  h1 = f16[2]{0} parameter(1)
  hadd = f16[2]{0} add(h0, h1)
  hexp = f16[2]{0} exponential(hadd)
  b0 = bf16[2]{0} parameter(2)
  badd = bf16[2]{0} add(b0, b0)
  i0 = s32[2]{0} parameter(3)
  idiv = s32[2]{0} divide(i0, i0)
  ishl = s32[2]{0} shift-left(i0, i0)
  lt = pred[2]{0} compare(i0, idiv), direction=LT
  sel = s32[2]{0} select(lt, i0, idiv)
  ROOT t = (f16[2]{0}, bf16[2]{0}, s32[2]{0}, s32[2]{0}) tuple(hexp, badd, sel, ishl)
}
`)
	// f16 arithmetic is native on sm_70, but libdevice functions take f32.
	assert.Contains(t, ir, "fadd half ")
	assert.Contains(t, ir, "fpext half ")
	assert.Contains(t, ir, "call float @__nv_expf(float ")
	assert.Contains(t, ir, " to half\n")

	// bf16 arithmetic is done in f32 before sm_80.
	assert.NotContains(t, ir, "fadd bfloat")
	assert.Contains(t, ir, "fpext bfloat ")
	assert.Contains(t, ir, "fptrunc float ")

	// Integer division is defined for zero divisors and overflow.
	assert.Contains(t, ir, "sdiv i32 ")
	assert.Contains(t, ir, "icmp eq i32 ")
	assert.Contains(t, ir, "-2147483648")
	assert.Contains(t, ir, "shl i32 ")
	assert.Contains(t, ir, "icmp uge i32 ")

	// PRED is i1 in registers and i8 in memory.
	assert.Contains(t, ir, "icmp slt i32 ")
	assert.Contains(t, ir, "zext i1 ")
	assert.Contains(t, ir, "store i8 ")
	assert.Contains(t, ir, "icmp ne i8 ")
}

func TestCompileSpecialCases(t *testing.T) {
	t.Run("zero elements", func(t *testing.T) {
		artifact, ir := lower(t, `
HloModule empty

ENTRY main {
  p0 = f32[0]{0} parameter(0)
  ROOT neg = f32[0]{0} negate(p0)
}
`)
		assert.Empty(t, artifact.Kernels)
		assert.NotContains(t, ir, "define")
		assert.Contains(t, ir, "!llvm.module.flags = !{!0}")
	})

	t.Run("large", func(t *testing.T) {
		artifact, ir := lower(t, `
HloModule large

ENTRY main {
  p0 = f32[2048]{0} parameter(0)
  ROOT neg = f32[2048]{0} negate(p0)
}
`)
		require.Len(t, artifact.Kernels, 1)
		assert.Equal(t, LaunchDimensions{BlockCount: 2, ThreadsPerBlock: 1024}, artifact.Kernels[0].Launch)
		assert.Contains(t, ir, "!{ptr @neg, !\"reqntidx\", i32 1024}")
		assert.Contains(t, ir, "!{i32 0, i32 2}")
		assert.Contains(t, ir, "mul nuw nsw i64 %block.id, 1024")
	})

	t.Run("kernel names", func(t *testing.T) {
		artifact, _ := lower(t, `
HloModule names

ENTRY main {
  p0 = f32[2]{0} parameter(0)
  a.1 = f32[2]{0} negate(p0)
  a_1 = f32[2]{0} negate(a.1)
  ROOT %2x = f32[2]{0} negate(a_1)
}
`)
		require.Len(t, artifact.Kernels, 3)
		assert.Equal(t, "a_1", artifact.Kernels[0].Name)
		assert.Equal(t, "a_1_1", artifact.Kernels[1].Name)
		assert.Equal(t, "_2x", artifact.Kernels[2].Name)
	})

	t.Run("libdevice names", func(t *testing.T) {
		artifact, ir := lower(t, `
HloModule libdevice_names

ENTRY main {
  p0 = f32[2]{0} parameter(0)
  __nv_expf = f32[2]{0} negate(p0)
  ROOT e = f32[2]{0} exponential(__nv_expf)
}
`)
		require.Len(t, artifact.Kernels, 2)
		assert.Equal(t, "___nv_expf", artifact.Kernels[0].Name)
		assert.Contains(t, ir, "define void @___nv_expf(")
		assert.Contains(t, ir, "declare float @__nv_expf(float)\n")
	})
}

func TestCompileUnsupported(t *testing.T) {
	module := must.M1(hlo.LoadModuleFromText(`
HloModule unsupported

ENTRY main {
  p0 = f32[2,2]{1,0} parameter(0)
  ROOT d = f32[2,2]{1,0} dot(p0, p0), lhs_contracting_dims={1}, rhs_contracting_dims={0}
}
`))
	_, err := Compile(module).WithProfile(V100Profile()).Done()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `lowering module "unsupported"`)
	assert.Contains(t, err.Error(), "unsupported op dot in %d (dot)")
	var unsupportedErr *UnsupportedError
	require.True(t, errors.As(err, &unsupportedErr))
	assert.Equal(t, "d", unsupportedErr.Instruction.Name)

	// Kernels index arrays as row-major, so any other layout is rejected, also inside fused computations.
	for _, text := range []string{`
HloModule column_major

ENTRY main {
  p = f32[2,3]{0,1} parameter(0)
  ROOT n = f32[2,3]{1,0} negate(p)
}
`, `
HloModule fused_column_major

fused {
  p = f32[2,3]{0,1} parameter(0)
  ROOT n = f32[2,3]{1,0} negate(p)
}

ENTRY main {
  p0 = f32[2,3]{1,0} parameter(0)
  ROOT f = f32[2,3]{1,0} fusion(p0), kind=kLoop, calls=fused
}
`} {
		module := must.M1(hlo.LoadModuleFromText(text))
		_, err := Compile(module).WithProfile(V100Profile()).Done()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported non-default layout f32[2,3]{0,1} in %p (parameter)")
		require.True(t, errors.As(err, &unsupportedErr))
		assert.Equal(t, "p", unsupportedErr.Instruction.Name)
	}
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "add_1", sanitizeName("add.1"))
	assert.Equal(t, "a_b", sanitizeName("a-b"))
	assert.Equal(t, "_1x", sanitizeName("1x"))
	assert.Equal(t, "fusion", sanitizeName("fusion"))
}
