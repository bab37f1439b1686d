package harness

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/hlo2llvm/gpu"
	"github.com/gomlx/hlo2llvm/hlo"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const negModule = `
HloModule neg

ENTRY main {
  p0 = f32[8]{0} parameter(0)
  ROOT n = f32[8]{0} negate(p0)
}
`

const addModule = `
HloModule add

ENTRY main {
  p0 = f32[4]{0} parameter(0)
  p1 = f32[4]{0} parameter(1)
  ROOT sum = f32[4]{0} add(p0, p1)
}
`

const identityModule = `
HloModule identity

ENTRY main {
  ROOT p0 = f32[3]{0} parameter(0)
}
`

const dotModule = `
HloModule dot

ENTRY main {
  p0 = f32[2,2]{1,0} parameter(0)
  ROOT d = f32[2,2]{1,0} dot(p0, p0), lhs_contracting_dims={1}, rhs_contracting_dims={0}
}
`

func join(fragments ...string) string {
	return strings.Join(fragments, "\n"+ModuleSeparator+"\n")
}

// lowerDirectly returns the IR of a single module, lowered without the driver.
func lowerDirectly(t *testing.T, text string) string {
	t.Helper()
	module := must.M1(hlo.LoadModuleFromText(text))
	artifact := must.M1(gpu.Compile(module).WithProfile(gpu.V100Profile()).Done())
	return artifact.Module.String()
}

func runText(t *testing.T, text string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := NewDriver(gpu.DefaultDebugOptions()).RunText(text, &out)
	return out.String(), err
}

func TestDriverScenarios(t *testing.T) {
	t.Run("single module", func(t *testing.T) {
		out, err := runText(t, identityModule)
		require.NoError(t, err)
		assert.Equal(t, lowerDirectly(t, identityModule), out)
		assert.Contains(t, out, "; ModuleID = 'identity'\n")
		assert.Contains(t, out, `target triple = "nvptx64-nvidia-cuda"`)
		assert.Contains(t, out, `target datalayout = "e-i64:64-i128:128-v16:16-v32:32-n16:32:64"`)
		assert.NotContains(t, out, "define")
	})

	t.Run("two modules in order", func(t *testing.T) {
		out, err := runText(t, join(negModule, addModule))
		require.NoError(t, err)
		assert.Equal(t, lowerDirectly(t, negModule)+lowerDirectly(t, addModule), out)
		assert.Less(t, strings.Index(out, "define void @n("), strings.Index(out, "define void @sum("))
	})

	t.Run("malformed second module", func(t *testing.T) {
		out, err := runText(t, join(negModule, "this is not HLO", addModule))
		require.Error(t, err)
		assert.Equal(t, lowerDirectly(t, negModule), out)

		var harnessErr *Error
		require.True(t, errors.As(err, &harnessErr))
		assert.Equal(t, ParseError, harnessErr.Kind)
		assert.Equal(t, 1, harnessErr.Fragment)
		assert.True(t, strings.HasPrefix(err.Error(), "fragment #1: parse error: "), err.Error())
		var parseErr *hlo.ParseError
		require.True(t, errors.As(err, &parseErr))
		assert.Equal(t, 2, parseErr.Line)
	})

	t.Run("missing file", func(t *testing.T) {
		var out bytes.Buffer
		err := NewDriver(gpu.DefaultDebugOptions()).RunFile(filepath.Join(t.TempDir(), "missing.hlo"), &out)
		require.Error(t, err)
		assert.Zero(t, out.Len())
		kind, ok := KindOf(err)
		require.True(t, ok)
		assert.Equal(t, IOError, kind)
		assert.ErrorIs(t, err, fs.ErrNotExist)
		assert.True(t, strings.HasPrefix(err.Error(), "io error: reading HLO file"), err.Error())
	})
}

func TestDriverRunFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.hlo")
	require.NoError(t, os.WriteFile(path, []byte(join(addModule, negModule)), 0644))
	var out bytes.Buffer
	require.NoError(t, NewDriver(gpu.DefaultDebugOptions()).RunFile(path, &out))
	assert.Equal(t, lowerDirectly(t, addModule)+lowerDirectly(t, negModule), out.String())
}

func TestDriverDeterministic(t *testing.T) {
	text := join(addModule, negModule, identityModule)
	first, err := runText(t, text)
	require.NoError(t, err)
	second, err := runText(t, text)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDriverErrors(t *testing.T) {
	t.Run("empty fragment", func(t *testing.T) {
		out, err := runText(t, addModule+ModuleSeparator)
		kind, ok := KindOf(err)
		require.True(t, ok)
		assert.Equal(t, ParseError, kind)
		assert.Equal(t, 1, err.(*Error).Fragment)
		assert.Equal(t, lowerDirectly(t, addModule), out)
	})

	t.Run("unsupported op", func(t *testing.T) {
		out, err := runText(t, join(addModule, dotModule, negModule))
		require.Error(t, err)
		assert.Equal(t, lowerDirectly(t, addModule), out)
		kind, _ := KindOf(err)
		assert.Equal(t, LoweringError, kind)
		assert.Contains(t, err.Error(), "fragment #1: lowering error: ")
		var unsupportedErr *gpu.UnsupportedError
		require.True(t, errors.As(err, &unsupportedErr))
		assert.Equal(t, "d", unsupportedErr.Instruction.Name)
	})

	t.Run("broken profile", func(t *testing.T) {
		driver := NewDriver(gpu.DefaultDebugOptions())
		driver.Profile.ThreadsPerWarp = 0
		var out bytes.Buffer
		err := driver.RunText(addModule, &out)
		kind, _ := KindOf(err)
		assert.Equal(t, LoweringError, kind)
		assert.Contains(t, err.Error(), "invalid device profile")
		assert.Zero(t, out.Len())
	})
}

// recorder fakes the three steps, recording the calls.
type recorder struct {
	calls     []string
	failLoad  string
	failLower string
	failPrint string
	noModule  string
	profiles  []gpu.DeviceProfile
}

func (r *recorder) Load(text string) (*hlo.Module, error) {
	name := strings.TrimSpace(text)
	r.calls = append(r.calls, "load "+name)
	if name == r.failLoad {
		return nil, errors.Errorf("cannot load %s", name)
	}
	if name == r.noModule {
		return nil, nil
	}
	return &hlo.Module{Name: name}, nil
}

func (r *recorder) Lower(module *hlo.Module, profile gpu.DeviceProfile) (*gpu.Artifact, error) {
	r.calls = append(r.calls, "lower "+module.Name)
	r.profiles = append(r.profiles, profile)
	if module.Name == r.failLower {
		return nil, errors.Errorf("cannot lower %s", module.Name)
	}
	return &gpu.Artifact{Kernels: []gpu.KernelThunk{{Name: module.Name}}}, nil
}

func (r *recorder) Print(artifact *gpu.Artifact, w io.Writer) error {
	name := artifact.Kernels[0].Name
	r.calls = append(r.calls, "print "+name)
	if name == r.failPrint {
		_, _ = io.WriteString(w, "partial")
		return errors.Errorf("cannot print %s", name)
	}
	_, err := fmt.Fprintf(w, "<%s>", name)
	return err
}

func newFakeDriver(r *recorder) *Driver {
	return &Driver{Loader: r, Lowerer: r, Printer: r, Profile: gpu.V100Profile()}
}

func TestDriverFailFast(t *testing.T) {
	text := join("a", "b", "c")

	t.Run("success", func(t *testing.T) {
		r := &recorder{}
		var out bytes.Buffer
		require.NoError(t, newFakeDriver(r).RunText(text, &out))
		assert.Equal(t, "<a><b><c>", out.String())
		assert.Equal(t, []string{
			"load a", "lower a", "print a",
			"load b", "lower b", "print b",
			"load c", "lower c", "print c",
		}, r.calls)
		require.Len(t, r.profiles, 3)
		for _, profile := range r.profiles {
			assert.Equal(t, gpu.V100Profile(), profile)
		}
	})

	testCases := []struct {
		name      string
		r         *recorder
		wantKind  Kind
		wantCalls []string
	}{
		{"load", &recorder{failLoad: "b"}, ParseError,
			[]string{"load a", "lower a", "print a", "load b"}},
		{"lower", &recorder{failLower: "b"}, LoweringError,
			[]string{"load a", "lower a", "print a", "load b", "lower b"}},
		{"print", &recorder{failPrint: "b"}, EmitError,
			[]string{"load a", "lower a", "print a", "load b", "lower b", "print b"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			err := newFakeDriver(tc.r).RunText(text, &out)
			require.Error(t, err)
			assert.Equal(t, "<a>", out.String())
			assert.Equal(t, tc.wantCalls, tc.r.calls)
			var harnessErr *Error
			require.True(t, errors.As(err, &harnessErr))
			assert.Equal(t, tc.wantKind, harnessErr.Kind)
			assert.Equal(t, 1, harnessErr.Fragment)
			assert.Contains(t, errors.Cause(err).Error(), "cannot "+tc.name+" b")
		})
	}
}

func TestDriverNoModule(t *testing.T) {
	driver := newFakeDriver(&recorder{noModule: "b"})
	driver.DumpTo = t.TempDir()
	var out bytes.Buffer
	err := driver.RunText(join("a", "b"), &out)
	require.Error(t, err)
	assert.Equal(t, "<a>", out.String())
	assert.Equal(t, "fragment #1: parse error: loader returned no module", err.Error())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestDriverOutputFailure(t *testing.T) {
	err := newFakeDriver(&recorder{}).RunText("a", failingWriter{})
	kind, _ := KindOf(err)
	assert.Equal(t, EmitError, kind)
	assert.Equal(t, "fragment #0: emit error: writing IR of module \"a\": disk full", err.Error())
}

func TestDriverDumpTo(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dumps")
	options := gpu.DefaultDebugOptions()
	options.DumpTo = dir
	var out bytes.Buffer
	require.NoError(t, NewDriver(options).RunText(join(addModule, negModule), &out))

	entries := must.M1(os.ReadDir(dir))
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	assert.Equal(t, []string{"module_0.add.ll", "module_1.neg.ll"}, names)
	dumped := must.M1(os.ReadFile(filepath.Join(dir, "module_1.neg.ll")))
	assert.Equal(t, lowerDirectly(t, negModule), string(dumped))
	assert.Equal(t, "module_3.a_b.ll", dumpFileName(3, "a/b"))
}

func TestGPULowererFreshContext(t *testing.T) {
	module := must.M1(hlo.LoadModuleFromText(addModule))
	lowerer := &GPULowerer{Options: gpu.DefaultDebugOptions()}
	first := must.M1(lowerer.Lower(module, gpu.V100Profile()))
	second := must.M1(lowerer.Lower(module, gpu.V100Profile()))
	assert.NotSame(t, first.Module, second.Module)
	assert.NotSame(t, first.Module.Context(), second.Module.Context())
	assert.Equal(t, first.Module.String(), second.Module.String())
}

func TestIRPrinterNoModule(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, IRPrinter{}.Print(&gpu.Artifact{}, &out))
	assert.Zero(t, out.Len())
}
