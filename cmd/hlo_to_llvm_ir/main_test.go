package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoModules = `HloModule first

ENTRY main {
  p0 = f32[2]{0} parameter(0)
  ROOT e = f32[2]{0} exponential(p0)
}
// -----
HloModule second

ENTRY main {
  p0 = s32[2]{0} parameter(0)
  ROOT n = s32[2]{0} negate(p0)
}
`

func writeInput(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.hlo")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func runCommand(args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRunUsage(t *testing.T) {
	code, stdout, stderr := runCommand()
	assert.Equal(t, exitUsage, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "usage error: expected exactly one input file, got 0 arguments")
	assert.Contains(t, stderr, "Usage: hlo_to_llvm_ir [flags] <input.hlo>")
	assert.Contains(t, stderr, "-xla_gpu_ftz")

	code, _, _ = runCommand("a.hlo", "b.hlo")
	assert.Equal(t, exitUsage, code)

	code, stdout, stderr = runCommand("-no_such_flag", "a.hlo")
	assert.Equal(t, exitUsage, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "flag provided but not defined: -no_such_flag")

	code, _, stderr = runCommand("-help")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stderr, "Usage:")
}

func TestRunModules(t *testing.T) {
	path := writeInput(t, twoModules)
	code, stdout, stderr := runCommand(path)
	require.Equal(t, exitOK, code, stderr)
	assert.Empty(t, stderr)
	first, second := strings.Index(stdout, "; ModuleID = 'first'"), strings.Index(stdout, "; ModuleID = 'second'")
	require.GreaterOrEqual(t, first, 0)
	assert.Greater(t, second, first)
	assert.Contains(t, stdout, "call float @__nv_expf(float")
	assert.Contains(t, stdout, "!{i32 4, !\"nvvm-reflect-ftz\", i32 0}")
	assert.Equal(t, 2, strings.Count(stdout, "target triple = \"nvptx64-nvidia-cuda\""))
}

func TestRunDebugOptions(t *testing.T) {
	path := writeInput(t, twoModules)
	dumpDir := filepath.Join(t.TempDir(), "dump")
	code, stdout, stderr := runCommand("-xla_gpu_ftz", "-xla_llvm_enable_noalias_metadata=false",
		"-xla_dump_to", dumpDir, path)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "!{i32 4, !\"nvvm-reflect-ftz\", i32 1}")
	assert.NotContains(t, stdout, "!alias.scope")
	assert.FileExists(t, filepath.Join(dumpDir, "module_0.first.ll"))
	assert.FileExists(t, filepath.Join(dumpDir, "module_1.second.ll"))
}

func TestRunFailures(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		code, stdout, stderr := runCommand(filepath.Join(t.TempDir(), "missing.hlo"))
		assert.Equal(t, exitFailure, code)
		assert.Empty(t, stdout)
		assert.True(t, strings.HasPrefix(stderr, "io error: "), stderr)
	})

	t.Run("malformed fragment", func(t *testing.T) {
		path := writeInput(t, strings.Replace(twoModules, "HloModule second", "HloModule second,,", 1))
		code, stdout, stderr := runCommand(path)
		assert.Equal(t, exitFailure, code)
		assert.Contains(t, stdout, "; ModuleID = 'first'")
		assert.NotContains(t, stdout, "second")
		assert.True(t, strings.HasPrefix(stderr, "fragment #1: parse error: "), stderr)
	})
}
