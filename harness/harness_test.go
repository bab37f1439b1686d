package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// klog flushes its buffers from a background goroutine started on package initialization.
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction("k8s.io/klog/v2.(*flushDaemon).run.func1"))
}

func TestSplitModules(t *testing.T) {
	testCases := []struct {
		name, text string
		want       []string
	}{
		{"no separator", "HloModule a", []string{"HloModule a"}},
		{"empty", "", []string{""}},
		{"two", "A\n// -----\nB", []string{"A\n", "\nB"}},
		{"trailing", "A\n// -----", []string{"A\n", ""}},
		{"adjacent", "// -----// -----", []string{"", "", ""}},
		{"longer dash run", "A// ------B", []string{"A", "-B"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitModules(tc.text)
			assert.Equal(t, tc.want, got)
			assert.Len(t, got, strings.Count(tc.text, ModuleSeparator)+1)
			assert.Equal(t, tc.text, strings.Join(got, ModuleSeparator))
		})
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, "usage error", UsageError.String())
	assert.Equal(t, "io error", IOError.String())
	assert.Equal(t, "parse error", ParseError.String())
	assert.Equal(t, "lowering error", LoweringError.String())
	assert.Equal(t, "emit error", EmitError.String())
	assert.Equal(t, "Kind(17)", Kind(17).String())
}
