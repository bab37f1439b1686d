// Package harness drives the lowering of a file of HLO modules to unoptimized LLVM IR.
//
// The input holds one or more HLO modules in text format, separated by a line with ModuleSeparator.
// Each module is loaded, lowered for a fixed GPU device profile and printed, in input order. The first
// failure stops the run: the modules before it are printed, the ones after it are not even loaded.
//
// Example:
//
//	driver := harness.NewDriver(gpu.DefaultDebugOptions())
//	if err := driver.RunFile("tests.hlo", os.Stdout); err != nil {
//		klog.Fatal(err)
//	}
package harness

import (
	"strings"
)

// ModuleSeparator separates the modules of an input file.
const ModuleSeparator = "// -----"

// SplitModules splits text on ModuleSeparator.
//
// Fragments are returned as is, including surrounding whitespace and empty fragments, so that
// strings.Join(SplitModules(text), ModuleSeparator) == text.
func SplitModules(text string) []string {
	return strings.Split(text, ModuleSeparator)
}
