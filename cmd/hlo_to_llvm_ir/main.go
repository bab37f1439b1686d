// hlo_to_llvm_ir lowers a file of HLO modules to unoptimized NVPTX LLVM IR, for a V100 GPU, and prints it.
//
// Modules in the file are separated by lines with "// -----", and their IR is printed in the same order.
// It stops at the first module that fails to parse or lower.
//
// Usage:
//
//	hlo_to_llvm_ir [flags] <input.hlo>
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gomlx/hlo2llvm/gpu"
	"github.com/gomlx/hlo2llvm/harness"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

const usageHeader = `Usage: %s [flags] <input.hlo>

Lowers each HLO module of the input file (modules separated by "// -----") to unoptimized LLVM IR for a
V100 GPU (compute capability 7.0), and prints the IR to the standard output.

Flags:
`

func main() {
	code := run(os.Args[1:], os.Stdout, os.Stderr)
	klog.Flush()
	os.Exit(code)
}

// run executes the command line args, and returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("hlo_to_llvm_ir", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(fs.Output(), usageHeader, fs.Name())
		fs.PrintDefaults()
	}
	klog.InitFlags(fs)
	options := gpu.DefaultDebugOptions()
	options.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() != 1 {
		usageErr := &harness.Error{Kind: harness.UsageError, Fragment: harness.NoFragment,
			Err: errors.Errorf("expected exactly one input file, got %d arguments", fs.NArg())}
		_, _ = fmt.Fprintln(stderr, usageErr)
		fs.Usage()
		return exitUsage
	}

	driver := harness.NewDriver(options)
	if err := driver.RunFile(fs.Arg(0), stdout); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		klog.V(1).Infof("%+v", err)
		return exitFailure
	}
	return exitOK
}
