package harness

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/hlo2llvm/gpu"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Driver runs the steps of the harness over each fragment of an input, in order, stopping at the first
// failure.
//
// All errors returned are *Error.
type Driver struct {
	Loader  Loader
	Lowerer Lowerer
	Printer Printer

	// Profile is given to every call to Lowerer.
	Profile gpu.DeviceProfile

	// DumpTo, if set, is a directory where the IR of each lowered fragment is also written, to
	// "module_<index>.<module name>.ll".
	DumpTo string
}

// NewDriver returns a Driver with the default steps, lowering for gpu.V100Profile with the given options.
// options.DumpTo is used as the Driver's DumpTo.
func NewDriver(options gpu.DebugOptions) *Driver {
	return &Driver{
		Loader:  HLOLoader{},
		Lowerer: &GPULowerer{Options: options},
		Printer: IRPrinter{},
		Profile: gpu.V100Profile(),
		DumpTo:  options.DumpTo,
	}
}

// RunFile reads the file at path and runs it, see RunText.
func (d *Driver) RunFile(path string, w io.Writer) error {
	klog.V(1).Infof("Reading %q", path)
	contents, err := os.ReadFile(path)
	if err != nil {
		return newError(IOError, NoFragment, errors.Wrapf(err, "reading HLO file"))
	}
	klog.V(2).Infof("Read %s from %q", humanize.IBytes(uint64(len(contents))), path)
	return d.RunText(string(contents), w)
}

// RunText splits text into fragments and, for each one in order, loads, lowers and prints it to w.
//
// If a fragment fails, the output of the previous fragments is kept, nothing is written for the failing
// fragment, and the following fragments are not processed.
func (d *Driver) RunText(text string, w io.Writer) error {
	fragments := SplitModules(text)
	klog.V(1).Infof("Split input into %d fragment(s)", len(fragments))
	klog.V(2).Infof("Device profile: %s", d.Profile)
	for i, fragment := range fragments {
		if err := d.runFragment(i, fragment, w); err != nil {
			klog.V(1).Infof("Failed at fragment #%d of %d", i, len(fragments))
			return err
		}
	}
	klog.V(1).Infof("Done: %d module(s) lowered", len(fragments))
	return nil
}

func (d *Driver) runFragment(index int, fragment string, w io.Writer) error {
	klog.V(1).Infof("Processing fragment #%d", index)
	module, err := d.Loader.Load(fragment)
	if err == nil && module == nil {
		err = errors.New("loader returned no module")
	}
	if err != nil {
		return newError(ParseError, index, err)
	}
	artifact, err := d.Lowerer.Lower(module, d.Profile)
	if err != nil {
		return newError(LoweringError, index, err)
	}
	if artifact != nil && klog.V(2).Enabled() {
		for _, thunk := range artifact.Kernels {
			klog.Infof("  kernel %s (%s): %s", thunk.Name, thunk.Instruction, thunk.Launch)
		}
	}

	// Printed in full before writing, so a failing fragment leaves no partial output.
	var ir bytes.Buffer
	if err := d.Printer.Print(artifact, &ir); err != nil {
		return newError(EmitError, index, err)
	}
	if d.DumpTo != "" {
		if err := d.dump(index, module.Name, ir.Bytes()); err != nil {
			return newError(IOError, index, err)
		}
	}
	if _, err := w.Write(ir.Bytes()); err != nil {
		return newError(EmitError, index, errors.Wrapf(err, "writing IR of module %q", module.Name))
	}
	return nil
}

// dumpFileName returns the name of the dump file of a module.
func dumpFileName(index int, moduleName string) string {
	moduleName = strings.Map(func(r rune) rune {
		if r == '/' || r == filepath.Separator {
			return '_'
		}
		return r
	}, moduleName)
	return fmt.Sprintf("module_%d.%s.ll", index, moduleName)
}

func (d *Driver) dump(index int, moduleName string, ir []byte) error {
	if err := os.MkdirAll(d.DumpTo, 0755); err != nil {
		return errors.Wrapf(err, "creating dump directory %q", d.DumpTo)
	}
	path := filepath.Join(d.DumpTo, dumpFileName(index, moduleName))
	if err := os.WriteFile(path, ir, 0644); err != nil {
		return errors.Wrapf(err, "dumping IR of module %q", moduleName)
	}
	klog.V(1).Infof("Dumped IR of fragment #%d to %q", index, path)
	return nil
}
