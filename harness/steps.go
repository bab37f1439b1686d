package harness

import (
	"io"

	"github.com/gomlx/hlo2llvm/gpu"
	"github.com/gomlx/hlo2llvm/hlo"
	"github.com/gomlx/hlo2llvm/llvmir"
	"github.com/pkg/errors"
)

// Loader parses the text of one fragment into an HLO module.
type Loader interface {
	Load(text string) (*hlo.Module, error)
}

// Lowerer lowers a module for the given device profile.
//
// Artifacts returned by different calls must not share any state, so each can be printed and dropped on
// its own.
type Lowerer interface {
	Lower(module *hlo.Module, profile gpu.DeviceProfile) (*gpu.Artifact, error)
}

// Printer writes the textual form of an artifact.
type Printer interface {
	Print(artifact *gpu.Artifact, w io.Writer) error
}

// HLOLoader is the default Loader: it parses and verifies HLO text.
type HLOLoader struct{}

// Load implements Loader.
func (HLOLoader) Load(text string) (*hlo.Module, error) {
	return hlo.LoadModuleFromText(text)
}

// GPULowerer is the default Lowerer: it runs gpu.Compile with a fresh LLVM context for each module.
type GPULowerer struct {
	Options gpu.DebugOptions
}

// Lower implements Lowerer.
func (l *GPULowerer) Lower(module *hlo.Module, profile gpu.DeviceProfile) (*gpu.Artifact, error) {
	return gpu.Compile(module).
		WithProfile(profile).
		WithContext(llvmir.NewContext()).
		WithDebugOptions(l.Options).
		Done()
}

// IRPrinter is the default Printer: it writes the LLVM IR module of the artifact.
type IRPrinter struct{}

// Print implements Printer.
func (IRPrinter) Print(artifact *gpu.Artifact, w io.Writer) error {
	if artifact == nil || artifact.Module == nil {
		return errors.New("no LLVM module to print")
	}
	return artifact.Module.Write(w)
}
