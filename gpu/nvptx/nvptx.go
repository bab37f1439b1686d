// Package nvptx holds the constants of the NVPTX backend: target triple, data layout, special register
// intrinsics, annotations and libdevice function names.
package nvptx

const (
	// TargetTriple of 64 bits CUDA devices.
	TargetTriple = "nvptx64-nvidia-cuda"

	// DataLayout of the NVPTX 64 bits target.
	DataLayout = "e-i64:64-i128:128-v16:16-v32:32-n16:32:64"

	// Platform name of CUDA devices.
	Platform = "CUDA"
)

// Special registers read by kernels.
const (
	ThreadIdxX = "llvm.nvvm.read.ptx.sreg.tid.x"
	BlockIdxX  = "llvm.nvvm.read.ptx.sreg.ctaid.x"
)

// Metadata names.
const (
	// Annotations is the named metadata holding the kernel annotations.
	Annotations = "nvvm.annotations"

	// KernelAnnotation marks a function as a kernel entry point.
	KernelAnnotation = "kernel"

	// ReqNTIDXAnnotation gives the exact number of threads per block the kernel is launched with.
	ReqNTIDXAnnotation = "reqntidx"

	// ModuleFlags is the named metadata of the module flags.
	ModuleFlags = "llvm.module.flags"

	// ReflectFTZFlag is read by libdevice to decide whether to flush denormals to zero.
	ReflectFTZFlag = "nvvm-reflect-ftz"

	// ModuleFlagOverride is the behavior of module flags set by the compiler (llvm::Module::Override).
	ModuleFlagOverride = 4
)

// LibdevicePrefix starts the names of all libdevice functions.
const LibdevicePrefix = "__nv_"

// Libdevice returns the libdevice function implementing op for float (`__nv_<op>f`) or double
// (`__nv_<op>`), e.g. Libdevice("exp", false) returns "__nv_expf".
func Libdevice(op string, isDouble bool) string {
	if isDouble {
		return LibdevicePrefix + op
	}
	return LibdevicePrefix + op + "f"
}
