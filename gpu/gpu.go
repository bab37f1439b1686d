// Package gpu lowers HLO modules to LLVM IR for NVPTX (CUDA) devices.
//
// Every array-producing instruction of the entry computation (elementwise ops, data movement, loop fusions
// and reductions) becomes one kernel function, where each thread computes one element of the output. Entry
// parameters and kernel outputs are passed to kernels as pointer arguments, constants become module
// globals, and tuple, get-tuple-element and bitcast only alias existing buffers.
//
// The generated IR is not optimized. It depends only on the HLO module, the DeviceProfile and the
// DebugOptions: see V100Profile for a fixed profile to generate reproducible IR.
//
// Example:
//
//	artifact, err := gpu.Compile(module).WithProfile(gpu.V100Profile()).Done()
//	if err != nil {
//		return err
//	}
//	fmt.Println(artifact.Module)
package gpu
