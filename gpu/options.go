package gpu

import "flag"

// DebugOptions are the compiler flags that affect the emitted IR.
type DebugOptions struct {
	// FTZ sets the `nvvm-reflect-ftz` module flag, so libdevice flushes denormals to zero.
	FTZ bool

	// EnableNoaliasMetadata adds `!alias.scope` and `!noalias` metadata to buffer loads and stores.
	EnableNoaliasMetadata bool

	// EnableInvariantLoadMetadata marks loads of buffers not written by the kernel with `!invariant.load`.
	EnableInvariantLoadMetadata bool

	// DumpTo is a directory where each lowered module is also written. Empty disables dumping.
	DumpTo string
}

// DefaultDebugOptions returns the options used when none are given.
func DefaultDebugOptions() DebugOptions {
	return DebugOptions{
		EnableNoaliasMetadata:       true,
		EnableInvariantLoadMetadata: true,
	}
}

// RegisterFlags binds the options to flags of fs, using the current values as defaults.
func (o *DebugOptions) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&o.FTZ, "xla_gpu_ftz", o.FTZ,
		"Flush denormal floating point values to zero in libdevice functions.")
	fs.BoolVar(&o.EnableNoaliasMetadata, "xla_llvm_enable_noalias_metadata", o.EnableNoaliasMetadata,
		"Add alias scope metadata to buffer loads and stores.")
	fs.BoolVar(&o.EnableInvariantLoadMetadata, "xla_llvm_enable_invariant_load_metadata", o.EnableInvariantLoadMetadata,
		"Mark loads of read-only buffers as invariant.")
	fs.StringVar(&o.DumpTo, "xla_dump_to", o.DumpTo,
		"Directory where to also write the LLVM IR of each module.")
}
