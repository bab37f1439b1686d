package gpu

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/hlo2llvm/gpu/nvptx"
	"github.com/pkg/errors"
)

// CudaComputeCapability is the version of the CUDA device architecture, e.g. 7.0 for Volta.
type CudaComputeCapability struct {
	Major, Minor int
}

// IsAtLeast returns whether the capability is major.minor or newer.
func (cc CudaComputeCapability) IsAtLeast(major, minor int) bool {
	return cc.Major > major || (cc.Major == major && cc.Minor >= minor)
}

// String implements fmt.Stringer.
func (cc CudaComputeCapability) String() string {
	return fmt.Sprintf("%d.%d", cc.Major, cc.Minor)
}

// DeviceInfo holds the hardware limits used to compute launch dimensions.
type DeviceInfo struct {
	ThreadsPerBlockLimit int
	ThreadsPerWarp       int

	// SharedMemoryPerBlock in bytes.
	SharedMemoryPerBlock int

	CoreCount           int
	ThreadsPerCoreLimit int
}

// DeviceProfile describes the target device and code generation target of a lowering.
// It is a value type: copies are independent and safe to share.
type DeviceProfile struct {
	DeviceInfo
	ComputeCapability CudaComputeCapability

	TargetTriple string
	DataLayout   string

	// PointerSize in bytes, it determines the width of the index type (i64 for 8, i32 for 4).
	PointerSize int

	PlatformName string
}

// V100Profile returns the profile of a Tesla V100 GPU: it is the fixed profile used to produce reproducible
// IR, independent of the machine (if any) the lowering runs on.
func V100Profile() DeviceProfile {
	return DeviceProfile{
		DeviceInfo: DeviceInfo{
			ThreadsPerBlockLimit: 1024,
			ThreadsPerWarp:       32,
			SharedMemoryPerBlock: 49152,
			CoreCount:            80,
			ThreadsPerCoreLimit:  2048,
		},
		ComputeCapability: CudaComputeCapability{Major: 7, Minor: 0},
		TargetTriple:      nvptx.TargetTriple,
		DataLayout:        nvptx.DataLayout,
		PointerSize:       8,
		PlatformName:      nvptx.Platform,
	}
}

// Validate checks the profile is usable for lowering.
func (p DeviceProfile) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"threads per block limit", p.ThreadsPerBlockLimit},
		{"threads per warp", p.ThreadsPerWarp},
		{"core count", p.CoreCount},
		{"threads per core limit", p.ThreadsPerCoreLimit},
	}
	for _, field := range positive {
		if field.value <= 0 {
			return errors.Errorf("invalid device profile: %s must be positive, got %d", field.name, field.value)
		}
	}
	if p.SharedMemoryPerBlock < 0 {
		return errors.Errorf("invalid device profile: shared memory per block must be >= 0, got %d", p.SharedMemoryPerBlock)
	}
	if p.ThreadsPerWarp&(p.ThreadsPerWarp-1) != 0 {
		return errors.Errorf("invalid device profile: threads per warp must be a power of 2, got %d", p.ThreadsPerWarp)
	}
	if p.ThreadsPerBlockLimit < p.ThreadsPerWarp {
		return errors.Errorf("invalid device profile: threads per block limit (%d) is smaller than a warp (%d)",
			p.ThreadsPerBlockLimit, p.ThreadsPerWarp)
	}
	if p.TargetTriple == "" || p.DataLayout == "" {
		return errors.New("invalid device profile: target triple and data layout must be set")
	}
	if p.PointerSize != 4 && p.PointerSize != 8 {
		return errors.Errorf("invalid device profile: pointer size must be 4 or 8 bytes, got %d", p.PointerSize)
	}
	return nil
}

// String returns a one line summary of the profile, for logging.
func (p DeviceProfile) String() string {
	return fmt.Sprintf("%s sm_%d%d (%s): %s cores, %s threads/core, %s threads/block, warp %d, %s shared memory/block",
		p.PlatformName, p.ComputeCapability.Major, p.ComputeCapability.Minor, p.TargetTriple,
		humanize.Comma(int64(p.CoreCount)), humanize.Comma(int64(p.ThreadsPerCoreLimit)),
		humanize.Comma(int64(p.ThreadsPerBlockLimit)), p.ThreadsPerWarp,
		humanize.IBytes(uint64(p.SharedMemoryPerBlock)))
}
