package gpu

import (
	"fmt"

	"github.com/pkg/errors"
)

// LaunchDimensions of a kernel: a one dimensional grid of blocks.
type LaunchDimensions struct {
	BlockCount      int
	ThreadsPerBlock int
}

// LaunchBound is the total number of threads launched.
func (l LaunchDimensions) LaunchBound() int {
	return l.BlockCount * l.ThreadsPerBlock
}

// Waves returns how many times the device has to be filled with threads to run the launch.
func (l LaunchDimensions) Waves(info DeviceInfo) int {
	capacity := info.CoreCount * info.ThreadsPerCoreLimit
	return (l.LaunchBound() + capacity - 1) / capacity
}

// String implements fmt.Stringer.
func (l LaunchDimensions) String() string {
	return fmt.Sprintf("blocks: {%d, 1, 1}, threads/block: {%d, 1, 1}", l.BlockCount, l.ThreadsPerBlock)
}

// CalculateLaunchDimensions returns the launch dimensions of a kernel with one thread per element.
//
// Threads per block are the number of elements rounded up to a multiple of the warp size, capped by the
// device limit.
func CalculateLaunchDimensions(numElements int, info DeviceInfo) (LaunchDimensions, error) {
	if numElements <= 0 {
		return LaunchDimensions{}, errors.Errorf("can't launch a kernel for %d elements", numElements)
	}
	if info.ThreadsPerWarp <= 0 || info.ThreadsPerBlockLimit <= 0 {
		return LaunchDimensions{}, errors.Errorf("invalid device info %+v", info)
	}
	threads := (numElements + info.ThreadsPerWarp - 1) / info.ThreadsPerWarp * info.ThreadsPerWarp
	threads = min(threads, info.ThreadsPerBlockLimit)
	blocks := (numElements + threads - 1) / threads
	return LaunchDimensions{BlockCount: blocks, ThreadsPerBlock: threads}, nil
}
