//go:build linux

// Host core count for the board-info banner only - KDOS itself never
// schedules across cores (single-core by design), so this number never
// reaches a scheduling decision.

package kdos_internal

import (
	"fmt"
	"math/bits"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// GetAvailableCPUCount counts CPUs in this process' affinity mask,
// falling back to runtime.NumCPU() if the mask can't be read.
func GetAvailableCPUCount() int {
	cpuSet := unix.CPUSet{}
	if err := unix.SchedGetaffinity(os.Getpid(), &cpuSet); err != nil {
		fmt.Fprintf(os.Stderr, "unix.SchedGetaffinity: %v", err)
		return runtime.NumCPU()
	}
	count := 0
	for _, word := range cpuSet {
		count += bits.OnesCount64(uint64(word))
	}
	if count > runtime.NumCPU() {
		count = runtime.NumCPU()
	}
	return count
}
