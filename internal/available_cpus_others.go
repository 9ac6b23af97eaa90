//go:build !linux

// Non-Linux fallback: no affinity mask API here, so this simply reports
// every CPU the Go runtime can see. Diagnostic-only, same as the Linux
// variant - KDOS is single-core by design regardless of host core count.

package kdos_internal

import "runtime"

func GetAvailableCPUCount() int {
	return runtime.NumCPU()
}
