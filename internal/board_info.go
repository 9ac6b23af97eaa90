// Board boot diagnostics, logged once by Run (runner.go) at startup,
// before the kernel is built. KDOS itself is
// single-core by design (§1 Non-goals: SMP) - these are facts about the
// simulator's host, not inputs to any scheduling decision, adapted from
// the teacher's os_info.go (which reported the same facts for a metrics
// importer's "about this host" banner).

package kdos_internal

import "time"

// BoardInfo is a snapshot of the simulator host facts worth logging once
// at boot: its OS identity, simulated power-on time (host uptime), clock
// tick granularity, and available core count.
type BoardInfo struct {
	OsName       string
	OsRelease    string
	OsMachine    string
	BootTime     time.Time
	ClkTck       int64
	AvailableCPU int
}

// CollectBoardInfo gathers everything Run logs at startup. Individual
// collector failures are non-fatal: a simulator running on a host where
// one of these is unavailable should still boot, just with a gap in the
// diagnostic banner.
func CollectBoardInfo() *BoardInfo {
	info := &BoardInfo{}

	if osInfo, err := GetOsInfo(); err == nil {
		info.OsName = osInfo["name"]
		info.OsRelease = osInfo["release"]
		info.OsMachine = osInfo["machine"]
	} else {
		kernelLog.Warnf("GetOsInfo(): %v", err)
	}

	if bootTime, err := GetOsBootTime(); err == nil {
		info.BootTime = bootTime
	} else {
		kernelLog.Warnf("GetOsBootTime(): %v", err)
		info.BootTime = time.Now()
	}

	if clkTck, err := GetSysClktck(); err == nil {
		info.ClkTck = clkTck
	} else {
		kernelLog.Warnf("GetSysClktck(): %v", err)
	}

	info.AvailableCPU = GetAvailableCPUCount()

	return info
}

// LogBoardInfo writes the collected facts to the kernel component logger,
// the simulated analogue of a board bring-up banner printed over a debug
// UART.
func (info *BoardInfo) LogBoardInfo() {
	kernelLog.Infof(
		"board: os=%s release=%s machine=%s boot_time=%s clk_tck=%d available_cpu=%d",
		info.OsName, info.OsRelease, info.OsMachine,
		info.BootTime.Format(time.RFC3339), info.ClkTck, info.AvailableCPU,
	)
}

// HostCpuTime reports CPU time consumed so far by the simulator process
// itself, purely informational.
func HostCpuTime() (float64, error) {
	return GetMyCpuTime()
}
