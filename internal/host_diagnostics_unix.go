//go:build unix

// Host facts collected once at boot and folded into BoardInfo
// (board_info.go): OS identity, simulated power-on time, clock tick
// granularity, and this process' own CPU time. None of this feeds
// scheduling decisions - KDOS is single-core by design (spec Non-goals)
// - it is purely a bring-up diagnostic, the simulator's stand-in for
// whatever a board's bootloader prints over its debug UART.

package kdos_internal

import (
	"bytes"
	"fmt"
	"time"

	"github.com/mackerelio/go-osstat/uptime"
	"github.com/tklauser/go-sysconf"
	"golang.org/x/sys/unix"
)

// GetSysClktck returns the host kernel's clock tick rate (sysconf
// SC_CLK_TCK), reported as clk_tck in the board-info banner.
func GetSysClktck() (int64, error) {
	return sysconf.Sysconf(sysconf.SC_CLK_TCK)
}

// GetOsBootTime approximates the host's power-on time from its uptime,
// standing in for a board's real boot timestamp.
func GetOsBootTime() (time.Time, error) {
	up, err := uptime.Get()
	if err != nil {
		return time.Now(), fmt.Errorf("uptime.Get(): %v", err)
	}
	return time.Now().Add(-up), nil
}

func zeroSuffixBufToString(buf []byte) string {
	i := bytes.IndexByte(buf, 0)
	if i < 0 {
		i = len(buf)
	}
	return string(buf[:i])
}

// GetOsInfo identifies the simulator's host OS via uname(2): name, kernel
// release (plus its leading semver-ish prefix), and machine architecture.
func GetOsInfo() (map[string]string, error) {
	uname := unix.Utsname{}
	if err := unix.Uname(&uname); err != nil {
		return nil, fmt.Errorf("unix.Uname(): %v", err)
	}

	osInfo := make(map[string]string)
	osInfo["name"] = zeroSuffixBufToString(uname.Sysname[:])

	osRelease := zeroSuffixBufToString(uname.Release[:])
	osInfo["release"] = osRelease // e.g. 5.4.0-42-generic
	semVer := ""
	for _, c := range osRelease {
		if c != '.' && (c < '0' || '9' < c) {
			break
		}
		semVer += string(c)
	}
	osInfo["version"] = semVer
	osInfo["machine"] = zeroSuffixBufToString(uname.Machine[:])
	return osInfo, nil
}

// GetCpuTime reports accumulated user+system CPU time, in seconds, for the
// process/process-group/children selector who accepts (see getrusage(2)).
func GetCpuTime(who int) (float64, error) {
	rusage := &unix.Rusage{}
	if err := unix.Getrusage(who, rusage); err != nil {
		return 0, err
	}
	return (float64(rusage.Utime.Sec+rusage.Stime.Sec) +
		float64(rusage.Utime.Usec+rusage.Stime.Usec)/1e6), nil
}

// GetMyCpuTime is GetCpuTime for the simulator process itself, what
// HostCpuTime (board_info.go) reports.
func GetMyCpuTime() (float64, error) {
	return GetCpuTime(unix.RUSAGE_SELF)
}
