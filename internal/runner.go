// The runner is the main entry point for a KDOS simulator instance.
//
// It loads the configuration, sets up the logger, builds the kernel, and
// lets application packages register task builders via init() functions -
// generalized from the teacher's metrics-generator registration, the same
// shape of problem: an application-specific set of things to create and
// schedule, decided at runtime from config. It then calls RunOS and blocks
// for SIGINT/SIGTERM with a bounded shutdown wait.
//
// RunOS itself never returns on real hardware; the bounded shutdown here
// exists only so the simulator and its tests have a controlled way to stop,
// and is never required of application task code.

package kdos_internal

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/bgp59/logrusx"
)

const (
	CONFIG_FLAG_NAME = "config"
	INSTANCE_DEFAULT = "kdos"
)

var (
	// The hostname, based on OS, config or command line arg.
	Hostname string

	// Primed with the desired default before invoking the runner; may be
	// overridden via config and command line args.
	Instance string = INSTANCE_DEFAULT

	// Build info, normally set via init() by the user of this package.
	Version string
	GitInfo string
)

// TaskDescriptor is what a task builder hands back to the runner: enough
// to call InitTask for one task.
type TaskDescriptor struct {
	Entry      TaskEntry
	StackWords int
	QueueLen   int
	Id         byte
}

var taskBuilders = struct {
	builders []func(taskConfig any) ([]TaskDescriptor, error)
	mu       *sync.Mutex
}{make([]func(any) ([]TaskDescriptor, error), 0), &sync.Mutex{}}

// RegisterTaskBuilder registers a function that turns application task
// configuration into a list of tasks to boot. Application packages call
// this from their own init() functions, mirroring the teacher's
// RegisterTaskBuilder for metrics generators.
func RegisterTaskBuilder(tb func(taskConfig any) ([]TaskDescriptor, error)) {
	taskBuilders.mu.Lock()
	taskBuilders.builders = append(taskBuilders.builders, tb)
	taskBuilders.mu.Unlock()
}

var (
	versionArg = flag.Bool(
		"version",
		false,
		FormatFlagUsage(`Print the version and exit`),
	)

	configFileArg = flag.String(
		CONFIG_FLAG_NAME,
		fmt.Sprintf("%s-config.yaml", INSTANCE_DEFAULT),
		`Config file to load`,
	)

	hostnameArg = flag.String(
		"hostname",
		"",
		FormatFlagUsage(`Override the value returned by the hostname syscall`),
	)

	instanceArg = flag.String(
		"instance",
		"",
		FormatFlagUsage(`Override the "kdos_config.instance" config setting`),
	)
)

func init() {
	logrusx.EnableLoggerArgs()
}

var runnerLog = NewCompLogger("runner")

// Run is the simulator's main entry point. taskConfig should be primed
// with application-specific defaults before the call; the return value is
// the process exit code.
func Run(taskConfig any) int {
	if !flag.Parsed() {
		flag.Parse()
	}

	if *versionArg {
		fmt.Fprintf(os.Stderr, "Version: %s, GitInfo: %s\n", Version, GitInfo)
		return 0
	}

	kernelConfig, err := LoadConfig(*configFileArg, taskConfig, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config file: %v\n", err)
		return 1
	}

	if *instanceArg != "" {
		kernelConfig.Instance = *instanceArg
	}
	logrusx.ApplySetLoggerArgs(kernelConfig.LoggerConfig)

	if err := SetLogger(kernelConfig.LoggerConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Error setting the logger: %v\n", err)
		return 1
	}

	Instance = kernelConfig.Instance
	if *hostnameArg != "" {
		Hostname = *hostnameArg
	} else {
		Hostname, err = os.Hostname()
		if err != nil {
			runnerLog.Errorf("os.Hostname(): %v", err)
			Hostname = "unknown"
		} else if i := strings.Index(Hostname, "."); i > 0 {
			Hostname = Hostname[:i]
		}
	}
	runnerLog.Infof("instance=%s hostname=%s", Instance, Hostname)

	CollectBoardInfo().LogBoardInfo()

	kernel := NewKernel(kernelConfig)

	taskBuilders.mu.Lock()
	for _, tb := range taskBuilders.builders {
		descriptors, err := tb(taskConfig)
		if err != nil {
			runnerLog.Errorf("task builder failed: %v", err)
			taskBuilders.mu.Unlock()
			Halt("task builder failed: %v", err)
			return 1
		}
		for _, d := range descriptors {
			if _, err := kernel.InitTask(d.Entry, d.StackWords, d.QueueLen, d.Id); err != nil {
				taskBuilders.mu.Unlock()
				Halt("InitTask(id=%d): %v", d.Id, err)
				return 1
			}
		}
	}
	taskBuilders.mu.Unlock()

	if kernel.TaskCount() == 0 {
		Halt("no tasks registered, nothing to run")
		return 1
	}

	go func() {
		if err := kernel.RunOS(); err != nil {
			runnerLog.Errorf("RunOS: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	shutdownMaxWait := kernelConfig.ShutdownMaxWait
	if shutdownMaxWait == 0 {
		runnerLog.Warnf("%s signal received, force exit", sig)
		return 0
	}
	runnerLog.Warnf("%s signal received, shutting down", sig)
	kernel.Shutdown(shutdownMaxWait)

	return 0
}
