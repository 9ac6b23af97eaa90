// The public face of the kernel for the users of this package

package kdos

import (
	"github.com/sirupsen/logrus"

	kdos_internal "github.com/kdos/kdos/internal"
)

const (
	DelayYield       = kdos_internal.DelayYield
	DelayWaitForever = kdos_internal.DelayWaitForever
	MsgInit          = kdos_internal.MsgInit
	MsgTimer         = kdos_internal.MsgTimer
)

type Message = kdos_internal.Message
type Task = kdos_internal.Task
type TaskEntry = kdos_internal.TaskEntry
type TaskDescriptor = kdos_internal.TaskDescriptor
type Kernel = kdos_internal.Kernel
type KernelConfig = kdos_internal.KernelConfig
type KernelState = kdos_internal.KernelState
type TaskStats = kdos_internal.TaskStats
type KernelStats = kdos_internal.KernelStats
type TickSource = kdos_internal.TickSource

// The instance should be primed w/ the desired default *before* invoking
// the runner, typically from an init(). Its value may be modified via
// config and command line args.
func SetDefaultInstance(instance string) {
	kdos_internal.Instance = instance
}

// Update build info: version (semver) and git info. This function should be
// called *before* the runner is invoked, typically from an init() function.
func UpdateBuildInfo(version, gitInfo string) {
	kdos_internal.Version = version
	kdos_internal.GitInfo = gitInfo
}

// Get the instance, which is typically set from the command line or config.
func GetInstance() string {
	return kdos_internal.Instance
}

// Get the hostname, based on OS, config and/or command line arg.
func GetHostname() string {
	return kdos_internal.Hostname
}

// Create new component logger w/ comp=compName field, for application task
// code that wants to log the way the kernel itself does.
func NewCompLogger(comp string) *logrus.Entry {
	return kdos_internal.NewCompLogger(comp)
}

func DefaultKernelConfig() *KernelConfig {
	return kdos_internal.DefaultKernelConfig()
}

func NewKernel(cfg *KernelConfig) *Kernel {
	return kdos_internal.NewKernel(cfg)
}

// Every application registers its tasks with the runner via a task builder
// function, which given the application config, returns the list of task
// descriptors to boot. Builders are registered from `init()` functions in
// application packages.
func RegisterTaskBuilder(tb func(any) ([]TaskDescriptor, error)) {
	kdos_internal.RegisterTaskBuilder(tb)
}

// Run is the entry point for the simulator process. It takes as an argument
// the application config primed with default values, loads the config file
// (altering some of the defaults), invokes the registered task builders to
// populate the kernel, and starts the scheduler. It returns only when the
// process is interrupted via a signal or initialization failed; its return
// value should be used as the process exit status.
func Run(taskConfig any) int { return kdos_internal.Run(taskConfig) }

// Halt is the emergency stop used for non-recoverable configuration or
// allocation failures; application task code may call it too.
func Halt(format string, args ...any) {
	kdos_internal.Halt(format, args...)
}
