// Kernel configuration

// The configuration is loaded from a YAML file, with the following structure:
//
//  kdos_config:
//    instance: kdos
//    tick_interval: 1ms
//    shutdown_max_wait: 5s
//    default_queue_capacity: 8
//    default_stack_size: 4k
//    stack_budget: 64k
//    log_config:
//      ...
//  tasks:
//    task1:
//      ...
//    task2:
//      ...
//
// The "kdos_config" section maps to the KernelConfig structure, defined in
// this package. The "tasks" section is application specific and is not
// defined here: it is expected to be a map of task names to whatever
// configuration each application's task builder needs to size and start its
// own tasks.

package kdos_internal

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/docker/go-units"
	"github.com/huandu/go-clone"
	"gopkg.in/yaml.v3"
)

const (
	KDOS_CONFIG_SECTION_NAME = "kdos_config"
	TASKS_SECTION_NAME       = "tasks"

	KERNEL_CONFIG_TICK_INTERVAL_DEFAULT         = time.Millisecond
	KERNEL_CONFIG_SHUTDOWN_MAX_WAIT_DEFAULT     = 5 * time.Second
	KERNEL_CONFIG_DEFAULT_QUEUE_CAPACITY_DEFAULT = 8
	KERNEL_CONFIG_DEFAULT_STACK_SIZE_DEFAULT     = "4k"
	KERNEL_CONFIG_STACK_BUDGET_DEFAULT           = "64k"
)

// KernelConfig holds everything needed to boot a kernel instance. It plays
// the same role as the teacher's VmiConfig: a single YAML-loadable struct
// with every component default primed, overridable by file and by command
// line args.
type KernelConfig struct {
	// The instance name, used only for log/diagnostic labeling.
	Instance string `yaml:"instance"`

	// How often the simulated tick ISR fires. Real hardware is nailed to
	// 1ms (spec.md §4.8); the simulator allows overriding it for faster
	// tests.
	TickInterval time.Duration `yaml:"tick_interval"`

	// How long RunOS's simulator shutdown path waits for the scheduler and
	// tick goroutines to stop before giving up. A negative value means wait
	// indefinitely, 0 means don't wait at all.
	ShutdownMaxWait time.Duration `yaml:"shutdown_max_wait"`

	// Default message queue capacity for InitTask callers that don't
	// specify one.
	DefaultQueueCapacity int `yaml:"default_queue_capacity"`

	// Default stack size for InitTask callers that don't specify one, as a
	// human-readable size ("4k", "8k", ...).
	DefaultStackSize string `yaml:"default_stack_size"`

	// Total stack memory budget across all tasks, as a human-readable size.
	// InitTask fails once the cumulative configured stack size of all tasks
	// would exceed it - the same kind of capacity ceiling a real MCU's
	// linker script enforces.
	StackBudget string `yaml:"stack_budget"`

	// Logger configuration.
	LoggerConfig *LoggerConfig `yaml:"log_config"`
}

func DefaultKernelConfig() *KernelConfig {
	return &KernelConfig{
		Instance:             Instance,
		TickInterval:         KERNEL_CONFIG_TICK_INTERVAL_DEFAULT,
		ShutdownMaxWait:      KERNEL_CONFIG_SHUTDOWN_MAX_WAIT_DEFAULT,
		DefaultQueueCapacity: KERNEL_CONFIG_DEFAULT_QUEUE_CAPACITY_DEFAULT,
		DefaultStackSize:     KERNEL_CONFIG_DEFAULT_STACK_SIZE_DEFAULT,
		StackBudget:          KERNEL_CONFIG_STACK_BUDGET_DEFAULT,
		LoggerConfig:         DefaultLoggerConfig(),
	}
}

// ParseSizeWords parses a human-readable size string ("4k", "256", "1m")
// into a word count, where a word is counted as 4 bytes for the stack
// budget accounting (see stack_budget.go). It is a thin wrapper over
// go-units so that config authors can use the same suffixes the teacher's
// compressor pool batch size uses.
func ParseSizeWords(spec string) (int, error) {
	nBytes, err := units.RAMInBytes(spec)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %v", spec, err)
	}
	const wordSize = 4
	words := int(nBytes) / wordSize
	if words <= 0 {
		return 0, fmt.Errorf("invalid size %q: resolves to 0 words", spec)
	}
	return words, nil
}

// LoadConfig loads the configuration from the specified YAML file (or
// buffer, for testing):
//   - the kdos_config section is returned as a *KernelConfig
//   - the tasks section is loaded into the provided taskConfig, which is
//     expected to have been primed with application-specific defaults.
func LoadConfig(cfgFile string, taskConfig any, buf []byte) (*KernelConfig, error) {
	if buf == nil {
		// Normal case, buf is pre-populated only for testing.
		f, err := os.Open(cfgFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		buf, err = io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("file: %q: %v", cfgFile, err)
		}
	}

	docNode := yaml.Node{}
	err := yaml.Unmarshal(buf, &docNode)
	if err != nil {
		return nil, fmt.Errorf("file: %q: %v", cfgFile, err)
	}

	// Deep-clone the DefaultKernelConfig() defaults so that repeated loads
	// (e.g. across tests) never share - and accidentally mutate - the same
	// LoggerConfig pointer.
	kernelConfig := clone.Clone(DefaultKernelConfig()).(*KernelConfig)

	if docNode.Kind == yaml.DocumentNode && len(docNode.Content) > 0 {
		rootNode := docNode.Content[0]
		if rootNode.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("file: %q: invalid YAML root node %q", cfgFile, rootNode.Tag)
		}
		var toCfg any = nil
		for _, n := range rootNode.Content {
			if n.Kind == yaml.ScalarNode {
				switch n.Value {
				case KDOS_CONFIG_SECTION_NAME:
					toCfg = kernelConfig
				case TASKS_SECTION_NAME:
					toCfg = taskConfig
				}
				continue
			}
			if n.Kind == yaml.MappingNode && toCfg != nil {
				if err = n.Decode(toCfg); err != nil {
					return nil, fmt.Errorf("file: %q: %v", cfgFile, err)
				}
			}
			toCfg = nil
		}
	}

	return kernelConfig, nil
}
