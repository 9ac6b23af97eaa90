// Kernel globals, modeled as an explicit value per design note "Global
// mutable kernel state": current, multitask and the ring arena are fields
// of Kernel rather than process-wide singletons, with a single
// initialization point in NewKernel.

package kdos_internal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type KernelState int

const (
	KernelStateCreated KernelState = iota
	KernelStateRunning
	KernelStateStopped
)

var kernelStateMap = map[KernelState]string{
	KernelStateCreated: "Created",
	KernelStateRunning: "Running",
	KernelStateStopped: "Stopped",
}

func (s KernelState) String() string {
	return kernelStateMap[s]
}

var kernelLog = NewCompLogger("kernel")
var schedulerLog = NewCompLogger("scheduler")
var tickLog = NewCompLogger("tick")
var taskLog = NewCompLogger("task")

// Kernel holds every piece of state §3 calls out as a "kernel global":
// the ring arena, current, multitask, plus everything needed to run and
// tear down the scheduler and tick goroutines.
type Kernel struct {
	// Critical section: every mutation of ring/queue/timer/sleep state is
	// made holding this lock, standing in for the HAL's interrupt
	// mask/unmask bracket (§5 "Interrupt mask as synchronization").
	mu   *sync.Mutex
	cond *sync.Cond

	tasks     []*Task
	current   int
	multitask bool
	booted    bool

	defaultStackWords int
	stackBudget       *StackBudget

	tickSource   TickSource
	tickInterval time.Duration

	state    KernelState
	ctx      context.Context
	cancelFn context.CancelFunc
	wg       *sync.WaitGroup

	cfg *KernelConfig
}

func NewKernel(cfg *KernelConfig) *Kernel {
	if cfg == nil {
		cfg = DefaultKernelConfig()
	}

	stackBudgetWords, err := ParseSizeWords(cfg.StackBudget)
	if err != nil {
		kernelLog.Warnf("stack_budget %q: %v, defaulting to unbounded", cfg.StackBudget, err)
		stackBudgetWords = 0
	}
	defaultStackWords, err := ParseSizeWords(cfg.DefaultStackSize)
	if err != nil {
		kernelLog.Warnf("default_stack_size %q: %v, defaulting to 256 words", cfg.DefaultStackSize, err)
		defaultStackWords = 256
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	mu := &sync.Mutex{}

	k := &Kernel{
		mu:                mu,
		cond:              sync.NewCond(mu),
		tasks:             make([]*Task, 0),
		multitask:         true,
		defaultStackWords: defaultStackWords,
		stackBudget:       NewStackBudget(stackBudgetWords),
		tickInterval:      cfg.TickInterval,
		state:             KernelStateCreated,
		ctx:               ctx,
		cancelFn:          cancelFn,
		wg:                &sync.WaitGroup{},
		cfg:               cfg,
	}
	return k
}

// SetTickSource overrides the default real-clock tick, for deterministic
// tests. It is only legal before RunOS.
func (k *Kernel) SetTickSource(src TickSource) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.booted {
		return fmt.Errorf("kdos: SetTickSource: called after RunOS")
	}
	k.tickSource = src
	return nil
}

// SnapStats snapshots every live task's scheduling counters.
func (k *Kernel) SnapStats(to KernelStats) KernelStats {
	if to == nil {
		to = make(KernelStats)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, t := range k.tasks {
		to[t.id] = cloneTaskStats(t.stats)
	}
	return to
}

// TaskCount returns how many tasks have been created so far.
func (k *Kernel) TaskCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.tasks)
}

func (k *Kernel) State() KernelState {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}
