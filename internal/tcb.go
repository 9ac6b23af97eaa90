// Task control block and task creation.
//
// The ring is modeled as a fixed arena (Kernel.tasks, a []*Task indexed by
// creation order) plus a next index per task, per design note "Cyclic TCB
// ring": this sidesteps the cyclic-ownership problem a real linked list
// has and makes iteration and bounds trivial to reason about.

package kdos_internal

import "fmt"

// TaskEntry is the task's behavior: given a delivered message's fields, it
// returns the delay word the scheduler applies once the dispatch concludes.
// The *Task argument is the task's own handle, the only way application
// code reaches Sleep - which is what makes "task context only" (§4.6) hold
// by construction instead of by convention.
type TaskEntry func(self *Task, msgType uint16, sparam uint16, lparam int32) uint16

// Task is a task control block. Every field below is mutated exclusively
// under the owning Kernel's critical section, except entry/stackWords/id,
// which are fixed at creation.
type Task struct {
	k *Kernel

	id         byte
	entry      TaskEntry
	stackWords int
	queue      *MessageQueue

	timer      uint16
	timerFlag  bool
	sleeping   bool
	wakeReason uint16
	halted     bool
	needsInit  bool

	next int

	// Rendezvous channels implementing the scheduler<->task context switch
	// (see task_runtime.go). toTask carries a fresh dispatch event; fromTask
	// carries either a Sleep-induced yield or the entry function's return
	// value; resume delivers a wake reason into a blocked Sleep call.
	toTask   chan dispatchEvent
	fromTask chan dispatchResult
	resume   chan uint16

	stats *TaskStats
}

// Id returns the task's display byte. It is for diagnostics only, never an
// identity used by scheduling logic.
func (t *Task) Id() byte {
	return t.id
}

// InitTask creates a task, wiring up its queue, stack budget reservation,
// and private goroutine. It is only legal before RunOS; InitTask after
// boot returns an error instead of guessing at a safe splice point.
func (k *Kernel) InitTask(entry TaskEntry, stackWords int, queueLen int, id byte) (*Task, error) {
	if entry == nil {
		return nil, fmt.Errorf("kdos: InitTask(id=%d): entry must not be nil", id)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.booted {
		return nil, fmt.Errorf("kdos: InitTask(id=%d): called after RunOS", id)
	}

	if stackWords <= 0 {
		stackWords = k.defaultStackWords
	}
	if queueLen <= 0 {
		queueLen = k.cfg.DefaultQueueCapacity
	}
	if !k.stackBudget.Reserve(stackWords) {
		return nil, fmt.Errorf(
			"kdos: InitTask(id=%d): stack budget exhausted: wanted %d words, %d available",
			id, stackWords, k.stackBudget.Available(),
		)
	}

	t := &Task{
		k:          k,
		id:         id,
		entry:      entry,
		stackWords: stackWords,
		queue:      NewMessageQueue(queueLen),
		toTask:     make(chan dispatchEvent),
		fromTask:   make(chan dispatchResult),
		resume:     make(chan uint16),
		stats:      &TaskStats{},
		needsInit:  true,
	}

	idx := len(k.tasks)
	if idx == 0 {
		t.next = 0
	} else {
		prev := k.tasks[idx-1]
		t.next = prev.next
		prev.next = idx
	}
	k.tasks = append(k.tasks, t)

	kernelLog.Infof("task %d created: stack_words=%d queue_len=%d", id, stackWords, queueLen)

	k.wg.Add(1)
	go k.taskLoop(t)

	return t, nil
}
