// The scheduler loop (§4.5) and boot/shutdown (§4.2).

package kdos_internal

import (
	"fmt"
	"time"
)

// resolveWakeReason applies §4.5 step 2's priority order to t: a task's
// first-ever dispatch (its boot-time entry(MsgInit, 0, 0) call, §4.1/§6)
// beats everything else, since nothing else is observable before a task
// has run at all; after that, sleeping with its timer expired beats a
// pending message, which beats a bare timer expiry. Caller must hold the
// critical section.
func resolveWakeReason(t *Task) (ev dispatchEvent, isResume bool, wakeReason uint16, runnable bool) {
	if t.halted {
		return dispatchEvent{}, false, 0, false
	}
	switch {
	case t.needsInit:
		t.needsInit = false
		return dispatchEvent{msgType: MsgInit}, false, 0, true
	case t.sleeping && t.timerFlag:
		t.sleeping = false
		t.timer = 0
		t.timerFlag = false
		return dispatchEvent{}, true, t.wakeReason, true
	case !t.sleeping && t.queue.Len() > 0:
		msg, _ := t.queue.Dequeue()
		return dispatchEvent{msgType: msg.MsgType, sparam: msg.SParam, lparam: msg.LParam}, false, 0, true
	case !t.sleeping && t.timerFlag:
		t.timerFlag = false
		t.timer = 0
		return dispatchEvent{msgType: MsgTimer}, false, 0, true
	default:
		return dispatchEvent{}, false, 0, false
	}
}

// schedulerLoop runs forever on its own goroutine (the scheduler's
// "stack"), round-robining the ring and dispatching runnable tasks, until
// the kernel context is canceled. It never busy-spins: once a full ring
// pass finds nothing runnable, it blocks on the kernel's condition
// variable, grounded on rate_controller.go's cond-based block/wake
// discipline, until SendMsg, Wake, or a tick changes something.
func (k *Kernel) schedulerLoop() {
	defer k.wg.Done()

	k.mu.Lock()
	defer k.mu.Unlock()

	idleStreak := 0
	for k.ctx.Err() == nil {
		n := len(k.tasks)
		if n == 0 {
			return
		}

		if k.multitask {
			k.current = k.tasks[k.current].next
		}
		t := k.tasks[k.current]

		ev, isResume, wakeReason, runnable := resolveWakeReason(t)
		if !runnable {
			idleStreak++
			if idleStreak >= n {
				k.cond.Wait()
				idleStreak = 0
			}
			continue
		}
		idleStreak = 0

		t.stats.ScheduledCount++

		var res dispatchResult
		if isResume {
			res = k.dispatchResume(t, wakeReason)
		} else {
			res = k.dispatchNew(t, ev)
		}

		if k.ctx.Err() != nil {
			return
		}

		t.stats.ExecutedCount++
		switch {
		case res.halted:
			t.halted = true
			t.stats.HaltedCount++
		case res.yielded:
			t.stats.YieldedCount++
		default:
			applyDelay(t, res.delay)
		}
		k.cond.Broadcast()
	}
}

// RunOS installs the tick source and starts the scheduler loop (§4.2). On
// real hardware this never returns. The simulator blocks until Shutdown
// cancels the kernel's context, so tests and the runner have a
// controlled way to stop it - this is never required of application task
// code, which only ever sees InitTask/SendMsg/Sleep/Wake.
func (k *Kernel) RunOS() error {
	k.mu.Lock()
	if k.booted {
		k.mu.Unlock()
		return fmt.Errorf("kdos: RunOS: already booted")
	}
	if len(k.tasks) == 0 {
		k.mu.Unlock()
		return fmt.Errorf("kdos: RunOS: no tasks created")
	}

	k.booted = true
	k.state = KernelStateRunning
	// The loop advances current before each visit; starting on the last
	// task makes the first-created task (tasks[n-1].next == 0) run first.
	k.current = len(k.tasks) - 1
	if k.tickSource == nil {
		k.tickSource = NewTicker(k.tickInterval)
	}
	k.mu.Unlock()

	schedulerLog.Infof("booting with %d task(s)", k.TaskCount())

	k.wg.Add(2)
	go k.tickLoop()
	go k.schedulerLoop()

	<-k.ctx.Done()
	return nil
}

// Shutdown cancels the kernel context and waits (up to maxWait, or
// indefinitely if negative) for the tick and scheduler goroutines - and
// every task goroutine - to stop.
func (k *Kernel) Shutdown(maxWait time.Duration) {
	k.mu.Lock()
	if k.state == KernelStateStopped {
		k.mu.Unlock()
		schedulerLog.Warn("kernel already stopped")
		return
	}
	k.state = KernelStateStopped
	k.mu.Unlock()

	schedulerLog.Info("stopping kernel")
	k.cancelFn()

	k.mu.Lock()
	k.cond.Broadcast()
	k.mu.Unlock()

	if maxWait < 0 {
		k.wg.Wait()
		schedulerLog.Info("kernel stopped")
		return
	}

	done := make(chan struct{})
	go func() {
		k.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		schedulerLog.Info("kernel stopped")
	case <-time.After(maxWait):
		schedulerLog.Warn("kernel shutdown timed out waiting for goroutines")
	}
}
