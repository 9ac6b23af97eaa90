// Message send (§4.3) and explicit wake (§4.7). Both are ISR-safe: they
// take the kernel's critical section, mutate flags/queue state, broadcast
// the condition the scheduler idles on, and return - never blocking on a
// dispatch themselves.

package kdos_internal

import "fmt"

// SendMsg enqueues a message for t. It never wakes a sleeping task -
// delivery is lazy, observed by the scheduler on its next visit to t.
func (k *Kernel) SendMsg(t *Task, msgType uint16, sparam uint16, lparam int32) bool {
	k.mu.Lock()
	ok := t.queue.Enqueue(Message{MsgType: msgType, SParam: sparam, LParam: lparam})
	if ok {
		t.stats.EnqueuedCount++
	} else {
		t.stats.DroppedCount++
	}
	k.cond.Broadcast()
	k.mu.Unlock()
	return ok
}

// SendMsg lets a task entry send to another task using only the self
// handle it is given, without reaching for the Kernel directly.
func (t *Task) SendMsg(target *Task, msgType uint16, sparam uint16, lparam int32) bool {
	return t.k.SendMsg(target, msgType, sparam, lparam)
}

// Wake is the Task-handle counterpart of Kernel.Wake, for task entries that
// only carry their own self handle.
func (t *Task) Wake(target *Task, reason uint16) error {
	return t.k.Wake(target, reason)
}

// Wake delivers reason to t if, and only if, t is sleeping and no wake has
// already been delivered this sleep (first-wake-wins, §4.7). reason must
// be non-zero - zero is indistinguishable from a timer expiry, so it is
// rejected at the API boundary rather than silently accepted.
func (k *Kernel) Wake(t *Task, reason uint16) error {
	if reason == 0 {
		return fmt.Errorf("kdos: Wake(task %d): reason must be non-zero", t.id)
	}

	k.mu.Lock()
	if t.sleeping && !t.timerFlag {
		t.timerFlag = true
		t.wakeReason = reason
		t.stats.WakeCount++
	}
	k.cond.Broadcast()
	k.mu.Unlock()
	return nil
}
