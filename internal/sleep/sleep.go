// Package sleep implements the sleep wheel: a single ascending-ordered list
// of (waker, wake-tick) pairs. It never imports sched, so it can be used
// standalone by anything with a tick source; sched.Task satisfies Waker and
// is the only consumer in this module.
package sleep

import (
	"sync"

	"github.com/ehrlich-b/rtos-core/internal/list"
)

// Tick is the kernel's monotonic time unit: 32-bit and wrap-safe.
type Tick uint32

// Before reports whether a occurs before b using wrap-safe signed
// subtraction, so comparisons remain correct across a uint32 wraparound.
func Before(a, b Tick) bool {
	return int32(a-b) < 0
}

// Due reports whether a deadline of wake has been reached by now.
func Due(now, wake Tick) bool {
	return int32(wake-now) <= 0
}

// Waker is notified when its sleep entry's deadline is reached.
type Waker interface {
	OnWake()
}

// Entry is one pending timeout, threaded into the wheel's list.
type Entry struct {
	list.Link[*Entry]

	Waker    Waker
	WakeTick Tick
}

// ReprogramFunc is called whenever the wheel's earliest deadline changes,
// so a real target can reprogram its one hardware timer. It is optional.
type ReprogramFunc func(next Tick)

// Wheel is the sleep wheel: one ordered list, insert O(n), pop-due O(1).
type Wheel struct {
	mu      sync.Mutex
	entries list.List[*Entry]
	onReprogram ReprogramFunc
	now         Tick
}

// NewWheel creates an empty sleep wheel. onReprogram may be nil.
func NewWheel(onReprogram ReprogramFunc) *Wheel {
	return &Wheel{onReprogram: onReprogram}
}

func sleepLess(a, b *Entry) bool {
	return Before(b.WakeTick, a.WakeTick)
}

// Add inserts e in ascending wake-tick order. If e becomes the new head,
// the reprogram hook fires with the new earliest deadline.
func (w *Wheel) Add(e *Entry) {
	w.mu.Lock()
	prevHead, hadHead := w.entries.Head()
	w.entries.InsertSorted(e, sleepLess)
	newHead, _ := w.entries.Head()
	reprogram := !hadHead || prevHead != newHead
	w.mu.Unlock()

	if reprogram && w.onReprogram != nil {
		w.onReprogram(newHead.WakeTick)
	}
}

// Remove detaches e before its deadline fires, e.g. because the task was
// resumed by some other condition first. Returns false if e was not
// present.
func (w *Wheel) Remove(e *Entry) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return list.Remove(&w.entries, e)
}

// Tick pops every entry whose deadline is at or before now and notifies
// its Waker, in ascending deadline order.
func (w *Wheel) Tick(now Tick) {
	w.mu.Lock()
	w.now = now
	w.mu.Unlock()

	for {
		w.mu.Lock()
		head, ok := w.entries.Head()
		if !ok || !Due(now, head.WakeTick) {
			w.mu.Unlock()
			return
		}
		e, _ := w.entries.Pop()
		w.mu.Unlock()
		e.Waker.OnWake()
	}
}

// Now returns the tick value observed by the most recent call to Tick.
func (w *Wheel) Now() Tick {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.now
}
