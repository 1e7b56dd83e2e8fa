// Package cond implements the condition/suspend/resume framework: the
// single rendezvous primitive every higher driver (FD read/write, ARP
// resolution, DHCP timers, TFTP transactions) suspends on. It depends on
// sched one-directionally — sched.Task.WaitingOn/WokeFor are typed any so
// sched never needs to import cond back.
package cond

import (
	"sync"
	"sync/atomic"

	"github.com/ehrlich-b/rtos-core/internal/constants"
	"github.com/ehrlich-b/rtos-core/internal/list"
	"github.com/ehrlich-b/rtos-core/internal/sched"
	"github.com/ehrlich-b/rtos-core/internal/sleep"
)

// DoSuspend is the predicate consulted while deciding whether a waiter on
// this condition must keep waiting. true means keep waiting.
type DoSuspend func(data any, param any) bool

// DoResume selects which waiter a Resume wakes: true means this suspend's
// param matches the resume's param.
type DoResume func(resumeParam, suspendParam any) bool

// Condition is a rendezvous point. Tasks suspend on 1..N conditions at
// once via SuspendCondition; a signaller wakes one or more via
// ResumeCondition, or sets Ping for a lock-free broadcast.
type Condition struct {
	Locker    sync.Locker // optional; defaults to an internal mutex
	DoSuspend DoSuspend
	Data      any
	Ping      atomic.Bool

	mu      sync.Mutex
	waiters list.List[*Suspend]
}

func (c *Condition) lock() {
	if c.Locker != nil {
		c.Locker.Lock()
		return
	}
	c.mu.Lock()
}

func (c *Condition) unlock() {
	if c.Locker != nil {
		c.Locker.Unlock()
		return
	}
	c.mu.Unlock()
}

// Suspend is a per-task, per-condition wait record. It is created on the
// waiting goroutine's own stack (a Go value, never heap-escaped beyond the
// call to SuspendCondition) and lives exactly as long as that call.
type Suspend struct {
	list.Link[*Suspend]

	Task     *sched.Task
	Param    any
	Priority int

	// PriorityOrder, if set, keeps this condition's waiter list sorted
	// by ascending suspend priority (FIFO within a priority) instead of
	// plain FIFO arrival order.
	PriorityOrder bool

	TimeoutEnabled bool
	Timeout        sleep.Tick

	Status    constants.Status
	MayResume bool

	sleepEntry *sleep.Entry
}

// Resume is a transient descriptor used by a signaller to wake waiters on
// one condition.
type Resume struct {
	Status   constants.Status
	Param    any
	DoResume DoResume
}

func suspendLess(a, b *Suspend) bool {
	return b.Priority < a.Priority
}

// SuspendCondition is the single wait primitive. conditions and suspends
// must be parallel slices of equal length (the first num entries of each
// are considered). On return, *num is the index of the condition that
// caused the wake (value-match, ping, or timeout).
//
// SuspendCondition acquires every condition's lock on entry, releases them
// while the task is actually parked (so a signaller elsewhere can proceed),
// and re-acquires them before returning. Every condition is unlocked again
// before the call returns.
func SuspendCondition(sc *sched.Scheduler, wheel *sleep.Wheel, conditions []*Condition, suspends []*Suspend, num *int) error {
	n := *num
	task := sc.Current()

	for _, c := range conditions[:n] {
		c.lock()
	}

	for {
		// Step 2: compute the minimum enabled timeout.
		minTimeout := sleep.Tick(0)
		haveTimeout := false
		timeoutIndex := -1
		for i := 0; i < n; i++ {
			if !suspends[i].TimeoutEnabled {
				continue
			}
			if !haveTimeout || sleep.Before(suspends[i].Timeout, minTimeout) {
				minTimeout = suspends[i].Timeout
				haveTimeout = true
				timeoutIndex = i
			}
		}

		// Step 3: pre-check for an already-satisfied condition.
		candidate := -1
		for i := 0; i < n; i++ {
			c := conditions[i]
			fired := c.Ping.Load()
			if !fired && c.DoSuspend != nil && !c.DoSuspend(c.Data, suspends[i].Param) {
				fired = true
			}
			if fired && (candidate == -1 || suspends[i].Priority < suspends[candidate].Priority) {
				candidate = i
			}
		}

		if candidate != -1 {
			if conditions[candidate].Ping.Load() {
				conditions[candidate].Ping.Store(false)
			}
			suspends[candidate].Status = constants.StatusSuccess
			*num = candidate
			for _, c := range conditions[:n] {
				c.unlock()
			}
			return nil
		}

		// Step 4: park. Thread the suspend record into every condition's
		// waiter list, mark SUSPENDED, register the sleep timeout.
		for i := 0; i < n; i++ {
			if suspends[i].PriorityOrder {
				conditions[i].waiters.InsertSorted(suspends[i], suspendLess)
			} else {
				conditions[i].waiters.Append(suspends[i])
			}
		}
		task.WaitingOn = conditions[:n]
		task.WokeFor = nil
		task.WakeReason = sched.WakeNone
		task.SetState(sched.StateSuspended)

		if haveTimeout {
			entry := &sleep.Entry{Waker: task, WakeTick: minTimeout}
			suspends[timeoutIndex].sleepEntry = entry
			wheel.Add(entry)
		}

		for _, c := range conditions[:n] {
			c.unlock()
		}

		sc.ControlToSystem()

		// Step 6: re-acquire locks.
		for _, c := range conditions[:n] {
			c.lock()
		}

		// Step 7: observe why we woke.
		if task.WakeReason == sched.WakeTimeout {
			for i := 0; i < n; i++ {
				list.Remove(&conditions[i].waiters, suspends[i])
			}
			suspends[timeoutIndex].Status = constants.StatusConditionTimeout
			*num = timeoutIndex
			for _, c := range conditions[:n] {
				c.unlock()
			}
			return nil
		}

		resumed, _ := task.WokeFor.(*Condition)
		resumedIdx := indexOf(conditions[:n], resumed)
		wasPing := resumed != nil && resumedIdx >= 0 && conditions[resumedIdx].Ping.Load()

		for i := 0; i < n; i++ {
			if i == resumedIdx {
				continue
			}
			list.Remove(&conditions[i].waiters, suspends[i])
		}
		if haveTimeout {
			if entry := suspends[timeoutIndex].sleepEntry; entry != nil {
				wheel.Remove(entry)
			}
		}

		if wasPing {
			conditions[resumedIdx].Ping.Store(false)
		}

		if suspends[resumedIdx].Status != constants.StatusSuccess {
			*num = resumedIdx
			for _, c := range conditions[:n] {
				c.unlock()
			}
			return nil
		}

		if !wasPing && conditions[resumedIdx].DoSuspend != nil &&
			conditions[resumedIdx].DoSuspend(conditions[resumedIdx].Data, suspends[resumedIdx].Param) {
			// Race guard: a higher-priority task beat us to the resource
			// between resume and our re-check. Loop and try again, still
			// holding every condition's lock.
			continue
		}

		*num = resumedIdx
		for _, c := range conditions[:n] {
			c.unlock()
		}
		return nil
	}
}

func indexOf(conditions []*Condition, target *Condition) int {
	if target == nil {
		return -1
	}
	for i, c := range conditions {
		if c == target {
			return i
		}
	}
	return -1
}

// ResumeCondition wakes one or more waiters on condition. If resume.Param
// is non-nil, resume.DoResume selects matching waiters one at a time,
// repeating until none match; otherwise it pops the head of the waiter
// list once.
func ResumeCondition(sc *sched.Scheduler, c *Condition, r *Resume, locked bool) error {
	if !locked {
		c.lock()
	}
	sc.Lock()

	for {
		var chosen *Suspend
		var ok bool
		if r.Param != nil && r.DoResume != nil {
			chosen, ok = list.SearchPop(&c.waiters, r.Param, func(s *Suspend, p any) bool {
				return r.DoResume(p, s.Param)
			})
		} else {
			chosen, ok = c.waiters.Pop()
		}
		if !ok {
			break
		}

		chosen.Status = r.Status
		chosen.MayResume = true
		chosen.Task.WokeFor = c
		chosen.Task.WakeReason = sched.WakeResume
		sc.MarkReady(chosen.Task)

		if r.Param == nil {
			break
		}
	}

	sc.Unlock()
	if !locked {
		c.unlock()
	}
	sc.TaskYield()
	return nil
}
