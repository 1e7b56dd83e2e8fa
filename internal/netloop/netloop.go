// Package netloop implements the single network worker task: one
// goroutine that parks on a priority-ordered set of (condition, callback)
// registrations via cond.SuspendCondition and dispatches whichever
// registration woke it, looping forever until stopped.
//
// Grounded on the teacher's internal/queue/runner.go ioLoop: one worker
// per queue, blocking on a completion wait, dispatching per-event
// handlers, then looping back to wait again. Here "completion wait" is
// SuspendCondition over N conditions instead of io_uring's CQE wait, and
// "per-event handler" is a registered Callback instead of
// handleCompletion's per-tag state machine.
package netloop

import (
	"context"

	"github.com/ehrlich-b/rtos-core/internal/cond"
	"github.com/ehrlich-b/rtos-core/internal/constants"
	"github.com/ehrlich-b/rtos-core/internal/logging"
	"github.com/ehrlich-b/rtos-core/internal/sched"
	"github.com/ehrlich-b/rtos-core/internal/sleep"
)

// Callback handles a registration's wake. status is the terminal status
// of the suspend that fired (success, timeout, or a condition-specific
// code); arg is the registration's opaque per-callback argument.
type Callback func(status constants.Status, arg any)

// Registration binds a condition the worker should wait on to the
// callback invoked when it fires.
type Registration struct {
	Condition *cond.Condition
	Arg       any

	// Priority orders this registration's suspend among others waiting
	// on the same condition (lower wins), matching cond.Suspend.Priority.
	Priority int

	// Timeout, if non-zero, rearms this registration's wait with a
	// fresh deadline of Timeout ticks from now every time the loop parks.
	Timeout sleep.Tick

	Callback Callback
}

// Loop is the single network worker: it owns a fixed slice of
// registrations (set once at construction, mirroring the original's
// static per-protocol callback table) and runs them through
// SuspendCondition on its own task.
type Loop struct {
	sc    *sched.Scheduler
	wheel *sleep.Wheel
	regs  []*Registration
	log   *logging.Logger

	task *sched.Task
	done chan struct{}
}

// New constructs a worker loop bound to sc and wheel. regs is the fixed
// registration table; Start launches the worker task at priority.
func New(sc *sched.Scheduler, wheel *sleep.Wheel, regs []*Registration, logger *logging.Logger) *Loop {
	if logger == nil {
		logger = logging.Default()
	}
	return &Loop{sc: sc, wheel: wheel, regs: regs, log: logger, done: make(chan struct{})}
}

// Start launches the worker task. ctx cancellation stops the loop after
// its current wait returns.
func (l *Loop) Start(ctx context.Context, priority int) {
	l.task = l.sc.NewTask("netloop", priority, func(tk *sched.Task) {
		l.run(ctx)
		close(l.done)
	})
	l.sc.TaskAdd(l.task, priority)
}

// Done returns a channel closed once the worker task has exited.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) run(ctx context.Context) {
	n := len(l.regs)
	conditions := make([]*cond.Condition, n)
	suspends := make([]*cond.Suspend, n)
	for i, r := range l.regs {
		conditions[i] = r.Condition
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		now := currentTick(l.wheel)
		for i, r := range l.regs {
			s := &cond.Suspend{Task: l.task, Priority: r.Priority, PriorityOrder: true}
			if r.Timeout > 0 {
				s.TimeoutEnabled = true
				s.Timeout = now + r.Timeout
			}
			suspends[i] = s
		}

		num := n
		if err := cond.SuspendCondition(l.sc, l.wheel, conditions, suspends, &num); err != nil {
			l.log.Error("netloop suspend failed", "err", err)
			continue
		}
		if num < 0 || num >= n {
			continue
		}
		fired := suspends[num]
		l.regs[num].Callback(fired.Status, l.regs[num].Arg)
	}
}

// currentTick is a best-effort read of the wheel's notion of "now" for
// computing a registration's next deadline; the wheel itself is the
// authority on tick order, this is only used to seed a fresh timeout.
func currentTick(w *sleep.Wheel) sleep.Tick {
	return w.Now()
}
