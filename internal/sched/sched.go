// Package sched implements the priority-based, non-preemptive cooperative
// scheduler. Go has no manual stack-switch primitive, so each Task runs on
// its own goroutine; "context switch" is simulated by handing a capacity-1
// baton channel to the task that should run next and blocking the
// currently-running goroutine on its own baton until it is handed back.
// The effect is indistinguishable from single-stack cooperative scheduling:
// at any instant exactly one task's goroutine is not blocked on its baton.
package sched

import (
	"sync"

	"github.com/ehrlich-b/rtos-core/internal/list"
	"github.com/ehrlich-b/rtos-core/internal/logging"
)

// State is a task's position in its lifecycle.
type State int

const (
	StateNew State = iota
	StateReady
	StateRunning
	StateSuspended
	StateSleeping
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateReady:
		return "READY"
	case StateRunning:
		return "RUNNING"
	case StateSuspended:
		return "SUSPENDED"
	case StateSleeping:
		return "SLEEPING"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// WakeReason records why a sleeping or suspended task became READY again.
type WakeReason int

const (
	WakeNone WakeReason = iota
	WakeResume
	WakeTimeout
)

// Task is one schedulable unit of execution.
//
// WaitingOn and WokeFor are deliberately typed any rather than
// []*cond.Condition / *cond.Condition: cond depends on sched (a Task needs
// to be resumable), so sched cannot import cond back without a cycle. The
// cond package is the only one that ever type-asserts these fields.
type Task struct {
	list.Link[*Task]

	Name     string
	Priority int
	Arg      any

	mu    sync.Mutex
	state State

	WaitingOn  any
	WokeFor    any
	WakeReason WakeReason

	baton chan struct{}
	entry func(*Task)
	sched *Scheduler
}

// OnWake satisfies sleep.Waker: it records the sleep timeout as the wake
// reason and hands the task back to the scheduler as READY. sched cannot
// import the sleep package (sleep has no reason to depend on sched), so
// this method is the structural-interface bridge between the two.
func (t *Task) OnWake() {
	t.WakeReason = WakeTimeout
	t.sched.MarkReady(t)
}

// State returns the task's current lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// SetState transitions the task's lifecycle state. Exported for the cond
// and sleep packages, which own the SUSPENDED/SLEEPING/READY transitions
// that happen around suspend_condition; ordinary task code never calls it
// directly.
func (t *Task) SetState(s State) {
	t.setState(s)
}

// Sched returns the scheduler this task belongs to.
func (t *Task) Sched() *Scheduler {
	return t.sched
}

// Scheduler owns the ready queue and the currently-running task. It is the
// single source of truth for "whose goroutine is allowed to run now".
type Scheduler struct {
	mu        sync.Mutex
	ready     list.List[*Task]
	current   *Task
	lockDepth int
	pendingYield bool
	logger    *logging.Logger
	started   bool
}

// New creates a Scheduler. A nil logger uses logging.Default().
func New(logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{logger: logger}
}

// readyLess orders the ready queue by ascending priority number (lower
// number wins), FIFO among equal priorities.
func readyLess(a, b *Task) bool {
	return b.Priority < a.Priority
}

// NewTask constructs a task bound to this scheduler but does not make it
// runnable; call TaskAdd to do that.
func (s *Scheduler) NewTask(name string, priority int, entry func(*Task)) *Task {
	return &Task{
		Name:     name,
		Priority: priority,
		state:    StateNew,
		baton:    make(chan struct{}, 1),
		entry:    entry,
		sched:    s,
	}
}

// TaskAdd records the task's priority, inserts it into the sorted ready
// queue, and starts its goroutine (parked on its baton until scheduled).
// If the scheduler is currently idle (nothing running), the new task is
// dispatched immediately, mirroring MarkReady's wake-from-idle path.
func (s *Scheduler) TaskAdd(t *Task, priority int) {
	t.Priority = priority
	s.mu.Lock()
	t.setState(StateReady)
	dispatchNow := s.started && s.current == nil
	if dispatchNow {
		t.setState(StateRunning)
		s.current = t
	} else {
		s.ready.InsertSorted(t, readyLess)
	}
	s.mu.Unlock()
	s.logger.Debug("task added", "task", t.Name, "priority", priority)

	if dispatchNow {
		t.baton <- struct{}{}
	}

	go func() {
		<-t.baton
		t.entry(t)
		s.taskExit(t)
	}()
}

func (s *Scheduler) taskExit(t *Task) {
	t.setState(StateTerminated)
	s.logger.Debug("task terminated", "task", t.Name)
	s.mu.Lock()
	next, ok := s.popHighest()
	if !ok {
		s.current = nil
		s.mu.Unlock()
		return
	}
	next.setState(StateRunning)
	s.current = next
	s.mu.Unlock()
	next.baton <- struct{}{}
}

// popHighest removes and returns the highest-priority ready task.
func (s *Scheduler) popHighest() (*Task, bool) {
	return s.ready.Pop()
}

// Lock acquires the recursive scheduler lock. While held, TaskYield defers
// any switch it would otherwise perform.
func (s *Scheduler) Lock() {
	s.mu.Lock()
	s.lockDepth++
	s.mu.Unlock()
}

// Unlock releases one level of the recursive scheduler lock. On the final
// unlock, a yield deferred while locked is honored.
func (s *Scheduler) Unlock() {
	s.mu.Lock()
	s.lockDepth--
	honor := s.lockDepth == 0 && s.pendingYield
	if honor {
		s.pendingYield = false
	}
	s.mu.Unlock()
	if honor {
		s.TaskYield()
	}
}

// Current returns the task presently running, or nil before Start.
func (s *Scheduler) Current() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// TaskYield switches away from the calling task if a strictly
// higher-priority task is ready; equal priority never preempts. If the
// scheduler lock is held, the switch is deferred until the final Unlock.
func (s *Scheduler) TaskYield() {
	s.mu.Lock()
	if s.lockDepth > 0 {
		s.pendingYield = true
		s.mu.Unlock()
		return
	}
	cur := s.current
	head, ok := s.ready.Head()
	if !ok || !(head.Priority < cur.Priority) {
		s.mu.Unlock()
		return
	}
	next, _ := s.ready.Pop()
	cur.setState(StateReady)
	s.ready.InsertSorted(cur, readyLess)
	next.setState(StateRunning)
	s.current = next
	s.mu.Unlock()

	next.baton <- struct{}{}
	<-cur.baton
}

// ControlToSystem is called by a task that has already been marked
// SUSPENDED or SLEEPING and removed from the ready queue (by the cond or
// sleep packages) and now hands control to the next runnable task. It
// returns once the task is resumed and made current again.
func (s *Scheduler) ControlToSystem() {
	s.mu.Lock()
	cur := s.current
	next, ok := s.popHighest()
	if !ok {
		// Nothing else runnable: park until someone calls MarkReady, at
		// which point that call will find us blocked here and must
		// itself trigger a wakeup. To keep this simple and correct we
		// busy-park on our own baton, which MarkReady fulfils directly
		// when the ready queue was otherwise empty.
		s.current = nil
		s.mu.Unlock()
		<-cur.baton
		s.mu.Lock()
		s.current = cur
		s.mu.Unlock()
		return
	}
	next.setState(StateRunning)
	s.current = next
	s.mu.Unlock()

	next.baton <- struct{}{}
	<-cur.baton
}

// MarkReady transitions t to READY and inserts it into the ready queue. It
// is safe to call from a simulated-interrupt context: it never blocks and
// never takes an FD lock, only the scheduler's own mutex.
func (s *Scheduler) MarkReady(t *Task) {
	s.mu.Lock()
	t.setState(StateReady)
	if s.current == nil {
		// The running task parked in ControlToSystem's empty-queue path;
		// hand it straight to t by waking the running goroutine, which
		// will then observe t on the ready queue at its next yield.
		t.setState(StateRunning)
		s.current = t
		s.mu.Unlock()
		t.baton <- struct{}{}
		return
	}
	s.ready.InsertSorted(t, readyLess)
	s.mu.Unlock()
}

// Start makes the highest-priority ready task current and hands it the
// baton, bootstrapping the whole cooperative run. It returns immediately
// once dispatched (the baton channel is buffered); callers that need to
// wait for the run to finish do so with their own synchronization, the
// same way a top-level goroutine waits on any worker it launches.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.started = true
	first, ok := s.popHighest()
	if !ok {
		s.mu.Unlock()
		return
	}
	first.setState(StateRunning)
	s.current = first
	s.mu.Unlock()

	first.baton <- struct{}{}
}
