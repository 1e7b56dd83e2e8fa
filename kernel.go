package rtos

import (
	"context"
	"sync"
	"time"

	"github.com/ehrlich-b/rtos-core/internal/cond"
	"github.com/ehrlich-b/rtos-core/internal/constants"
	"github.com/ehrlich-b/rtos-core/internal/logging"
	"github.com/ehrlich-b/rtos-core/internal/palloc"
	"github.com/ehrlich-b/rtos-core/internal/sched"
	"github.com/ehrlich-b/rtos-core/internal/sleep"
)

// Kernel is the top-level handle returned by Boot: a scheduler, a sleep
// wheel driven by a simulated timer-ISR goroutine, and an optional memory
// arena, wired together with the same lifecycle shape the teacher's
// CreateAndServe/Device/StopAndDelete trio used for a block device —
// Params/Options in place of DeviceParams/Options, Boot in place of
// CreateAndServe, Shutdown in place of StopAndDelete, State/IsRunning kept
// verbatim in spirit.
type Kernel struct {
	Sched *sched.Scheduler
	Wheel *sleep.Wheel
	Arena *palloc.Region // nil if Params.ArenaSize == 0

	ctx    context.Context
	cancel context.CancelFunc

	tickInterval time.Duration
	tick         sleep.Tick

	mu      sync.Mutex
	started bool
	stopped bool

	metrics  *Metrics
	observer Observer
	logger   *logging.Logger
}

// Params configures Boot. A zero Params is valid and produces a kernel
// with no memory arena and a 1ms simulated tick.
type Params struct {
	// TickInterval is the wall-clock period of the simulated timer ISR
	// that drives the sleep wheel. Defaults to 1ms.
	TickInterval time.Duration

	// ArenaSize and PageSpecs configure an internal/palloc region; if
	// ArenaSize is 0, Kernel.Arena is left nil (callers owning their own
	// arena construct internal/palloc.NewRegion directly instead).
	ArenaSize int
	PageSpecs []palloc.PageSpec
	Guard     bool
	FillFree  bool

	Logger   *logging.Logger
	Observer Observer
}

// DefaultParams returns sensible defaults: a 1ms tick, no arena.
func DefaultParams() Params {
	return Params{
		TickInterval: time.Millisecond,
	}
}

// Boot constructs a Kernel and starts its simulated clock goroutine. The
// scheduler itself is not started — call Kernel.Start once every initial
// task has been added with AddTask, matching the teacher's "create queue
// runners, then START_DEV" two-phase sequencing in CreateAndServe.
func Boot(ctx context.Context, params Params) (*Kernel, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if params.TickInterval <= 0 {
		params.TickInterval = time.Millisecond
	}

	logger := params.Logger
	if logger == nil {
		logger = logging.Default()
	}

	metrics := NewMetrics()
	observer := params.Observer
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}

	k := &Kernel{
		Sched:        sched.New(logger),
		tickInterval: params.TickInterval,
		metrics:      metrics,
		observer:     observer,
		logger:       logger,
	}
	k.Wheel = sleep.NewWheel(nil)

	if params.ArenaSize > 0 {
		k.Arena = palloc.NewRegion(params.ArenaSize, params.PageSpecs, params.Guard, params.FillFree)
	}

	k.ctx, k.cancel = context.WithCancel(ctx)
	go k.clockLoop()

	logger.Info("kernel booted", "tick", params.TickInterval.String())
	return k, nil
}

// clockLoop plays the role of the timer ISR: every tickInterval it
// advances the monotonic tick counter and drives the sleep wheel, waking
// every task whose deadline has passed. It never takes the scheduler lock
// directly (Wheel.Tick only calls Task.OnWake, which takes the scheduler's
// own lock internally), matching §5's rule that interrupt-equivalent code
// never blocks and never nests locks.
func (k *Kernel) clockLoop() {
	ticker := time.NewTicker(k.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-k.ctx.Done():
			return
		case <-ticker.C:
			k.mu.Lock()
			k.tick++
			now := k.tick
			k.mu.Unlock()
			k.Wheel.Tick(now)
		}
	}
}

// Now returns the kernel's current tick count.
func (k *Kernel) Now() sleep.Tick {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tick
}

// NewTask creates a task bound to this kernel's scheduler. It is not
// runnable until AddTask is called.
func (k *Kernel) NewTask(name string, priority int, entry func(*sched.Task)) *sched.Task {
	return k.Sched.NewTask(name, priority, entry)
}

// AddTask inserts t into the ready queue at the given priority and starts
// its goroutine.
func (k *Kernel) AddTask(t *sched.Task, priority int) {
	k.Sched.TaskAdd(t, priority)
}

// Start bootstraps cooperative scheduling by dispatching the
// highest-priority ready task. Call once, after every boot-time task has
// been added.
func (k *Kernel) Start() {
	k.mu.Lock()
	k.started = true
	k.mu.Unlock()
	k.Sched.Start()
}

// IsRunning reports whether the kernel has been started and not yet shut
// down.
func (k *Kernel) IsRunning() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.started && !k.stopped
}

// Alloc delegates to the kernel's memory arena. It is an error to call
// this on a Kernel booted with ArenaSize == 0.
func (k *Kernel) Alloc(n int) (*palloc.Block, error) {
	if k.Arena == nil {
		return nil, NewError("Kernel.Alloc", constants.StatusFSNoResource, "kernel has no memory arena")
	}
	blk, err := k.Arena.Alloc(n)
	k.observer.ObserveAlloc(err == nil)
	if err != nil {
		return nil, WrapError("Kernel.Alloc", err)
	}
	return blk, nil
}

// Free delegates to the kernel's memory arena.
func (k *Kernel) Free(blk *palloc.Block) error {
	if k.Arena == nil {
		return NewError("Kernel.Free", constants.StatusFSNoResource, "kernel has no memory arena")
	}
	err := k.Arena.Free(blk)
	k.observer.ObserveFree(false)
	if err != nil {
		return WrapError("Kernel.Free", err)
	}
	return nil
}

// SuspendCondition is a thin wrapper over cond.SuspendCondition that also
// records suspend latency/timeout metrics through the kernel's observer,
// the same place the teacher's queue runner recorded I/O latency around
// each ring submission.
func (k *Kernel) SuspendCondition(conditions []*cond.Condition, suspends []*cond.Suspend, num *int) error {
	start := time.Now()
	err := cond.SuspendCondition(k.Sched, k.Wheel, conditions, suspends, num)
	latencyNs := uint64(time.Since(start).Nanoseconds())
	timedOut := err == nil && *num >= 0 && *num < len(suspends) && suspends[*num].Status == constants.StatusConditionTimeout
	k.observer.ObserveSuspend(latencyNs, timedOut)
	return err
}

// ResumeCondition is a thin wrapper over cond.ResumeCondition recording a
// resume-op metric.
func (k *Kernel) ResumeCondition(c *cond.Condition, r *cond.Resume, locked bool) error {
	err := cond.ResumeCondition(k.Sched, c, r, locked)
	k.observer.ObserveResume()
	return err
}

// Metrics returns the kernel's metrics instance.
func (k *Kernel) Metrics() *Metrics {
	return k.metrics
}

// MetricsSnapshot returns a point-in-time snapshot of kernel metrics.
func (k *Kernel) MetricsSnapshot() MetricsSnapshot {
	if k.metrics == nil {
		return MetricsSnapshot{}
	}
	return k.metrics.Snapshot()
}

// Shutdown stops the clock goroutine and marks metrics as stopped. It
// does not forcibly terminate running task goroutines — a cooperative
// kernel has no preemptive teardown, matching §5's "no explicit cancel"
// rule; callers resume each task's conditions with an error status to
// unwind it cleanly before calling Shutdown.
func Shutdown(k *Kernel) error {
	k.mu.Lock()
	if k.stopped {
		k.mu.Unlock()
		return nil
	}
	k.stopped = true
	k.mu.Unlock()

	if k.cancel != nil {
		k.cancel()
	}
	if k.metrics != nil {
		k.metrics.Stop()
	}
	k.logger.Info("kernel shut down")
	return nil
}
