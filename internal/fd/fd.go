// Package fd defines the device driver vtable every simulated peripheral
// (console, LCD, OLED, network socket) implements, plus the recursive
// owner-identity lock and the read/write Condition pair that every driver
// built on top of cond uses to block a caller until data or space exists.
//
// Grounded on the teacher's internal/interfaces.Backend vtable shape
// (ReadAt/WriteAt/Size/Close/Flush) generalized from a block-device
// byte-range contract to a character-device stream contract, and on
// testing.go's MockBackend call-tracking idiom for the MockFD test double.
package fd

import (
	"sync"

	"github.com/ehrlich-b/rtos-core/internal/cond"
	"github.com/ehrlich-b/rtos-core/internal/fsbuf"
	"github.com/ehrlich-b/rtos-core/internal/sched"
)

// Flags are orthogonal boolean open-mode bits. Per spec §9's redesign
// note, these replace the original's single mode enum so a caller can
// combine them freely (e.g. NonBlock|Append) without inventing a new enum
// value for every combination.
type Flags struct {
	ReadOnly  bool
	WriteOnly bool
	NonBlock  bool
	Append    bool

	// Buffered marks an FD whose Read yields a pointer to a queued
	// fsbuf.Buffer instead of copying bytes into the caller's slice, per
	// spec §4.F. Drivers that set this implement BufferedFD in addition
	// to FD; unbuffered drivers copy up to n bytes on every Read.
	Buffered bool
}

// BufferedFD is the optional interface a Buffered FD implements
// alongside FD: ReadBuffer hands the caller the head of the FD's
// receive list directly, transferring ownership without a copy.
type BufferedFD interface {
	FD
	ReadBuffer() (*fsbuf.Buffer, bool)
}

// FD is the interface every device driver implements. Init is called once
// at boot to wire up backing storage; Read/Write move bytes; Ioctl is the
// escape hatch for device-specific control operations (LCD cursor moves,
// OLED command sequences, socket options).
type FD interface {
	Init(flags Flags) error
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Ioctl(op int, arg any) (any, error)

	// IntLock/IntUnlock bracket the critical section a simulated ISR uses
	// to touch driver state concurrently with Read/Write; real drivers
	// implement this with a spinlock-equivalent that never blocks.
	IntLock()
	IntUnlock()
}

// Base is embedded by every concrete driver to supply the read/write
// condition pair and the recursive owner lock; it is not itself a
// complete FD (no Init/Read/Write/Ioctl).
type Base struct {
	Read  cond.Condition
	Write cond.Condition

	// RX is the receive list a Buffered FD's producer (an ISR-equivalent
	// or the netloop worker) appends to via PushRX, and ReadBuffer drains
	// from with no copy. Unbuffered FDs never touch it.
	RX *fsbuf.List

	lockMu    sync.Mutex
	owner     *sched.Task
	depth     int
	available chan struct{}
}

// NewBase wires the read/write conditions to their DoSuspend predicates.
// dataAvailable/spaceAvailable are closures over the driver's own buffer
// state (e.g. "fsbuf list non-empty").
func NewBase(dataAvailable, spaceAvailable func() bool) *Base {
	b := &Base{RX: fsbuf.NewList(0, 0)}
	b.Read.DoSuspend = func(_ any, _ any) bool { return !dataAvailable() }
	b.Write.DoSuspend = func(_ any, _ any) bool { return !spaceAvailable() }
	return b
}

// PushRX appends buf to a Buffered FD's receive list and wakes one
// waiter blocked on Read, the Buffered counterpart to an unbuffered
// driver copying bytes into its own queue and calling DataAvailable.
func (b *Base) PushRX(sc *sched.Scheduler, buf *fsbuf.Buffer) {
	b.RX.PushTail(buf)
	b.DataAvailable(sc)
}

// ReadBuffer implements BufferedFD: it detaches and returns the head of
// RX without copying its payload, the zero-copy counterpart to Read's
// byte-copy path used by unbuffered FDs (spec §4.F).
func (b *Base) ReadBuffer() (*fsbuf.Buffer, bool) {
	return b.RX.PullHead()
}

// DataAvailable wakes one waiter blocked on Read; call after appending to
// the driver's receive buffer.
func (b *Base) DataAvailable(sc *sched.Scheduler) {
	cond.ResumeCondition(sc, &b.Read, &cond.Resume{}, false)
}

// SpaceAvailable wakes one waiter blocked on Write; call after draining
// the driver's transmit buffer.
func (b *Base) SpaceAvailable(sc *sched.Scheduler) {
	cond.ResumeCondition(sc, &b.Write, &cond.Resume{}, false)
}

// GetLock acquires the recursive owner-identity lock for task. A task
// that already holds the lock may call GetLock again without deadlocking
// (matching the original driver's reentrant ISR-disable-then-driver-call
// pattern); ReleaseLock must be called the same number of times.
func (b *Base) GetLock(task *sched.Task) {
	b.lockMu.Lock()
	if b.owner == task && b.depth > 0 {
		b.depth++
		b.lockMu.Unlock()
		return
	}
	for b.owner != nil {
		b.lockMu.Unlock()
		<-b.available
		b.lockMu.Lock()
	}
	b.owner = task
	b.depth = 1
	b.available = make(chan struct{})
	b.lockMu.Unlock()
}

// TryGetLock is the non-blocking variant of GetLock.
func (b *Base) TryGetLock(task *sched.Task) bool {
	b.lockMu.Lock()
	defer b.lockMu.Unlock()
	if b.owner == task && b.depth > 0 {
		b.depth++
		return true
	}
	if b.owner != nil {
		return false
	}
	b.owner = task
	b.depth = 1
	b.available = make(chan struct{})
	return true
}

// ReleaseLock releases one level of ownership; the lock becomes free for
// another task once depth reaches zero.
func (b *Base) ReleaseLock(task *sched.Task) {
	b.lockMu.Lock()
	if b.owner != task {
		b.lockMu.Unlock()
		panic("fd: ReleaseLock by non-owner")
	}
	b.depth--
	if b.depth == 0 {
		b.owner = nil
		close(b.available)
	}
	b.lockMu.Unlock()
}
