// Package netio implements the link-layer backend: the thing that
// actually moves Ethernet frames in and out of the simulated kernel. It
// follows the teacher's dual-backend pattern exactly — a //go:build
// giouring real TAP-device backend (netio_real.go) plus a //go:build
// !giouring in-memory simulated backend (netio_stub.go) — because a real
// target's network interrupt handler and a desktop simulation of the same
// kernel have nothing in common except the frame-shaped contract between
// them, the same reason the teacher split iouring.go/iouring_stub.go on
// the same build tag for the ublk-control ring.
package netio

import (
	"github.com/ehrlich-b/rtos-core/internal/cond"
	"github.com/ehrlich-b/rtos-core/internal/constants"
)

// Frame is one received Ethernet frame.
type Frame struct {
	Payload   []byte
	Ethertype uint16
	Src       [6]byte
	Dst       [6]byte
}

// Link is the interface internal/netproto and internal/netio.RXQueue
// depend on; it never refers to io_uring, TAP, or any OS-specific type,
// mirroring how the teacher's internal/uring.Ring let the queue runner
// stay oblivious to which ring implementation backed it.
//
// SendFrame's name (rather than the shorter Send) matches the
// FrameSender interface internal/netproto's ARP resolver and DHCP client
// already declare, so *Real and *Sim satisfy it with no adapter type.
type Link interface {
	// SendFrame transmits one Ethernet frame.
	SendFrame(dst [6]byte, ethertype uint16, payload []byte) error
	// Recv blocks until a frame arrives or the link is closed, in which
	// case it returns an error. It is only ever called from RXQueue's own
	// pump goroutine, never from a scheduled task.
	Recv() (Frame, error)
	LocalMAC() [6]byte
	Close() error
}

// Config configures a Link regardless of backend.
type Config struct {
	// Device is the TAP device name for the real backend; ignored by
	// the simulated backend.
	Device   string
	LocalMAC [6]byte
}

// RXQueue bridges a Link's blocking Recv() loop into the condition/
// suspend framework: a dedicated goroutine (playing the role of the
// network interrupt handler) pumps frames into an internal queue and
// resumes waiters on Condition, the same "ISR sets a flag, scheduler
// wakes the waiter" shape fd.Base uses for DataAvailable, generalized
// from byte-stream readiness to frame-queue readiness.
type RXQueue struct {
	link Link

	mu     chan struct{} // binary mutex; see lock/unlock below
	frames []Frame


	Condition cond.Condition

	resume func(*cond.Condition)
	closed chan struct{}
}

// NewRXQueue constructs a queue reading from link and waking waiters on
// its Condition via resume (typically a closure over
// cond.ResumeCondition bound to the kernel's scheduler).
func NewRXQueue(link Link, resume func(*cond.Condition)) *RXQueue {
	q := &RXQueue{
		link:    link,
		mu:      make(chan struct{}, 1),
		resume:  resume,
		closed:  make(chan struct{}),
	}
	q.mu <- struct{}{}
	q.Condition.DoSuspend = func(any, any) bool { return !q.hasFrame() }
	go q.pump()
	return q
}

func (q *RXQueue) lock()   { <-q.mu }
func (q *RXQueue) unlock() { q.mu <- struct{}{} }

func (q *RXQueue) hasFrame() bool {
	q.lock()
	defer q.unlock()
	return len(q.frames) > 0
}

func (q *RXQueue) pump() {
	for {
		f, err := q.link.Recv()
		if err != nil {
			close(q.closed)
			return
		}
		q.lock()
		q.frames = append(q.frames, f)
		q.unlock()
		if q.resume != nil {
			q.resume(&q.Condition)
		}
	}
}

// Pull removes and returns the oldest queued frame, if any.
func (q *RXQueue) Pull() (Frame, bool) {
	q.lock()
	defer q.unlock()
	if len(q.frames) == 0 {
		return Frame{}, false
	}
	f := q.frames[0]
	q.frames = q.frames[1:]
	return f, true
}

// AboveThreshold reports whether the queue's backlog has breached the FS
// buffer reserve (constants.DefaultThresholdBuffers frames pending),
// per spec §4.G: once reserves are breached, upper layers must refuse to
// pass new RX frames up rather than let RX traffic starve the TX path's
// acks, and report NET_THRESHOLD instead.
func (q *RXQueue) AboveThreshold() bool {
	q.lock()
	defer q.unlock()
	return len(q.frames) >= constants.DefaultThresholdBuffers
}

// Closed returns a channel closed once the underlying link's Recv loop
// has exited (the link was closed or hit an unrecoverable read error).
func (q *RXQueue) Closed() <-chan struct{} { return q.closed }

// Close closes the underlying link, which unblocks the pump goroutine's
// Recv call and causes it to exit.
func (q *RXQueue) Close() error { return q.link.Close() }
