// Package fsbuf implements the fixed-size chunk buffer system network and
// filesystem protocol code accumulates and drains data through:
// fixed-size chunks drawn from a sync.Pool, threaded into
// singly-linked Lists via internal/list, with HEAD/TAIL-relative
// Push/Pull and packed/threshold accounting matching a bounded-memory
// embedded system rather than Go's usual "just append and let the
// runtime grow it" idiom.
//
// Grounded on the teacher's internal/queue/pool.go size-bucketed
// sync.Pool pattern, narrowed to the single fixed chunk size this
// package needs.
package fsbuf

import (
	"errors"
	"sync"

	"github.com/ehrlich-b/rtos-core/internal/codec"
	"github.com/ehrlich-b/rtos-core/internal/constants"
	"github.com/ehrlich-b/rtos-core/internal/list"
)

// ErrNoSpace is returned when a chunk could not be acquired for a push,
// the Go counterpart of FS_BUFFER_NO_SPACE — unreachable in this
// implementation since the backing sync.Pool always grows on demand,
// but kept so PushHeader has a defined failure mode per spec §7 rather
// than panicking if that ever changes.
var ErrNoSpace = errors.New("fsbuf: no space for chunk")

// chunkPool hands out fixed-size byte chunks, avoiding per-packet
// allocation on the hot network path.
var chunkPool = sync.Pool{
	New: func() any {
		b := make([]byte, constants.FSBufferChunkSize)
		return &b
	},
}

func getChunk() *[]byte { return chunkPool.Get().(*[]byte) }
func putChunk(b *[]byte) {
	for i := range *b {
		(*b)[i] = 0
	}
	chunkPool.Put(b)
}

// Flags are the per-buffer bookkeeping bits carried alongside a chunk's
// payload window.
type Flags struct {
	Head    bool // first chunk of a logical packet
	Tail    bool // last chunk of a logical packet
	Packed  bool // payload window is densely packed (no internal gaps)
	Suspend bool // caller wants to block for a free chunk rather than grow
	// the pool; unused by this implementation since sync.Pool always grows
	// on demand, leaving no FREE-exhaustion case for it to guard.
}

// Buffer is one fixed-size chunk plus the read/write cursors delimiting
// its live payload window within the underlying chunk.
type Buffer struct {
	list.Link[*Buffer]

	chunk *[]byte
	start int // first live byte, inclusive
	end   int // one past the last live byte

	Flags Flags
}

// Data returns the buffer's current live payload window.
func (b *Buffer) Data() []byte { return (*b.chunk)[b.start:b.end] }

// Len returns the number of live payload bytes.
func (b *Buffer) Len() int { return b.end - b.start }

// Cap returns the chunk's total capacity, for headroom calculations.
func (b *Buffer) Cap() int { return len(*b.chunk) }

// NewBuffer draws a fresh chunk from the pool with an empty payload
// window positioned at the chunk's start.
func NewBuffer() *Buffer {
	c := getChunk()
	return &Buffer{chunk: c, start: 0, end: 0}
}

// Release returns the buffer's chunk to the pool. The Buffer itself must
// not be reused afterward.
func (b *Buffer) Release() {
	putChunk(b.chunk)
	b.chunk = nil
}

// List is a buffer list (FREE, RX, TX, or a protocol-owned staging list),
// optionally governed by a threshold policy that tracks whether the
// consumer should be woken.
type List struct {
	list.List[*Buffer]

	// ThresholdBuffers/ThresholdLists gate Suspend clearing: a waiter is
	// only considered satisfied once the list holds at least
	// ThresholdBuffers buffers spanning at least ThresholdLists
	// head-to-tail logical packets (DefaultThresholdBuffers/
	// DefaultThresholdLists when zero).
	ThresholdBuffers int
	ThresholdLists   int

	mu sync.Mutex
}

// NewList constructs an empty list with the given threshold policy; pass
// 0, 0 for the package defaults.
func NewList(thresholdBuffers, thresholdLists int) *List {
	if thresholdBuffers == 0 {
		thresholdBuffers = constants.DefaultThresholdBuffers
	}
	if thresholdLists == 0 {
		thresholdLists = constants.DefaultThresholdLists
	}
	return &List{ThresholdBuffers: thresholdBuffers, ThresholdLists: thresholdLists}
}

// PushTail appends b as the new tail (the HEAD-relative "push" direction
// producers use when enqueueing newly-received data).
func (l *List) PushTail(b *Buffer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Append(b)
}

// PushHead inserts b as the new head, used when a partially-consumed
// buffer is pushed back after a short read.
func (l *List) PushHead(b *Buffer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Push(b)
}

// PullHead removes and returns the head buffer, if any.
func (l *List) PullHead() (*Buffer, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Pop()
}

// PushOffset copies p into the tail buffer's free space starting at a
// byte offset from its current end; if the tail has no room (or the list
// is empty) a fresh buffer is appended first and the offset is reset to 0.
// The live window is extended by the copied bytes only when the offset is
// 0; bytes written at a non-zero offset lie beyond the window. It returns the number of bytes actually copied, which may be
// less than len(p) when the tail chunk runs out of room — callers loop
// until all of p is consumed.
func (l *List) PushOffset(p []byte, offset int) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	tail, ok := l.Tail()
	if !ok || tail.end+offset >= tail.Cap() {
		tail = NewBuffer()
		tail.Flags.Head = !ok
		l.Append(tail)
		offset = 0
	}
	room := tail.Cap() - tail.end - offset
	n := len(p)
	if n > room {
		n = room
	}
	copy((*tail.chunk)[tail.end+offset:tail.end+offset+n], p[:n])
	if offset == 0 {
		tail.end += n
	}
	return n
}

// PullOffset copies up to len(p) live bytes starting offset bytes into
// the head buffer's payload window into p, without consuming them. It
// returns the number of bytes copied.
func (l *List) PullOffset(p []byte, offset int) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	head, ok := l.Head()
	if !ok {
		return 0
	}
	avail := head.Len() - offset
	if avail <= 0 {
		return 0
	}
	n := len(p)
	if n > avail {
		n = avail
	}
	copy(p[:n], head.Data()[offset:offset+n])
	return n
}

// Consume advances the head buffer's start cursor by n bytes, releasing
// and unlinking the head once it is fully drained.
func (l *List) Consume(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for n > 0 {
		head, ok := l.Head()
		if !ok {
			return
		}
		avail := head.Len()
		take := n
		if take > avail {
			take = avail
		}
		head.start += take
		n -= take
		if head.start >= head.end {
			b, _ := l.Pop()
			b.Release()
		}
	}
}

// Bytes copies the list's full payload into one contiguous slice,
// walking the chunk chain. This is the one place a flat byte slice is
// pulled out of the chunked representation — needed once a complete
// packet must cross a boundary (a DatagramSender, a FrameSender) that
// has no notion of fsbuf's chunking.
func (l *List) Bytes() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	var buf []byte
	for b, ok := l.Head(); ok; {
		buf = append(buf, b.Data()...)
		b, ok = b.Next()
	}
	return buf
}

// PushHeader encodes vals per h's field table and appends the result to
// the list's tail via PushOffset, splitting across chunk boundaries the
// same way any other payload push does. Grounded on fs_buffer_hdr_push
// feeding a Header table into an FS_BUFFER one field group at a time.
func (l *List) PushHeader(h *codec.Header, vals codec.Values) error {
	buf := make([]byte, h.Size)
	if err := codec.HeaderGenerate(h, buf, vals); err != nil {
		return err
	}
	for written := 0; written < len(buf); {
		n := l.PushOffset(buf[written:], 0)
		if n == 0 {
			return ErrNoSpace
		}
		written += n
	}
	return nil
}

// PullHeader decodes the first h.Size bytes of the list per h's field
// table, without consuming them — the symmetric fs_buffer_hdr_pull
// counterpart to PushHeader. Callers that want the bytes gone call
// Consume(h.Size) afterward, the same two-step PullOffset already uses.
func (l *List) PullHeader(h *codec.Header) (codec.Values, error) {
	buf := l.Bytes()
	if len(buf) < h.Size {
		return nil, codec.ErrShortBuffer
	}
	return codec.HeaderParse(h, buf[:h.Size])
}

// TotalBytes sums the live payload bytes across every buffer in the
// list, for threshold evaluation and property-based buffer-conservation
// checks.
func (l *List) TotalBytes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0
	for n, ok := l.Head(); ok; {
		total += n.Len()
		n, ok = n.Next()
	}
	return total
}

// NumBuffers returns the chunk count currently held in the list.
func (l *List) NumBuffers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return list.NumItems[*Buffer](&l.List)
}

// NumPackets counts HEAD-flagged buffers, i.e. logical packet boundaries.
func (l *List) NumPackets() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for n, ok := l.Head(); ok; {
		if n.Flags.Head {
			count++
		}
		n, ok = n.Next()
	}
	return count
}

// AboveThreshold reports whether the list currently satisfies its
// configured threshold policy, i.e. whether a consumer parked on it may
// be woken.
func (l *List) AboveThreshold() bool {
	return l.NumBuffers() >= l.ThresholdBuffers && l.NumPackets() >= l.ThresholdLists
}
