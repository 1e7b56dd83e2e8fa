package fsbuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestBufferConservation exercises property 7: the number of bytes
// written to a list equals the number of bytes later pulled and
// consumed from it, and every chunk is eventually released.
func TestBufferConservation(t *testing.T) {
	l := NewList(1, 1)

	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}

	written := 0
	for written < len(payload) {
		n := l.PushOffset(payload[written:], 0)
		require.Greater(t, n, 0)
		written += n
	}
	require.Equal(t, len(payload), l.TotalBytes())

	out := make([]byte, len(payload))
	read := 0
	for read < len(out) {
		n := l.PullOffset(out[read:], 0)
		require.Greater(t, n, 0)
		l.Consume(n)
		read += n
	}
	require.Equal(t, payload, out)
	require.Equal(t, 0, l.TotalBytes())
	require.Equal(t, 0, l.NumBuffers())
}

func TestThresholdPolicy(t *testing.T) {
	l := NewList(2, 1)
	require.False(t, l.AboveThreshold())

	l.PushOffset([]byte("a"), 0)
	require.False(t, l.AboveThreshold())

	b := NewBuffer()
	b.Flags.Head = true
	copy((*b.chunk)[:1], []byte("b"))
	b.end = 1
	l.PushTail(b)
	require.True(t, l.AboveThreshold())
}

func TestPushHeadReinsertsPartialRead(t *testing.T) {
	l := NewList(1, 1)
	l.PushOffset([]byte("hello"), 0)

	buf, ok := l.PullHead()
	require.True(t, ok)
	require.Equal(t, "hello", string(buf.Data()))

	buf.start = 2 // simulate a partial consume elsewhere
	l.PushHead(buf)
	require.Equal(t, 3, l.TotalBytes())
}
