package netio

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/rtos-core/internal/cond"
	"github.com/ehrlich-b/rtos-core/internal/constants"
)

func TestSimSendAndRecv(t *testing.T) {
	sw := NewSwitch()
	a := sw.NewLink([6]byte{1, 1, 1, 1, 1, 1})
	b := sw.NewLink([6]byte{2, 2, 2, 2, 2, 2})

	err := a.SendFrame(b.LocalMAC(), 0x0806, []byte("hello"))
	require.NoError(t, err)

	f, err := b.Recv()
	require.NoError(t, err)
	require.Equal(t, uint16(0x0806), f.Ethertype)
	require.Equal(t, []byte("hello"), f.Payload)
	require.Equal(t, a.LocalMAC(), f.Src)
}

func TestSimBroadcastFanout(t *testing.T) {
	sw := NewSwitch()
	a := sw.NewLink([6]byte{1, 0, 0, 0, 0, 0})
	b := sw.NewLink([6]byte{2, 0, 0, 0, 0, 0})
	c := sw.NewLink([6]byte{3, 0, 0, 0, 0, 0})

	require.NoError(t, a.SendFrame(broadcastMAC, 0x0800, []byte("x")))

	_, err := b.Recv()
	require.NoError(t, err)
	_, err = c.Recv()
	require.NoError(t, err)
}

func TestSimUnicastNotDeliveredElsewhere(t *testing.T) {
	sw := NewSwitch()
	a := sw.NewLink([6]byte{1, 0, 0, 0, 0, 0})
	b := sw.NewLink([6]byte{2, 0, 0, 0, 0, 0})
	c := sw.NewLink([6]byte{3, 0, 0, 0, 0, 0})

	require.NoError(t, a.SendFrame(b.LocalMAC(), 0x0800, []byte("x")))

	done := make(chan struct{})
	go func() {
		c.Recv()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("frame delivered to link c, which was not the destination")
	case <-time.After(20 * time.Millisecond):
	}

	f, err := b.Recv()
	require.NoError(t, err)
	require.Equal(t, []byte("x"), f.Payload)
}

func TestSimCloseUnblocksRecv(t *testing.T) {
	sw := NewSwitch()
	a := sw.NewLink([6]byte{1, 2, 3, 4, 5, 6})

	done := make(chan error, 1)
	go func() {
		_, err := a.Recv()
		done <- err
	}()

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, a.Close())

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrLinkClosed)
	case <-time.After(time.Second):
		t.Fatal("Recv did not unblock after Close")
	}
}

func TestRXQueuePullAndResume(t *testing.T) {
	sw := NewSwitch()
	a := sw.NewLink([6]byte{1, 1, 1, 1, 1, 1})
	b := sw.NewLink([6]byte{2, 2, 2, 2, 2, 2})

	var resumeCount int32
	q := NewRXQueue(b, func(c *cond.Condition) {
		atomic.AddInt32(&resumeCount, 1)
	})
	defer q.Close()

	require.NoError(t, a.SendFrame(b.LocalMAC(), 0x0806, []byte("arp-ish")))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&resumeCount) > 0
	}, time.Second, time.Millisecond)

	f, ok := q.Pull()
	require.True(t, ok)
	require.Equal(t, []byte("arp-ish"), f.Payload)

	_, ok = q.Pull()
	require.False(t, ok)
}

func TestRXQueueAboveThresholdRefusesBacklog(t *testing.T) {
	sw := NewSwitch()
	a := sw.NewLink([6]byte{1, 1, 1, 1, 1, 1})
	b := sw.NewLink([6]byte{2, 2, 2, 2, 2, 2})

	q := NewRXQueue(b, nil)
	defer q.Close()

	require.False(t, q.AboveThreshold())

	for i := 0; i < constants.DefaultThresholdBuffers; i++ {
		require.NoError(t, a.SendFrame(b.LocalMAC(), 0x0806, []byte("f")))
	}

	require.Eventually(t, func() bool {
		return q.AboveThreshold()
	}, time.Second, time.Millisecond)

	f, ok := q.Pull()
	require.True(t, ok)
	require.Equal(t, []byte("f"), f.Payload)
}
