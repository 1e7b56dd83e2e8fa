package sleep

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeWaker struct {
	woke bool
}

func (f *fakeWaker) OnWake() { f.woke = true }

func TestTickPopsDueEntriesInOrder(t *testing.T) {
	w := NewWheel(nil)

	var order []int
	mk := func(id int, wake Tick) *Entry {
		return &Entry{WakeTick: wake, Waker: recorder{id: id, out: &order}}
	}

	w.Add(mk(1, 100))
	w.Add(mk(2, 50))
	w.Add(mk(3, 75))

	w.Tick(60) // only id=2 (50) is due
	require.Equal(t, []int{2}, order)

	w.Tick(100) // id=3 (75) then id=1 (100)
	require.Equal(t, []int{2, 3, 1}, order)
}

type recorder struct {
	id  int
	out *[]int
}

func (r recorder) OnWake() {
	*r.out = append(*r.out, r.id)
}

func TestRemoveBeforeDeadline(t *testing.T) {
	w := NewWheel(nil)
	fw := &fakeWaker{}
	e := &Entry{WakeTick: 10, Waker: fw}
	w.Add(e)

	require.True(t, w.Remove(e))
	require.False(t, w.Remove(e))

	w.Tick(1000)
	require.False(t, fw.woke)
}

func TestWrapSafeComparison(t *testing.T) {
	// now is just past a uint32 wrap; a deadline set shortly before the
	// wrap must still compare as "due", not as "far in the future".
	var now Tick = 5
	var wake Tick = 0xFFFFFFF0 // set shortly before wraparound
	require.True(t, Due(now, wake))
	require.True(t, Before(wake, now))
}

func TestReprogramHookFiresOnNewEarliestHead(t *testing.T) {
	var reprogrammed []Tick
	w := NewWheel(func(next Tick) {
		reprogrammed = append(reprogrammed, next)
	})

	w.Add(&Entry{WakeTick: 100, Waker: &fakeWaker{}})
	require.Equal(t, []Tick{100}, reprogrammed)

	// A later deadline does not become the new head, no reprogram.
	w.Add(&Entry{WakeTick: 200, Waker: &fakeWaker{}})
	require.Equal(t, []Tick{100}, reprogrammed)

	// An earlier deadline becomes the new head, reprogram fires again.
	w.Add(&Entry{WakeTick: 50, Waker: &fakeWaker{}})
	require.Equal(t, []Tick{100, 50}, reprogrammed)
}
