package fd

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/rtos-core/internal/fsbuf"
	"github.com/ehrlich-b/rtos-core/internal/sched"
)

// memFD is a minimal in-memory FD backed by a byte queue, used to exercise
// Base's lock and condition wiring without a real device simulation.
type memFD struct {
	*Base

	mu  sync.Mutex
	buf []byte

	calls []string
}

func newMemFD() *memFD {
	m := &memFD{}
	m.Base = NewBase(m.hasData, func() bool { return true })
	return m
}

func (m *memFD) hasData() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buf) > 0
}

func (m *memFD) Init(Flags) error { m.calls = append(m.calls, "Init"); return nil }

func (m *memFD) Write(p []byte) (int, error) {
	m.calls = append(m.calls, "Write")
	m.mu.Lock()
	m.buf = append(m.buf, p...)
	m.mu.Unlock()
	return len(p), nil
}

func (m *memFD) Read(p []byte) (int, error) {
	m.calls = append(m.calls, "Read")
	m.mu.Lock()
	defer m.mu.Unlock()
	n := copy(p, m.buf)
	m.buf = m.buf[n:]
	return n, nil
}

func (m *memFD) Ioctl(op int, arg any) (any, error) { return nil, nil }

func TestLockIsRecursiveForOwner(t *testing.T) {
	m := newMemFD()
	sc := sched.New(nil)
	task := sc.NewTask("t", 5, func(*sched.Task) {})

	m.GetLock(task)
	m.GetLock(task) // must not deadlock
	m.ReleaseLock(task)
	m.ReleaseLock(task)

	require.True(t, m.TryGetLock(task))
	m.ReleaseLock(task)
}

func TestTryGetLockFailsForOtherOwner(t *testing.T) {
	m := newMemFD()
	sc := sched.New(nil)
	a := sc.NewTask("a", 5, func(*sched.Task) {})
	b := sc.NewTask("b", 5, func(*sched.Task) {})

	m.GetLock(a)
	require.False(t, m.TryGetLock(b))
	m.ReleaseLock(a)
	require.True(t, m.TryGetLock(b))
	m.ReleaseLock(b)
}

// bufferedFD is a minimal Buffered FD: Init is a no-op, Read is
// never the path exercised (ReadBuffer is), matching a driver whose
// producer is a netloop callback rather than a scheduled task.
type bufferedFD struct {
	*Base
}

func newBufferedFD() *bufferedFD {
	f := &bufferedFD{}
	f.Base = NewBase(func() bool { return !f.RX.Empty() }, func() bool { return true })
	return f
}

func (f *bufferedFD) Init(Flags) error                  { return nil }
func (f *bufferedFD) Write(p []byte) (int, error)       { return len(p), nil }
func (f *bufferedFD) Read(p []byte) (int, error)        { return 0, nil }
func (f *bufferedFD) Ioctl(op int, arg any) (any, error) { return nil, nil }
func (f *bufferedFD) IntLock()                          {}
func (f *bufferedFD) IntUnlock()                        {}

var _ BufferedFD = (*bufferedFD)(nil)

func TestBufferedReadYieldsBufferWithoutCopy(t *testing.T) {
	f := newBufferedFD()
	sc := sched.New(nil)

	_, ok := f.ReadBuffer()
	require.False(t, ok)

	buf := fsbuf.NewBuffer()

	f.PushRX(sc, buf)
	got, ok := f.ReadBuffer()
	require.True(t, ok)
	require.Same(t, buf, got)

	_, ok = f.ReadBuffer()
	require.False(t, ok)
}

func TestWriteMakesDataAvailable(t *testing.T) {
	m := newMemFD()
	require.False(t, m.hasData())
	m.Write([]byte("hi"))
	require.True(t, m.hasData())

	buf := make([]byte, 4)
	n, _ := m.Read(buf)
	require.Equal(t, "hi", string(buf[:n]))
	require.False(t, m.hasData())
}
