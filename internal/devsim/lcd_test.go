package devsim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLCDWritesAdvanceCursor(t *testing.T) {
	l := NewLCD(2, 16)
	n, err := l.Write([]byte("hi"))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	row, col := l.Cursor()
	require.Equal(t, 0, row)
	require.Equal(t, 2, col)
	require.Equal(t, "hi", l.Contents()[0][:2])
}

func TestLCDNewlineAdvancesRowUntilFull(t *testing.T) {
	l := NewLCD(2, 16)
	_, err := l.Write([]byte("\n"))
	require.NoError(t, err)
	row, _ := l.Cursor()
	require.Equal(t, 1, row)

	n, err := l.Write([]byte("\n"))
	require.ErrorIs(t, err, ErrLCDRowFull)
	require.Equal(t, 0, n)
}

func TestLCDCarriageReturnResetsColumn(t *testing.T) {
	l := NewLCD(2, 16)
	l.Write([]byte("abc"))
	l.Write([]byte("\r"))
	_, col := l.Cursor()
	require.Equal(t, 0, col)
}

func TestLCDTabAdvancesToStopOrFails(t *testing.T) {
	l := NewLCD(1, 8)
	_, err := l.Write([]byte("\t"))
	require.NoError(t, err)
	_, col := l.Cursor()
	require.Equal(t, 4, col)

	// Another tab would land at column 8, which is out of bounds for an
	// 8-column display.
	n, err := l.Write([]byte("\t"))
	require.ErrorIs(t, err, ErrLCDColumnFull)
	require.Equal(t, 0, n)
}

func TestLCDColumnOverflow(t *testing.T) {
	l := NewLCD(1, 2)
	n, err := l.Write([]byte("abc"))
	require.Equal(t, 2, n)
	require.ErrorIs(t, err, ErrLCDColumnFull)
}

func TestLCDFormFeedClears(t *testing.T) {
	l := NewLCD(2, 4)
	l.Write([]byte("ab\ncd"))
	l.Write([]byte("\f"))
	row, col := l.Cursor()
	require.Equal(t, 0, row)
	require.Equal(t, 0, col)
	require.Equal(t, "    ", l.Contents()[0])
}

func TestLCDCustomCharIoctl(t *testing.T) {
	l := NewLCD(2, 16)
	bitmap := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	_, err := l.Ioctl(LCDIoctlCustomChar, CustomChar{Index: 3, Bitmap: bitmap})
	require.NoError(t, err)

	got, ok := l.CustomChar(3)
	require.True(t, ok)
	require.Equal(t, bitmap, got)
}

func TestLCDIoctlResetClearsDisplay(t *testing.T) {
	l := NewLCD(2, 16)
	l.Write([]byte("abc"))
	_, err := l.Ioctl(LCDIoctlReset, nil)
	require.NoError(t, err)
	row, col := l.Cursor()
	require.Equal(t, 0, row)
	require.Equal(t, 0, col)
}

func TestLCDIoctlUnknownCommand(t *testing.T) {
	l := NewLCD(2, 16)
	_, err := l.Ioctl(999, nil)
	require.ErrorIs(t, err, ErrInvalidCommand)
}
