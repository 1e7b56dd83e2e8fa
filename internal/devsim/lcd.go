package devsim

import (
	"sync"

	"github.com/ehrlich-b/rtos-core/internal/constants"
	"github.com/ehrlich-b/rtos-core/internal/fd"
)

// LCD ioctl commands, matching lcd_an.c's LCD_AN_CUSTOM_CHAR/LCD_AN_RESET.
const (
	LCDIoctlCustomChar = iota + 1
	LCDIoctlReset
)

// CustomChar is the LCDIoctlCustomChar argument: an 8-row bitmap stored at
// the given CGRAM index (0-7), matching lcd_an_create_custom_char.
type CustomChar struct {
	Index  uint8
	Bitmap [8]byte
}

// LCD simulates an alphanumeric character LCD console addressed one
// character at a time, with '\f', '\n', '\r', '\t' given the same
// special handling lcd_an_write gives them. It implements fd.FD so it can
// be opened, written, and ioctl'd through the same vtable console/network
// FDs use.
type LCD struct {
	*fd.Base

	Rows, Cols int

	mu          sync.Mutex
	cells       [][]byte
	cursorRow   int
	cursorCol   int
	customChars map[uint8][8]byte
}

// NewLCD constructs a simulated LCD with the given geometry, already
// cleared and homed.
func NewLCD(rows, cols int) *LCD {
	l := &LCD{Rows: rows, Cols: cols}
	// A console FD always has space to accept more writes (the original
	// drives a busy-wait on the device itself, not a kernel-level
	// backpressure signal) and never has data of its own to read.
	l.Base = fd.NewBase(func() bool { return false }, func() bool { return true })
	l.clearLocked()
	return l
}

// Init implements fd.FD, resetting the display to its power-on state.
func (l *LCD) Init(fd.Flags) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clearLocked()
	return nil
}

// IntLock/IntUnlock implement fd.FD's ISR critical-section bracket as a
// no-op; the simulated LCD has no concurrent interrupt source of its own.
func (l *LCD) IntLock()   {}
func (l *LCD) IntUnlock() {}

// Read implements fd.FD. The LCD is a write-only console in the original
// driver (only fs.write and fs.ioctl are registered), so Read always
// reports no data rather than blocking.
func (l *LCD) Read(p []byte) (int, error) { return 0, nil }

// Write implements fd.FD, printing characters to the console and
// interpreting '\f', '\n', '\r', and '\t' as clear-home, next-row,
// column-reset, and tab-stop respectively, exactly as lcd_an_write does.
// It returns the number of bytes successfully printed before any error;
// ErrLCDRowFull/ErrLCDColumnFull report running out of display space.
func (l *LCD) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, b := range p {
		var err error
		switch b {
		case '\f':
			l.clearLocked()
		case '\n':
			err = l.newlineLocked()
		case '\r':
			l.cursorCol = 0
		case '\t':
			err = l.tabLocked()
		default:
			err = l.putCharLocked(b)
		}
		if err != nil {
			return i, err
		}
	}
	return len(p), nil
}

func (l *LCD) clearLocked() {
	l.cells = make([][]byte, l.Rows)
	for r := range l.cells {
		row := make([]byte, l.Cols)
		for c := range row {
			row[c] = ' '
		}
		l.cells[r] = row
	}
	l.cursorRow, l.cursorCol = 0, 0
	if l.customChars == nil {
		l.customChars = make(map[uint8][8]byte)
	}
}

func (l *LCD) newlineLocked() error {
	if l.cursorRow >= l.Rows-1 {
		return ErrLCDRowFull
	}
	l.cursorRow++
	return nil
}

func (l *LCD) tabLocked() error {
	indent := constants.LCDTabSize - (l.cursorCol % constants.LCDTabSize)
	if l.cursorCol+indent >= l.Cols {
		return ErrLCDColumnFull
	}
	l.cursorCol += indent
	return nil
}

func (l *LCD) putCharLocked(b byte) error {
	if l.cursorCol >= l.Cols {
		return ErrLCDColumnFull
	}
	l.cells[l.cursorRow][l.cursorCol] = b
	l.cursorCol++
	return nil
}

// Ioctl implements fd.FD. LCDIoctlCustomChar stores an 8-row bitmap at a
// CGRAM index (arg must be a CustomChar); LCDIoctlReset clears the
// display. Any other op returns ErrInvalidCommand, matching
// lcd_an_ioctl's FS_INVALID_COMMAND default case.
func (l *LCD) Ioctl(op int, arg any) (any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch op {
	case LCDIoctlCustomChar:
		cc, ok := arg.(CustomChar)
		if !ok {
			return nil, ErrInvalidCommand
		}
		l.customChars[cc.Index] = cc.Bitmap
		return nil, nil
	case LCDIoctlReset:
		l.clearLocked()
		return nil, nil
	default:
		return nil, ErrInvalidCommand
	}
}

// Contents returns a copy of each row's text, for test inspection.
func (l *LCD) Contents() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, l.Rows)
	for r, row := range l.cells {
		out[r] = string(row)
	}
	return out
}

// Cursor returns the current (row, column) position.
func (l *LCD) Cursor() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursorRow, l.cursorCol
}

// CustomChar returns the bitmap stored at index, if any.
func (l *LCD) CustomChar(index uint8) ([8]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cc, ok := l.customChars[index]
	return cc, ok
}

var _ fd.FD = (*LCD)(nil)
