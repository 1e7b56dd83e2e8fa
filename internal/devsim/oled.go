package devsim

import (
	"sync"

	"github.com/ehrlich-b/rtos-core/internal/constants"
	"github.com/ehrlich-b/rtos-core/internal/fd"
)

// SSD1306 command bytes, matching oled_ssd1306.c's SSD1306_* constants.
const (
	ssd1306SetContrast        = 0x81
	ssd1306DisplayAllOnResume = 0xA4
	ssd1306NormalDisplay      = 0xA6
	ssd1306InvertDisplay      = 0xA7
	ssd1306DisplayOff         = 0xAE
	ssd1306DisplayOn          = 0xAF
	ssd1306SetDisplayOffset   = 0xD3
	ssd1306SetComPins         = 0xDA
	ssd1306SetVComDeselect    = 0xDB
	ssd1306SetDisplayClockDiv = 0xD5
	ssd1306SetPreCharge       = 0xD9
	ssd1306SetMultiplex       = 0xA8
	ssd1306SetStartLine       = 0x40
	ssd1306MemoryMode         = 0x20
	ssd1306ColumnAddr         = 0x21
	ssd1306PageAddr           = 0x22
	ssd1306ComScanDec         = 0xC8
	ssd1306SegRemap           = 0xA0
	ssd1306ChargePump         = 0x8D
	ssd1306DeactivateScroll   = 0x2E

	// oledDataMarker prefixes every I2C data (as opposed to command)
	// message, matching oled_ssd1306_display's display_buffer[0] = 0x40.
	oledDataMarker = 0x40
	// oledCommandMarker prefixes every I2C command message, matching
	// oled_ssd1306_command's command_buffer[0] = 0x0.
	oledCommandMarker = 0x00
)

// OLED ioctl commands, matching the GFX vtable oled_ssd1306_register
// wires up (power, clear, invert).
const (
	OLEDIoctlPower = iota + 1
	OLEDIoctlInvert
	OLEDIoctlClear
)

// OLED simulates an SSD1306 monochrome graphics display driven over I2C.
// It reproduces oled_ssd1306_register's init command sequence and
// oled_ssd1306_display's chunked data transfer (each I2C message carries
// at most constants.OLEDI2CChunkSize payload bytes, prefixed with the
// 0x40 data marker) so a caller inspecting Messages() sees the same wire
// shape a real SSD1306 transaction log would show.
type OLED struct {
	*fd.Base

	Width, Height int

	mu          sync.Mutex
	buffer      []byte
	poweredOn   bool
	inverted    bool
	initialized bool
	messages    [][]byte // logged I2C messages, command and data alike
}

// NewOLED constructs a simulated SSD1306 display of the given pixel
// geometry. height must be a multiple of 8 (one page per 8 rows), as the
// original's page-addressing scheme requires.
func NewOLED(width, height int) *OLED {
	o := &OLED{Width: width, Height: height}
	o.Base = fd.NewBase(func() bool { return false }, func() bool { return true })
	o.buffer = make([]byte, (width*height)/8)
	return o
}

// Init implements fd.FD, running the same command sequence
// oled_ssd1306_register sends on power-up: display off, clock divider,
// multiplex ratio, offset/start line, charge pump, addressing mode,
// segment remap, COM scan direction and pin config, contrast,
// pre-charge, VCOM deselect level, then display-all-on-resume, normal
// display, and deactivate scrolling.
func (o *OLED) Init(fd.Flags) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.commandLocked(ssd1306DisplayOff)
	o.commandLocked(ssd1306SetDisplayClockDiv)
	o.commandLocked(0x80)
	o.commandLocked(ssd1306SetMultiplex)
	o.commandLocked(byte(o.Height - 1))
	o.commandLocked(ssd1306SetDisplayOffset)
	o.commandLocked(0x00)
	o.commandLocked(ssd1306SetStartLine | 0x00)
	o.commandLocked(ssd1306ChargePump)
	o.commandLocked(0x14)
	o.commandLocked(ssd1306MemoryMode)
	o.commandLocked(0x00)
	o.commandLocked(ssd1306SegRemap | 0x01)
	o.commandLocked(ssd1306ComScanDec)
	o.commandLocked(ssd1306SetComPins)
	o.commandLocked(0x12)
	o.commandLocked(ssd1306SetContrast)
	o.commandLocked(0xCF)
	o.commandLocked(ssd1306SetPreCharge)
	o.commandLocked(0xF1)
	o.commandLocked(ssd1306SetVComDeselect)
	o.commandLocked(0x40)
	o.commandLocked(ssd1306DisplayAllOnResume)
	o.commandLocked(ssd1306NormalDisplay)
	o.commandLocked(ssd1306DeactivateScroll)

	o.initialized = true
	return nil
}

// IntLock/IntUnlock implement fd.FD's ISR critical-section bracket as a
// no-op; the simulated OLED has no concurrent interrupt source.
func (o *OLED) IntLock()   {}
func (o *OLED) IntUnlock() {}

// Read implements fd.FD. The OLED is a write-only graphics sink in the
// original (only the GFX display/power/clear/invert hooks are wired), so
// Read always reports no data.
func (o *OLED) Read(p []byte) (int, error) { return 0, nil }

// Write implements fd.FD as a full-frame display update: p must be
// exactly Width*Height/8 bytes (one bit per pixel, page-addressed),
// matching oled_ssd1306_display's column/page addressing window sized to
// the whole display. The frame is sent as column/page-address commands
// followed by the buffer in constants.OLEDI2CChunkSize-byte I2C
// messages, each prefixed with the 0x40 data marker.
func (o *OLED) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.initialized {
		return 0, ErrOLEDNotInitialized
	}
	if len(p) != len(o.buffer) {
		return 0, ErrOLEDBufferSize
	}

	o.commandLocked(ssd1306ColumnAddr)
	o.commandLocked(0x00)
	o.commandLocked(byte(o.Width - 1))
	o.commandLocked(ssd1306PageAddr)
	o.commandLocked(0x00)
	o.commandLocked(byte(o.Height/8 - 1))

	copy(o.buffer, p)
	for i := 0; i < len(p); i += constants.OLEDI2CChunkSize {
		end := i + constants.OLEDI2CChunkSize
		if end > len(p) {
			end = len(p)
		}
		msg := make([]byte, 0, end-i+1)
		msg = append(msg, oledDataMarker)
		msg = append(msg, p[i:end]...)
		o.messages = append(o.messages, msg)
	}
	return len(p), nil
}

func (o *OLED) commandLocked(cmd byte) {
	o.messages = append(o.messages, []byte{oledCommandMarker, cmd})
}

// Ioctl implements fd.FD. OLEDIoctlPower and OLEDIoctlInvert take a bool
// arg and issue the matching SSD1306 command; OLEDIoctlClear zeros the
// display buffer without touching the device command log. Any other op
// returns ErrInvalidCommand.
func (o *OLED) Ioctl(op int, arg any) (any, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch op {
	case OLEDIoctlPower:
		on, _ := arg.(bool)
		if on {
			o.commandLocked(ssd1306DisplayOn)
		} else {
			o.commandLocked(ssd1306DisplayOff)
		}
		o.poweredOn = on
		return nil, nil
	case OLEDIoctlInvert:
		invert, _ := arg.(bool)
		if invert {
			o.commandLocked(ssd1306InvertDisplay)
		} else {
			o.commandLocked(ssd1306NormalDisplay)
		}
		o.inverted = invert
		return nil, nil
	case OLEDIoctlClear:
		for i := range o.buffer {
			o.buffer[i] = 0
		}
		return nil, nil
	default:
		return nil, ErrInvalidCommand
	}
}

// Messages returns a copy of every I2C message logged so far (both
// command and data transactions), for test inspection of the wire-level
// transcript.
func (o *OLED) Messages() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([][]byte, len(o.messages))
	for i, m := range o.messages {
		cp := make([]byte, len(m))
		copy(cp, m)
		out[i] = cp
	}
	return out
}

// PoweredOn and Inverted report the display's current power/invert state.
func (o *OLED) PoweredOn() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.poweredOn
}

func (o *OLED) Inverted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inverted
}

var _ fd.FD = (*OLED)(nil)
