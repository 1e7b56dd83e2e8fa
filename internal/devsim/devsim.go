// Package devsim implements the simulated display backends named in the
// FD layer's external interface: an alphanumeric character LCD console
// and an OLED SSD1306 graphics display. Both are ordinary fd.FD drivers,
// built on fd.Base exactly like internal/netio's link FDs and
// testing.go's MockFD, rather than bit-banged GPIO/I2C — real pin
// toggling is out of scope, but the command sequences and control
// character handling a real driver would produce are reproduced exactly
// so a caller exercising the FD layer sees the same behavior a real
// display would drive.
//
// Grounded on rtos/io/lcd/lcd_an.c (alphanumeric console write/ioctl
// handling) and rtos/io/oled/oled_ssd1306.c (SSD1306 init command
// sequence and chunked I2C display writes) from the original source tree.
package devsim

import "github.com/ehrlich-b/rtos-core/internal/constants"

// statusError pairs a constants.Status with a message, the same two-field
// shape the root package's Error carries; reproduced locally since
// internal packages never import the root package (kernel.go and
// testing.go sit above internal/fd, not below it).
type statusError struct {
	status constants.Status
	msg    string
}

func (e *statusError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return e.status.String()
}

// Status returns the status code the error carries, for callers that
// want to branch on it without string matching.
func (e *statusError) Status() constants.Status { return e.status }

func newStatusError(status constants.Status, msg string) error {
	return &statusError{status: status, msg: msg}
}

// Sentinel errors returned by the LCD and OLED drivers below.
var (
	ErrLCDRowFull         = newStatusError(constants.StatusLCDRowFull, "lcd: no more rows available")
	ErrLCDColumnFull      = newStatusError(constants.StatusLCDColumnFull, "lcd: no more columns available")
	ErrInvalidCommand     = newStatusError(constants.StatusFSInvalidCommand, "devsim: unknown ioctl command")
	ErrOLEDNotInitialized = newStatusError(constants.StatusOLEDInvalidState, "oled: display not initialized")
	ErrOLEDBufferSize     = newStatusError(constants.StatusOLEDInvalidState, "oled: write must cover the full display buffer")
)
