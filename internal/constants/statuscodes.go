package constants

// Status is the kernel's integer status code, returned (wrapped in a Go
// error) by every operation that can fail or signal a transient condition.
// The header defining these codes in the original source tree was not part
// of the retrieved excerpt, so the numeric values below are a fresh,
// internally-consistent assignment rather than a byte-for-byte port; the
// taxonomy (the set of names and their grouping) is preserved exactly.
type Status int32

const (
	StatusSuccess Status = 0

	// Transient.
	StatusConditionTimeout Status = -1
	StatusNetBufferConsumed Status = -2
	StatusNetThreshold      Status = -3

	// Input.
	StatusNetInvalidHeader Status = -10
	StatusNetInvalidCsum   Status = -11
	StatusFSInvalidCommand Status = -12

	// Resource.
	StatusFSBufferNoSpace Status = -20
	StatusFSNoResource    Status = -21

	// Routing.
	StatusNetUnknownSrc        Status = -30
	StatusNetDstUnreachable    Status = -31
	StatusNetDstPrtUnreachable Status = -32
	StatusNetLinkDown          Status = -33

	// TFTP.
	StatusTFTPErrorFS    Status = -40
	StatusTFTPUnknownTID Status = -41

	// Simulated displays.
	StatusLCDRowFull       Status = -50
	StatusLCDColumnFull    Status = -51
	StatusOLEDInvalidState Status = -52
)

// String names the status for logging.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusConditionTimeout:
		return "CONDITION_TIMEOUT"
	case StatusNetBufferConsumed:
		return "NET_BUFFER_CONSUMED"
	case StatusNetThreshold:
		return "NET_THRESHOLD"
	case StatusNetInvalidHeader:
		return "NET_INVALID_HDR"
	case StatusNetInvalidCsum:
		return "NET_INVALID_CSUM"
	case StatusFSInvalidCommand:
		return "FS_INVALID_COMMAND"
	case StatusFSBufferNoSpace:
		return "FS_BUFFER_NO_SPACE"
	case StatusFSNoResource:
		return "FS_NO_RESOURCE"
	case StatusNetUnknownSrc:
		return "NET_UNKNOWN_SRC"
	case StatusNetDstUnreachable:
		return "NET_DST_UNREACHABLE"
	case StatusNetDstPrtUnreachable:
		return "NET_DST_PRT_UNREACHABLE"
	case StatusNetLinkDown:
		return "NET_LINK_DOWN"
	case StatusTFTPErrorFS:
		return "TFTP_ERROR_FS"
	case StatusTFTPUnknownTID:
		return "TFTP_UNKNOWN_TID"
	case StatusLCDRowFull:
		return "LCD_ROW_FULL"
	case StatusLCDColumnFull:
		return "LCD_COLUMN_FULL"
	case StatusOLEDInvalidState:
		return "OLED_INVALID_STATE"
	default:
		return "UNKNOWN_STATUS"
	}
}
