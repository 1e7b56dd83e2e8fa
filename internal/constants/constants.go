// Package constants holds the kernel's tunable knobs. They are gathered
// here, rather than scattered as magic numbers, so a port to a specific
// microcontroller target only has to touch one file.
package constants

// Scheduler and tick constants.
const (
	// DefaultTaskPriority is assigned to tasks created without an explicit
	// priority. Lower numeric value means higher priority, so the default
	// sits in the middle of the practical range.
	DefaultTaskPriority = 16

	// IdleTaskPriority is the lowest possible priority, for an idle task
	// that any other READY task beats. The scheduler has no built-in idle
	// task; cmd/rtosdemo creates one at this priority.
	IdleTaskPriority = 255

	// NetworkWorkerPriority is the priority of the single network
	// condition loop worker. It sits above ordinary application tasks so
	// ARP/DHCP/TFTP retries are serviced promptly, but below anything the
	// embedder explicitly marks more urgent.
	NetworkWorkerPriority = 4
)

// Page-allocator constants.
const (
	// AllocAlignment is the minimum alignment floor applied to every
	// allocation request, matching the original's 4-byte requirement for
	// 32-bit scalar access on the target MCUs.
	AllocAlignment = 4

	// MinViableFree is the smallest remainder, in bytes, worth splitting
	// off as its own free block during an allocation. Remainders below
	// this are handed to the caller instead, to avoid spraying the
	// free list with blocks too small for any request to use.
	MinViableFree = 16

	// BoundaryGuardBytes is the size of the guard pattern stamped at each
	// end of a user allocation when boundary checking is enabled.
	BoundaryGuardBytes = 4

	// BoundaryGuardByte is the fill byte for boundary guards.
	BoundaryGuardByte = 0xAA

	// FreePatternByte fills freed allocations when use-after-free
	// detection is enabled, so a stale read is visibly wrong rather than
	// silently plausible.
	FreePatternByte = 0xDE
)

// Sleep wheel constants.
const (
	// TickHalfRange is half of the uint32 tick space, used as the
	// threshold for wrap-safe signed-difference comparisons: a delta
	// larger than this is treated as "behind" rather than "ahead".
	TickHalfRange = 1 << 31
)

// Network protocol constants, carried from the original source's retry and
// timeout policy (rtos/net/net_arp.c, net_dhcp_client.c).
const (
	// ARPRetryLimit is the number of retry deadlines an unresolved ARP
	// request is given: the request is retransmitted on the first
	// ARPRetryLimit-1 of them, and the pending queue is failed on the last.
	ARPRetryLimit = 3

	// ARPTimeoutBaseTicks is the base retry interval for an unresolved
	// ARP request, in scheduler ticks.
	ARPTimeoutBaseTicks = 1000

	// ARPEntryLifetimeTicks is how long a resolved ARP entry is trusted
	// before it is revalidated.
	ARPEntryLifetimeTicks = 600000

	// DHCPInitialTimeoutTicks is the first retry timeout for a DHCP
	// client request, doubled on each subsequent retry up to the cap.
	DHCPInitialTimeoutTicks = 4000

	// DHCPMaxTimeoutTicks caps the exponentially-doubling DHCP retry
	// timer. The cap is applied before the next doubling is computed, so
	// the doubling itself never has to operate on a value large enough
	// to approach uint32 overflow.
	DHCPMaxTimeoutTicks = 64000

	// TFTPBlockSize is the fixed TFTP DATA payload size per RFC 1350.
	TFTPBlockSize = 512

	// TFTPTimeoutTicks is the per-transaction retransmit timeout for the
	// TFTP server.
	TFTPTimeoutTicks = 3000
)

// FS buffer pool constants.
const (
	// FSBufferChunkSize is the fixed payload capacity of one FS buffer
	// chunk.
	FSBufferChunkSize = 128

	// DefaultThresholdBuffers reserves this many free chunks so the TX
	// path (acks, responses) can never be starved by RX traffic filling
	// the pool.
	DefaultThresholdBuffers = 4

	// DefaultThresholdLists reserves this many free list descriptors for
	// the same reason.
	DefaultThresholdLists = 2
)

// Simulated device constants, carried from the original source's display
// drivers (rtos/io/lcd/lcd_an.c, rtos/io/oled/oled_ssd1306.c).
const (
	// LCDTabSize is the default column stop spacing for a '\t' in the
	// console, matching LCD_AN_TAB_SIZE.
	LCDTabSize = 4

	// OLEDI2CChunkSize is the number of display-buffer bytes sent per I2C
	// message, matching OLED_I2C_CHUNK_SIZE; a real I2C controller's DMA
	// buffer bounds this in the original, and the simulated backend keeps
	// the same chunking so a caller inspecting the I2C message log sees
	// the same transfer shape.
	OLEDI2CChunkSize = 16
)
