package rtos

import "github.com/ehrlich-b/rtos-core/internal/constants"

// Re-export tuning constants for the public API.
const (
	DefaultTaskPriority     = constants.DefaultTaskPriority
	IdleTaskPriority        = constants.IdleTaskPriority
	NetworkWorkerPriority   = constants.NetworkWorkerPriority
	AllocAlignment          = constants.AllocAlignment
	MinViableFree           = constants.MinViableFree
	BoundaryGuardBytes      = constants.BoundaryGuardBytes
	ARPRetryLimit           = constants.ARPRetryLimit
	ARPTimeoutBaseTicks     = constants.ARPTimeoutBaseTicks
	DHCPInitialTimeoutTicks = constants.DHCPInitialTimeoutTicks
	DHCPMaxTimeoutTicks     = constants.DHCPMaxTimeoutTicks
	TFTPBlockSize           = constants.TFTPBlockSize
	FSBufferChunkSize       = constants.FSBufferChunkSize
	DefaultThresholdBuffers = constants.DefaultThresholdBuffers
	DefaultThresholdLists   = constants.DefaultThresholdLists
)
