package rtos

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the suspend-to-resume latency histogram buckets
// in nanoseconds, logarithmically spaced from 1us to 10s — unchanged from
// the teacher's I/O-latency buckets, since the shape of "how long did a
// caller wait" is identical whether the wait ends in a block completion
// or a condition resume.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks scheduler, condition, allocator, and buffer-pool activity
// for one Kernel. Grounded on the teacher's root Metrics: the I/O operation
// counters (ReadOps/WriteOps/...) become suspend/resume/timeout counters,
// the queue-depth gauge becomes the ready-queue-length gauge, and the
// latency histogram/percentile machinery is kept verbatim, now measuring
// suspend-to-resume latency instead of I/O completion latency.
type Metrics struct {
	// Condition/suspend counters.
	SuspendOps  atomic.Uint64
	ResumeOps   atomic.Uint64
	TimeoutOps  atomic.Uint64
	PingOps     atomic.Uint64

	// Scheduler counters.
	TaskSwitches atomic.Uint64
	TaskYields   atomic.Uint64

	// Allocator counters.
	AllocOps       atomic.Uint64
	FreeOps        atomic.Uint64
	AllocFailures  atomic.Uint64
	CoalesceOps    atomic.Uint64

	// Buffer-pool counters.
	ChunksAllocated atomic.Uint64
	ChunksFreed     atomic.Uint64
	ThresholdRefusals atomic.Uint64

	// Ready-queue depth.
	ReadyDepthTotal atomic.Uint64
	ReadyDepthCount atomic.Uint64
	MaxReadyDepth   atomic.Uint32

	// Suspend-to-resume latency.
	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordSuspend records one SuspendCondition call and the latency until it
// returned (whether by resume, ping, or timeout).
func (m *Metrics) RecordSuspend(latencyNs uint64, timedOut bool) {
	m.SuspendOps.Add(1)
	if timedOut {
		m.TimeoutOps.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordResume records one ResumeCondition call.
func (m *Metrics) RecordResume() {
	m.ResumeOps.Add(1)
}

// RecordPing records one ping-flag set.
func (m *Metrics) RecordPing() {
	m.PingOps.Add(1)
}

// RecordTaskSwitch records one scheduler context switch (yield or
// resume-driven dispatch that actually changed the current task).
func (m *Metrics) RecordTaskSwitch() {
	m.TaskSwitches.Add(1)
}

// RecordTaskYield records every call to TaskYield, whether or not it
// actually switched.
func (m *Metrics) RecordTaskYield() {
	m.TaskYields.Add(1)
}

// RecordAlloc records one palloc.Region.Alloc call.
func (m *Metrics) RecordAlloc(success bool) {
	m.AllocOps.Add(1)
	if !success {
		m.AllocFailures.Add(1)
	}
}

// RecordFree records one palloc.Region.Free call; coalesced reports
// whether the free triggered a forward or backward coalesce.
func (m *Metrics) RecordFree(coalesced bool) {
	m.FreeOps.Add(1)
	if coalesced {
		m.CoalesceOps.Add(1)
	}
}

// RecordChunkAlloc/RecordChunkFree track fsbuf pool chunk lifecycle;
// their running difference is the steady-state chunks-in-flight count
// testable property 7 of the spec depends on.
func (m *Metrics) RecordChunkAlloc() { m.ChunksAllocated.Add(1) }
func (m *Metrics) RecordChunkFree()  { m.ChunksFreed.Add(1) }

// RecordThresholdRefusal records one push/pull refused because the pool's
// reserve threshold would be breached.
func (m *Metrics) RecordThresholdRefusal() {
	m.ThresholdRefusals.Add(1)
}

// RecordReadyDepth records a sample of the scheduler's ready-queue length.
func (m *Metrics) RecordReadyDepth(depth uint32) {
	m.ReadyDepthTotal.Add(uint64(depth))
	m.ReadyDepthCount.Add(1)
	for {
		current := m.MaxReadyDepth.Load()
		if depth <= current {
			break
		}
		if m.MaxReadyDepth.CompareAndSwap(current, depth) {
			break
		}
	}
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the kernel run as stopped, fixing Snapshot's uptime window.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time, non-atomic copy of Metrics for
// reporting (logging, a status FD's Ioctl, a test assertion).
type MetricsSnapshot struct {
	SuspendOps        uint64
	ResumeOps         uint64
	TimeoutOps        uint64
	PingOps           uint64
	TaskSwitches      uint64
	TaskYields        uint64
	AllocOps          uint64
	FreeOps           uint64
	AllocFailures     uint64
	CoalesceOps       uint64
	ChunksAllocated   uint64
	ChunksFreed       uint64
	ChunksInFlight    int64
	ThresholdRefusals uint64

	AvgReadyDepth float64
	MaxReadyDepth uint32

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	SuspendsPerSec float64
	TimeoutRate    float64
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		SuspendOps:        m.SuspendOps.Load(),
		ResumeOps:         m.ResumeOps.Load(),
		TimeoutOps:        m.TimeoutOps.Load(),
		PingOps:           m.PingOps.Load(),
		TaskSwitches:      m.TaskSwitches.Load(),
		TaskYields:        m.TaskYields.Load(),
		AllocOps:          m.AllocOps.Load(),
		FreeOps:           m.FreeOps.Load(),
		AllocFailures:     m.AllocFailures.Load(),
		CoalesceOps:       m.CoalesceOps.Load(),
		ChunksAllocated:   m.ChunksAllocated.Load(),
		ChunksFreed:       m.ChunksFreed.Load(),
		ThresholdRefusals: m.ThresholdRefusals.Load(),
		MaxReadyDepth:     m.MaxReadyDepth.Load(),
	}
	snap.ChunksInFlight = int64(snap.ChunksAllocated) - int64(snap.ChunksFreed)

	depthTotal := m.ReadyDepthTotal.Load()
	depthCount := m.ReadyDepthCount.Load()
	if depthCount > 0 {
		snap.AvgReadyDepth = float64(depthTotal) / float64(depthCount)
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.SuspendsPerSec = float64(snap.SuspendOps) / uptimeSeconds
	}
	if snap.SuspendOps > 0 {
		snap.TimeoutRate = float64(snap.TimeoutOps) / float64(snap.SuspendOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile
// (0.0-1.0) using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all metrics counters; useful for testing.
func (m *Metrics) Reset() {
	m.SuspendOps.Store(0)
	m.ResumeOps.Store(0)
	m.TimeoutOps.Store(0)
	m.PingOps.Store(0)
	m.TaskSwitches.Store(0)
	m.TaskYields.Store(0)
	m.AllocOps.Store(0)
	m.FreeOps.Store(0)
	m.AllocFailures.Store(0)
	m.CoalesceOps.Store(0)
	m.ChunksAllocated.Store(0)
	m.ChunksFreed.Store(0)
	m.ThresholdRefusals.Store(0)
	m.ReadyDepthTotal.Store(0)
	m.ReadyDepthCount.Store(0)
	m.MaxReadyDepth.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection; Kernel calls it the same
// way the teacher's queue runner calls its I/O Observer, just against
// kernel-domain events instead of block I/O events.
type Observer interface {
	ObserveSuspend(latencyNs uint64, timedOut bool)
	ObserveResume()
	ObserveAlloc(success bool)
	ObserveFree(coalesced bool)
	ObserveReadyDepth(depth uint32)
}

// NoOpObserver is a no-op implementation of Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveSuspend(uint64, bool) {}
func (NoOpObserver) ObserveResume()              {}
func (NoOpObserver) ObserveAlloc(bool)           {}
func (NoOpObserver) ObserveFree(bool)            {}
func (NoOpObserver) ObserveReadyDepth(uint32)    {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records into the given Metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveSuspend(latencyNs uint64, timedOut bool) {
	o.metrics.RecordSuspend(latencyNs, timedOut)
}
func (o *MetricsObserver) ObserveResume()           { o.metrics.RecordResume() }
func (o *MetricsObserver) ObserveAlloc(success bool) { o.metrics.RecordAlloc(success) }
func (o *MetricsObserver) ObserveFree(coalesced bool) { o.metrics.RecordFree(coalesced) }
func (o *MetricsObserver) ObserveReadyDepth(depth uint32) { o.metrics.RecordReadyDepth(depth) }

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
