package rtos

import (
	"testing"
	"time"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	if snap.SuspendOps != 0 {
		t.Errorf("Expected 0 initial suspend ops, got %d", snap.SuspendOps)
	}

	m.RecordSuspend(1_000_000, false) // resumed after 1ms
	m.RecordSuspend(2_000_000, true)  // timed out after 2ms
	m.RecordResume()
	m.RecordPing()

	snap = m.Snapshot()

	if snap.SuspendOps != 2 {
		t.Errorf("Expected 2 suspend ops, got %d", snap.SuspendOps)
	}
	if snap.TimeoutOps != 1 {
		t.Errorf("Expected 1 timeout op, got %d", snap.TimeoutOps)
	}
	if snap.ResumeOps != 1 {
		t.Errorf("Expected 1 resume op, got %d", snap.ResumeOps)
	}
	if snap.PingOps != 1 {
		t.Errorf("Expected 1 ping op, got %d", snap.PingOps)
	}

	expectedTimeoutRate := 50.0
	if snap.TimeoutRate < expectedTimeoutRate-0.1 || snap.TimeoutRate > expectedTimeoutRate+0.1 {
		t.Errorf("Expected timeout rate ~%.1f%%, got %.1f%%", expectedTimeoutRate, snap.TimeoutRate)
	}
}

func TestMetricsReadyDepth(t *testing.T) {
	m := NewMetrics()

	m.RecordReadyDepth(10)
	m.RecordReadyDepth(20)
	m.RecordReadyDepth(15)

	snap := m.Snapshot()

	if snap.MaxReadyDepth != 20 {
		t.Errorf("Expected max ready depth 20, got %d", snap.MaxReadyDepth)
	}

	expectedAvg := float64(10+20+15) / 3.0
	if snap.AvgReadyDepth < expectedAvg-0.1 || snap.AvgReadyDepth > expectedAvg+0.1 {
		t.Errorf("Expected avg ready depth %.1f, got %.1f", expectedAvg, snap.AvgReadyDepth)
	}
}

func TestMetricsLatency(t *testing.T) {
	m := NewMetrics()

	m.RecordSuspend(1_000_000, false)
	m.RecordSuspend(2_000_000, false)

	snap := m.Snapshot()

	expectedAvgNs := uint64(1_500_000)
	if snap.AvgLatencyNs != expectedAvgNs {
		t.Errorf("Expected avg latency %d ns, got %d ns", expectedAvgNs, snap.AvgLatencyNs)
	}
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()

	time.Sleep(10 * time.Millisecond)

	snap := m.Snapshot()
	if snap.UptimeNs < 10*1000000 {
		t.Errorf("Expected uptime >= 10ms, got %d ns", snap.UptimeNs)
	}

	m.Stop()
	time.Sleep(5 * time.Millisecond)

	snap2 := m.Snapshot()
	if snap2.UptimeNs > snap.UptimeNs+2*1000000 {
		t.Errorf("Uptime increased too much after stop: %d -> %d", snap.UptimeNs, snap2.UptimeNs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()

	m.RecordSuspend(1_000_000, false)
	m.RecordResume()
	m.RecordReadyDepth(10)

	snap := m.Snapshot()
	if snap.SuspendOps == 0 {
		t.Error("Expected some operations before reset")
	}

	m.Reset()

	snap = m.Snapshot()
	if snap.SuspendOps != 0 {
		t.Errorf("Expected 0 suspend ops after reset, got %d", snap.SuspendOps)
	}
	if snap.MaxReadyDepth != 0 {
		t.Errorf("Expected 0 max ready depth after reset, got %d", snap.MaxReadyDepth)
	}
}

func TestObserver(t *testing.T) {
	observer := &NoOpObserver{}
	observer.ObserveSuspend(1_000_000, false)
	observer.ObserveResume()
	observer.ObserveAlloc(true)
	observer.ObserveFree(false)
	observer.ObserveReadyDepth(10)

	m := NewMetrics()
	metricsObserver := NewMetricsObserver(m)

	metricsObserver.ObserveSuspend(1_000_000, false)
	metricsObserver.ObserveResume()
	metricsObserver.ObserveAlloc(true)
	metricsObserver.ObserveFree(true)

	snap := m.Snapshot()
	if snap.SuspendOps != 1 {
		t.Errorf("Expected 1 suspend op from observer, got %d", snap.SuspendOps)
	}
	if snap.ResumeOps != 1 {
		t.Errorf("Expected 1 resume op from observer, got %d", snap.ResumeOps)
	}
	if snap.AllocOps != 1 {
		t.Errorf("Expected 1 alloc op from observer, got %d", snap.AllocOps)
	}
	if snap.CoalesceOps != 1 {
		t.Errorf("Expected 1 coalesce op from observer, got %d", snap.CoalesceOps)
	}
}

func TestMetricsChunksInFlight(t *testing.T) {
	m := NewMetrics()

	for i := 0; i < 5; i++ {
		m.RecordChunkAlloc()
	}
	for i := 0; i < 2; i++ {
		m.RecordChunkFree()
	}

	snap := m.Snapshot()
	if snap.ChunksInFlight != 3 {
		t.Errorf("Expected 3 chunks in flight, got %d", snap.ChunksInFlight)
	}
}

func TestMetricsHistogram(t *testing.T) {
	m := NewMetrics()

	for i := 0; i < 50; i++ {
		m.RecordSuspend(500_000, false) // 500us
	}
	for i := 0; i < 49; i++ {
		m.RecordSuspend(5_000_000, false) // 5ms
	}
	m.RecordSuspend(50_000_000, true) // 50ms, P99, and this one timed out

	snap := m.Snapshot()

	if snap.SuspendOps != 100 {
		t.Errorf("Expected 100 total suspend ops, got %d", snap.SuspendOps)
	}
	if snap.TimeoutOps != 1 {
		t.Errorf("Expected 1 timeout op, got %d", snap.TimeoutOps)
	}

	if snap.LatencyP50Ns < 100_000 || snap.LatencyP50Ns > 1_000_000 {
		t.Errorf("Expected P50 in 100us-1ms range, got %d ns", snap.LatencyP50Ns)
	}
	if snap.LatencyP99Ns < 5_000_000 || snap.LatencyP99Ns > 100_000_000 {
		t.Errorf("Expected P99 in 5ms-100ms range, got %d ns", snap.LatencyP99Ns)
	}

	totalInBuckets := uint64(0)
	for i := 0; i < len(snap.LatencyHistogram); i++ {
		totalInBuckets += snap.LatencyHistogram[i]
	}
	if totalInBuckets == 0 {
		t.Error("Expected histogram buckets to be populated")
	}
}
