package rtos

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ehrlich-b/rtos-core/internal/palloc"
	"github.com/ehrlich-b/rtos-core/internal/sched"
)

func TestBootDefaultParams(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	k, err := Boot(ctx, DefaultParams())
	if err != nil {
		t.Fatalf("Boot failed: %v", err)
	}
	if k.Arena != nil {
		t.Error("expected nil Arena when ArenaSize is 0")
	}
	if k.IsRunning() {
		t.Error("expected kernel not running before Start")
	}

	if err := Shutdown(k); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestKernelAllocFreeRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	params := DefaultParams()
	params.ArenaSize = 4096
	params.PageSpecs = []palloc.PageSpec{{MaxAllocSize: 0, PageSize: 0, Sort: palloc.Ascending}}

	k, err := Boot(ctx, params)
	if err != nil {
		t.Fatalf("Boot failed: %v", err)
	}
	defer Shutdown(k)

	blk, err := k.Alloc(64)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if len(blk.Data) != 64 {
		t.Errorf("expected 64-byte block, got %d", len(blk.Data))
	}
	if err := k.Free(blk); err != nil {
		t.Errorf("Free failed: %v", err)
	}

	snap := k.MetricsSnapshot()
	if snap.AllocOps != 1 {
		t.Errorf("expected 1 alloc op recorded, got %d", snap.AllocOps)
	}
}

func TestKernelAllocWithoutArena(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	k, err := Boot(ctx, DefaultParams())
	if err != nil {
		t.Fatalf("Boot failed: %v", err)
	}
	defer Shutdown(k)

	if _, err := k.Alloc(16); err == nil {
		t.Error("expected Alloc to fail on a kernel with no arena")
	}
}

func TestKernelScheduledTasksRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	k, err := Boot(ctx, DefaultParams())
	if err != nil {
		t.Fatalf("Boot failed: %v", err)
	}
	defer Shutdown(k)

	var mu sync.Mutex
	order := make([]string, 0, 2)

	low := k.NewTask("low", 20, func(t *sched.Task) {
		mu.Lock()
		order = append(order, "low")
		mu.Unlock()
	})
	high := k.NewTask("high", 5, func(t *sched.Task) {
		mu.Lock()
		order = append(order, "high")
		mu.Unlock()
	})

	k.AddTask(low, 20)
	k.AddTask(high, 5)
	k.Start()

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("tasks did not both run within the deadline")
		case <-time.After(time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if order[0] != "high" {
		t.Errorf("expected higher-priority task to run first, got order %v", order)
	}
}

func TestKernelNow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	params := DefaultParams()
	params.TickInterval = time.Millisecond
	k, err := Boot(ctx, params)
	if err != nil {
		t.Fatalf("Boot failed: %v", err)
	}
	defer Shutdown(k)

	start := k.Now()
	time.Sleep(20 * time.Millisecond)
	if k.Now() <= start {
		t.Error("expected Now() to advance after ticks elapse")
	}
}
