package netloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/rtos-core/internal/cond"
	"github.com/ehrlich-b/rtos-core/internal/constants"
	"github.com/ehrlich-b/rtos-core/internal/sched"
	"github.com/ehrlich-b/rtos-core/internal/sleep"
)

func TestLoopDispatchesHighestPriorityRegistration(t *testing.T) {
	sc := sched.New(nil)
	wheel := sleep.NewWheel(nil)

	c1 := &cond.Condition{}
	c2 := &cond.Condition{}

	fired := make(chan string, 2)
	regs := []*Registration{
		{Condition: c1, Priority: 10, Callback: func(constants.Status, any) { fired <- "c1" }},
		{Condition: c2, Priority: 1, Callback: func(constants.Status, any) { fired <- "c2" }},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := New(sc, wheel, regs, nil)
	loop.Start(ctx, 5)
	sc.Start()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cond.ResumeCondition(sc, c2, &cond.Resume{Status: constants.StatusSuccess}, false))

	select {
	case name := <-fired:
		require.Equal(t, "c2", name)
	case <-time.After(time.Second):
		t.Fatal("registration never fired")
	}
}
