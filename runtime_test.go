package mcast

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt, err := Start(WithWorkerCount(2))
	require.NoError(t, err)
	t.Cleanup(func() {
		rt.Stop()
		rt.WaitStop()
	})
	return rt
}

func TestStartStop(t *testing.T) {
	rt, err := Start()
	require.NoError(t, err)
	rt.Stop()
	rt.WaitStop()
	// Second Stop/WaitStop must be safe (idempotent via sync.Once).
	rt.Stop()
	rt.WaitStop()
}

func TestLaunchMessageService_EchoesPayload(t *testing.T) {
	rt := startTestRuntime(t)

	var received any
	done := make(chan struct{})
	handle, err := rt.LaunchMessageService("echo", StackSmall, func(_ *Context, msg *Message) Status {
		received = msg.Payload
		close(done)
		return StatusOK
	})
	require.NoError(t, err)

	status := rt.SendStringMessage(handle, "hello", nil)
	require.True(t, status.Ok())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("message handler never ran")
	}
	assert.Equal(t, "hello", received)
}

func TestLaunchMethodService_CallMethodFromExternalCaller(t *testing.T) {
	rt := startTestRuntime(t)

	handle, err := rt.LaunchMethodService("double", StackSmall, func(_ *Context, method string, args any) (any, Status) {
		if method != "double" {
			return nil, NewStatus(InvalidArgument, "unknown method")
		}
		n, _ := args.(int)
		return n * 2, StatusOK
	})
	require.NoError(t, err)

	result, status := rt.CallMethod(nil, handle, "double", 21)
	require.True(t, status.Ok())
	assert.Equal(t, 42, result)
}

func TestLaunchMethodService_CallMethodFromServiceCaller(t *testing.T) {
	rt := startTestRuntime(t)

	callee, err := rt.LaunchMethodService("upper", StackSmall, func(_ *Context, _ string, args any) (any, Status) {
		s, _ := args.(string)
		return s + "!", StatusOK
	})
	require.NoError(t, err)

	var result any
	var status Status
	done := make(chan struct{})
	_, err = rt.LaunchService("caller", StackSmall, func(ctx *Context) Status {
		defer close(done)
		result, status = rt.CallMethod(ctx, callee, "shout", "hi")
		return StatusOK
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("caller service never completed")
	}
	require.True(t, status.Ok())
	assert.Equal(t, "hi!", result)
}

func TestSleep_ReturnsOKAfterTimeout(t *testing.T) {
	rt := startTestRuntime(t)

	var status Status
	done := make(chan struct{})
	_, err := rt.LaunchService("sleeper", StackSmall, func(ctx *Context) Status {
		defer close(done)
		status = rt.Sleep(ctx, 20)
		return StatusOK
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sleeper never woke")
	}
	assert.True(t, status.Ok())
}

func TestSleep_InterruptedByStop(t *testing.T) {
	rt, err := Start(WithWorkerCount(2))
	require.NoError(t, err)

	var status Status
	done := make(chan struct{})
	handle, err := rt.LaunchService("sleeper", StackSmall, func(ctx *Context) Status {
		defer close(done)
		status = rt.Sleep(ctx, 10000)
		return status
	})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond) // let the sleeper actually start waiting
	rt.StopService(handle)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sleeper never interrupted")
	}
	assert.Equal(t, Interrupt, status.Kind)

	rt.Stop()
	rt.WaitStop()
}

func TestSignal_WakesWaitSignal(t *testing.T) {
	rt := startTestRuntime(t)

	var status Status
	started := make(chan struct{})
	done := make(chan struct{})
	handle, err := rt.LaunchService("waiter", StackSmall, func(ctx *Context) Status {
		close(started)
		status = rt.WaitSignal(ctx)
		close(done)
		return StatusOK
	})
	require.NoError(t, err)

	<-started
	time.Sleep(10 * time.Millisecond) // give the waiter a chance to reach WaitSignal
	rt.Signal(handle)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter never woke")
	}
	assert.True(t, status.Ok())
}

func TestAddTimer_FiresAfterTimeout(t *testing.T) {
	rt := startTestRuntime(t)

	var mu sync.Mutex
	fired := false
	timer := rt.AddTimer(20, func() {
		mu.Lock()
		fired = true
		mu.Unlock()
	})
	require.NotNil(t, timer)

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	got := fired
	mu.Unlock()
	assert.True(t, got)
}

func TestAddTimer_CancelPreventsFire(t *testing.T) {
	rt := startTestRuntime(t)

	var mu sync.Mutex
	fired := false
	timer := rt.AddTimer(50, func() {
		mu.Lock()
		fired = true
		mu.Unlock()
	})
	require.NotNil(t, timer)
	rt.RemoveTimer(timer)

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	got := fired
	mu.Unlock()
	assert.False(t, got)
}

func TestWakeupIfWaitTimeout_InterruptsOverdueSleep(t *testing.T) {
	rt, err := Start(WithWorkerCount(2), WithWatchdogFloor(10*time.Millisecond))
	require.NoError(t, err)
	defer func() {
		rt.Stop()
		rt.WaitStop()
	}()

	var status Status
	done := make(chan struct{})
	handle, err := rt.LaunchService("oversleeper", StackSmall, func(ctx *Context) Status {
		rt.WakeupIfWaitTimeout(ctx.Handle(), 10)
		status = rt.Sleep(ctx, 5000)
		close(done)
		return status
	})
	require.NoError(t, err)
	_ = handle

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog never interrupted the oversleeping service")
	}
	assert.Equal(t, Interrupt, status.Kind)
}

func TestStopService_RunningUserThreadObservesStopping(t *testing.T) {
	rt := startTestRuntime(t)

	started := make(chan struct{})
	done := make(chan struct{})
	handle, err := rt.LaunchService("looper", StackSmall, func(ctx *Context) Status {
		close(started)
		for !ctx.IsStopping() {
			if status := rt.WaitSignal(ctx); status.Kind == Interrupt && ctx.IsStopping() {
				break
			}
		}
		close(done)
		return StatusOK
	})
	require.NoError(t, err)

	<-started
	time.Sleep(10 * time.Millisecond)
	rt.StopService(handle)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("looper never observed stop")
	}
}

func TestSendMessage_UnknownDestinationIsNotFound(t *testing.T) {
	rt := startTestRuntime(t)
	status := rt.SendStringMessage(ServiceHandle(999999), "x", nil)
	assert.Equal(t, NotFound, status.Kind)
}

// TestManyServicesTerminateWithoutLeakingWorkers is a regression test for a
// worker leak: a terminating service used to never hand control back to its
// dispatching worker, so that worker would block forever on <-yielded and
// Stop's workerWG.Wait() would never return. A single worker forces every
// launch to be dispatched and reclaimed serially.
func TestManyServicesTerminateWithoutLeakingWorkers(t *testing.T) {
	rt, err := Start(WithWorkerCount(1))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		_, err := rt.LaunchService("ephemeral", StackVerySmall, func(ctx *Context) Status {
			defer wg.Done()
			return StatusOK
		})
		require.NoError(t, err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ephemeral services never all completed; worker likely starved out")
	}

	stopped := make(chan struct{})
	go func() {
		rt.Stop()
		rt.WaitStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop never returned; a worker is stuck on <-yielded after a service terminated")
	}
}

// TestWakeupRaceDuringPark_NotLost is a regression test for a lost-wakeup
// bug: wakeupLocked sets wakeup_signal and returns without enqueueing while
// a service is mid-park (is_swapping_out), and nothing ever swept that
// signal back into the ready queue. Launch many services that immediately
// wait on Signal, fire Signal at each concurrently with its own park, and
// require every one to wake; a lost wakeup hangs this test out.
func TestWakeupRaceDuringPark_NotLost(t *testing.T) {
	rt := startTestRuntime(t)

	const n = 100
	var wg sync.WaitGroup
	handles := make([]ServiceHandle, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		h, err := rt.LaunchService("racer", StackVerySmall, func(ctx *Context) Status {
			defer wg.Done()
			return rt.WaitSignal(ctx)
		})
		require.NoError(t, err)
		handles[i] = h
	}

	var send sync.WaitGroup
	for _, h := range handles {
		send.Add(1)
		go func(h ServiceHandle) {
			defer send.Done()
			rt.Signal(h)
		}(h)
	}
	send.Wait()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("at least one service never woke; a Signal raced a park and was lost")
	}
}
