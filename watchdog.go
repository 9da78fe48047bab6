package mcast

import (
	"time"

	catrate "github.com/joeycumines/go-catrate"

	"github.com/kosmolabs/mcast/wheel"
)

// Watchdog method names, used internally between Runtime and the Watchdog
// service's MethodDispatcher.
const (
	watchdogMethodRegister = "register"
	watchdogMethodUpdate   = "update"
)

// watchdogRegisterArgs is the (handle, max_blocked_ms) entry from spec
// section 4.5, carried as a method-call argument.
type watchdogRegisterArgs struct {
	handle ServiceHandle
	maxMs  int
}

// watchdogState is the Watchdog's private bookkeeping, grounded on
// original_source/WakeupService.h's conn_srvs_ list and interval_ms_
// field. Accessed only from the Watchdog's own MethodCall dispatcher, so
// (per spec's "MethodDriven" trampoline processing one message at a time)
// it needs no lock of its own.
type watchdogState struct {
	rt       *Runtime
	self     ServiceHandle
	interval time.Duration
	floor    time.Duration

	entries []watchdogRegisterArgs
	timer   TimerHandle

	// limiter rate-limits the "interrupted a blocked service" log line per
	// target service, so a pathological service that is perpetually
	// overdue cannot flood the log every watchdog tick (SPEC_FULL.md
	// section 4.5 [ADD]; the teacher's domain has no direct equivalent, so
	// this is grounded on go-catrate's own NewLimiter/Allow documentation).
	limiter *catrate.Limiter
}

// launchWatchdog starts the built-in Watchdog MethodCall service (spec
// section 6: "Start ... then launches the Watchdog").
func (rt *Runtime) launchWatchdog() (ServiceHandle, error) {
	w := &watchdogState{
		rt:       rt,
		interval: rt.opts.watchdogInterval,
		floor:    rt.opts.watchdogFloor,
		limiter:  catrate.NewLimiter(map[time.Duration]int{10 * time.Second: 5}),
	}

	h, err := rt.LaunchMethodService("watchdog", StackSmall, w.dispatch)
	if err != nil {
		return NullHandle, err
	}
	w.self = h
	return h, nil
}

// dispatch is the Watchdog's MethodDispatcher (spec section 3
// "MethodCall").
func (w *watchdogState) dispatch(ctx *Context, method string, args any) (any, Status) {
	switch method {
	case watchdogMethodRegister:
		reg, _ := args.(watchdogRegisterArgs)
		w.addService(reg.handle, reg.maxMs)
		return nil, StatusOK
	case watchdogMethodUpdate:
		w.update()
		return nil, StatusOK
	default:
		return nil, NewStatus(InvalidArgument, "unknown watchdog method: "+method)
	}
}

// addService records a deadline entry, shrinking the scan interval to the
// tightest deadline seen so far (original_source/WakeupService.cpp's
// AddService: "if (max_sleep_time_ms < interval_ms_) interval_ms_ = ...").
func (w *watchdogState) addService(handle ServiceHandle, maxMs int) {
	floorMs := int(w.floor / time.Millisecond)
	if maxMs < floorMs {
		maxMs = floorMs
	}

	w.entries = append(w.entries, watchdogRegisterArgs{handle: handle, maxMs: maxMs})

	d := time.Duration(maxMs) * time.Millisecond
	if d < w.interval {
		w.interval = d
	}
	if w.timer == nil {
		w.armTimer()
	}
}

// armTimer schedules the next self-call to Update (original_source/
// WakeupService.cpp's AddTimer).
func (w *watchdogState) armTimer() {
	interval := w.interval
	if interval < w.floor {
		interval = w.floor
	}
	self := w.self
	rt := w.rt
	w.timer = rt.AddTimer(int(interval/time.Millisecond), func() {
		rt.AsyncCallMethod(self, watchdogMethodUpdate, nil, nil)
	})
}

// update walks the deadline list, interrupting anything overdue
// (original_source/WakeupService.cpp's Update).
func (w *watchdogState) update() {
	kept := w.entries[:0]
	for _, e := range w.entries {
		svc, ok := w.rt.handles.Lookup(e.handle)
		if !ok {
			continue
		}

		svc.ctx.mu.Lock()
		blocked := svc.ctx.status.Load() == StatusBlocked
		var blockedMs uint64
		if blocked {
			blockedMs = (w.rt.wheelNow() - svc.ctx.blockedTime) * wheel.Period
		}
		svc.ctx.mu.Unlock()

		if !blocked || blockedMs <= uint64(e.maxMs) {
			kept = append(kept, e)
			continue
		}

		if _, allow := w.limiter.Allow(e.handle); allow {
			w.rt.logger().Warn().Int("handle", int(e.handle)).Str("service", svc.Name).
				Log("watchdog interrupting service blocked past its deadline")
		}
		w.rt.InterruptService(e.handle)
	}
	w.entries = kept

	if len(w.entries) > 0 {
		w.armTimer()
	} else {
		w.timer = nil
	}
}
