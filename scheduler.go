package mcast

import "sync"

// readyQueue is the single process-wide FIFO described in spec section 4.4,
// protected by a mutex with a condition variable for blocking pops. Grounded
// on original_source/System.cpp's run_queue_ (a ThreadSafeQueue<ServicePtr>)
// and the teacher's condition-guarded slice queues (ingress.go).
type readyQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []ServiceHandle
	stopping bool
}

func newReadyQueue() *readyQueue {
	q := &readyQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends a handle and wakes one blocked popper.
func (q *readyQueue) push(h ServiceHandle) {
	q.mu.Lock()
	q.items = append(q.items, h)
	q.mu.Unlock()
	q.cond.Signal()
}

// pop blocks until a handle is available or the queue is draining with
// nothing left (the "Idle trampoline exits when stopping and no services
// remain ready" case from spec section 4.4).
func (q *readyQueue) pop() (ServiceHandle, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		if q.stopping {
			return NullHandle, false
		}
		q.cond.Wait()
	}
	h := q.items[0]
	q.items = q.items[1:]
	return h, true
}

// drain signals shutdown: every blocked popper returns (NullHandle, false)
// once the queue is empty.
func (q *readyQueue) drain() {
	q.mu.Lock()
	q.stopping = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// waitLocked implements spec section 4.4's Wait_Locked primitive. Must be
// called with svc.ctx.mu held; returns with the lock released.
//
//  1. If stopping is set and Stop is in the requested mask, return Stop
//     immediately without switching.
//  2. If any requested bit is already set in events, clear those bits and
//     return them (fast path, no switch).
//  3. Else: mark Blocked, record the wait mask, release the lock, hand
//     control back to the dispatching worker, park until re-dispatched,
//     re-acquire the lock, and re-check from the top.
func (rt *Runtime) waitLocked(svc *Service, requested Event) Event {
	ctx := svc.ctx
	for {
		if ctx.stopping.Load() && requested.has(EventStop) {
			ctx.mu.Unlock()
			return EventStop
		}
		if ctx.events.intersects(requested) {
			got := ctx.events & requested
			ctx.events &^= got
			ctx.mu.Unlock()
			return got
		}

		ctx.status.Store(StatusBlocked)
		ctx.waitEvents = requested
		ctx.isSwappingOut = true
		ctx.blockedTime = rt.wheelNow()
		ctx.mu.Unlock()

		// Hand control back to whichever worker dispatched this turn, then
		// park until a future worker re-dispatches us (SPEC_FULL.md
		// section 4.4 [ADD]: the goroutine-ticket re-expression of
		// SwitchTo/jump_fcontext).
		ctx.yielded <- struct{}{}
		<-ctx.resume

		ctx.mu.Lock()
		rt.onResume(svc)
	}
}

// awaitFirstDispatch blocks a freshly-spawned service goroutine until a
// worker dispatches it for the first time, then performs the same
// onResume bookkeeping waitLocked performs on every subsequent wake. Used
// by LaunchService; see SPEC_FULL.md section 4.3 ("Launch").
func (rt *Runtime) awaitFirstDispatch(svc *Service) {
	<-svc.ctx.resume
	svc.ctx.mu.Lock()
	rt.onResume(svc)
	svc.ctx.events &^= EventStart
	svc.ctx.mu.Unlock()
}

// onResume mirrors spec section 4.4's OnResume(new_current, prev) for the
// "new_current" half: clear is_swapping_out/wait_events/wakeup_signal,
// mark Running, stamp wakeup_time (last_thread is recorded by runWorker
// before dispatch). Must be called with svc.ctx.mu held.
func (rt *Runtime) onResume(svc *Service) {
	ctx := svc.ctx
	ctx.isSwappingOut = false
	ctx.waitEvents = 0
	ctx.wakeupSignal = false
	ctx.status.Store(StatusRunning)
	ctx.wakeupTime = rt.wheelNow()
}

// wakeupLocked implements spec section 4.4's Wakeup_Locked primitive. Must
// be called with svc.ctx.mu held; it does not release the lock — callers
// release it themselves once done inspecting/mutating other fields.
//
//  1. Unconditionally OR the new event bits into events.
//  2. If none of the new bits intersect wait_events, return false (pending
//     but not interesting right now).
//  3. Set wakeup_signal. If is_swapping_out, return true (sweepParked will
//     enqueue once the switch finishes). Otherwise, if currently Blocked,
//     transition to Ready and push to the ready queue.
func (rt *Runtime) wakeupLocked(svc *Service, bits Event) bool {
	ctx := svc.ctx
	ctx.events |= bits
	if !ctx.events.intersects(ctx.waitEvents) {
		return false
	}
	ctx.wakeupSignal = true
	if ctx.isSwappingOut {
		return true
	}
	if ctx.status.Load() == StatusBlocked {
		ctx.status.Store(StatusReady)
		ctx.inReady = true
		rt.ready.push(svc.Handle)
	}
	return true
}

// runWorker is a worker thread's top-level loop (spec section 4.4 "Idle
// service"): pop a ready service, dispatch it, wait for it to suspend or
// die, repeat. Exits once the runtime is stopping and no services remain
// ready, mirroring the Idle service's exit condition.
func (rt *Runtime) runWorker(id int) {
	defer rt.workerWG.Done()
	for {
		h, ok := rt.ready.pop()
		if !ok {
			return
		}
		svc, found := rt.handles.Lookup(h)
		if !found {
			continue
		}

		svc.ctx.mu.Lock()
		svc.ctx.inReady = false
		svc.ctx.lastThread = int32(id)
		svc.ctx.mu.Unlock()

		svc.ctx.resume <- struct{}{}
		<-svc.ctx.yielded
		rt.sweepParked(svc)
	}
}

// sweepParked implements the "prev" half of spec section 4.4's
// SwitchTo/OnResume pair: once a service has handed control back (parked in
// waitLocked or terminated in finishService), a wakeup may have arrived
// while it was mid-transition — wakeupLocked saw is_swapping_out set and
// left wakeup_signal true instead of enqueueing, deferring the enqueue to
// whoever finishes the switch. This is that deferred enqueue. Must be
// called by the dispatching worker right after <-svc.ctx.yielded.
func (rt *Runtime) sweepParked(svc *Service) {
	ctx := svc.ctx
	ctx.mu.Lock()
	ctx.isSwappingOut = false
	if ctx.wakeupSignal && ctx.status.Load() == StatusBlocked {
		ctx.wakeupSignal = false
		ctx.status.Store(StatusReady)
		ctx.inReady = true
		rt.ready.push(svc.Handle)
	}
	ctx.mu.Unlock()
}
