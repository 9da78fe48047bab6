package mcast

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/kosmolabs/mcast/wheel"
)

// Runtime is the façade described in spec section 6: it owns the
// HandleTable, the ready queue, the worker pool, the timing wheel, the
// reactor, and the Watchdog, and is the sole entry point user code uses to
// launch and interact with services. Grounded on the teacher's Loop
// (loop.go), generalized from "one event loop goroutine" to "N worker
// goroutines scheduling M service goroutines" per SPEC_FULL.md section 1.
type Runtime struct {
	opts *runtimeOptions

	handles *HandleTable
	ready   *readyQueue

	wheel *wheel.Wheel

	reactor reactor

	workerWG  sync.WaitGroup
	serviceWG sync.WaitGroup

	watchdogHandle ServiceHandle

	stopping atomic.Bool
	stopOnce sync.Once
	done     chan struct{}

	wheelStop chan struct{}
	wheelDone chan struct{}

	reactorDone chan struct{}
}

// Start constructs a Runtime, starts its worker pool, its timer-driving
// goroutine, and its reactor goroutine, then launches the Watchdog (spec
// section 6: "Start(worker_count) -> Status: constructs N workers plus two
// service threads (timer, reactor) ... then launches the Watchdog").
func Start(opts ...RuntimeOption) (*Runtime, error) {
	cfg, err := resolveRuntimeOptions(opts)
	if err != nil {
		return nil, err
	}

	re, err := newReactor()
	if err != nil {
		return nil, WrapStatus(Failed, "failed to initialize reactor", err)
	}

	rt := &Runtime{
		opts:           cfg,
		handles:        newHandleTable(),
		ready:          newReadyQueue(),
		wheel:          wheel.New(),
		reactor:        re,
		watchdogHandle: NullHandle,
		done:           make(chan struct{}),
		wheelStop:      make(chan struct{}),
		wheelDone:      make(chan struct{}),
		reactorDone:    make(chan struct{}),
	}

	rt.workerWG.Add(cfg.workerCount)
	for i := 0; i < cfg.workerCount; i++ {
		go rt.runWorker(i)
	}

	go rt.runTimerThread()
	go rt.runReactorThread()

	h, err := rt.launchWatchdog()
	if err != nil {
		rt.Stop()
		return nil, err
	}
	rt.watchdogHandle = h

	return rt, nil
}

// logger returns the configured structured logger.
func (rt *Runtime) logger() Logger { return rt.opts.logger }

// wheelNow returns the current tick count of the timing wheel, used by
// onResume to stamp wakeup_time (spec section 3).
func (rt *Runtime) wheelNow() uint64 { return rt.wheel.Now() }

// runTimerThread drives the timing wheel forward one Period at a time,
// mirroring original_source/TimerService.cpp's Run: sleep half a period,
// compute elapsed whole periods, call Advance that many times.
func (rt *Runtime) runTimerThread() {
	defer close(rt.wheelDone)
	period := wheel.Period * time.Millisecond
	ticker := time.NewTicker(period / 2)
	defer ticker.Stop()
	start := time.Now()
	var advanced int64
	for {
		select {
		case <-rt.wheelStop:
			return
		case <-ticker.C:
			elapsed := int64(time.Since(start) / period)
			for ; advanced < elapsed; advanced++ {
				rt.wheel.Advance()
			}
		}
	}
}

// runReactorThread runs the reactor's blocking loop, translating each
// readiness event into a Wakeup (spec section 4.2's OnIOReady).
func (rt *Runtime) runReactorThread() {
	defer close(rt.reactorDone)
	rt.reactor.run(func(handle ServiceHandle, mask IOMask) {
		svc, ok := rt.handles.Lookup(handle)
		if !ok {
			return
		}
		svc.ctx.mu.Lock()
		svc.ctx.ioEvents = uint32(mask)
		rt.wakeupLocked(svc, EventIO)
		svc.ctx.mu.Unlock()
	})
}

// Stop idempotently latches shutdown: it stops every non-Idle service,
// stops the reactor and timer threads, then drains the ready queue so idle
// workers exit (spec section 6).
func (rt *Runtime) Stop() {
	rt.stopOnce.Do(func() {
		rt.stopping.Store(true)

		rt.handles.mu.RLock()
		targets := make([]*Service, 0, len(rt.handles.entries))
		for _, svc := range rt.handles.entries {
			if svc.Handle != rt.watchdogHandle {
				targets = append(targets, svc)
			}
		}
		rt.handles.mu.RUnlock()
		for _, svc := range targets {
			rt.StopService(svc.Handle)
		}
		if rt.watchdogHandle.Valid() {
			rt.StopService(rt.watchdogHandle)
		}

		close(rt.wheelStop)
		rt.reactor.stop()

		rt.serviceWG.Wait()
		rt.ready.drain()
		rt.workerWG.Wait()

		<-rt.wheelDone
		<-rt.reactorDone
		_ = rt.reactor.close()

		close(rt.done)
	})
}

// WaitStop blocks until Stop has completed (spec section 6).
func (rt *Runtime) WaitStop() { <-rt.done }

// launch constructs a fresh Service of kind k, registers it in the
// HandleTable, performs the initial scheduling spec section 4.3 describes,
// and spawns its goroutine.
func (rt *Runtime) launch(name string, stack StackPreset, k kind, configure func(*Service)) (ServiceHandle, error) {
	if rt.stopping.Load() {
		return NullHandle, NewStatus(Failed, "runtime is stopping")
	}

	if stack == 0 {
		stack = rt.opts.defaultStack
	}

	h := rt.handles.allocate()
	svc := &Service{
		Handle: h,
		Name:   name,
		rt:     rt,
		ctx:    newServiceContext(stack.mailboxCapacity()),
		kind:   k,
	}
	configure(svc)
	rt.handles.insert(h, svc)

	svc.ctx.mu.Lock()
	svc.ctx.status.Store(StatusBlocked)
	switch k {
	case kindUserThread:
		svc.ctx.waitEvents = EventStart
		rt.wakeupLocked(svc, EventStart)
	default:
		svc.ctx.waitEvents = EventMessage | EventStop
	}
	svc.ctx.mu.Unlock()

	rt.serviceWG.Add(1)
	switch k {
	case kindUserThread:
		go rt.runUserThread(svc)
	default:
		go rt.runMessageDriven(svc)
	}

	return h, nil
}

// LaunchService launches a UserThread service (spec section 4.3).
func (rt *Runtime) LaunchService(name string, stack StackPreset, body UserThreadFunc) (ServiceHandle, error) {
	return rt.launch(name, stack, kindUserThread, func(svc *Service) { svc.userThread = body })
}

// LaunchMessageService launches a MessageDriven service.
func (rt *Runtime) LaunchMessageService(name string, stack StackPreset, handler MessageHandlerFunc) (ServiceHandle, error) {
	return rt.launch(name, stack, kindMessageDriven, func(svc *Service) { svc.msgHandler = handler })
}

// LaunchMethodService launches a MethodCall service (a MessageDriven
// specialization: spec section 3).
func (rt *Runtime) LaunchMethodService(name string, stack StackPreset, dispatcher MethodDispatcher) (ServiceHandle, error) {
	return rt.launch(name, stack, kindMethodCall, func(svc *Service) { svc.dispatcher = dispatcher })
}

func (rt *Runtime) runUserThread(svc *Service) {
	defer rt.serviceWG.Done()
	rt.awaitFirstDispatch(svc)
	ctx := &Context{rt: rt, h: svc.Handle}
	status := svc.userThread(ctx)
	rt.finishService(svc, status)
}

func (rt *Runtime) runMessageDriven(svc *Service) {
	defer rt.serviceWG.Done()
	rt.awaitFirstDispatch(svc)
	ctx := &Context{rt: rt, h: svc.Handle}
	sctx := svc.ctx

	sctx.mu.Lock()
	for {
		if len(sctx.mailbox) > 0 {
			msg := sctx.mailbox[0]
			sctx.mailbox = sctx.mailbox[1:]
			sctx.mu.Unlock()
			rt.dispatchMessage(svc, ctx, &msg)
			sctx.mu.Lock()
			continue
		}
		if sctx.stopping.Load() {
			break
		}
		rt.waitLocked(svc, EventMessage|EventStop)
		sctx.mu.Lock()
	}
	sctx.mu.Unlock()

	rt.finishService(svc, StatusOK)
}

// dispatchMessage invokes the handler (or method dispatcher) for one
// mailbox message and completes it, per spec section 4.3's MessageDriven/
// MethodCall trampolines.
func (rt *Runtime) dispatchMessage(svc *Service, ctx *Context, msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			rt.logger().Error().Str("service", svc.Name).Any("panic", r).Log("service message handler panicked")
			panic(r)
		}
	}()

	if svc.kind == kindMethodCall {
		result, status := svc.dispatcher(ctx, msg.Method, msg.Args)
		msg.DoneWithResult(result, status)
		return
	}
	status := svc.msgHandler(ctx, msg)
	msg.Done(status)
}

// finishService marks svc Dead, removes it from the HandleTable, and tears
// down any outstanding I/O registration (spec invariant 4: "removed before
// its stack is reclaimed").
func (rt *Runtime) finishService(svc *Service, status Status) {
	svc.ctx.mu.Lock()
	svc.ctx.status.Store(StatusDead)
	fd := svc.ctx.fd
	svc.ctx.fd = 0
	svc.ctx.mu.Unlock()

	if fd != 0 {
		_ = rt.reactor.remove(fd)
	}
	rt.handles.remove(svc.Handle)

	rt.logger().Debug().Str("service", svc.Name).Int("handle", int(svc.Handle)).Str("status", status.Kind.String()).Log("service terminated")

	// A terminating service never calls waitLocked again, so unlike every
	// other suspension it would never hand control back to its dispatching
	// worker on its own; signal yielded here so runWorker's <-svc.ctx.yielded
	// returns and the worker can pop the next ready service (SPEC_FULL.md
	// section 4.4 [ADD]'s goroutine-ticket protocol).
	svc.ctx.yielded <- struct{}{}
}

// StopService latches stopping and wakes handle with Stop (spec section
// 4.3). Idempotent: a second call on an already-stopping or dead service
// is a no-op.
func (rt *Runtime) StopService(handle ServiceHandle) {
	svc, ok := rt.handles.Lookup(handle)
	if !ok {
		return
	}
	svc.ctx.mu.Lock()
	if svc.ctx.stopping.CompareAndSwap(false, true) {
		rt.wakeupLocked(svc, EventStop)
	}
	svc.ctx.mu.Unlock()
}

// InterruptService sets Interrupt only if handle is currently blocked with
// Interrupt in its wait mask; otherwise it is a no-op (spec section 4.3).
func (rt *Runtime) InterruptService(handle ServiceHandle) {
	svc, ok := rt.handles.Lookup(handle)
	if !ok {
		return
	}
	svc.ctx.mu.Lock()
	if svc.ctx.status.Load() == StatusBlocked && svc.ctx.waitEvents.intersects(EventInterrupt) {
		rt.wakeupLocked(svc, EventInterrupt)
	}
	svc.ctx.mu.Unlock()
}

// Signal posts Signal unconditionally (spec section 4.3); a Signal posted
// before the next WaitSignal is remembered.
func (rt *Runtime) Signal(handle ServiceHandle) {
	svc, ok := rt.handles.Lookup(handle)
	if !ok {
		return
	}
	svc.ctx.mu.Lock()
	rt.wakeupLocked(svc, EventSignal)
	svc.ctx.mu.Unlock()
}

// SendMessage enqueues msg to dest's mailbox and wakes it if it is waiting
// on Message (spec section 4.4's Messaging). It rejects destinations that
// are stopping or still Created.
func (rt *Runtime) SendMessage(dest ServiceHandle, msg Message) Status {
	svc, ok := rt.handles.Lookup(dest)
	if !ok {
		return NewStatus(NotFound, "destination service not found")
	}

	svc.ctx.mu.Lock()
	defer svc.ctx.mu.Unlock()
	if svc.ctx.stopping.Load() {
		return NewStatus(Failed, "destination service is stopping")
	}
	if svc.ctx.status.Load() == StatusCreated {
		return NewStatus(NotFound, "destination service not yet initialized")
	}

	svc.ctx.mailbox = append(svc.ctx.mailbox, msg)
	rt.wakeupLocked(svc, EventMessage)
	return StatusOK
}

// SendStringMessage is the convenience form from spec section 6:
// SendMessage(dest, text, on_done).
func (rt *Runtime) SendStringMessage(dest ServiceHandle, text string, onDone func(Status)) Status {
	msg := Message{Payload: text}
	if onDone != nil {
		msg.reply = func(_ any, status Status) { onDone(status) }
	}
	return rt.SendMessage(dest, msg)
}

// CallMethod invokes method on dest synchronously, blocking the caller
// until the callee completes (spec section 4.4's CallMethod). If ctx is
// non-nil, the caller is itself a service and blocks via WaitLocked on
// Response; otherwise (ctx == nil, a call from outside the runtime) it
// blocks on a plain channel, matching spec section 4.4's "or a locally-held
// condition variable" fallback for bootstrapping callers.
func (rt *Runtime) CallMethod(ctx *Context, dest ServiceHandle, method string, args any) (any, Status) {
	type outcome struct {
		result any
		status Status
	}
	var out outcome
	done := make(chan struct{})

	var caller *Service
	if ctx != nil {
		caller, _ = rt.handles.Lookup(ctx.h)
	}

	msg := Message{
		Method: method,
		Args:   args,
		reply: func(result any, status Status) {
			out = outcome{result, status}
			if caller != nil {
				// Posting Response under the caller's own lock is what
				// makes the write to out above visible to the woken
				// caller (spec section 4.4's CallMethod: "completion
				// closure posts Response to the caller").
				caller.ctx.mu.Lock()
				rt.wakeupLocked(caller, EventResponse)
				caller.ctx.mu.Unlock()
			} else {
				close(done)
			}
		},
	}
	if status := rt.SendMessage(dest, msg); !status.Ok() {
		return nil, status
	}

	if caller == nil {
		<-done
		return out.result, out.status
	}

	caller.ctx.mu.Lock()
	got := rt.waitLocked(caller, EventResponse|EventStop|EventInterrupt)
	if got.has(EventResponse) {
		return out.result, out.status
	}
	return nil, NewStatus(Interrupt, "call interrupted before response")
}

// AsyncCallMethod is CallMethod without blocking the caller; onDone fires
// when the callee completes (spec section 4.4).
func (rt *Runtime) AsyncCallMethod(dest ServiceHandle, method string, args any, onDone func(any, Status)) {
	msg := Message{Method: method, Args: args}
	if onDone != nil {
		msg.reply = onDone
	}
	if status := rt.SendMessage(dest, msg); !status.Ok() && onDone != nil {
		onDone(nil, status)
	}
}

// Sleep registers a timer that wakes ctx's service with Sleep, then waits
// on Sleep|Stop|Interrupt (spec section 4.4). Sleep(0) returns OK
// immediately without switching.
func (rt *Runtime) Sleep(ctx *Context, ms int) Status {
	if ms <= 0 {
		return StatusOK
	}
	svc, ok := rt.handles.Lookup(ctx.h)
	if !ok {
		return NewStatus(NotFound, "service not found")
	}

	timer := rt.wheel.Add(uint32(ms), func() {
		svc.ctx.mu.Lock()
		rt.wakeupLocked(svc, EventSleep)
		svc.ctx.mu.Unlock()
	})

	svc.ctx.mu.Lock()
	got := rt.waitLocked(svc, EventSleep|EventStop|EventInterrupt)
	if got.has(EventSleep) {
		return StatusOK
	}

	rt.wheel.Cancel(timer)
	if got.has(EventStop) {
		return NewStatus(Interrupt, "stopped while sleeping")
	}
	return NewStatus(Interrupt, "interrupted while sleeping")
}

// WaitSignal waits on Signal|Stop|Interrupt, returning OK if woken by
// Signal (spec section 4.3: "WaitSignal returns OK if woken by Signal,
// else Interrupt").
func (rt *Runtime) WaitSignal(ctx *Context) Status {
	svc, ok := rt.handles.Lookup(ctx.h)
	if !ok {
		return NewStatus(NotFound, "service not found")
	}
	svc.ctx.mu.Lock()
	got := rt.waitLocked(svc, EventSignal|EventStop|EventInterrupt)
	if got.has(EventSignal) {
		return StatusOK
	}
	return NewStatus(Interrupt, "wait interrupted before signal")
}

// waitIO is the shared body of WaitInput/WaitOutput (spec section 4.4's
// WaitIO(fd, mask)).
func (rt *Runtime) waitIO(ctx *Context, fd int, mask IOMask) Status {
	svc, ok := rt.handles.Lookup(ctx.h)
	if !ok {
		return NewStatus(NotFound, "service not found")
	}

	svc.ctx.mu.Lock()
	svc.ctx.ioEvents = 0
	svc.ctx.fd = fd
	svc.ctx.mu.Unlock()

	if err := rt.reactor.add(ctx.h, fd, mask); err != nil {
		return WrapStatus(Failed, "failed to register fd with reactor", err)
	}

	svc.ctx.mu.Lock()
	got := rt.waitLocked(svc, EventIO|EventStop|EventInterrupt)

	svc.ctx.mu.Lock()
	ready := IOMask(svc.ctx.ioEvents)
	svc.ctx.fd = 0
	svc.ctx.mu.Unlock()

	if got.has(EventIO) && ready&mask != 0 {
		return StatusOK
	}

	_ = rt.reactor.remove(fd)
	if got.has(EventStop) {
		return NewStatus(Interrupt, "stopped while waiting for I/O")
	}
	if got.has(EventIO) {
		return NewStatus(Again, "fd became ready for a different mask")
	}
	return NewStatus(Interrupt, "interrupted while waiting for I/O")
}

// WaitInput waits for fd to become readable (spec section 6).
func (rt *Runtime) WaitInput(ctx *Context, fd int) Status { return rt.waitIO(ctx, fd, IORead) }

// WaitOutput waits for fd to become writable (spec section 6).
func (rt *Runtime) WaitOutput(ctx *Context, fd int) Status { return rt.waitIO(ctx, fd, IOWrite) }

// TimerHandle is an opaque cancellable handle from AddTimer (spec section
// 3's TimerSlot, section 6's AddTimer/RemoveTimer).
type TimerHandle = *wheel.Timer

// AddTimer schedules cb to run after ms milliseconds (spec section 6).
func (rt *Runtime) AddTimer(ms int, cb func()) TimerHandle {
	return rt.wheel.Add(uint32(ms), cb)
}

// RemoveTimer cancels a timer registered with AddTimer (spec section 6).
func (rt *Runtime) RemoveTimer(h TimerHandle) {
	rt.wheel.Cancel(h)
}

// WakeupIfWaitTimeout registers handle with the Watchdog, which will post
// Interrupt if handle remains blocked longer than maxMs (spec section 6).
func (rt *Runtime) WakeupIfWaitTimeout(handle ServiceHandle, maxMs int) {
	if !rt.watchdogHandle.Valid() {
		return
	}
	rt.AsyncCallMethod(rt.watchdogHandle, watchdogMethodRegister, watchdogRegisterArgs{
		handle: handle,
		maxMs:  maxMs,
	}, nil)
}
