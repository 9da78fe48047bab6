// Package mcast provides a user-space actor/coroutine runtime: a cooperative
// scheduler, an I/O reactor, and a hierarchical timing wheel, multiplexing a
// large population of independent logical services over a small pool of
// worker threads.
//
// # Architecture
//
// A [Service] is a lightweight unit of computation with its own goroutine and
// mailbox; services communicate by asynchronous messages and suspend
// cooperatively on I/O, timers, signals, or inter-service calls. The
// [Runtime] owns the [HandleTable], the ready queue, the I/O reactor, and the
// hierarchical timing wheel ([wheel.Wheel]); all three converge on a single
// wait/wakeup primitive implemented by the scheduler (see
// [Runtime.waitLocked] and [Runtime.wakeupLocked]).
//
// Three service kinds share one per-service context structure:
//   - UserThread: a body function that may call blocking primitives
//     ([Runtime.Sleep], [Runtime.WaitInput], [Runtime.WaitOutput],
//     [Runtime.WaitSignal]).
//   - MessageDriven: a handler invoked once per mailbox message.
//   - MethodCall: a MessageDriven specialization that treats each message as
//     a typed method invocation and signals completion via a Response event.
//
// # Platform Support
//
// The reactor is implemented using platform-native readiness multiplexers:
//   - Linux: epoll (epollReactor)
//   - macOS: kqueue (kqueueReactor)
//   - Windows: IOCP (iocpReactor)
//
// # Thread Safety
//
// The scheduling model is two-level: parallel across worker goroutines (N
// chosen at [Start]), cooperative within each worker — a service runs until
// it voluntarily calls a suspending primitive. There is no preemption. The
// per-service lock guards mailbox, events, wait_events, status,
// wakeup_signal, is_swapping_out, stopping, blocked_time, wakeup_time, fd,
// and io_events; it is always acquired in a consistent order with no lock
// nesting across services. The [HandleTable] uses a reader-writer lock.
//
// # Usage
//
//	rt, err := mcast.Start(mcast.WithWorkerCount(4))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	h, err := rt.LaunchMessageService("echo", mcast.StackNormal, func(ctx *mcast.Context, msg *mcast.Message) mcast.Status {
//	    fmt.Println(msg.Payload)
//	    return mcast.StatusOK
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = rt.SendStringMessage(h, "hello", nil)
//	rt.Stop()
//	rt.WaitStop()
//
// # Error Types
//
// The package reports a [Kind] taxonomy (OK, InvalidArgument, NotFound,
// Failed, Interrupt, Eof, Again) wrapped in a [Status], which implements the
// standard [error] interface, [errors.Unwrap], and Kind-based matching via
// [Status.Is].
package mcast
