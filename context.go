package mcast

import (
	"sync"
	"sync/atomic"
)

// Message is a single mailbox entry (spec section 3 "mailbox"). Payload
// carries the sender's data; for method-call services, Method/Args/reply
// carry the typed-invocation envelope described in spec section 9's
// "type-erased packaging" note.
type Message struct {
	Payload any
	Method  string
	Args    any

	reply  func(result any, status Status)
	sender ServiceHandle
}

// Done completes a message: for plain messages it invokes the caller's
// on_done callback (if any); for method-call messages it delivers the
// result and posts Response to a synchronous caller.
func (m *Message) Done(status Status) {
	m.DoneWithResult(nil, status)
}

// DoneWithResult is Done plus a typed result, used by MethodCall dispatch.
func (m *Message) DoneWithResult(result any, status Status) {
	if m.reply != nil {
		m.reply(result, status)
	}
}

// Context is the handle a running service uses to call back into the
// Runtime (Sleep, WaitSignal, WaitInput, ...). It wraps the service's own
// handle and a back-reference to the Runtime, per spec section 9's
// redesign note: contexts reach the Runtime via a handle/back-reference
// bounded by the Runtime's lifetime, never a cycle of owning pointers.
type Context struct {
	rt *Runtime
	h  ServiceHandle
}

// Handle returns the context's own service handle.
func (c *Context) Handle() ServiceHandle { return c.h }

// Runtime returns the owning Runtime.
func (c *Context) Runtime() *Runtime { return c.rt }

// IsStopping reports whether Stop has been latched for this service.
func (c *Context) IsStopping() bool {
	svc, ok := c.rt.handles.Lookup(c.h)
	if !ok {
		return true
	}
	return svc.ctx.stopping.Load()
}

// serviceContext is the hidden, scheduler-owned state of a service (spec
// section 3 "ServiceContext"). Owned exclusively by the scheduler once the
// service is launched; guarded by mu except where noted.
type serviceContext struct {
	mu sync.Mutex

	mailbox []Message

	events        Event
	waitEvents    Event
	wakeupSignal  bool
	isSwappingOut bool

	status *FastState

	stopping atomic.Bool

	blockedTime uint64
	wakeupTime  uint64

	fd       int
	ioEvents uint32

	lastThread int32

	// resume/yielded are the Go re-expression of the saved machine context
	// and the worker's "home" context: a service goroutine parks by
	// receiving from resume and is woken by a send; it hands control back
	// to its dispatching worker by sending on yielded (SPEC_FULL.md
	// section 4.4 [ADD]).
	resume  chan struct{}
	yielded chan struct{}

	// inReady is true while the service is linked into the scheduler's
	// ready queue. It is bookkeeping only: no scheduler path reads it.
	inReady bool
}

func newServiceContext(mailboxCap int) *serviceContext {
	return &serviceContext{
		status:  NewFastState(),
		resume:  make(chan struct{}),
		yielded: make(chan struct{}),
		mailbox: make([]Message, 0, mailboxCap),
	}
}
