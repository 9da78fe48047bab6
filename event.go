package mcast

// Event is the bitmask of pending/awaited reasons a service may wake for
// (spec section 3 "events"; original_source/ServiceEvent.h).
type Event uint32

const (
	// EventStart is posted once, at launch, to a freshly created UserThread
	// service.
	EventStart Event = 1 << iota
	// EventSignal is posted by Signal; WaitSignal waits on it.
	EventSignal
	// EventInterrupt is posted by InterruptService; only observed by a
	// service currently waiting with Interrupt in its wait mask.
	EventInterrupt
	// EventMessage is posted whenever a message is enqueued to the
	// service's mailbox.
	EventMessage
	// EventRequest mirrors ServiceEvent.h's kRequest bit position. The
	// original scheduler never posts it via Wait/Wakeup either (it is
	// declared but unused in System.cpp); kept as a reserved bit so the
	// remaining values stay verbatim.
	EventRequest
	// EventResponse is posted to a caller blocked in a synchronous
	// CallMethod once the callee completes.
	EventResponse
	// EventIO is posted by the reactor when a registered fd becomes ready.
	EventIO
	// EventSleep is posted by the timing wheel when a Sleep timer expires.
	EventSleep
	// EventTimeout is a reserved bit; nothing in this package posts it. The
	// Watchdog signals an exceeded deadline with EventInterrupt.
	EventTimeout
	// EventStop is posted by StopService; it is also a one-way latch
	// (ServiceContext.stopping).
	EventStop
)

// has reports whether all bits in mask are set in e.
func (e Event) has(mask Event) bool { return e&mask == mask }

// intersects reports whether e and mask share any set bit.
func (e Event) intersects(mask Event) bool { return e&mask != 0 }
