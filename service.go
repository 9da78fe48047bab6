package mcast

// UserThreadFunc is the body of a UserThread service: it may call blocking
// primitives on ctx (Sleep, WaitInput, WaitOutput, WaitSignal) and returns
// once it has nothing left to do (spec section 3, section 4.3).
type UserThreadFunc func(ctx *Context) Status

// MessageHandlerFunc is invoked once per mailbox message by a
// MessageDriven service (spec section 4.3 "MessageDriven trampoline").
type MessageHandlerFunc func(ctx *Context, msg *Message) Status

// MethodDispatcher reconstructs arguments from a method-call message,
// invokes the target method, and returns its result (spec section 3
// "MethodCall" and section 9's type-erased packaging note).
type MethodDispatcher func(ctx *Context, method string, args any) (result any, status Status)

// kind tags which of the three Service variants (spec section 9 "tagged
// variant, not runtime casting") a Service is.
type kind int

const (
	kindUserThread kind = iota
	kindMessageDriven
	kindMethodCall
)

// Service is one of three polymorphic variants: UserThread, MessageDriven,
// or MethodCall (a MessageDriven specialization). Grounded on
// original_source/Service.h's class hierarchy, collapsed into a tagged
// union per spec section 9's redesign note.
type Service struct {
	Handle ServiceHandle
	Name   string

	rt  *Runtime
	ctx *serviceContext

	kind kind

	userThread UserThreadFunc
	msgHandler MessageHandlerFunc
	dispatcher MethodDispatcher
}

// IsStopping reports whether StopService has latched this service.
func (s *Service) IsStopping() bool { return s.ctx.stopping.Load() }
