package mcast

// IOMask is the readiness bitmask a reactor reports back to the scheduler
// (spec section 4.2). It is distinct from Event: Event is what a service
// waits on; IOMask is what the kernel actually reported, stashed on
// serviceContext.ioEvents so WaitIO can check it against the caller's mask.
type IOMask uint32

const (
	IORead IOMask = 1 << iota
	IOWrite
	IOError
	IOHangup
)

// reactor is the platform-specific readiness multiplexer required by spec
// section 4.2: one-shot edge-triggered registration, self-pipe shutdown.
// Grounded on the teacher's FastPoller (poller_linux.go/poller_darwin.go/
// poller_windows.go), re-keyed by ServiceHandle instead of a per-fd
// callback closure, and extended with the Run/Stop loop original_source/
// IOService.cpp owns directly (the teacher leaves polling to its caller;
// here the reactor drives its own goroutine per spec's "Reactor.Run()").
type reactor interface {
	// add registers fd for mask, one-shot, on behalf of handle. A given fd
	// may have at most one waiting service (spec invariant).
	add(handle ServiceHandle, fd int, mask IOMask) error
	// remove deregisters fd. Safe to call after fd has already been closed
	// (spec section 9: tolerate ENOENT/EBADF silently).
	remove(fd int) error
	// run blocks, dispatching onReady(handle, mask) for each readiness
	// event, until stop is called. onReady is invoked with the fd already
	// deregistered (one-shot in effect; the service must re-issue the wait
	// to be notified again).
	run(onReady func(handle ServiceHandle, mask IOMask))
	// stop unblocks a concurrent run via the self-pipe sentinel.
	stop()
	// close releases the reactor's kernel resources. Safe after stop.
	close() error
}
