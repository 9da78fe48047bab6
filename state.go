package mcast

import (
	"sync/atomic"
)

// ServiceStatus represents the current lifecycle state of a service, per
// spec section 3 "Lifecycle": Created -> Blocked -> Ready -> Running ->
// Blocked -> ... -> Dead.
type ServiceStatus uint64

const (
	// StatusCreated indicates the context has been constructed but the
	// service has not yet entered the ready queue.
	StatusCreated ServiceStatus = 0
	// StatusDead indicates the service has terminated; it has been, or is
	// about to be, removed from the HandleTable.
	StatusDead ServiceStatus = 1
	// StatusBlocked indicates the service is suspended, absent from the
	// ready queue, waiting on some combination of mailbox/timer/reactor.
	StatusBlocked ServiceStatus = 2
	// StatusRunning indicates the service is the current service of
	// exactly one worker.
	StatusRunning ServiceStatus = 3
	// StatusReady indicates the service is present in the ready queue.
	StatusReady ServiceStatus = 4
)

// String returns a human-readable representation of the status.
func (s ServiceStatus) String() string {
	switch s {
	case StatusCreated:
		return "Created"
	case StatusRunning:
		return "Running"
	case StatusReady:
		return "Ready"
	case StatusBlocked:
		return "Blocked"
	case StatusDead:
		return "Dead"
	default:
		return "Unknown"
	}
}

// FastState is a lock-free state machine with cache-line padding, guarding
// a service's status field (spec section 5: "status" is part of the set
// guarded by the per-service lock, but transition checks benefit from being
// CAS-based so OnResume/Wait_Locked can race-detect cheaply).
type FastState struct { // betteralign:ignore
	_ [64]byte      //nolint:unused // cache line padding (before value)
	v atomic.Uint64 // state value
	_ [56]byte      //nolint:unused // pad to complete cache line
}

// NewFastState creates a new state machine in the Created state.
func NewFastState() *FastState {
	s := &FastState{}
	s.v.Store(uint64(StatusCreated))
	return s
}

// Load returns the current status atomically.
func (s *FastState) Load() ServiceStatus {
	return ServiceStatus(s.v.Load())
}

// Store atomically stores a new status. Used under the service lock, where
// the transition has already been validated by the caller (Wait_Locked /
// Wakeup_Locked / OnResume).
func (s *FastState) Store(status ServiceStatus) {
	s.v.Store(uint64(status))
}

// TryTransition attempts to atomically transition from one status to
// another, returning true if the transition succeeded.
func (s *FastState) TryTransition(from, to ServiceStatus) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// IsTerminal returns true if the service has reached Dead.
func (s *FastState) IsTerminal() bool {
	return s.Load() == StatusDead
}

// IsRunnable returns true if the service is presently Ready or Running.
func (s *FastState) IsRunnable() bool {
	state := s.Load()
	return state == StatusReady || state == StatusRunning
}
