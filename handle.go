package mcast

import "sync"

// ServiceHandle is a 64-bit opaque index naming a service (spec section 3).
// −1 is reserved as "null". Handles are cheap to copy and compare; they do
// not carry ownership of the service (original_source/ServiceHandle.h's
// BasicHandle<Service>).
type ServiceHandle int64

// NullHandle is the sentinel "no service" handle.
const NullHandle ServiceHandle = -1

// Valid reports whether h is not the null handle. It does not imply the
// referenced service still exists — see HandleTable.Lookup.
func (h ServiceHandle) Valid() bool { return h != NullHandle }

// Reserved low handles, analogous to original_source/System.h's
// idle_service_index_ and wakeup_srv_handle_ conventions: the allocator for
// ordinary services starts above these.
const (
	watchdogHandleBase   ServiceHandle = 1
	firstAllocatedHandle ServiceHandle = 16
)

// HandleTable maps a ServiceHandle to its owning *Service. It is the sole
// owning reference map in the runtime (spec section 9 redesign note: "give
// Runtime sole ownership of the HandleTable; each entry owns the Service").
//
// Grounded on the teacher's registry.go allocator+map+RWMutex shape, minus
// the weak-pointer/ring-scavenger machinery — HandleTable has explicit
// ownership and explicit removal-on-death, not opportunistic weak-ref GC
// (see DESIGN.md).
type HandleTable struct {
	mu      sync.RWMutex
	entries map[ServiceHandle]*Service
	nextID  ServiceHandle
}

// newHandleTable constructs an empty table whose allocator starts at
// firstAllocatedHandle.
func newHandleTable() *HandleTable {
	return &HandleTable{
		entries: make(map[ServiceHandle]*Service),
		nextID:  firstAllocatedHandle,
	}
}

// allocate reserves a fresh, never-reused handle. Caller is responsible for
// calling insert once the service's context is fully initialized (spec
// invariant 4: discoverable only after full initialization).
func (t *HandleTable) allocate() ServiceHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.nextID
	t.nextID++
	return h
}

// insert registers a fully-initialized service under its pre-allocated
// handle.
func (t *HandleTable) insert(h ServiceHandle, s *Service) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[h] = s
}

// remove drops a handle, e.g. once its service transitions to Dead (spec
// invariant 4: "removed before its stack is reclaimed").
func (t *HandleTable) remove(h ServiceHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, h)
}

// Lookup returns the service for h, or (nil, false) if h is null or names a
// service that no longer exists (spec invariant 6).
func (t *HandleTable) Lookup(h ServiceHandle) (*Service, bool) {
	if !h.Valid() {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.entries[h]
	return s, ok
}

// Len reports the number of live entries; used by tests.
func (t *HandleTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
