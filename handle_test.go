package mcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleTable_InsertLookupRemove(t *testing.T) {
	ht := newHandleTable()
	h := ht.allocate()
	assert.True(t, h.Valid())

	svc := &Service{Handle: h, Name: "test"}
	ht.insert(h, svc)
	assert.Equal(t, 1, ht.Len())

	got, ok := ht.Lookup(h)
	assert.True(t, ok)
	assert.Same(t, svc, got)

	ht.remove(h)
	assert.Equal(t, 0, ht.Len())
	_, ok = ht.Lookup(h)
	assert.False(t, ok)
}

func TestHandleTable_AllocateNeverReuses(t *testing.T) {
	ht := newHandleTable()
	seen := make(map[ServiceHandle]bool)
	for i := 0; i < 100; i++ {
		h := ht.allocate()
		assert.False(t, seen[h], "handle %d reused", h)
		seen[h] = true
	}
}

func TestNullHandle_LookupFails(t *testing.T) {
	ht := newHandleTable()
	_, ok := ht.Lookup(NullHandle)
	assert.False(t, ok)
	assert.False(t, NullHandle.Valid())
}
