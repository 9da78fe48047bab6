package mcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFastState_StartsCreated(t *testing.T) {
	s := NewFastState()
	assert.Equal(t, StatusCreated, s.Load())
	assert.False(t, s.IsTerminal())
	assert.False(t, s.IsRunnable())
}

func TestFastState_TryTransition(t *testing.T) {
	s := NewFastState()
	assert.True(t, s.TryTransition(StatusCreated, StatusBlocked))
	assert.Equal(t, StatusBlocked, s.Load())

	// wrong "from" fails
	assert.False(t, s.TryTransition(StatusCreated, StatusReady))
	assert.Equal(t, StatusBlocked, s.Load())
}

func TestFastState_IsRunnable(t *testing.T) {
	s := NewFastState()
	s.Store(StatusReady)
	assert.True(t, s.IsRunnable())
	s.Store(StatusRunning)
	assert.True(t, s.IsRunnable())
	s.Store(StatusBlocked)
	assert.False(t, s.IsRunnable())
}

func TestFastState_IsTerminal(t *testing.T) {
	s := NewFastState()
	s.Store(StatusDead)
	assert.True(t, s.IsTerminal())
}

func TestServiceStatus_String(t *testing.T) {
	cases := map[ServiceStatus]string{
		StatusCreated: "Created",
		StatusBlocked: "Blocked",
		StatusReady:   "Ready",
		StatusRunning: "Running",
		StatusDead:    "Dead",
	}
	for status, want := range cases {
		assert.Equal(t, want, status.String())
	}
}
