package mcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvent_Has(t *testing.T) {
	e := EventMessage | EventStop
	assert.True(t, e.has(EventMessage))
	assert.True(t, e.has(EventStop))
	assert.True(t, e.has(EventMessage|EventStop))
	assert.False(t, e.has(EventSignal))
	assert.False(t, e.has(EventMessage|EventSignal))
}

func TestEvent_Intersects(t *testing.T) {
	e := EventMessage | EventStop
	assert.True(t, e.intersects(EventMessage))
	assert.True(t, e.intersects(EventMessage|EventSignal))
	assert.False(t, e.intersects(EventSignal))
	assert.False(t, e.intersects(0))
}
