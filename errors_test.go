package mcast

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_Ok(t *testing.T) {
	assert.True(t, StatusOK.Ok())
	assert.False(t, NewStatus(Failed, "boom").Ok())
}

func TestStatus_Error(t *testing.T) {
	assert.Equal(t, "Failed: boom", NewStatus(Failed, "boom").Error())
	assert.Equal(t, "NotFound", NewStatus(NotFound, "").Error())
}

func TestStatus_Is(t *testing.T) {
	a := NewStatus(NotFound, "a")
	b := NewStatus(NotFound, "different message")
	c := NewStatus(Failed, "a")

	assert.True(t, a.Is(b))
	assert.False(t, a.Is(c))
}

func TestStatus_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := WrapStatus(Failed, "context", cause)
	assert.ErrorIs(t, wrapped, cause)
}

func TestWrapError(t *testing.T) {
	cause := errors.New("root cause")
	err := WrapError("context", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "context: root cause", err.Error())
}

func TestKind_String(t *testing.T) {
	cases := map[Kind]string{
		OK:              "OK",
		InvalidArgument: "InvalidArgument",
		NotFound:        "NotFound",
		Failed:          "Failed",
		Interrupt:       "Interrupt",
		Eof:             "Eof",
		Again:           "Again",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}
