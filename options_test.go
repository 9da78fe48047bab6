package mcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRuntimeOptions_Defaults(t *testing.T) {
	cfg, err := resolveRuntimeOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.workerCount)
	assert.Equal(t, StackNormal, cfg.defaultStack)
	assert.Equal(t, 30*time.Second, cfg.watchdogInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.watchdogFloor)
	assert.NotNil(t, cfg.logger)
}

func TestWithWorkerCount_RejectsNonPositive(t *testing.T) {
	_, err := resolveRuntimeOptions([]RuntimeOption{WithWorkerCount(0)})
	require.Error(t, err)
	var status Status
	require.ErrorAs(t, err, &status)
	assert.Equal(t, InvalidArgument, status.Kind)
}

func TestWithWorkerCount_Applies(t *testing.T) {
	cfg, err := resolveRuntimeOptions([]RuntimeOption{WithWorkerCount(8)})
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.workerCount)
}

func TestResolveRuntimeOptions_SkipsNilOption(t *testing.T) {
	cfg, err := resolveRuntimeOptions([]RuntimeOption{nil, WithWorkerCount(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.workerCount)
}

func TestStackPreset_MailboxCapacity(t *testing.T) {
	assert.Equal(t, 4, StackVerySmall.mailboxCapacity())
	assert.Equal(t, 16, StackSmall.mailboxCapacity())
	assert.Equal(t, 64, StackNormal.mailboxCapacity())
	assert.Equal(t, 256, StackLarge.mailboxCapacity())
	assert.Equal(t, 1024, StackVeryLarge.mailboxCapacity())
}
