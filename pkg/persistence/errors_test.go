package persistence

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowchartErrorWrapsSentinels(t *testing.T) {
	err := NewFlowchartError("Get", "demo", ErrFlowchartNotFound)

	assert.True(t, errors.Is(err, ErrFlowchartNotFound))
	assert.True(t, IsFlowchartNotFound(err))
	assert.Contains(t, err.Error(), "demo")
	assert.Contains(t, err.Error(), "Get")
}

func TestDestructiveChangeGuard(t *testing.T) {
	guard := DefaultGuard

	// Small flowcharts are never guarded.
	assert.NoError(t, guard.Check(4, 0))

	// Keeping at least half the nodes passes.
	assert.NoError(t, guard.Check(10, 5))
	assert.NoError(t, guard.Check(10, 10))

	err := guard.Check(10, 4)
	require.Error(t, err)
	assert.True(t, IsDestructiveChange(err))

	var destructive *DestructiveChangeError

	require.ErrorAs(t, err, &destructive)
	assert.Equal(t, 10, destructive.ExistingNodes)
	assert.Equal(t, 4, destructive.IncomingNodes)
	assert.InDelta(t, 0.5, destructive.Threshold, 0.0001)
}

func TestDestructiveChangeSurvivesWrapping(t *testing.T) {
	inner := DefaultGuard.Check(20, 2)
	require.Error(t, inner)

	wrapped := NewFlowchartError("Save", "demo", inner)
	assert.True(t, IsDestructiveChange(wrapped))
	assert.False(t, IsFlowchartNotFound(wrapped))
}
