package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to StepStatus
		allowed  bool
	}{
		{StepStatusPending, StepStatusRunning, true},
		{StepStatusPending, StepStatusSkipped, true},
		{StepStatusPending, StepStatusCompleted, false},
		{StepStatusRunning, StepStatusCompleted, true},
		{StepStatusRunning, StepStatusFailed, true},
		{StepStatusRunning, StepStatusRetrying, true},
		{StepStatusRetrying, StepStatusRunning, true},
		{StepStatusRetrying, StepStatusCompleted, false},
		{StepStatusCompleted, StepStatusRunning, false},
		{StepStatusFailed, StepStatusRunning, false},
		{StepStatusSkipped, StepStatusRunning, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestStepStatusClassification(t *testing.T) {
	assert.True(t, StepStatusCompleted.IsTerminal())
	assert.True(t, StepStatusFailed.IsTerminal())
	assert.True(t, StepStatusSkipped.IsTerminal())
	assert.False(t, StepStatusRunning.IsTerminal())
	assert.True(t, StepStatusRetrying.IsActive())
	assert.False(t, StepStatusFailed.IsActive())
}

func TestStepStatusJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(StepStatusRetrying)
	require.NoError(t, err)
	assert.Equal(t, `"retrying"`, string(data))

	var status StepStatus
	require.NoError(t, json.Unmarshal(data, &status))
	assert.Equal(t, StepStatusRetrying, status)

	assert.Error(t, json.Unmarshal([]byte(`"exploded"`), &status))
}

func TestSessionStatusValidate(t *testing.T) {
	assert.NoError(t, SessionStatusSimulated.Validate())
	assert.Error(t, SessionStatus("bogus").Validate())
	assert.True(t, SessionStatusCancelled.IsTerminal())
	assert.False(t, SessionStatusRunning.IsTerminal())
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("dry-run")
	require.NoError(t, err)
	assert.Equal(t, ModeDryRun, mode)

	_, err = ParseMode("yolo")
	assert.Error(t, err)
}
