package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepAttemptSuccess(t *testing.T) {
	executed := false
	step := NewStep("ok", "succeeds", func(ctx context.Context) (interface{}, error) {
		executed = true
		return "data", nil
	})

	err := step.attempt(context.Background())
	require.NoError(t, err)
	assert.True(t, executed)
	assert.Equal(t, "data", step.rollbackData)
	assert.False(t, step.rolledBack)
}

func TestStepAttemptPartialFailureRollsBack(t *testing.T) {
	rolledBackWith := interface{}(nil)
	step := NewStep("partial", "fails after partial effect", func(ctx context.Context) (interface{}, error) {
		return []string{"/tmp/a", "/tmp/b"}, errors.New("boom")
	}).WithRollback(func(ctx context.Context, data interface{}) error {
		rolledBackWith = data
		return nil
	})

	err := step.attempt(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"/tmp/a", "/tmp/b"}, rolledBackWith)
	assert.True(t, step.rolledBack)
}

func TestStepAttemptCleanFailureSkipsRollback(t *testing.T) {
	rollbackCalled := false
	step := NewStep("clean", "fails with no effect", func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("boom")
	}).WithRollback(func(ctx context.Context, data interface{}) error {
		rollbackCalled = true
		return nil
	})

	err := step.attempt(context.Background())
	require.Error(t, err)
	assert.False(t, rollbackCalled)
}

func TestStepValidateRejectionRollsBack(t *testing.T) {
	rollbackCalled := false
	step := NewStep("validated", "passes execute, fails validate", func(ctx context.Context) (interface{}, error) {
		return "artifact", nil
	}).WithRollback(func(ctx context.Context, data interface{}) error {
		rollbackCalled = true
		return nil
	}).WithValidate(func(ctx context.Context, data interface{}) bool {
		return false
	})

	err := step.attempt(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindStepValidationFailed, KindOf(err))
	assert.True(t, rollbackCalled)
}

func TestStepRevertRunsAtMostOnce(t *testing.T) {
	calls := 0
	step := NewStep("once", "rollback once", func(ctx context.Context) (interface{}, error) {
		return "x", nil
	}).WithRollback(func(ctx context.Context, data interface{}) error {
		calls++
		return nil
	})

	require.NoError(t, step.attempt(context.Background()))
	_ = step.revert(context.Background())
	_ = step.revert(context.Background())
	assert.Equal(t, 1, calls)
}

func TestStepBuilders(t *testing.T) {
	step := NewStep("s", "d", func(ctx context.Context) (interface{}, error) { return nil, nil }).
		NonCritical().
		WithRetries(3).
		After("a", "b")

	assert.False(t, step.Critical)
	assert.Equal(t, 3, step.MaxRetries)
	assert.Equal(t, []string{"a", "b"}, step.DependsOn)
	assert.Equal(t, StepStatusPending, step.Status())
}
