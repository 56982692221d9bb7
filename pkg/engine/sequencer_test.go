package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder tracks execution and rollback order across steps.
type recorder struct {
	mu        sync.Mutex
	executed  []string
	rolledBak []string
}

func (r *recorder) step(name string, fail bool) *AtomicStep {
	return NewStep(name, "test step "+name, func(ctx context.Context) (interface{}, error) {
		r.mu.Lock()
		r.executed = append(r.executed, name)
		r.mu.Unlock()
		if fail {
			return nil, errors.New(name + " failed")
		}
		return name, nil
	}).WithRollback(func(ctx context.Context, data interface{}) error {
		r.mu.Lock()
		r.rolledBak = append(r.rolledBak, name)
		r.mu.Unlock()
		return nil
	})
}

func TestSequencerRunsInOrder(t *testing.T) {
	rec := &recorder{}
	steps := []*AtomicStep{rec.step("a", false), rec.step("b", false), rec.step("c", false)}

	sq := NewStepSequencer(nil, nil, SequencerOptions{})
	result, err := sq.Run(context.Background(), steps)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, rec.executed)
	assert.Equal(t, 3, result.Completed)
	assert.Empty(t, rec.rolledBak)
	assert.True(t, result.OK())
}

func TestSequencerUnwindsInReverseOrderExactlyOnce(t *testing.T) {
	rec := &recorder{}
	steps := []*AtomicStep{
		rec.step("a", false),
		rec.step("b", false),
		rec.step("c", false),
		rec.step("d", true),
	}

	sq := NewStepSequencer(nil, nil, SequencerOptions{})
	result, err := sq.Run(context.Background(), steps)

	require.Error(t, err)
	// Completed steps unwind newest first, each exactly once.
	assert.Equal(t, []string{"c", "b", "a"}, rec.rolledBak)
	assert.Equal(t, 3, result.RolledBack)
	assert.Equal(t, 1, result.Failed)
}

func TestSequencerNonCriticalFailureContinues(t *testing.T) {
	rec := &recorder{}
	failing := rec.step("optional", true).NonCritical()
	steps := []*AtomicStep{rec.step("a", false), failing, rec.step("b", false)}

	sq := NewStepSequencer(nil, nil, SequencerOptions{})
	result, err := sq.Run(context.Background(), steps)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Completed)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, rec.rolledBak)
	assert.Equal(t, StepStatusSkipped, failing.Status())
}

func TestSequencerRetriesUpToBound(t *testing.T) {
	attempts := 0
	step := NewStep("flaky", "fails twice then succeeds", func(ctx context.Context) (interface{}, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("transient")
		}
		return nil, nil
	}).WithRetries(3)

	sq := NewStepSequencer(nil, nil, SequencerOptions{})
	result, err := sq.Run(context.Background(), []*AtomicStep{step})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 2, step.Retries())
	assert.Equal(t, 1, result.Completed)
}

func TestSequencerRetriesExhausted(t *testing.T) {
	attempts := 0
	step := NewStep("doomed", "always fails", func(ctx context.Context) (interface{}, error) {
		attempts++
		return nil, errors.New("permanent")
	}).WithRetries(2)

	sq := NewStepSequencer(nil, nil, SequencerOptions{})
	_, err := sq.Run(context.Background(), []*AtomicStep{step})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestSequencerDryRunExecutesNothing(t *testing.T) {
	rec := &recorder{}
	steps := []*AtomicStep{rec.step("a", false), rec.step("b", true)}

	sq := NewStepSequencer(nil, nil, SequencerOptions{DryRun: true})
	result, err := sq.Run(context.Background(), steps)

	require.NoError(t, err)
	assert.Empty(t, rec.executed)
	assert.Empty(t, rec.rolledBak)
	assert.Equal(t, 2, result.Completed)
}

func TestSequencerCancelledContext(t *testing.T) {
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())

	first := NewStep("first", "cancels after running", func(c context.Context) (interface{}, error) {
		cancel()
		return "data", nil
	}).WithRollback(func(c context.Context, data interface{}) error {
		rec.mu.Lock()
		rec.rolledBak = append(rec.rolledBak, "first")
		rec.mu.Unlock()
		return nil
	})
	second := rec.step("second", false)

	sq := NewStepSequencer(nil, nil, SequencerOptions{})
	_, err := sq.Run(ctx, []*AtomicStep{first, second})

	require.Error(t, err)
	assert.Equal(t, KindUserCancelled, KindOf(err))
	// The completed step is unwound, the later one never ran.
	assert.Equal(t, []string{"first"}, rec.rolledBak)
	assert.NotContains(t, rec.executed, "second")
}

func TestSequencerSkipsUnmetDependency(t *testing.T) {
	rec := &recorder{}
	optional := rec.step("optional", true).NonCritical()
	dependent := rec.step("dependent", false).NonCritical().After("optional")

	sq := NewStepSequencer(nil, nil, SequencerOptions{})
	result, err := sq.Run(context.Background(), []*AtomicStep{optional, dependent})

	require.NoError(t, err)
	assert.Equal(t, 2, result.Skipped)
	assert.NotContains(t, rec.executed, "dependent")
}

func TestSequencerCriticalSkippedDependencyAborts(t *testing.T) {
	rec := &recorder{}
	optional := rec.step("optional", true).NonCritical()
	dependent := rec.step("dependent", false).After("optional")

	sq := NewStepSequencer(nil, nil, SequencerOptions{})
	_, err := sq.Run(context.Background(), []*AtomicStep{optional, dependent})

	require.Error(t, err)
	assert.NotContains(t, rec.executed, "dependent")
}
