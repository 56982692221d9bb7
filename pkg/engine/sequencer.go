package engine

import (
	"context"
	"time"

	"github.com/noxsuite/noxinstall/pkg/telemetry"
)

// StepObserver receives step lifecycle notifications. The installer wires
// the structured journal through this interface so every component's
// progress ends up in the same append-only log.
type StepObserver interface {
	StepStarted(name, description string)
	StepCompleted(name string, duration time.Duration)
	StepFailed(name string, err *InstallError)
	StepSkipped(name, reason string)
}

// SequencerOptions configures a sequencer run.
type SequencerOptions struct {
	// DryRun marks every step completed without executing it.
	DryRun bool

	// StepTimeout bounds each execution attempt. Zero disables the bound.
	StepTimeout time.Duration
}

// StepSequencer executes atomic steps strictly in order with all-or-nothing
// semantics: on the first critical failure it unwinds every previously
// succeeded step in strict reverse order, exactly once each, before
// reporting failure.
type StepSequencer struct {
	log      *telemetry.Logger
	observer StepObserver
	opts     SequencerOptions

	succeeded []*AtomicStep
}

// NewStepSequencer creates a sequencer. The observer may be nil.
func NewStepSequencer(log *telemetry.Logger, observer StepObserver, opts SequencerOptions) *StepSequencer {
	if log == nil {
		log = telemetry.NopLogger()
	}
	return &StepSequencer{
		log:      log,
		observer: observer,
		opts:     opts,
	}
}

// Run executes the steps in order. The returned error is the first critical
// failure (after the unwind completed), or nil when every critical step
// succeeded.
func (sq *StepSequencer) Run(ctx context.Context, steps []*AtomicStep) (*SequenceResult, error) {
	started := time.Now()
	result := &SequenceResult{}
	sq.succeeded = sq.succeeded[:0]

	completedNames := make(map[string]bool, len(steps))

	for _, step := range steps {
		select {
		case <-ctx.Done():
			cancelErr := NewError(KindUserCancelled, "installation interrupted", ctx.Err()).WithStep(step.Name)
			sq.recordFailure(result, step, cancelErr, time.Now())
			sq.unwind(result)
			result.Duration = time.Since(started)
			return result, cancelErr
		default:
		}

		if missing := sq.unmetDependency(step, completedNames); missing != "" {
			sq.skip(result, step, "dependency "+missing+" did not complete")
			if step.Critical {
				depErr := NewError(KindInternal, "critical step skipped", nil).
					WithStep(step.Name).
					WithDetail("missing_dependency", missing)
				sq.unwind(result)
				result.Duration = time.Since(started)
				return result, depErr
			}
			continue
		}

		res, err := sq.runStep(ctx, step)
		result.Results = append(result.Results, res)

		switch res.Status {
		case StepStatusCompleted:
			result.Completed++
			completedNames[step.Name] = true
			sq.succeeded = append(sq.succeeded, step)
		case StepStatusSkipped:
			result.Skipped++
		case StepStatusFailed:
			result.Failed++
			sq.unwind(result)
			result.Duration = time.Since(started)
			return result, err
		}
	}

	result.Duration = time.Since(started)
	return result, nil
}

// runStep drives one step through its attempt loop, honoring the dry-run
// simulation path and the per-step timeout.
func (sq *StepSequencer) runStep(ctx context.Context, step *AtomicStep) (StepResult, error) {
	stepStart := time.Now()
	step.transition(StepStatusRunning)

	if sq.observer != nil {
		sq.observer.StepStarted(step.Name, step.Description)
	}
	sq.log.WithField("step", step.Name).Debug("Step started")

	if sq.opts.DryRun {
		res := step.finish(StepStatusCompleted, stepStart, nil)
		sq.notifyCompleted(step, res)
		return res, nil
	}

	var lastErr error
	for attemptNo := 0; ; attemptNo++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if sq.opts.StepTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, sq.opts.StepTimeout)
		}

		lastErr = step.attempt(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if rbErr := step.rollbackErr; rbErr != nil {
			sq.log.WithField("step", step.Name).WithError(rbErr).Warn("Step rollback reported an error")
			step.rollbackErr = nil
		}

		if lastErr == nil {
			res := step.finish(StepStatusCompleted, stepStart, nil)
			sq.notifyCompleted(step, res)
			return res, nil
		}

		if ctx.Err() != nil || attemptNo >= step.MaxRetries {
			break
		}

		step.retries++
		step.transition(StepStatusRetrying)
		sq.log.WithField("step", step.Name).
			WithField("attempt", attemptNo+1).
			Warn("Step failed, retrying")
		step.transition(StepStatusRunning)
	}

	classified := Classify(lastErr, step.Name)
	if ctx.Err() != nil && KindOf(classified) == KindInternal {
		classified = NewError(KindUserCancelled, "installation interrupted", ctx.Err()).WithStep(step.Name)
	}

	if !step.Critical {
		res := step.finish(StepStatusSkipped, stepStart, classified)
		if sq.observer != nil {
			sq.observer.StepSkipped(step.Name, classified.Message)
		}
		sq.log.WithField("step", step.Name).WithError(classified).Warn("Non-critical step skipped after failure")
		return res, nil
	}

	res := step.finish(StepStatusFailed, stepStart, classified)
	if sq.observer != nil {
		sq.observer.StepFailed(step.Name, classified)
	}
	sq.log.WithField("step", step.Name).WithError(classified).Error("Step failed")
	return res, classified
}

// unwind rolls back every previously succeeded step in strict reverse
// order. Each rollback runs at most once; failures are surfaced in the log
// but never retried.
func (sq *StepSequencer) unwind(result *SequenceResult) {
	ctx := context.Background()
	for i := len(sq.succeeded) - 1; i >= 0; i-- {
		step := sq.succeeded[i]
		if step.Rollback == nil {
			continue
		}
		sq.log.WithField("step", step.Name).Info("Rolling back step")
		if err := step.revert(ctx); err != nil {
			sq.log.WithField("step", step.Name).WithError(err).Warn("Rollback failed")
		}
		result.RolledBack++
	}
	sq.succeeded = sq.succeeded[:0]
}

// unmetDependency returns the first dependency that has not completed, or
// an empty string.
func (sq *StepSequencer) unmetDependency(step *AtomicStep, completed map[string]bool) string {
	for _, dep := range step.DependsOn {
		if !completed[dep] {
			return dep
		}
	}
	return ""
}

func (sq *StepSequencer) skip(result *SequenceResult, step *AtomicStep, reason string) {
	step.transition(StepStatusSkipped)
	res := step.finish(StepStatusSkipped, time.Now(), nil)
	result.Results = append(result.Results, res)
	result.Skipped++
	if sq.observer != nil {
		sq.observer.StepSkipped(step.Name, reason)
	}
	sq.log.WithField("step", step.Name).WithField("reason", reason).Warn("Step skipped")
}

func (sq *StepSequencer) recordFailure(result *SequenceResult, step *AtomicStep, err *InstallError, started time.Time) {
	res := step.finish(StepStatusFailed, started, err)
	result.Results = append(result.Results, res)
	result.Failed++
	if sq.observer != nil {
		sq.observer.StepFailed(step.Name, err)
	}
}

func (sq *StepSequencer) notifyCompleted(step *AtomicStep, res StepResult) {
	if sq.observer != nil {
		sq.observer.StepCompleted(step.Name, res.Duration)
	}
	sq.log.WithField("step", step.Name).
		WithField("duration", res.Duration.String()).
		Debug("Step completed")
}
