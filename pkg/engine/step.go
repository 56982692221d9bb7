package engine

import (
	"context"
	"time"
)

// ExecuteFunc performs a step's work. It returns opaque rollback data that
// is later handed to the rollback function. When the work fails after
// taking partial effect, the function must return its rollback data
// alongside the error so the step can be reverted; returning nil data with
// an error signals that nothing needs undoing.
type ExecuteFunc func(ctx context.Context) (interface{}, error)

// RollbackFunc reverts a step using the data its execution returned.
// Rollback is best-effort: errors are logged by the caller, never
// propagated, and the function is invoked at most once per attempt.
type RollbackFunc func(ctx context.Context, data interface{}) error

// ValidateFunc checks that a step's effect is actually in place after a
// successful execution. Returning false triggers the step's rollback and
// fails the step.
type ValidateFunc func(ctx context.Context, data interface{}) bool

// AtomicStep is the smallest unit of installation work. Its effect is
// either fully visible or fully reverted; no partial state survives a
// failed run.
type AtomicStep struct {
	// Name uniquely identifies the step within a sequence.
	Name string

	// Description is the human-readable progress line for the journal.
	Description string

	// Critical steps abort the sequence on failure; non-critical steps are
	// marked skipped and the sequence continues.
	Critical bool

	// MaxRetries bounds the failed->retrying->running loop. Zero means a
	// single attempt.
	MaxRetries int

	// DependsOn lists step names that must have completed before this step
	// runs. A step whose dependency did not complete is skipped.
	DependsOn []string

	// Execute performs the work. Required.
	Execute ExecuteFunc

	// Rollback reverts the work. Optional.
	Rollback RollbackFunc

	// Validate verifies the work took effect. Optional.
	Validate ValidateFunc

	status       StepStatus
	result       StepResult
	rollbackData interface{}
	rolledBack   bool
	rollbackErr  error
	retries      int
}

// NewStep creates a critical step with a single attempt.
func NewStep(name, description string, execute ExecuteFunc) *AtomicStep {
	return &AtomicStep{
		Name:        name,
		Description: description,
		Critical:    true,
		Execute:     execute,
		status:      StepStatusPending,
	}
}

// WithRollback attaches a rollback function.
func (s *AtomicStep) WithRollback(fn RollbackFunc) *AtomicStep {
	s.Rollback = fn
	return s
}

// WithValidate attaches a post-execution validator.
func (s *AtomicStep) WithValidate(fn ValidateFunc) *AtomicStep {
	s.Validate = fn
	return s
}

// WithRetries sets the retry bound.
func (s *AtomicStep) WithRetries(n int) *AtomicStep {
	s.MaxRetries = n
	return s
}

// NonCritical marks the step as continue-on-error.
func (s *AtomicStep) NonCritical() *AtomicStep {
	s.Critical = false
	return s
}

// After declares an ordering dependency on earlier steps.
func (s *AtomicStep) After(names ...string) *AtomicStep {
	s.DependsOn = append(s.DependsOn, names...)
	return s
}

// Status returns the step's current lifecycle state.
func (s *AtomicStep) Status() StepStatus {
	if s.status == "" {
		return StepStatusPending
	}
	return s.status
}

// Result returns the recorded outcome of the last run.
func (s *AtomicStep) Result() StepResult {
	return s.result
}

// Retries returns how many retry cycles the step consumed.
func (s *AtomicStep) Retries() int {
	return s.retries
}

// transition moves the step to the next status, enforcing the forward-only
// state machine.
func (s *AtomicStep) transition(next StepStatus) bool {
	if !s.Status().CanTransition(next) {
		return false
	}
	s.status = next
	return true
}

// attempt executes one attempt: execute, then optional validation. It
// records rollback data for later reverts and reverts itself immediately on
// partial failure or rejected validation. The returned error is nil only
// when the effect is fully in place.
func (s *AtomicStep) attempt(ctx context.Context) error {
	s.rolledBack = false

	data, err := s.Execute(ctx)
	s.rollbackData = data
	if err != nil {
		// Partial effect is signalled by returning rollback data together
		// with the error.
		if data != nil {
			s.revert(ctx)
		}
		return err
	}

	if s.Validate != nil && !s.Validate(ctx, data) {
		s.revert(ctx)
		return NewError(KindStepValidationFailed, "post-step validation rejected the result", nil).WithStep(s.Name)
	}

	return nil
}

// revert invokes the step's rollback at most once per attempt. Rollback
// failure is returned for logging but never propagated further.
func (s *AtomicStep) revert(ctx context.Context) error {
	if s.Rollback == nil || s.rolledBack {
		return nil
	}
	s.rolledBack = true
	s.rollbackErr = s.Rollback(ctx, s.rollbackData)
	return s.rollbackErr
}

// finish records the terminal result of the step.
func (s *AtomicStep) finish(status StepStatus, started time.Time, err *InstallError) StepResult {
	ended := time.Now()
	s.status = status
	s.result = StepResult{
		Name:      s.Name,
		Status:    status,
		StartedAt: started,
		EndedAt:   ended,
		Duration:  ended.Sub(started),
		Err:       err,
	}
	return s.result
}
