package engine

import (
	"encoding/json"
	"fmt"
)

// StepStatus represents the lifecycle state of an installation step.
type StepStatus string

const (
	// StepStatusPending indicates the step has not started yet.
	StepStatusPending StepStatus = "pending"

	// StepStatusRunning indicates the step is currently executing.
	StepStatusRunning StepStatus = "running"

	// StepStatusRetrying indicates a transient substate of running: the
	// step failed an attempt and will be executed again.
	StepStatusRetrying StepStatus = "retrying"

	// StepStatusCompleted indicates the step finished successfully.
	StepStatusCompleted StepStatus = "completed"

	// StepStatusFailed indicates the step failed terminally.
	StepStatusFailed StepStatus = "failed"

	// StepStatusSkipped indicates a non-critical step was bypassed.
	StepStatusSkipped StepStatus = "skipped"
)

// IsTerminal returns true if the status represents a final state.
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusCompleted || s == StepStatusFailed || s == StepStatusSkipped
}

// IsActive returns true if the step is executing or about to.
func (s StepStatus) IsActive() bool {
	return s == StepStatusPending || s == StepStatusRunning || s == StepStatusRetrying
}

// Validate checks if the step status is valid.
func (s StepStatus) Validate() error {
	switch s {
	case StepStatusPending, StepStatusRunning, StepStatusRetrying,
		StepStatusCompleted, StepStatusFailed, StepStatusSkipped:
		return nil
	default:
		return fmt.Errorf("invalid step status: %s", s)
	}
}

// CanTransition reports whether moving from s to next is a legal status
// transition. Steps never move backward.
func (s StepStatus) CanTransition(next StepStatus) bool {
	switch s {
	case StepStatusPending:
		return next == StepStatusRunning || next == StepStatusSkipped
	case StepStatusRunning:
		return next == StepStatusCompleted || next == StepStatusFailed ||
			next == StepStatusRetrying || next == StepStatusSkipped
	case StepStatusRetrying:
		return next == StepStatusRunning
	default:
		return false
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe serialization.
func (s StepStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *StepStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = StepStatus(str)
	return s.Validate()
}

// SessionStatus represents the overall status of an installation session.
type SessionStatus string

const (
	// SessionStatusRunning indicates the session is in progress.
	SessionStatusRunning SessionStatus = "running"

	// SessionStatusCompleted indicates the session finished successfully.
	SessionStatusCompleted SessionStatus = "completed"

	// SessionStatusFailed indicates the session aborted on a failure.
	SessionStatusFailed SessionStatus = "failed"

	// SessionStatusCancelled indicates the session was interrupted.
	SessionStatusCancelled SessionStatus = "cancelled"

	// SessionStatusSimulated indicates a completed dry-run session.
	SessionStatusSimulated SessionStatus = "simulated"
)

// IsTerminal returns true if the session status represents a final state.
func (s SessionStatus) IsTerminal() bool {
	return s != SessionStatusRunning
}

// Validate checks if the session status is valid.
func (s SessionStatus) Validate() error {
	switch s {
	case SessionStatusRunning, SessionStatusCompleted, SessionStatusFailed,
		SessionStatusCancelled, SessionStatusSimulated:
		return nil
	default:
		return fmt.Errorf("invalid session status: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe serialization.
func (s SessionStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *SessionStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = SessionStatus(str)
	return s.Validate()
}
