// Package engine provides the core types for the NoxSuite installation
// engine: the failure taxonomy, step status machine, atomic steps, and the
// sequencer that executes them with ordered rollback.
package engine

import (
	"errors"
	"fmt"
)

// FailureKind classifies an installation failure for abort/retry/recovery
// decisions.
type FailureKind string

const (
	// KindSystemIncompatible indicates an unsupported platform or runtime.
	// Fatal, immediate abort.
	KindSystemIncompatible FailureKind = "system_incompatible"

	// KindInsufficientResources indicates the host lacks disk or memory for
	// the selected plan. Fatal unless explicitly overridden after a warning.
	KindInsufficientResources FailureKind = "insufficient_resources"

	// KindPermissionDenied indicates a filesystem permission failure.
	// Fatal in the current configuration; recovery mode relocates the
	// install directory instead.
	KindPermissionDenied FailureKind = "permission_denied"

	// KindDependencyInstallFailed indicates every install method for a tool
	// failed. The resolver retries up to three method-exhaustion cycles per
	// tool before surfacing this as fatal.
	KindDependencyInstallFailed FailureKind = "dependency_install_failed"

	// KindNetworkUnreachable indicates a failed network probe or download.
	// Warning level: network-dependent sub-steps are skipped, the run
	// continues.
	KindNetworkUnreachable FailureKind = "network_unreachable"

	// KindStepValidationFailed indicates a step executed but its validator
	// rejected the result. The step's own rollback runs, then the run aborts.
	KindStepValidationFailed FailureKind = "step_validation_failed"

	// KindUserCancelled indicates an interrupt or an explicit decline at a
	// confirmation prompt. In-flight work is rolled back, exit is non-zero.
	KindUserCancelled FailureKind = "user_cancelled"

	// KindInternal is the default for unclassified failures.
	KindInternal FailureKind = "internal"
)

// InstallError is a classified installation failure with context.
type InstallError struct {
	// Kind is the failure classification.
	Kind FailureKind `json:"kind"`

	// Message is the human-readable failure message.
	Message string `json:"message"`

	// Step is the step name during which the failure occurred, if any.
	Step string `json:"step,omitempty"`

	// Tool is the external tool involved, if any.
	Tool string `json:"tool,omitempty"`

	// Err is the underlying cause.
	Err error `json:"-"`

	// Details carries additional context for the journal.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *InstallError) Error() string {
	switch {
	case e.Step != "" && e.Err != nil:
		return fmt.Sprintf("[%s] %s (step=%s): %v", e.Kind, e.Message, e.Step, e.Err)
	case e.Step != "":
		return fmt.Sprintf("[%s] %s (step=%s)", e.Kind, e.Message, e.Step)
	case e.Err != nil:
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
}

// Unwrap returns the underlying error for chain inspection.
func (e *InstallError) Unwrap() error {
	return e.Err
}

// Is implements error equality for errors.Is.
func (e *InstallError) Is(target error) bool {
	t, ok := target.(*InstallError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError creates a classified installation error.
func NewError(kind FailureKind, message string, err error) *InstallError {
	return &InstallError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// WithStep adds step context to an error.
func (e *InstallError) WithStep(step string) *InstallError {
	e.Step = step
	return e
}

// WithTool adds tool context to an error.
func (e *InstallError) WithTool(tool string) *InstallError {
	e.Tool = tool
	return e
}

// WithDetail adds a detail field to the error context.
func (e *InstallError) WithDetail(key string, value interface{}) *InstallError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// KindOf returns the failure kind of an error, or KindInternal when the
// error carries no classification.
func KindOf(err error) FailureKind {
	var e *InstallError
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsWarning returns true if the error only downgrades to a warning rather
// than failing the run. Only network failures qualify.
func IsWarning(err error) bool {
	return KindOf(err) == KindNetworkUnreachable
}

// IsCancelled returns true if the error represents user cancellation.
func IsCancelled(err error) bool {
	return KindOf(err) == KindUserCancelled
}

// IsFatal returns true if the error must abort the run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !IsWarning(err)
}

// Classify wraps an arbitrary error as an InstallError, preserving an
// existing classification when present.
func Classify(err error, step string) *InstallError {
	if err == nil {
		return nil
	}
	var e *InstallError
	if errors.As(err, &e) {
		if e.Step == "" {
			e.Step = step
		}
		return e
	}
	return NewError(KindInternal, "unclassified failure", err).WithStep(step)
}
