// Package stores persists installation history in a local SQLite database.
package stores

import (
	"context"
	"time"

	"github.com/noxsuite/noxinstall/pkg/engine"
	"github.com/noxsuite/noxinstall/pkg/telemetry"
)

// Session is one installation attempt.
type Session struct {
	ID               string               `json:"id"`
	Mode             string               `json:"mode"`
	Status           engine.SessionStatus `json:"status"`
	InstallDirectory string               `json:"install_directory"`
	PlanJSON         string               `json:"plan_json,omitempty"`
	Error            *string              `json:"error,omitempty"`
	StartedAt        time.Time            `json:"started_at"`
	CompletedAt      *time.Time           `json:"completed_at,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// StepRecord is one executed step within a session.
type StepRecord struct {
	ID         int64             `json:"id"`
	SessionID  string            `json:"session_id"`
	Name       string            `json:"name"`
	Status     engine.StepStatus `json:"status"`
	DurationMS int64             `json:"duration_ms"`
	ErrorKind  *string           `json:"error_kind,omitempty"`
	ErrorText  *string           `json:"error_text,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	EndedAt    time.Time         `json:"ended_at"`
}

// EventRecord mirrors one structured journal entry into the database so
// history survives journal file rotation.
type EventRecord struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Event     string    `json:"event"`
	Step      *string   `json:"step,omitempty"`
	Detail    *string   `json:"detail,omitempty"`
	ErrorText *string   `json:"error_text,omitempty"`
	ErrorType *string   `json:"error_type,omitempty"`
	Context   *string   `json:"context,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the persistence interface for installation history.
type Store interface {
	Init(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error

	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	UpdateSessionStatus(ctx context.Context, id string, status engine.SessionStatus, errMsg *string) error
	ListSessions(ctx context.Context, limit, offset int) ([]*Session, error)

	RecordStep(ctx context.Context, sessionID string, result engine.StepResult) error
	ListSteps(ctx context.Context, sessionID string) ([]*StepRecord, error)

	AppendEvent(ctx context.Context, event *EventRecord) error
	ListEvents(ctx context.Context, sessionID string, limit int) ([]*EventRecord, error)

	// RecordResourceSample satisfies telemetry.SampleSink so the resource
	// monitor can persist its window.
	RecordResourceSample(ctx context.Context, sample telemetry.ResourceSample) error
}
