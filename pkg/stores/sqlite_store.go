package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/noxsuite/noxinstall/pkg/engine"
	"github.com/noxsuite/noxinstall/pkg/journal"
	"github.com/noxsuite/noxinstall/pkg/telemetry"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
	cfg  Config
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		path: cfg.Path,
		cfg:  cfg,
	}, nil
}

// Init opens the database with WAL mode and foreign keys enabled.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs the embedded schema migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// CreateSession inserts a new session record.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	query := `
		INSERT INTO sessions (id, mode, status, install_directory, plan_json, error, started_at, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.Mode,
		string(session.Status),
		session.InstallDirectory,
		session.PlanJSON,
		session.Error,
		session.StartedAt,
		session.CompletedAt,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	query := `
		SELECT id, mode, status, install_directory, plan_json, error, started_at, completed_at, created_at, updated_at
		FROM sessions
		WHERE id = ?
	`

	session := &Session{}
	var status string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.Mode,
		&status,
		&session.InstallDirectory,
		&session.PlanJSON,
		&session.Error,
		&session.StartedAt,
		&session.CompletedAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	session.Status = engine.SessionStatus(status)
	return session, nil
}

// UpdateSessionStatus updates a session's status, closing it out when the
// status is terminal.
func (s *SQLiteStore) UpdateSessionStatus(ctx context.Context, id string, status engine.SessionStatus, errMsg *string) error {
	var completedAt *time.Time
	if status.IsTerminal() {
		now := time.Now()
		completedAt = &now
	}

	query := `
		UPDATE sessions
		SET status = ?, error = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, string(status), errMsg, completedAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session not found: %s", id)
	}
	return nil
}

// ListSessions lists sessions newest first with pagination.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit, offset int) ([]*Session, error) {
	query := `
		SELECT id, mode, status, install_directory, plan_json, error, started_at, completed_at, created_at, updated_at
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*Session{}
	for rows.Next() {
		session := &Session{}
		var status string
		err := rows.Scan(
			&session.ID,
			&session.Mode,
			&status,
			&session.InstallDirectory,
			&session.PlanJSON,
			&session.Error,
			&session.StartedAt,
			&session.CompletedAt,
			&session.CreatedAt,
			&session.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		session.Status = engine.SessionStatus(status)
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

// RecordStep inserts the outcome of one executed step.
func (s *SQLiteStore) RecordStep(ctx context.Context, sessionID string, result engine.StepResult) error {
	var errKind, errText *string
	if result.Err != nil {
		kind := string(result.Err.Kind)
		text := result.Err.Message
		errKind = &kind
		errText = &text
	}

	query := `
		INSERT INTO steps (session_id, name, status, duration_ms, error_kind, error_text, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		sessionID,
		result.Name,
		string(result.Status),
		result.Duration.Milliseconds(),
		errKind,
		errText,
		result.StartedAt,
		result.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record step: %w", err)
	}
	return nil
}

// ListSteps returns the steps of a session in execution order.
func (s *SQLiteStore) ListSteps(ctx context.Context, sessionID string) ([]*StepRecord, error) {
	query := `
		SELECT id, session_id, name, status, duration_ms, error_kind, error_text, started_at, ended_at
		FROM steps
		WHERE session_id = ?
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	steps := []*StepRecord{}
	for rows.Next() {
		step := &StepRecord{}
		var status string
		err := rows.Scan(
			&step.ID,
			&step.SessionID,
			&step.Name,
			&status,
			&step.DurationMS,
			&step.ErrorKind,
			&step.ErrorText,
			&step.StartedAt,
			&step.EndedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		step.Status = engine.StepStatus(status)
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate steps: %w", err)
	}
	return steps, nil
}

// AppendEvent inserts one journal event mirror row.
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *EventRecord) error {
	query := `
		INSERT INTO events (session_id, event, step, detail, error_text, error_type, context, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.SessionID,
		event.Event,
		event.Step,
		event.Detail,
		event.ErrorText,
		event.ErrorType,
		event.Context,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// ListEvents returns a session's events oldest first.
func (s *SQLiteStore) ListEvents(ctx context.Context, sessionID string, limit int) ([]*EventRecord, error) {
	query := `
		SELECT id, session_id, event, step, detail, error_text, error_type, context, timestamp
		FROM events
		WHERE session_id = ?
		ORDER BY id ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []*EventRecord{}
	for rows.Next() {
		event := &EventRecord{}
		err := rows.Scan(
			&event.ID,
			&event.SessionID,
			&event.Event,
			&event.Step,
			&event.Detail,
			&event.ErrorText,
			&event.ErrorType,
			&event.Context,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// RecordResourceSample persists one resource monitor sample. Implements
// telemetry.SampleSink.
func (s *SQLiteStore) RecordResourceSample(ctx context.Context, sample telemetry.ResourceSample) error {
	query := `
		INSERT INTO resource_samples (timestamp, memory_used_percent, disk_used_percent, cpus)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		sample.Timestamp,
		sample.MemoryUsedPercent,
		sample.DiskUsedPercent,
		sample.CPUs,
	)
	if err != nil {
		return fmt.Errorf("failed to record resource sample: %w", err)
	}
	return nil
}

// EventSubscriber returns a journal subscriber that mirrors structured
// entries for the given session into the store. Persistence failures are
// swallowed: the journal file remains the source of truth.
func EventSubscriber(s Store, sessionID string) journal.Subscriber {
	return func(entry journal.Entry) {
		record := &EventRecord{
			SessionID: sessionID,
			Event:     string(entry.Event),
			Timestamp: entry.Timestamp,
		}
		if entry.Step != "" {
			record.Step = &entry.Step
		}
		if entry.Description != "" {
			record.Detail = &entry.Description
		}
		if entry.Error != "" {
			record.ErrorText = &entry.Error
		}
		if entry.ErrorType != "" {
			record.ErrorType = &entry.ErrorType
		}
		if len(entry.Context) > 0 {
			if data, err := json.Marshal(entry.Context); err == nil {
				ctx := string(data)
				record.Context = &ctx
			}
		}
		_ = s.AppendEvent(context.Background(), record)
	}
}
