// Package installer orchestrates a full installation run: planning,
// pre-checks, dependency resolution, staged execution with rollback, and
// the final summary artifacts.
package installer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noxsuite/noxinstall/pkg/audit"
	"github.com/noxsuite/noxinstall/pkg/config"
	"github.com/noxsuite/noxinstall/pkg/deps"
	"github.com/noxsuite/noxinstall/pkg/engine"
	"github.com/noxsuite/noxinstall/pkg/journal"
	"github.com/noxsuite/noxinstall/pkg/planner"
	"github.com/noxsuite/noxinstall/pkg/platform"
	"github.com/noxsuite/noxinstall/pkg/stores"
	"github.com/noxsuite/noxinstall/pkg/telemetry"
)

// Installer owns the shared state of one installation run. It is created
// per invocation and passed explicitly to every stage; nothing in this
// package holds process-global state.
type Installer struct {
	cfg *config.Config
	tel *telemetry.Telemetry
	log *telemetry.Logger

	caps     *platform.CapabilitySnapshot
	plan     *engine.InstallPlan
	resolver *deps.Resolver
	runner   deps.CommandRunner
	journal  *journal.Journal
	store    stores.Store
	kb       *audit.KnowledgeBase

	sessionID string
	startedAt time.Time

	// depsStatus is the final dependency probe, carried into the summary.
	depsStatus []engine.DependencyStatus
}

// Options configures a new Installer. Every field except Config and
// Telemetry may be nil; missing collaborators are constructed from the
// configuration.
type Options struct {
	Config    *config.Config
	Telemetry *telemetry.Telemetry
	Store     stores.Store
	Runner    deps.CommandRunner
}

// New creates an installer, probes the platform, and opens the journal and
// history store.
func New(ctx context.Context, opts Options) (*Installer, error) {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.Nop()
	}
	if err := opts.Config.EnsureStateDir(); err != nil {
		return nil, err
	}

	log := opts.Telemetry.Logger.NewComponentLogger("installer")

	jnl, err := journal.New(opts.Config.JournalPath, opts.Telemetry.Logger)
	if err != nil {
		return nil, err
	}

	store := opts.Store
	if store == nil {
		sqlStore, err := stores.NewSQLiteStore(stores.Config{Path: opts.Config.DatabasePath})
		if err != nil {
			return nil, err
		}
		if err := sqlStore.Init(ctx); err != nil {
			return nil, err
		}
		if err := sqlStore.Migrate(ctx); err != nil {
			_ = sqlStore.Close()
			return nil, err
		}
		store = sqlStore
	}

	prober := platform.NewProber(opts.Telemetry.Logger)
	caps := prober.Detect(ctx)

	runner := opts.Runner
	if runner == nil {
		runner = deps.ExecRunner{}
	}

	kb := audit.NewKnowledgeBase(opts.Telemetry.Logger)
	if opts.Config.KnowledgeBasePath != "" {
		if err := kb.LoadFile(opts.Config.KnowledgeBasePath); err != nil {
			log.WithError(err).Warn("Knowledge base override not loaded")
		}
	}

	return &Installer{
		cfg:       opts.Config,
		tel:       opts.Telemetry,
		log:       log,
		caps:      caps,
		resolver:  deps.NewResolver(opts.Telemetry.Logger, opts.Telemetry.Metrics, prober, runner),
		runner:    runner,
		journal:   jnl,
		store:     store,
		kb:        kb,
		sessionID: uuid.New().String(),
	}, nil
}

// Capabilities returns the snapshot probed at construction.
func (inst *Installer) Capabilities() *platform.CapabilitySnapshot {
	return inst.caps
}

// SessionID returns the unique identifier of this run.
func (inst *Installer) SessionID() string {
	return inst.sessionID
}

// Close releases the journal and the history store.
func (inst *Installer) Close() error {
	var firstErr error
	if err := inst.journal.Close(); err != nil {
		firstErr = err
	}
	if err := inst.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// buildPlan produces the install plan for the requested mode. Recovery mode
// analyzes the previous journal first.
func (inst *Installer) buildPlan(ctx context.Context, mode engine.Mode) (*engine.InstallPlan, error) {
	var analysis *audit.FailureAnalysis
	if mode == engine.ModeRecovery {
		auditor := audit.NewAuditor(inst.tel.Logger, inst.kb)
		result, err := auditor.Analyze(inst.cfg.JournalPath)
		if err != nil {
			inst.log.WithError(err).Warn("Previous journal unreadable, using recovery defaults")
		} else {
			analysis = result
		}
	}

	p := planner.NewPlanner(inst.tel.Logger, inst.caps)
	return p.Plan(ctx, mode, analysis)
}

// recordSessionStart persists the session and journals its opening entry.
func (inst *Installer) recordSessionStart(ctx context.Context) error {
	inst.startedAt = time.Now()

	planJSON := ""
	if data, err := json.Marshal(inst.plan); err == nil {
		planJSON = string(data)
	}

	session := &stores.Session{
		ID:               inst.sessionID,
		Mode:             string(inst.plan.Mode),
		Status:           engine.SessionStatusRunning,
		InstallDirectory: inst.plan.InstallDirectory,
		PlanJSON:         planJSON,
		StartedAt:        inst.startedAt,
	}
	if err := inst.store.CreateSession(ctx, session); err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}

	inst.journal.SessionStart(inst.sessionID, string(inst.plan.Mode))
	if inst.tel.Metrics != nil {
		inst.tel.Metrics.RecordSessionStarted(string(inst.plan.Mode))
	}
	return nil
}

// finishSession closes out the session record with its terminal status.
func (inst *Installer) finishSession(ctx context.Context, status engine.SessionStatus, runErr error) {
	var errMsg *string
	if runErr != nil {
		msg := runErr.Error()
		errMsg = &msg
	}
	if err := inst.store.UpdateSessionStatus(ctx, inst.sessionID, status, errMsg); err != nil {
		inst.log.WithError(err).Warn("Session status not persisted")
	}
	if inst.tel.Metrics != nil {
		inst.tel.Metrics.RecordSessionCompleted(string(status), time.Since(inst.startedAt))
	}
}
