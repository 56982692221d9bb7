package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/noxsuite/noxinstall/pkg/audit"
	"github.com/noxsuite/noxinstall/pkg/engine"
	"github.com/noxsuite/noxinstall/pkg/journal"
	"github.com/noxsuite/noxinstall/pkg/platform"
	"github.com/noxsuite/noxinstall/pkg/stores"
	"github.com/noxsuite/noxinstall/pkg/telemetry"
)

// ErrCancelled marks a run the user declined or interrupted.
var ErrCancelled = errors.New("installation cancelled")

// Run plans and executes a full installation for the requested mode. A nil
// return means the installation (or simulation) finished successfully; the
// caller maps the outcome to the process exit code.
func (inst *Installer) Run(ctx context.Context, mode engine.Mode) error {
	plan, err := inst.buildPlan(ctx, mode)
	if err != nil {
		return err
	}
	if plan == nil {
		// Guided planning was declined before anything happened.
		inst.log.Info("Installation cancelled during planning")
		return ErrCancelled
	}
	inst.plan = plan

	inst.journal.Subscribe(stores.EventSubscriber(inst.store, inst.sessionID))
	if err := inst.recordSessionStart(ctx); err != nil {
		return err
	}

	sessionCtx, sessionSpan := inst.tel.Tracer.StartSessionSpan(ctx, inst.sessionID, string(plan.Mode))
	defer sessionSpan.End()

	monitor := inst.startMonitor(sessionCtx)
	if monitor != nil {
		defer monitor.Stop()
	}

	if _, err := os.Stat(inst.cfg.KnowledgeBasePath); err == nil {
		if err := inst.kb.Watch(sessionCtx); err != nil {
			inst.log.WithError(err).Warn("Knowledge base watch unavailable")
		}
	}

	result, runErr := inst.execute(sessionCtx)
	inst.persistSteps(result)

	switch {
	case runErr == nil && plan.DryRun():
		inst.finishSession(ctx, engine.SessionStatusSimulated, nil)
		telemetry.RecordSuccess(sessionSpan)
		fmt.Print(inst.simulatedReport(result))
		return nil

	case runErr == nil:
		inst.finishSession(ctx, engine.SessionStatusCompleted, nil)
		telemetry.RecordSuccess(sessionSpan)
		inst.log.WithField("duration", result.Duration.String()).
			Infof("Installation completed: %d steps, %d skipped", result.Completed, result.Skipped)
		return nil

	default:
		status := engine.SessionStatusFailed
		if engine.KindOf(runErr) == engine.KindUserCancelled {
			status = engine.SessionStatusCancelled
		}
		inst.finishSession(ctx, status, runErr)
		telemetry.RecordError(sessionSpan, runErr)
		if inst.tel.Metrics != nil {
			inst.tel.Metrics.RecordError(string(engine.KindOf(runErr)))
		}
		inst.reportFailure(runErr)
		return runErr
	}
}

// execute flattens the enabled stages into one ordered step list and runs
// it through a single sequencer, so a late failure unwinds the entire run
// in strict reverse order.
func (inst *Installer) execute(ctx context.Context) (*engine.SequenceResult, error) {
	stages := Stages(inst.plan)

	var steps []*engine.AtomicStep
	stageOf := make(map[string]string)
	for _, stage := range stages {
		for _, step := range stage.Build(inst) {
			steps = append(steps, step)
			stageOf[step.Name] = stage.Name
		}
	}

	observer := &runObserver{
		inst:    inst,
		ctx:     ctx,
		stageOf: stageOf,
		total:   len(steps),
	}
	defer observer.closeStage()

	sequencer := engine.NewStepSequencer(inst.tel.Logger, observer, engine.SequencerOptions{
		DryRun: inst.plan.DryRun(),
	})
	return sequencer.Run(ctx, steps)
}

// persistSteps mirrors the step outcomes and retry counts into the history
// store and the metrics registry.
func (inst *Installer) persistSteps(result *engine.SequenceResult) {
	if result == nil {
		return
	}
	ctx := context.Background()
	for _, res := range result.Results {
		if err := inst.store.RecordStep(ctx, inst.sessionID, res); err != nil {
			inst.log.WithError(err).Warn("Step record not persisted")
		}
		if inst.tel.Metrics != nil {
			inst.tel.Metrics.RecordStep(res.Name, string(res.Status), res.Duration)
		}
	}
	if inst.tel.Metrics != nil {
		for i := 0; i < result.RolledBack; i++ {
			inst.tel.Metrics.RecordRollback("unwind")
		}
	}
}

// startMonitor launches the background resource monitor when enabled,
// sampling against the install target's volume and persisting to the
// history store.
func (inst *Installer) startMonitor(ctx context.Context) *telemetry.ResourceMonitor {
	cfg := inst.tel.Config.Monitor
	if !cfg.Enabled || inst.plan.DryRun() {
		return nil
	}
	sampler := platform.Sampler(platform.ExistingAncestor(inst.plan.InstallDirectory))
	monitor := telemetry.NewResourceMonitor(cfg, inst.tel.Logger, inst.tel.Metrics, sampler, inst.store)
	monitor.Start(ctx)
	return monitor
}

// reportFailure runs the auditor over the journal just written and prints
// its recommendations.
func (inst *Installer) reportFailure(runErr error) {
	inst.log.WithError(runErr).Error("Installation failed")

	auditor := audit.NewAuditor(inst.tel.Logger, inst.kb)
	analysis, err := auditor.Analyze(inst.cfg.JournalPath)
	if err != nil {
		inst.log.WithError(err).Warn("Post-failure analysis unavailable")
		return
	}
	fmt.Print(analysis.Summary())
}

// runObserver bridges sequencer callbacks to the journal, per-stage spans,
// stage metrics, and the running ETA.
type runObserver struct {
	inst    *Installer
	ctx     context.Context
	stageOf map[string]string
	total   int

	journalObs *journal.StepObserver

	current      string
	stageStarted time.Time
	stageFailed  bool
	stageSpan    trace.Span

	done          int
	totalDuration time.Duration
}

func (o *runObserver) StepStarted(name, description string) {
	o.enterStage(name)
	o.observerJournal().StepStarted(name, description)
}

func (o *runObserver) StepCompleted(name string, duration time.Duration) {
	o.observerJournal().StepCompleted(name, duration)
	o.done++
	o.totalDuration += duration
	o.logETA()
}

func (o *runObserver) StepFailed(name string, err *engine.InstallError) {
	o.stageFailed = true
	o.observerJournal().StepFailed(name, err)
	o.done++
}

func (o *runObserver) StepSkipped(name, reason string) {
	o.enterStage(name)
	o.observerJournal().StepSkipped(name, reason)
	o.done++
}

// enterStage closes the previous stage's span and opens the next one when
// the step list crosses a stage boundary.
func (o *runObserver) enterStage(step string) {
	stage := o.stageOf[step]
	if stage == "" || stage == o.current {
		return
	}
	o.closeStage()

	o.current = stage
	o.stageStarted = time.Now()
	o.stageFailed = false
	_, o.stageSpan = o.inst.tel.Tracer.StartStageSpan(o.ctx, stage)
	o.inst.journal.Info("stage: " + stage)
}

// closeStage finalizes the current stage's span and metrics.
func (o *runObserver) closeStage() {
	if o.current == "" {
		return
	}
	status := "completed"
	if o.stageFailed {
		status = "failed"
	}
	if o.inst.tel.Metrics != nil {
		o.inst.tel.Metrics.RecordStage(o.current, status, time.Since(o.stageStarted))
	}
	if o.stageSpan != nil {
		o.stageSpan.End()
		o.stageSpan = nil
	}
	o.current = ""
}

// logETA reports the projected remaining time from the mean completed step
// duration.
func (o *runObserver) logETA() {
	remaining := o.total - o.done
	if remaining <= 0 || o.done == 0 {
		return
	}
	mean := o.totalDuration / time.Duration(o.done)
	o.inst.log.WithFields(map[string]interface{}{
		"completed": o.done,
		"total":     o.total,
		"eta":       (mean * time.Duration(remaining)).Round(time.Second).String(),
	}).Debug("Progress")
}

func (o *runObserver) observerJournal() *journal.StepObserver {
	if o.journalObs == nil {
		o.journalObs = journal.NewStepObserver(o.inst.journal)
	}
	return o.journalObs
}
