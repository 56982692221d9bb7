package journal

import (
	"time"

	"github.com/noxsuite/noxinstall/pkg/engine"
)

// StepObserver bridges sequencer notifications into journal entries. It
// implements engine.StepObserver.
type StepObserver struct {
	journal *Journal
}

// NewStepObserver returns an observer that records step lifecycle events
// in the given journal.
func NewStepObserver(j *Journal) *StepObserver {
	return &StepObserver{journal: j}
}

func (o *StepObserver) StepStarted(name, description string) {
	o.journal.StepStart(name, description)
}

func (o *StepObserver) StepCompleted(name string, duration time.Duration) {
	o.journal.StepComplete(name, map[string]interface{}{
		"duration_seconds": duration.Seconds(),
	})
}

func (o *StepObserver) StepFailed(name string, err *engine.InstallError) {
	context := map[string]interface{}{}
	for k, v := range err.Details {
		context[k] = v
	}
	if err.Tool != "" {
		context["tool"] = err.Tool
	}
	o.journal.StepError(name, err.Message, string(err.Kind), context)
}

func (o *StepObserver) StepSkipped(name, reason string) {
	o.journal.Info("skipped step " + name + ": " + reason)
}
