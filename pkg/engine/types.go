package engine

import (
	"fmt"
	"time"
)

// Mode selects how the installation plan is produced and executed.
type Mode string

const (
	// ModeGuided runs the interactive planner. Default.
	ModeGuided Mode = "guided"

	// ModeFast uses fixed defaults with no prompts.
	ModeFast Mode = "fast"

	// ModeDryRun uses fast defaults but performs no filesystem or network
	// mutation anywhere downstream.
	ModeDryRun Mode = "dry-run"

	// ModeSafe uses a minimal module set with AI disabled unconditionally.
	ModeSafe Mode = "safe"

	// ModeRecovery adapts the plan using the failure analysis of the
	// previous attempt.
	ModeRecovery Mode = "recovery"
)

// ParseMode converts a CLI argument into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if err := m.Validate(); err != nil {
		return "", err
	}
	return m, nil
}

// Validate checks if the mode is one of the supported values.
func (m Mode) Validate() error {
	switch m {
	case ModeGuided, ModeFast, ModeDryRun, ModeSafe, ModeRecovery:
		return nil
	default:
		return fmt.Errorf("invalid install mode: %q (want guided, fast, dry-run, safe, or recovery)", string(m))
	}
}

// InstallPlan is the validated description of what to install and how.
// It is built by the planner and must not be mutated once execution begins.
type InstallPlan struct {
	// InstallDirectory is the absolute base path of the installation.
	InstallDirectory string `json:"install_directory"`

	// Modules is the selected module set.
	Modules []string `json:"modules"`

	// EnableAI enables the local AI component stage and model downloads.
	EnableAI bool `json:"enable_ai"`

	// EnableVoice enables the voice interface module glue.
	EnableVoice bool `json:"enable_voice"`

	// EnableMobile enables the mobile companion frontend.
	EnableMobile bool `json:"enable_mobile"`

	// DevMode installs development tooling alongside the suite.
	DevMode bool `json:"dev_mode"`

	// AutoStart registers the suite services to start after install.
	AutoStart bool `json:"auto_start"`

	// AIModels is the list of model identifiers to pull when AI is enabled.
	AIModels []string `json:"ai_models"`

	// Mode records which planner mode produced the plan.
	Mode Mode `json:"mode"`

	// ForceReinstall overwrites an existing installation.
	ForceReinstall bool `json:"force_reinstall"`

	// BackupExisting snapshots an existing installation before overwriting.
	BackupExisting bool `json:"backup_existing"`

	// EncodingFallback forces conservative text handling. Set by recovery
	// mode after encoding-category failures.
	EncodingFallback bool `json:"encoding_fallback,omitempty"`
}

// DryRun reports whether the plan forbids all mutation.
func (p *InstallPlan) DryRun() bool {
	return p.Mode == ModeDryRun
}

// HasModule reports whether the named module is selected.
func (p *InstallPlan) HasModule(name string) bool {
	for _, m := range p.Modules {
		if m == name {
			return true
		}
	}
	return false
}

// Validate checks plan consistency before execution begins.
func (p *InstallPlan) Validate() error {
	if p.InstallDirectory == "" {
		return NewError(KindInternal, "plan has no install directory", nil)
	}
	if len(p.Modules) == 0 {
		return NewError(KindInternal, "plan selects no modules", nil)
	}
	if err := p.Mode.Validate(); err != nil {
		return NewError(KindInternal, "plan mode invalid", err)
	}
	if p.EnableAI && len(p.AIModels) == 0 {
		return NewError(KindInternal, "AI enabled but no models selected", nil)
	}
	return nil
}

// ToolSpec names an external tool and its minimum acceptable version.
type ToolSpec struct {
	// Name is the executable name as probed on PATH.
	Name string `json:"name"`

	// MinVersion is the minimum acceptable dotted version. Empty accepts
	// any version.
	MinVersion string `json:"min_version,omitempty"`

	// Critical tools abort the run when unresolved; non-critical ones only
	// produce a warning.
	Critical bool `json:"critical"`
}

// DependencyStatus is the probed state of one external tool. Recomputed on
// every probe, never persisted.
type DependencyStatus struct {
	Name             string `json:"name"`
	Available        bool   `json:"available"`
	Version          string `json:"version,omitempty"`
	RequiredVersion  string `json:"required_version,omitempty"`
	VersionSatisfied bool   `json:"version_satisfied"`
	Path             string `json:"path,omitempty"`
}

// Satisfied reports whether the tool needs no further action.
func (d DependencyStatus) Satisfied() bool {
	return d.Available && d.VersionSatisfied
}

// StepResult is the outcome of running one atomic step.
type StepResult struct {
	Name      string        `json:"name"`
	Status    StepStatus    `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Duration  time.Duration `json:"duration"`
	Err       *InstallError `json:"error,omitempty"`
}

// SequenceResult summarizes a sequencer run over a list of steps.
type SequenceResult struct {
	Results    []StepResult  `json:"results"`
	Completed  int           `json:"completed"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	RolledBack int           `json:"rolled_back"`
	Duration   time.Duration `json:"duration"`
}

// OK reports whether every critical step completed.
func (r *SequenceResult) OK() bool {
	return r.Failed == 0
}

// MeanStepDuration returns the average duration of completed steps, used
// for the running ETA. Zero when nothing has completed.
func (r *SequenceResult) MeanStepDuration() time.Duration {
	var total time.Duration
	n := 0
	for _, res := range r.Results {
		if res.Status == StepStatusCompleted {
			total += res.Duration
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / time.Duration(n)
}
