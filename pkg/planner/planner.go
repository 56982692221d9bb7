// Package planner produces validated installation plans, either from fixed
// per-mode defaults or interactively.
package planner

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/noxsuite/noxinstall/pkg/audit"
	"github.com/noxsuite/noxinstall/pkg/engine"
	"github.com/noxsuite/noxinstall/pkg/platform"
	"github.com/noxsuite/noxinstall/pkg/telemetry"
)

// defaultModules is the standard module set installed by fast mode.
var defaultModules = []string{
	"noxpanel",
	"noxguard",
	"autoimport",
	"heimnetz-scanner",
	"plugin-system",
	"update-manager",
}

// safeModules is the minimal set that still yields a working installation.
var safeModules = []string{"noxpanel", "noxguard"}

// defaultModels are pulled when AI is enabled without an explicit selection.
var defaultModels = []string{"mistral:7b-instruct", "gemma:7b-it"}

// aiMemoryThresholdGB is the memory floor above which AI defaults to on.
const aiMemoryThresholdGB = 8.0

// Planner builds installation plans.
type Planner struct {
	log  *telemetry.Logger
	caps *platform.CapabilitySnapshot

	in  io.Reader
	out io.Writer
}

// NewPlanner creates a planner bound to a capability snapshot. Guided mode
// prompts on stdin/stdout unless WithIO overrides them.
func NewPlanner(log *telemetry.Logger, caps *platform.CapabilitySnapshot) *Planner {
	if log == nil {
		log = telemetry.NopLogger()
	}
	return &Planner{
		log:  log.NewComponentLogger("planner"),
		caps: caps,
		in:   os.Stdin,
		out:  os.Stdout,
	}
}

// WithIO redirects guided-mode prompts, primarily for tests.
func (p *Planner) WithIO(in io.Reader, out io.Writer) *Planner {
	p.in = in
	p.out = out
	return p
}

// Plan produces the installation plan for the given mode. priorAnalysis is
// only consulted in recovery mode and may be nil. A nil plan with a nil
// error means the user cancelled during guided planning.
func (p *Planner) Plan(ctx context.Context, mode engine.Mode, priorAnalysis *audit.FailureAnalysis) (*engine.InstallPlan, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	var plan *engine.InstallPlan
	switch mode {
	case engine.ModeFast:
		plan = p.fastPlan()
	case engine.ModeDryRun:
		plan = p.fastPlan()
		plan.Mode = engine.ModeDryRun
	case engine.ModeSafe:
		plan = p.safePlan()
	case engine.ModeRecovery:
		plan = p.recoveryPlan(priorAnalysis)
	case engine.ModeGuided:
		guided, err := p.guidedPlan(ctx, p.in, p.out)
		if err != nil || guided == nil {
			return nil, err
		}
		plan = guided
	}

	if !p.caps.UTF8Supported {
		// The encoding decision belongs to the plan, which is frozen once
		// execution starts.
		plan.EncodingFallback = true
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	p.log.WithFields(map[string]interface{}{
		"mode":    string(plan.Mode),
		"dir":     plan.InstallDirectory,
		"modules": len(plan.Modules),
		"ai":      plan.EnableAI,
	}).Debug("Plan produced")
	return plan, nil
}

// fastPlan returns the zero-prompt default configuration.
func (p *Planner) fastPlan() *engine.InstallPlan {
	return &engine.InstallPlan{
		InstallDirectory: p.defaultDirectory(),
		Modules:          append([]string(nil), defaultModules...),
		EnableAI:         true,
		EnableVoice:      false,
		EnableMobile:     true,
		DevMode:          false,
		AutoStart:        true,
		AIModels:         append([]string(nil), defaultModels...),
		Mode:             engine.ModeFast,
	}
}

// safePlan returns the minimal configuration. AI stays off regardless of
// host memory.
func (p *Planner) safePlan() *engine.InstallPlan {
	return &engine.InstallPlan{
		InstallDirectory: p.defaultDirectory(),
		Modules:          append([]string(nil), safeModules...),
		EnableAI:         false,
		EnableVoice:      false,
		EnableMobile:     false,
		DevMode:          false,
		AutoStart:        false,
		Mode:             engine.ModeSafe,
	}
}

// recoveryPlan adapts to the failure categories of the previous attempt.
// Without prior failures it degrades to the fast defaults.
func (p *Planner) recoveryPlan(analysis *audit.FailureAnalysis) *engine.InstallPlan {
	if analysis == nil || !analysis.Failed() {
		plan := p.fastPlan()
		plan.Mode = engine.ModeRecovery
		return plan
	}

	plan := p.safePlan()
	plan.Mode = engine.ModeRecovery

	if analysis.Categories["permission_errors"] > 0 {
		// A permission failure means the previous directory was not ours to
		// write; relocate under home.
		plan.InstallDirectory = p.defaultDirectory()
	}
	if analysis.Categories["encoding_issues"] > 0 {
		plan.EncodingFallback = true
	}
	return plan
}

// defaultDirectory is NoxSuite under the user's home, falling back to the
// working directory when home cannot be resolved.
func (p *Planner) defaultDirectory() string {
	home := p.caps.HomeDirectory
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			home = "."
		}
	}
	name := "noxsuite"
	if p.caps.OSFamily == "windows" {
		name = "NoxSuite"
	}
	return filepath.Join(home, name)
}
