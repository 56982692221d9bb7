package deps

import (
	"context"
	"fmt"
	"strings"

	"github.com/noxsuite/noxinstall/pkg/engine"
	"github.com/noxsuite/noxinstall/pkg/platform"
	"github.com/noxsuite/noxinstall/pkg/telemetry"
)

// maxInstallAttempts bounds how many installation cycles a single tool gets
// before the resolver abandons it. Attempts are counted flat, with no
// backoff between cycles.
const maxInstallAttempts = 3

// DefaultToolSpecs is the tool set a full installation requires.
var DefaultToolSpecs = []engine.ToolSpec{
	{Name: "docker", MinVersion: "20.0.0", Critical: true},
	{Name: "git", MinVersion: "2.20.0", Critical: true},
	{Name: "node", MinVersion: "16.0.0", Critical: false},
	{Name: "npm", MinVersion: "8.0.0", Critical: false},
	{Name: "python3", MinVersion: "3.8.0", Critical: false},
}

// ToolProber abstracts the platform probe so the resolver can re-verify a
// tool after installing it.
type ToolProber interface {
	ProbeTool(ctx context.Context, name string) platform.ToolInfo
}

// Resolver checks external tool availability and installs missing tools
// through the host's package managers.
type Resolver struct {
	log     *telemetry.Logger
	metrics *telemetry.Metrics
	prober  ToolProber
	runner  CommandRunner

	// attempts counts install cycles per tool across the resolver's
	// lifetime. A successful verification resets the tool's counter.
	attempts map[string]int
}

// NewResolver creates a resolver. log and metrics may be nil; runner
// defaults to ExecRunner.
func NewResolver(log *telemetry.Logger, metrics *telemetry.Metrics, prober ToolProber, runner CommandRunner) *Resolver {
	if log == nil {
		log = telemetry.NopLogger()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Resolver{
		log:      log.NewComponentLogger("deps"),
		metrics:  metrics,
		prober:   prober,
		runner:   runner,
		attempts: make(map[string]int),
	}
}

// CheckStatus probes every spec and returns a fresh status list. Statuses
// are recomputed on every call and never cached.
func (r *Resolver) CheckStatus(ctx context.Context, specs []engine.ToolSpec) []engine.DependencyStatus {
	statuses := make([]engine.DependencyStatus, 0, len(specs))
	for _, spec := range specs {
		statuses = append(statuses, r.probe(ctx, spec))
	}
	return statuses
}

// Ensure brings every spec to a satisfied state, installing missing tools
// through the capability-indexed command table. Each unsatisfied tool gets
// up to maxInstallAttempts install-and-verify cycles; a tool that stays
// unsatisfied after that is abandoned. The returned statuses reflect the
// final probe. The error is non-nil when any critical tool remains
// unsatisfied.
func (r *Resolver) Ensure(ctx context.Context, snapshot *platform.CapabilitySnapshot, specs []engine.ToolSpec) ([]engine.DependencyStatus, error) {
	statuses := make(map[string]engine.DependencyStatus, len(specs))
	for _, spec := range specs {
		statuses[spec.Name] = r.probe(ctx, spec)
	}

	for cycle := 1; cycle <= maxInstallAttempts; cycle++ {
		progress := false
		for _, spec := range specs {
			status := statuses[spec.Name]
			if status.Satisfied() || r.attempts[spec.Name] >= maxInstallAttempts {
				continue
			}
			if err := ctx.Err(); err != nil {
				return toSlice(specs, statuses), engine.NewError(engine.KindUserCancelled, "dependency resolution interrupted", err)
			}

			r.attempts[spec.Name]++
			status, installErr := r.install(ctx, snapshot, spec)
			if installErr != nil {
				r.log.WithField("tool", spec.Name).
					WithField("attempt", r.attempts[spec.Name]).
					WithError(installErr).
					Warn("Tool installation failed")
				continue
			}

			statuses[spec.Name] = status
			r.attempts[spec.Name] = 0
			progress = true
			r.log.WithField("tool", spec.Name).Info("Tool installed and verified")
		}
		if !progress && allSettled(specs, statuses, r.attempts) {
			break
		}
	}

	result := toSlice(specs, statuses)
	for _, spec := range specs {
		status := statuses[spec.Name]
		if status.Satisfied() {
			continue
		}
		if spec.Critical {
			return result, engine.NewError(engine.KindDependencyInstallFailed,
				fmt.Sprintf("required tool %s could not be installed", spec.Name), nil).
				WithTool(spec.Name).
				WithDetail("attempts", r.attempts[spec.Name])
		}
		r.log.WithField("tool", spec.Name).Warn("Optional tool unavailable, continuing without it")
	}
	return result, nil
}

// fallbackMethods close every tool's method list. Neither is implemented;
// they exist so the exhaustion of real managers is visible in the log.
var fallbackMethods = []string{"manual-download", "containerized"}

// install walks the tool's ordered method list: one command per capable
// package manager, then the fallback placeholders. A command's exit status
// proves nothing on its own; every candidate is verified with a fresh
// probe, and an unverified success advances the walk to the next method.
// Returns the verified status of the first method that holds up.
func (r *Resolver) install(ctx context.Context, snapshot *platform.CapabilitySnapshot, spec engine.ToolSpec) (engine.DependencyStatus, error) {
	cmds := CommandsFor(snapshot, spec.Name)
	if len(cmds) == 0 {
		// Nothing on this host can install the tool; burn the remaining
		// attempts so later cycles do not retry a dead end.
		r.attempts[spec.Name] = maxInstallAttempts
		return engine.DependencyStatus{}, engine.NewError(engine.KindDependencyInstallFailed,
			fmt.Sprintf("no package manager on this host can install %s", spec.Name), nil).
			WithTool(spec.Name).
			WithDetail("managers", snapshot.PackageManagers)
	}

	var lastErr error
	for _, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			return engine.DependencyStatus{}, err
		}
		if err := r.runInstall(ctx, spec.Name, cmd); err != nil {
			lastErr = err
			continue
		}

		status := r.probe(ctx, spec)
		if status.Satisfied() {
			return status, nil
		}
		r.log.WithField("tool", spec.Name).
			WithField("manager", cmd.Manager).
			Warn("Install command succeeded but verification probe failed, trying next method")
		lastErr = engine.NewError(engine.KindDependencyInstallFailed,
			fmt.Sprintf("%s via %s reported success but did not verify", spec.Name, cmd.Manager), nil).
			WithTool(spec.Name).
			WithDetail("manager", cmd.Manager)
	}

	for _, method := range fallbackMethods {
		r.log.WithField("tool", spec.Name).
			WithField("method", method).
			Debug("Fallback install method not available")
	}
	return engine.DependencyStatus{}, lastErr
}

// runInstall executes one manager's pre-commands and install command.
func (r *Resolver) runInstall(ctx context.Context, tool string, cmd InstallCommand) error {
	r.log.WithField("tool", tool).
		WithField("manager", cmd.Manager).
		WithField("command", strings.Join(cmd.Args, " ")).
		Info("Installing tool")

	for _, pre := range cmd.Pre {
		if res, err := r.runner.Run(ctx, cmd.Timeout, pre[0], pre[1:]...); err != nil {
			r.log.WithField("command", strings.Join(pre, " ")).
				WithField("stderr", firstLine(res.Stderr)).
				WithError(err).
				Warn("Pre-install command failed")
		}
	}

	res, err := r.runner.Run(ctx, cmd.Timeout, cmd.Args[0], cmd.Args[1:]...)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	if r.metrics != nil {
		r.metrics.RecordDependencyInstall(tool, cmd.Manager, outcome, res.Duration)
	}
	if err != nil {
		return engine.NewError(engine.KindDependencyInstallFailed,
			fmt.Sprintf("%s install via %s failed", tool, cmd.Manager), err).
			WithTool(tool).
			WithDetail("exit_code", res.ExitCode).
			WithDetail("stderr", firstLine(res.Stderr))
	}
	return nil
}

// probe checks one tool and evaluates its version against the requirement.
func (r *Resolver) probe(ctx context.Context, spec engine.ToolSpec) engine.DependencyStatus {
	info := r.prober.ProbeTool(ctx, spec.Name)
	status := engine.DependencyStatus{
		Name:            spec.Name,
		Available:       info.Available,
		Version:         ExtractVersion(info.Version),
		RequiredVersion: spec.MinVersion,
		Path:            info.Path,
	}
	status.VersionSatisfied = status.Available && VersionSatisfies(status.Version, spec.MinVersion)
	if r.metrics != nil {
		r.metrics.RecordDependencyProbe(spec.Name, status.Satisfied())
	}
	return status
}

func toSlice(specs []engine.ToolSpec, statuses map[string]engine.DependencyStatus) []engine.DependencyStatus {
	out := make([]engine.DependencyStatus, 0, len(specs))
	for _, spec := range specs {
		out = append(out, statuses[spec.Name])
	}
	return out
}

// allSettled reports whether every spec is either satisfied or out of
// attempts, meaning further cycles cannot change anything.
func allSettled(specs []engine.ToolSpec, statuses map[string]engine.DependencyStatus, attempts map[string]int) bool {
	for _, spec := range specs {
		if !statuses[spec.Name].Satisfied() && attempts[spec.Name] < maxInstallAttempts {
			return false
		}
	}
	return true
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
