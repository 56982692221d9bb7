package installer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/noxsuite/noxinstall/pkg/deps"
	"github.com/noxsuite/noxinstall/pkg/engine"
)

// composeFile is the generated compose file, relative to the install
// directory.
var composeFile = filepath.Join("docker", "docker-compose.noxsuite.yml")

// dependencySteps resolves external tools through the package manager
// command table.
func (inst *Installer) dependencySteps() []*engine.AtomicStep {
	return []*engine.AtomicStep{
		engine.NewStep("resolve-dependencies", "Install and verify required external tools", func(ctx context.Context) (interface{}, error) {
			statuses, err := inst.resolver.Ensure(ctx, inst.caps, deps.DefaultToolSpecs)
			inst.depsStatus = statuses
			if err != nil {
				return nil, err
			}
			for _, status := range statuses {
				if !status.Satisfied() {
					inst.journal.Warning(fmt.Sprintf("optional tool %s unavailable", status.Name))
				}
			}
			return nil, nil
		}),
	}
}

// coreSteps installs each selected module: its manifest is written under
// config/modules and removed again on rollback.
func (inst *Installer) coreSteps() []*engine.AtomicStep {
	steps := []*engine.AtomicStep{
		engine.NewStep("prepare-modules", "Prepare the module manifest directory", func(ctx context.Context) (interface{}, error) {
			dir := filepath.Join(inst.plan.InstallDirectory, "config", "modules")
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, engine.NewError(engine.KindPermissionDenied, "failed to create module manifest directory", err)
			}
			return nil, nil
		}),
	}

	for _, module := range inst.plan.Modules {
		module := module
		comp, ok := ComponentFor(module)
		if !ok {
			steps = append(steps, engine.NewStep("install-"+module, "Install module "+module, func(ctx context.Context) (interface{}, error) {
				return nil, engine.NewError(engine.KindStepValidationFailed,
					fmt.Sprintf("unknown module %q", module), nil)
			}))
			continue
		}

		manifest := filepath.Join(inst.plan.InstallDirectory, "config", "modules", module+".json")
		steps = append(steps, engine.NewStep("install-"+module, "Install module "+module, func(ctx context.Context) (interface{}, error) {
			data, err := json.MarshalIndent(map[string]interface{}{
				"name":         comp.Name,
				"description":  comp.Description,
				"services":     comp.Services,
				"directories":  comp.Directories,
				"installed_at": time.Now().Format(time.RFC3339),
			}, "", "  ")
			if err != nil {
				return nil, err
			}
			if err := os.WriteFile(manifest, data, 0644); err != nil {
				return manifest, engine.NewError(engine.KindPermissionDenied,
					fmt.Sprintf("failed to write manifest for %s", module), err)
			}
			return manifest, nil
		}).WithRollback(func(ctx context.Context, data interface{}) error {
			return os.Remove(manifest)
		}).After("prepare-modules"))
	}
	return steps
}

// aiSteps pre-pulls the AI runtime images. Model pulls run later, once the
// runtime container is up.
func (inst *Installer) aiSteps() []*engine.AtomicStep {
	images := []string{"ollama/ollama:latest", "langflowai/langflow:latest"}
	steps := make([]*engine.AtomicStep, 0, len(images))
	for _, image := range images {
		image := image
		name := "pull-image-" + filepath.Base(image)
		steps = append(steps, engine.NewStep(name, "Pull container image "+image, func(ctx context.Context) (interface{}, error) {
			res, err := inst.runner.Run(ctx, 10*time.Minute, "docker", "pull", image)
			if err != nil {
				return nil, engine.NewError(engine.KindNetworkUnreachable,
					fmt.Sprintf("failed to pull %s", image), err).
					WithDetail("exit_code", res.ExitCode)
			}
			return nil, nil
		}).WithRetries(2).NonCritical())
	}
	return steps
}

// serviceSteps prepares and, when the plan asks for it, starts the suite.
func (inst *Installer) serviceSteps() []*engine.AtomicStep {
	compose := filepath.Join(inst.plan.InstallDirectory, composeFile)

	steps := []*engine.AtomicStep{
		engine.NewStep("compose-pull", "Pull service images", func(ctx context.Context) (interface{}, error) {
			res, err := inst.runner.Run(ctx, 15*time.Minute, "docker", "compose", "-f", compose, "pull")
			if err != nil {
				return nil, engine.NewError(engine.KindNetworkUnreachable, "failed to pull service images", err).
					WithDetail("exit_code", res.ExitCode)
			}
			return nil, nil
		}).WithRetries(2).NonCritical(),
	}

	if !inst.plan.AutoStart {
		return steps
	}

	steps = append(steps,
		engine.NewStep("compose-up", "Start suite services", func(ctx context.Context) (interface{}, error) {
			res, err := inst.runner.Run(ctx, 5*time.Minute, "docker", "compose", "-f", compose, "up", "-d")
			if err != nil {
				return compose, engine.NewError(engine.KindDependencyInstallFailed, "failed to start services", err).
					WithDetail("exit_code", res.ExitCode).
					WithDetail("stderr", res.Stderr)
			}
			return compose, nil
		}).WithRollback(func(ctx context.Context, data interface{}) error {
			_, err := inst.runner.Run(ctx, 2*time.Minute, "docker", "compose", "-f", compose, "down")
			return err
		}))

	if inst.plan.EnableAI {
		for _, model := range inst.plan.AIModels {
			model := model
			steps = append(steps,
				engine.NewStep("pull-model-"+model, "Pull AI model "+model, func(ctx context.Context) (interface{}, error) {
					res, err := inst.runner.Run(ctx, 30*time.Minute,
						"docker", "compose", "-f", compose, "exec", "-T", "ollama", "ollama", "pull", model)
					if err != nil {
						return nil, engine.NewError(engine.KindNetworkUnreachable,
							fmt.Sprintf("failed to pull model %s", model), err).
							WithDetail("exit_code", res.ExitCode)
					}
					return nil, nil
				}).WithRetries(2).NonCritical().After("compose-up"))
		}
	}
	return steps
}

// requiredDirs must exist for the installation to count as valid.
var requiredDirs = []string{"config", "scripts", "docker", filepath.Join("data", "logs")}

// validationSteps verifies the finished installation.
func (inst *Installer) validationSteps() []*engine.AtomicStep {
	steps := []*engine.AtomicStep{
		engine.NewStep("validate-structure", "Verify the required directories exist", func(ctx context.Context) (interface{}, error) {
			for _, dir := range requiredDirs {
				path := filepath.Join(inst.plan.InstallDirectory, dir)
				info, err := os.Stat(path)
				if err != nil || !info.IsDir() {
					return nil, engine.NewError(engine.KindStepValidationFailed,
						fmt.Sprintf("required directory missing: %s", dir), err)
				}
			}
			return nil, nil
		}),
		engine.NewStep("validate-config", "Verify the suite configuration parses", func(ctx context.Context) (interface{}, error) {
			path := filepath.Join(inst.plan.InstallDirectory, "config", "noxsuite.json")
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, engine.NewError(engine.KindStepValidationFailed, "suite configuration missing", err)
			}
			var doc map[string]interface{}
			if err := json.Unmarshal(data, &doc); err != nil {
				return nil, engine.NewError(engine.KindStepValidationFailed, "suite configuration is not valid JSON", err)
			}
			return nil, nil
		}),
	}

	if inst.plan.AutoStart {
		compose := filepath.Join(inst.plan.InstallDirectory, composeFile)
		steps = append(steps,
			engine.NewStep("validate-services", "Check service health", func(ctx context.Context) (interface{}, error) {
				res, err := inst.runner.Run(ctx, time.Minute, "docker", "compose", "-f", compose, "ps")
				if err != nil {
					return nil, engine.NewError(engine.KindStepValidationFailed, "service status query failed", err).
						WithDetail("stderr", res.Stderr)
				}
				return nil, nil
			}).NonCritical())
	}
	return steps
}
