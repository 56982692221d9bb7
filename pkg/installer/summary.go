package installer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/noxsuite/noxinstall/pkg/engine"
)

// summaryFileName is the completion marker every successful run leaves at
// the installation root.
const summaryFileName = "INSTALLATION_SUMMARY.json"

// installationSummary is the machine-readable completion artifact.
type installationSummary struct {
	Status           string                 `json:"status"`
	Timestamp        string                 `json:"timestamp"`
	InstallDirectory string                 `json:"install_directory"`
	Configuration    *engine.InstallPlan    `json:"configuration"`
	SystemInfo       map[string]interface{} `json:"system_info"`
}

// finalizeSteps writes the summary artifact and emits the completion
// report.
func (inst *Installer) finalizeSteps() []*engine.AtomicStep {
	return []*engine.AtomicStep{
		engine.NewStep("write-summary", "Write the installation summary", inst.writeSummary).
			WithRollback(removeArtifact),
		engine.NewStep("completion-report", "Report installation completion", func(ctx context.Context) (interface{}, error) {
			inst.journal.Info(fmt.Sprintf("Installation completed at %s", inst.plan.InstallDirectory))
			return nil, nil
		}).NonCritical(),
	}
}

func (inst *Installer) writeSummary(ctx context.Context) (interface{}, error) {
	path := filepath.Join(inst.plan.InstallDirectory, summaryFileName)

	summary := installationSummary{
		Status:           string(engine.SessionStatusCompleted),
		Timestamp:        time.Now().Format(time.RFC3339),
		InstallDirectory: inst.plan.InstallDirectory,
		Configuration:    inst.plan,
		SystemInfo:       inst.systemInfo(),
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return path, engine.NewError(engine.KindPermissionDenied, "failed to write installation summary", err)
	}
	return path, nil
}

// systemInfo flattens the capability snapshot and the final dependency
// probe into the summary document.
func (inst *Installer) systemInfo() map[string]interface{} {
	tools := make(map[string]interface{}, len(inst.depsStatus))
	for _, status := range inst.depsStatus {
		tools[status.Name] = map[string]interface{}{
			"available": status.Available,
			"version":   status.Version,
			"satisfied": status.Satisfied(),
		}
	}
	return map[string]interface{}{
		"os":               inst.caps.OSFamily,
		"arch":             inst.caps.Arch,
		"memory_gb":        inst.caps.MemoryGB,
		"cpu_cores":        inst.caps.CPUCores,
		"package_managers": inst.caps.PackageManagers,
		"utf8_supported":   inst.caps.UTF8Supported,
		"elevated":         inst.caps.Elevated,
		"tools":            tools,
	}
}

// simulatedReport renders the dry-run report: the full step list that would
// have run, explicitly marked as simulated.
func (inst *Installer) simulatedReport(result *engine.SequenceResult) string {
	report := "Simulated installation (no changes were made)\n"
	report += fmt.Sprintf("  directory: %s\n", inst.plan.InstallDirectory)
	report += fmt.Sprintf("  steps that would run (%d):\n", len(result.Results))
	for _, res := range result.Results {
		report += fmt.Sprintf("    - %s\n", res.Name)
	}
	return report
}
