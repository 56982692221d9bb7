package installer

import (
	"github.com/noxsuite/noxinstall/pkg/engine"
)

// StageBuilder produces the atomic steps of one stage against the current
// installer state.
type StageBuilder func(inst *Installer) []*engine.AtomicStep

// StageDef is one entry of the static stage registry.
type StageDef struct {
	Name        string
	Description string

	// Enabled gates the stage on the plan. Nil means always enabled.
	Enabled func(plan *engine.InstallPlan) bool

	Build StageBuilder
}

// stageRegistry is the fixed execution order of an installation. Stages are
// declared statically; nothing is discovered at runtime.
var stageRegistry = []StageDef{
	{
		Name:        "pre-checks",
		Description: "Verify system compatibility, resources, and permissions",
		Build:       (*Installer).precheckSteps,
	},
	{
		Name:        "dependencies",
		Description: "Resolve and install required external tools",
		Build:       (*Installer).dependencySteps,
	},
	{
		Name:        "scaffold",
		Description: "Create the installation directory structure",
		Build:       (*Installer).scaffoldSteps,
	},
	{
		Name:        "core-install",
		Description: "Install the selected suite modules",
		Build:       (*Installer).coreSteps,
	},
	{
		Name:        "ai-components",
		Description: "Set up local AI runtime and models",
		Enabled:     func(plan *engine.InstallPlan) bool { return plan.EnableAI },
		Build:       (*Installer).aiSteps,
	},
	{
		Name:        "config-generation",
		Description: "Generate suite configuration and compose files",
		Build:       (*Installer).configGenSteps,
	},
	{
		Name:        "services",
		Description: "Prepare and start suite services",
		Build:       (*Installer).serviceSteps,
	},
	{
		Name:        "validation",
		Description: "Validate the finished installation",
		Build:       (*Installer).validationSteps,
	},
	{
		Name:        "finalize",
		Description: "Write summary artifacts and completion report",
		Build:       (*Installer).finalizeSteps,
	},
}

// Stages returns the registry entries enabled for the plan, in execution
// order.
func Stages(plan *engine.InstallPlan) []StageDef {
	out := make([]StageDef, 0, len(stageRegistry))
	for _, stage := range stageRegistry {
		if stage.Enabled != nil && !stage.Enabled(plan) {
			continue
		}
		out = append(out, stage)
	}
	return out
}

// Component describes one installable suite module: the directories it
// needs and the compose services it contributes.
type Component struct {
	Name        string
	Description string
	Directories []string
	Services    []string
}

// componentRegistry is the static module catalog. Plans reference modules
// by name; unknown names fail plan validation at the core-install stage.
var componentRegistry = map[string]Component{
	"noxpanel": {
		Name:        "noxpanel",
		Description: "Main dashboard and API",
		Directories: []string{"frontend/noxpanel-ui", "backend/fastapi"},
		Services:    []string{"noxpanel"},
	},
	"noxguard": {
		Name:        "noxguard",
		Description: "Security monitoring",
		Directories: []string{"backend/fastapi"},
		Services:    []string{"noxguard"},
	},
	"autoimport": {
		Name:        "autoimport",
		Description: "Automatic device discovery and import",
		Directories: []string{"backend/fastapi"},
		Services:    []string{"autoimport"},
	},
	"heimnetz-scanner": {
		Name:        "heimnetz-scanner",
		Description: "Home network scanner",
		Directories: []string{"backend/fastapi"},
		Services:    []string{"heimnetz-scanner"},
	},
	"plugin-system": {
		Name:        "plugin-system",
		Description: "Plugin runtime and registry",
		Directories: []string{"plugins"},
		Services:    []string{},
	},
	"update-manager": {
		Name:        "update-manager",
		Description: "Suite self-update service",
		Directories: []string{"backend/fastapi"},
		Services:    []string{"update-manager"},
	},
}

// ComponentFor looks up a module in the static catalog.
func ComponentFor(name string) (Component, bool) {
	c, ok := componentRegistry[name]
	return c, ok
}
