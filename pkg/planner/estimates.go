package planner

import (
	"github.com/noxsuite/noxinstall/pkg/engine"
)

// Estimate is the predicted footprint of a plan.
type Estimate struct {
	SizeGB      float64 `json:"size_gb"`
	TimeMinutes int     `json:"time_minutes"`
}

// dockerOverheadGB accounts for the base images every installation pulls.
const dockerOverheadGB = 2.0

// modelSizeGB is the planning estimate per AI model.
const modelSizeGB = 4.0

// EstimatePlan predicts disk usage and install time for a plan.
func EstimatePlan(plan *engine.InstallPlan) Estimate {
	modules := len(plan.Modules)
	models := 0
	if plan.EnableAI {
		models = len(plan.AIModels)
	}

	return Estimate{
		SizeGB:      0.5 + 0.1*float64(modules) + modelSizeGB*float64(models) + dockerOverheadGB,
		TimeMinutes: 5 + 2*modules + 10*models + 10,
	}
}
