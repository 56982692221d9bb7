package planner

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noxsuite/noxinstall/pkg/audit"
	"github.com/noxsuite/noxinstall/pkg/engine"
	"github.com/noxsuite/noxinstall/pkg/platform"
)

func testCaps(osFamily string, memoryGB float64) *platform.CapabilitySnapshot {
	return &platform.CapabilitySnapshot{
		OSFamily:      osFamily,
		MemoryGB:      memoryGB,
		CPUCores:      8,
		HomeDirectory: "/home/tester",
		UTF8Supported: true,
	}
}

func TestFastPlanDefaults(t *testing.T) {
	p := NewPlanner(nil, testCaps("linux", 16))
	plan, err := p.Plan(context.Background(), engine.ModeFast, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/home/tester", "noxsuite"), plan.InstallDirectory)
	assert.Equal(t, defaultModules, plan.Modules)
	assert.True(t, plan.EnableAI)
	assert.False(t, plan.EnableVoice)
	assert.True(t, plan.EnableMobile)
	assert.True(t, plan.AutoStart)
	assert.Equal(t, defaultModels, plan.AIModels)
	assert.False(t, plan.DryRun())
}

func TestWindowsDefaultDirectory(t *testing.T) {
	p := NewPlanner(nil, testCaps("windows", 16))
	plan, err := p.Plan(context.Background(), engine.ModeFast, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(plan.InstallDirectory, "NoxSuite"))
}

func TestDryRunPlanForbidsMutation(t *testing.T) {
	p := NewPlanner(nil, testCaps("linux", 16))
	plan, err := p.Plan(context.Background(), engine.ModeDryRun, nil)
	require.NoError(t, err)
	assert.True(t, plan.DryRun())
	assert.Equal(t, defaultModules, plan.Modules)
}

func TestSafePlanDisablesAIUnconditionally(t *testing.T) {
	// Plenty of memory must not re-enable AI in safe mode.
	p := NewPlanner(nil, testCaps("linux", 64))
	plan, err := p.Plan(context.Background(), engine.ModeSafe, nil)
	require.NoError(t, err)

	assert.False(t, plan.EnableAI)
	assert.Empty(t, plan.AIModels)
	assert.Equal(t, safeModules, plan.Modules)
	assert.False(t, plan.AutoStart)
}

func TestPlanForcesEncodingFallbackWithoutUTF8(t *testing.T) {
	caps := testCaps("linux", 16)
	caps.UTF8Supported = false

	p := NewPlanner(nil, caps)
	plan, err := p.Plan(context.Background(), engine.ModeFast, nil)
	require.NoError(t, err)
	assert.True(t, plan.EncodingFallback)

	caps.UTF8Supported = true
	plan, err = p.Plan(context.Background(), engine.ModeFast, nil)
	require.NoError(t, err)
	assert.False(t, plan.EncodingFallback)
}

func TestRecoveryPlanWithoutPriorFailures(t *testing.T) {
	p := NewPlanner(nil, testCaps("linux", 16))
	plan, err := p.Plan(context.Background(), engine.ModeRecovery, nil)
	require.NoError(t, err)
	assert.Equal(t, engine.ModeRecovery, plan.Mode)
	assert.Equal(t, defaultModules, plan.Modules)
}

func TestRecoveryPlanAdjustsToEncodingFailures(t *testing.T) {
	analysis := &audit.FailureAnalysis{
		FailedSteps: []audit.FailedStep{{Step: "install-noxpanel"}},
		Categories:  map[string]int{"encoding_issues": 2},
	}

	p := NewPlanner(nil, testCaps("linux", 16))
	plan, err := p.Plan(context.Background(), engine.ModeRecovery, analysis)
	require.NoError(t, err)

	assert.True(t, plan.EncodingFallback)
	assert.Equal(t, safeModules, plan.Modules)
	assert.False(t, plan.EnableAI)
}

func TestRecoveryPlanRelocatesOnPermissionFailures(t *testing.T) {
	analysis := &audit.FailureAnalysis{
		FailedSteps: []audit.FailedStep{{Step: "create-directories"}},
		Categories:  map[string]int{"permission_errors": 1},
	}

	p := NewPlanner(nil, testCaps("linux", 16))
	plan, err := p.Plan(context.Background(), engine.ModeRecovery, analysis)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/tester", "noxsuite"), plan.InstallDirectory)
}

func TestGuidedPlanAcceptsDefaults(t *testing.T) {
	dir := t.TempDir()
	// directory, standard modules, AI, models (defaults), voice, mobile,
	// dev, autostart, final confirmation.
	input := strings.NewReader(dir + "\ny\ny\n\nn\ny\nn\ny\ny\n")
	var out strings.Builder

	p := NewPlanner(nil, testCaps("linux", 16)).WithIO(input, &out)
	plan, err := p.Plan(context.Background(), engine.ModeGuided, nil)
	require.NoError(t, err)
	require.NotNil(t, plan)

	assert.Equal(t, dir, plan.InstallDirectory)
	assert.Equal(t, defaultModules, plan.Modules)
	assert.True(t, plan.EnableAI)
	assert.Equal(t, defaultModels, plan.AIModels)
	assert.Contains(t, out.String(), "Installation plan:")
}

func TestGuidedPlanDeclinedConfirmation(t *testing.T) {
	dir := t.TempDir()
	input := strings.NewReader(dir + "\ny\nn\nn\ny\nn\ny\nn\n")
	var out strings.Builder

	p := NewPlanner(nil, testCaps("linux", 16)).WithIO(input, &out)
	plan, err := p.Plan(context.Background(), engine.ModeGuided, nil)
	require.NoError(t, err)
	assert.Nil(t, plan, "declining the final confirmation cancels planning")
	assert.Contains(t, out.String(), "cancelled")
}

func TestValidateDirectoryRejectsUnwritableParent(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("needs procfs")
	}
	p := NewPlanner(nil, testCaps("linux", 16))
	// procfs refuses file creation regardless of privileges, so the nearest
	// existing ancestor of this path fails the writability probe.
	reason := p.validateDirectory("/proc/noxsuite")
	assert.Contains(t, reason, "cannot write")

	assert.Empty(t, p.validateDirectory(t.TempDir()))
}

func TestGuidedPlanRepromptsOnUnwritableDirectory(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("needs procfs")
	}
	dir := t.TempDir()
	input := strings.NewReader("/proc/noxsuite\n" + dir + "\ny\nn\nn\ny\nn\ny\ny\n")
	var out strings.Builder

	p := NewPlanner(nil, testCaps("linux", 16)).WithIO(input, &out)
	plan, err := p.Plan(context.Background(), engine.ModeGuided, nil)
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, dir, plan.InstallDirectory)
	assert.Contains(t, out.String(), "cannot write")
}

func TestGuidedPlanRejectsRelativeDirectory(t *testing.T) {
	dir := t.TempDir()
	input := strings.NewReader("relative/path\n" + dir + "\ny\nn\nn\ny\nn\ny\ny\n")
	var out strings.Builder

	p := NewPlanner(nil, testCaps("linux", 16)).WithIO(input, &out)
	plan, err := p.Plan(context.Background(), engine.ModeGuided, nil)
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, dir, plan.InstallDirectory)
	assert.Contains(t, out.String(), "absolute path")
}

func TestEstimatePlan(t *testing.T) {
	plan := &engine.InstallPlan{
		Modules:  []string{"noxpanel", "noxguard"},
		EnableAI: true,
		AIModels: []string{"mistral:7b-instruct"},
	}
	est := EstimatePlan(plan)
	assert.InDelta(t, 0.5+0.2+4.0+2.0, est.SizeGB, 0.001)
	assert.Equal(t, 5+4+10+10, est.TimeMinutes)

	plan.EnableAI = false
	est = EstimatePlan(plan)
	assert.InDelta(t, 2.7, est.SizeGB, 0.001)
	assert.Equal(t, 19, est.TimeMinutes)
}
