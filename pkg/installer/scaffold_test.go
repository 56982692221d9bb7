package installer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noxsuite/noxinstall/pkg/engine"
	"github.com/noxsuite/noxinstall/pkg/platform"
)

func testInstaller(t *testing.T, plan *engine.InstallPlan) *Installer {
	t.Helper()
	return &Installer{
		plan: plan,
		caps: &platform.CapabilitySnapshot{OSFamily: "linux", MemoryGB: 16, CPUCores: 8},
	}
}

func fullPlan(dir string) *engine.InstallPlan {
	return &engine.InstallPlan{
		InstallDirectory: dir,
		Modules:          []string{"noxpanel", "plugin-system"},
		EnableAI:         true,
		EnableMobile:     true,
		AIModels:         []string{"mistral:7b-instruct"},
		Mode:             engine.ModeFast,
	}
}

func TestFlattenTreeSortedAndDeduplicated(t *testing.T) {
	inst := testInstaller(t, fullPlan("/tmp/nox"))
	paths := inst.flattenTree()

	assert.True(t, sort.StringsAreSorted(paths))
	seen := map[string]bool{}
	for _, p := range paths {
		assert.False(t, seen[p], "duplicate path %s", p)
		seen[p] = true
	}

	// Conditional branches resolved from the plan.
	assert.Contains(t, paths, filepath.Join("frontend", "noxgo-mobile"))
	assert.Contains(t, paths, filepath.Join("services", "ollama"))
	// Component directories merged in, overlapping with the base tree.
	assert.Contains(t, paths, filepath.Join("frontend", "noxpanel-ui"))
	assert.Contains(t, paths, "plugins")
}

func TestFlattenTreeRespectsDisabledFeatures(t *testing.T) {
	plan := fullPlan("/tmp/nox")
	plan.EnableAI = false
	plan.EnableMobile = false
	plan.AIModels = nil
	inst := testInstaller(t, plan)

	paths := inst.flattenTree()
	assert.NotContains(t, paths, filepath.Join("services", "ollama"))
	assert.NotContains(t, paths, filepath.Join("frontend", "noxgo-mobile"))
}

func TestCreateDirectoriesAndRollback(t *testing.T) {
	base := filepath.Join(t.TempDir(), "deep", "noxsuite")
	inst := testInstaller(t, fullPlan(base))

	data, err := inst.createDirectories(context.Background())
	require.NoError(t, err)
	created, ok := data.([]string)
	require.True(t, ok)
	require.NotEmpty(t, created)

	for _, rel := range inst.flattenTree() {
		info, statErr := os.Stat(filepath.Join(base, rel))
		require.NoError(t, statErr, rel)
		assert.True(t, info.IsDir())
	}
	assert.True(t, inst.validateDirectories(context.Background(), data))

	// A file dropped into one directory must survive the rollback.
	keeper := filepath.Join(base, "config")
	require.NoError(t, os.WriteFile(filepath.Join(keeper, "keep.txt"), []byte("x"), 0644))

	require.NoError(t, inst.removeCreatedDirectories(context.Background(), data))

	_, err = os.Stat(keeper)
	assert.NoError(t, err, "non-empty directory must not be removed")
	_, err = os.Stat(filepath.Join(base, "scripts"))
	assert.True(t, os.IsNotExist(err), "empty created directory must be removed")
}

func TestRollbackLeavesPreexistingDirectories(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "noxsuite")
	// The base already exists before the run.
	require.NoError(t, os.MkdirAll(base, 0755))

	inst := testInstaller(t, fullPlan(base))
	data, err := inst.createDirectories(context.Background())
	require.NoError(t, err)

	require.NoError(t, inst.removeCreatedDirectories(context.Background(), data))

	// Everything created this run is gone, the pre-existing base remains.
	info, statErr := os.Stat(base)
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())
	entries, readErr := os.ReadDir(base)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}
