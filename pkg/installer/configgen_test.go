package installer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func scaffolded(t *testing.T, inst *Installer) {
	t.Helper()
	_, err := inst.createDirectories(context.Background())
	require.NoError(t, err)
}

func TestGenerateSuiteConfig(t *testing.T) {
	base := filepath.Join(t.TempDir(), "noxsuite")
	inst := testInstaller(t, fullPlan(base))
	scaffolded(t, inst)

	data, err := inst.generateSuiteConfig(context.Background())
	require.NoError(t, err)
	path, ok := data.(string)
	require.True(t, ok)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, base, doc["install_directory"])
	features, ok := doc["features"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, features["enable_ai"])

	// Rollback removes exactly the artifact.
	require.NoError(t, removeArtifact(context.Background(), data))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestGenerateComposeIncludesSelectedServices(t *testing.T) {
	base := filepath.Join(t.TempDir(), "noxsuite")
	inst := testInstaller(t, fullPlan(base))
	scaffolded(t, inst)

	data, err := inst.generateCompose(context.Background())
	require.NoError(t, err)

	raw, err := os.ReadFile(data.(string))
	require.NoError(t, err)
	var doc composeDocument
	require.NoError(t, yaml.Unmarshal(raw, &doc))

	assert.Contains(t, doc.Services, "postgres")
	assert.Contains(t, doc.Services, "redis")
	assert.Contains(t, doc.Services, "noxpanel")
	assert.Contains(t, doc.Services, "ollama")
	assert.Contains(t, doc.Services, "langflow")
	// plugin-system contributes no service of its own.
	assert.NotContains(t, doc.Services, "plugin-system")
	assert.Contains(t, doc.Services["noxpanel"].DependsOn, "postgres")
}

func TestGenerateComposeWithoutAI(t *testing.T) {
	base := filepath.Join(t.TempDir(), "noxsuite")
	plan := fullPlan(base)
	plan.EnableAI = false
	plan.AIModels = nil
	inst := testInstaller(t, plan)
	scaffolded(t, inst)

	data, err := inst.generateCompose(context.Background())
	require.NoError(t, err)

	raw, err := os.ReadFile(data.(string))
	require.NoError(t, err)
	var doc composeDocument
	require.NoError(t, yaml.Unmarshal(raw, &doc))

	assert.NotContains(t, doc.Services, "ollama")
	assert.NotContains(t, doc.Services, "langflow")
}

func TestGenerateScriptsUnix(t *testing.T) {
	base := filepath.Join(t.TempDir(), "noxsuite")
	inst := testInstaller(t, fullPlan(base))
	scaffolded(t, inst)

	data, err := inst.generateScripts(context.Background())
	require.NoError(t, err)
	written, ok := data.([]string)
	require.True(t, ok)
	require.Len(t, written, 2)

	start, err := os.ReadFile(filepath.Join(base, "scripts", "start.sh"))
	require.NoError(t, err)
	assert.Contains(t, string(start), "docker compose")
	assert.Contains(t, string(start), "up -d")

	require.NoError(t, removeArtifacts(context.Background(), data))
	_, err = os.Stat(written[0])
	assert.True(t, os.IsNotExist(err))
}

func TestValidateInstallation(t *testing.T) {
	base := filepath.Join(t.TempDir(), "noxsuite")
	inst := testInstaller(t, fullPlan(base))
	scaffolded(t, inst)

	// Fresh scaffold is missing config and summary.
	problems := ValidateInstallation(base)
	assert.NotEmpty(t, problems)

	_, err := inst.generateSuiteConfig(context.Background())
	require.NoError(t, err)
	_, err = inst.writeSummary(context.Background())
	require.NoError(t, err)

	assert.Empty(t, ValidateInstallation(base))
	assert.Contains(t, ValidateInstallation(filepath.Join(base, "absent")),
		"installation directory missing: "+filepath.Join(base, "absent"))
}

func TestStageRegistryRespectsPlan(t *testing.T) {
	plan := fullPlan("/tmp/nox")
	names := func(defs []StageDef) []string {
		out := make([]string, 0, len(defs))
		for _, d := range defs {
			out = append(out, d.Name)
		}
		return out
	}

	withAI := names(Stages(plan))
	assert.Contains(t, withAI, "ai-components")
	assert.Equal(t, "pre-checks", withAI[0])
	assert.Equal(t, "finalize", withAI[len(withAI)-1])

	plan.EnableAI = false
	withoutAI := names(Stages(plan))
	assert.NotContains(t, withoutAI, "ai-components")
	assert.Len(t, withoutAI, len(withAI)-1)
}
