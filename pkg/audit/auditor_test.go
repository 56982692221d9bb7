package audit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noxsuite/noxinstall/pkg/journal"
)

// writeJournal produces a real journal file through the journal package so
// the auditor parses exactly what production runs write.
func writeJournal(t *testing.T, build func(j *journal.Journal)) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "install.log")
	j, err := journal.New(path, nil)
	require.NoError(t, err)
	build(j)
	require.NoError(t, j.Close())
	return path
}

func TestAnalyzeCountsCategoryMatches(t *testing.T) {
	path := writeJournal(t, func(j *journal.Journal) {
		j.SessionStart("s1", "fast")
		j.StepStart("resolve-dependencies", "Install tools")
		j.StepError("resolve-dependencies", "bash: docker: command not found", "dependency_install_failed", nil)
		j.StepError("install-noxpanel", "ImportError: no module named fastapi", "internal", nil)
		j.StepError("create-directories", "Permission denied: /opt/noxsuite", "permission_denied", nil)
	})

	analysis, err := NewAuditor(nil, nil).Analyze(path)
	require.NoError(t, err)

	// Two dependency-pattern entries, one permission entry.
	assert.Equal(t, 2, analysis.Categories["dependency_failures"])
	assert.Equal(t, 1, analysis.Categories["permission_errors"])
	assert.Len(t, analysis.FailedSteps, 3)
	assert.True(t, analysis.Failed())
}

func TestAnalyzeRecommendationsDeduplicated(t *testing.T) {
	path := writeJournal(t, func(j *journal.Journal) {
		j.StepError("a", "ConnectionError: timed out", "network_unreachable", nil)
		j.StepError("b", "connection refused", "network_unreachable", nil)
		j.StepError("c", "host unreachable", "network_unreachable", nil)
	})

	analysis, err := NewAuditor(nil, nil).Analyze(path)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, rec := range analysis.Recommendations {
		assert.False(t, seen[rec], "duplicate recommendation %q", rec)
		seen[rec] = true
	}
	assert.Contains(t, analysis.Recommendations, "For network_issues: Try retry_with_backoff")
}

func TestAnalyzeRecoverySuggestsResumeFromLastFailure(t *testing.T) {
	path := writeJournal(t, func(j *journal.Journal) {
		j.StepComplete("check-system", nil)
		j.StepError("install-noxguard", "UnicodeDecodeError: 'charmap' codec can't decode byte", "internal", nil)
		j.StepError("validate-config", "follow-on failure", "internal", nil)
	})

	analysis, err := NewAuditor(nil, nil).Analyze(path)
	require.NoError(t, err)

	require.NotEmpty(t, analysis.RecoverySuggestions)
	assert.Contains(t, analysis.RecoverySuggestions[0], "validate-config")
	assert.NotContains(t, analysis.RecoverySuggestions[0], "install-noxguard")
	assert.Equal(t, 1, analysis.Categories["encoding_issues"])
}

func TestAnalyzeMissingJournal(t *testing.T) {
	analysis, err := NewAuditor(nil, nil).Analyze(filepath.Join(t.TempDir(), "nope.log"))
	require.NoError(t, err)
	assert.Equal(t, 0, analysis.Entries)
	assert.False(t, analysis.Failed())
	assert.Empty(t, analysis.RecoverySuggestions)
}

func TestAnalyzeToleratesGarbledLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "install.log")
	content := "plain human line\n" +
		journal.Marker + `{"event":"step_error","step":"x","error":"timeout waiting for registry","timestamp":"2026-08-20T10:00:00Z"}` + "\n" +
		journal.Marker + `{"event":"step_error","step":"y","error":` + "\n" + // truncated mid-write
		"another human line\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	analysis, err := NewAuditor(nil, nil).Analyze(path)
	require.NoError(t, err)
	assert.Equal(t, 1, analysis.Entries)
	assert.Equal(t, 1, analysis.Categories["network_issues"])
}

func TestKnowledgeBaseOverride(t *testing.T) {
	kbPath := filepath.Join(t.TempDir(), "kb.json")
	override := `{"disk_issues":{"patterns":["No space left on device"],"solutions":["free_disk_space"]}}`
	require.NoError(t, os.WriteFile(kbPath, []byte(override), 0644))

	kb := NewKnowledgeBase(nil)
	require.NoError(t, kb.LoadFile(kbPath))

	assert.Contains(t, kb.Match("write failed: No space left on device"), "disk_issues")
	// Built-in categories survive the merge.
	assert.Contains(t, kb.Match("PermissionError: [Errno 13]"), "permission_errors")
}

func TestKnowledgeBaseMissingOverrideKeepsDefaults(t *testing.T) {
	kb := NewKnowledgeBase(nil)
	require.NoError(t, kb.LoadFile(filepath.Join(t.TempDir(), "absent.json")))
	assert.Len(t, kb.Categories(), 4)
}

func TestMatchIsCaseInsensitive(t *testing.T) {
	kb := NewKnowledgeBase(nil)
	assert.Contains(t, kb.Match("COMMAND NOT FOUND: docker"), "dependency_failures")
	assert.Empty(t, kb.Match("everything is fine"))
}
