package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "install.log")
	j, err := New(path, nil)
	require.NoError(t, err)
	return j, path
}

func TestJournalInterleavesHumanAndStructuredLines(t *testing.T) {
	j, path := newTestJournal(t)
	j.SessionStart("abc-123", "fast")
	j.StepStart("check-system", "Verify operating system compatibility")
	j.StepComplete("check-system", map[string]interface{}{"duration_seconds": 0.01})
	require.NoError(t, j.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")

	// Every event produces one human line followed by one structured line.
	require.Len(t, lines, 6)
	for i := 0; i < len(lines); i += 2 {
		assert.NotContains(t, lines[i], Marker)
		assert.True(t, strings.HasPrefix(lines[i+1], Marker), "line %d: %s", i+1, lines[i+1])
	}
}

func TestJournalParseRoundTrip(t *testing.T) {
	j, path := newTestJournal(t)
	j.SessionStart("abc-123", "safe")
	j.StepStart("resolve-dependencies", "Install tools")
	j.StepError("resolve-dependencies", "docker: command not found", "dependency_install_failed",
		map[string]interface{}{"tool": "docker"})
	j.Warning("low disk space")
	j.Info("stage: dependencies")
	require.NoError(t, j.Close())

	entries, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, entries, 5)

	assert.Equal(t, EventSessionStart, entries[0].Event)
	assert.Equal(t, "safe", entries[0].Description)

	errEntry := entries[2]
	assert.Equal(t, EventStepError, errEntry.Event)
	assert.Equal(t, "resolve-dependencies", errEntry.Step)
	assert.Equal(t, "docker: command not found", errEntry.Error)
	assert.Equal(t, "dependency_install_failed", errEntry.ErrorType)
	assert.Equal(t, "docker", errEntry.Context["tool"])
	assert.False(t, errEntry.Timestamp.IsZero())

	assert.Equal(t, EventWarning, entries[3].Event)
	assert.Equal(t, EventInfo, entries[4].Event)
}

func TestJournalSubscribers(t *testing.T) {
	j, _ := newTestJournal(t)
	defer j.Close()

	var received []Entry
	j.Subscribe(func(e Entry) { received = append(received, e) })

	j.StepStart("a", "first")
	j.StepComplete("a", nil)

	require.Len(t, received, 2)
	assert.Equal(t, EventStepStart, received[0].Event)
	assert.Equal(t, EventStepComplete, received[1].Event)
}

func TestJournalAppendsAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "install.log")

	j1, err := New(path, nil)
	require.NoError(t, err)
	j1.SessionStart("run-1", "fast")
	require.NoError(t, j1.Close())

	j2, err := New(path, nil)
	require.NoError(t, err)
	j2.SessionStart("run-2", "recovery")
	require.NoError(t, j2.Close())

	entries, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "run-1", entries[0].Context["session_id"])
	assert.Equal(t, "run-2", entries[1].Context["session_id"])
}

func TestParseMissingFile(t *testing.T) {
	entries, err := Parse(filepath.Join(t.TempDir(), "absent.log"))
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestParseSkipsMalformedStructuredLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "install.log")
	content := Marker + `{"event":"info","description":"ok","timestamp":"2026-08-20T10:00:00Z"}` + "\n" +
		Marker + "{not json at all\n" +
		Marker + `{"event":"warning","description":"still ok","timestamp":"2026-08-20T10:00:01Z"}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	entries, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, EventInfo, entries[0].Event)
	assert.Equal(t, EventWarning, entries[1].Event)
}
