package audit

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noxsuite/noxinstall/pkg/journal"
	"github.com/noxsuite/noxinstall/pkg/telemetry"
)

// FailedStep is one step failure extracted from the journal.
type FailedStep struct {
	Step      string    `json:"step"`
	Error     string    `json:"error"`
	ErrorType string    `json:"error_type,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// FailureAnalysis is the auditor's verdict over one journal.
type FailureAnalysis struct {
	LogPath             string         `json:"log_path"`
	Entries             int            `json:"entries"`
	FailedSteps         []FailedStep   `json:"failed_steps"`
	Categories          map[string]int `json:"categories"`
	Recommendations     []string       `json:"recommendations"`
	RecoverySuggestions []string       `json:"recovery_suggestions"`
}

// Failed reports whether the journal recorded at least one step failure.
func (a *FailureAnalysis) Failed() bool {
	return len(a.FailedSteps) > 0
}

// Auditor classifies journal failures against the knowledge base.
type Auditor struct {
	log *telemetry.Logger
	kb  *KnowledgeBase
}

// NewAuditor creates an auditor. log may be nil; a nil kb uses the built-in
// knowledge base.
func NewAuditor(log *telemetry.Logger, kb *KnowledgeBase) *Auditor {
	if log == nil {
		log = telemetry.NopLogger()
	}
	if kb == nil {
		kb = NewKnowledgeBase(log)
	}
	return &Auditor{
		log: log.NewComponentLogger("audit"),
		kb:  kb,
	}
}

// Analyze parses the journal at logPath and returns its failure analysis.
// A missing or partially written journal yields an empty analysis, not an
// error: the auditor runs after crashes and must cope with whatever the
// crashed run left behind.
func (a *Auditor) Analyze(logPath string) (*FailureAnalysis, error) {
	analysis := &FailureAnalysis{
		LogPath:    logPath,
		Categories: make(map[string]int),
	}

	entries, err := journal.Parse(logPath)
	if err != nil {
		return nil, err
	}
	analysis.Entries = len(entries)

	for _, entry := range entries {
		switch entry.Event {
		case journal.EventStepError:
			analysis.FailedSteps = append(analysis.FailedSteps, FailedStep{
				Step:      entry.Step,
				Error:     entry.Error,
				ErrorType: entry.ErrorType,
				Timestamp: entry.Timestamp,
			})
			a.categorize(analysis, entry.Error+" "+entry.ErrorType)
		case journal.EventWarning:
			a.categorize(analysis, entry.Description)
		}
	}

	analysis.Recommendations = a.recommend(analysis.Categories)
	analysis.RecoverySuggestions = a.suggestRecovery(analysis)

	a.log.WithFields(map[string]interface{}{
		"entries":      analysis.Entries,
		"failed_steps": len(analysis.FailedSteps),
		"categories":   len(analysis.Categories),
	}).Debug("Journal analyzed")

	return analysis, nil
}

func (a *Auditor) categorize(analysis *FailureAnalysis, text string) {
	for _, category := range a.kb.Match(text) {
		analysis.Categories[category]++
	}
}

// recommend turns matched categories into deduplicated, stably ordered
// remediation lines.
func (a *Auditor) recommend(categories map[string]int) []string {
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)

	kb := a.kb.Categories()
	seen := make(map[string]bool)
	var recommendations []string
	for _, name := range names {
		for _, solution := range kb[name].Solutions {
			line := fmt.Sprintf("For %s: Try %s", name, solution)
			if seen[line] {
				continue
			}
			seen[line] = true
			recommendations = append(recommendations, line)
		}
	}
	return recommendations
}

// suggestRecovery derives concrete next actions for a recovery run.
func (a *Auditor) suggestRecovery(analysis *FailureAnalysis) []string {
	if !analysis.Failed() {
		return nil
	}

	// Resume from the last failure: earlier ones were already retried or
	// rolled over by the run that wrote this journal.
	last := analysis.FailedSteps[len(analysis.FailedSteps)-1]
	suggestions := []string{
		fmt.Sprintf("Resume installation from step %q", last.Step),
	}
	if analysis.Categories["encoding_issues"] > 0 {
		suggestions = append(suggestions, "Re-run with conservative text encoding (UTF-8 fallback enabled)")
	}
	if analysis.Categories["dependency_failures"] > 0 {
		suggestions = append(suggestions, "Install the missing tools manually, then re-run in recovery mode")
	}
	if analysis.Categories["permission_errors"] > 0 {
		suggestions = append(suggestions, "Re-run with elevated privileges or choose a user-writable install directory")
	}
	if analysis.Categories["network_issues"] > 0 {
		suggestions = append(suggestions, "Check network connectivity; transient failures usually succeed on retry")
	}
	return suggestions
}

// Summary renders the analysis as a short human-readable report.
func (a *FailureAnalysis) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyzed %d journal entries from %s\n", a.Entries, a.LogPath)
	if !a.Failed() {
		b.WriteString("No step failures recorded.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Failed steps (%d):\n", len(a.FailedSteps))
	for _, step := range a.FailedSteps {
		fmt.Fprintf(&b, "  - %s: %s\n", step.Step, step.Error)
	}
	if len(a.Categories) > 0 {
		b.WriteString("Failure categories:\n")
		names := make([]string, 0, len(a.Categories))
		for name := range a.Categories {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "  - %s: %d\n", name, a.Categories[name])
		}
	}
	if len(a.Recommendations) > 0 {
		b.WriteString("Recommendations:\n")
		for _, rec := range a.Recommendations {
			fmt.Fprintf(&b, "  - %s\n", rec)
		}
	}
	if len(a.RecoverySuggestions) > 0 {
		b.WriteString("Recovery:\n")
		for _, s := range a.RecoverySuggestions {
			fmt.Fprintf(&b, "  - %s\n", s)
		}
	}
	return b.String()
}
