// Package journal implements the installer's append-only structured log.
//
// The journal interleaves human-readable progress lines with machine lines
// that start with a fixed marker followed by one JSON object. Every
// component appends through the same handle; the auditor is the only
// consumer of the structured lines. The interleaved single-stream format is
// deliberate: the parser must stay tolerant of partial logs left by abrupt
// termination, so one malformed structured line is skipped, never fatal.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/noxsuite/noxinstall/pkg/telemetry"
)

// Marker prefixes every structured line.
const Marker = "STRUCTURED: "

// EventKind identifies the type of a structured journal entry.
type EventKind string

const (
	EventSessionStart EventKind = "session_start"
	EventStepStart    EventKind = "step_start"
	EventStepComplete EventKind = "step_complete"
	EventStepError    EventKind = "step_error"
	EventWarning      EventKind = "warning"
	EventInfo         EventKind = "info"
)

// Entry is one structured journal record.
type Entry struct {
	Event       EventKind              `json:"event"`
	Step        string                 `json:"step,omitempty"`
	Description string                 `json:"description,omitempty"`
	Error       string                 `json:"error,omitempty"`
	ErrorType   string                 `json:"error_type,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// Subscriber receives every structured entry as it is written. Subscribers
// run synchronously on the writing goroutine and must not block.
type Subscriber func(Entry)

// Journal is the append-only install log. Writes are line-oriented; the
// mutex provides the atomic line-append the format requires.
type Journal struct {
	mu   sync.Mutex
	file *os.File
	path string
	log  *telemetry.Logger
	subs []Subscriber
}

// New opens (or creates) the journal at path. log echoes progress lines to
// the console and may be nil.
func New(path string, log *telemetry.Logger) (*Journal, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if log == nil {
		log = telemetry.NopLogger()
	}
	return &Journal{
		file: file,
		path: path,
		log:  log,
	}, nil
}

// Path returns the journal file location.
func (j *Journal) Path() string {
	return j.path
}

// Subscribe registers a subscriber for structured entries.
func (j *Journal) Subscribe(fn Subscriber) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.subs = append(j.subs, fn)
}

// Close flushes and closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

// SessionStart records the beginning of an installation session.
func (j *Journal) SessionStart(sessionID string, mode string) {
	j.log.Infof("Installation session %s started (mode: %s)", sessionID, mode)
	j.append(fmt.Sprintf("=== session %s started (mode %s) ===", sessionID, mode), Entry{
		Event:       EventSessionStart,
		Description: mode,
		Context:     map[string]interface{}{"session_id": sessionID, "mode": mode},
	})
}

// StepStart records the start of a step.
func (j *Journal) StepStart(step, description string) {
	j.log.Infof("[%s] %s", step, description)
	j.append(fmt.Sprintf(">> %s: %s", step, description), Entry{
		Event:       EventStepStart,
		Step:        step,
		Description: description,
	})
}

// StepComplete records the successful completion of a step.
func (j *Journal) StepComplete(step string, details map[string]interface{}) {
	j.log.Infof("[%s] completed", step)
	j.append(fmt.Sprintf("<< %s: completed", step), Entry{
		Event:   EventStepComplete,
		Step:    step,
		Context: details,
	})
}

// StepError records a step failure with its classification and context.
func (j *Journal) StepError(step string, errText, errType string, context map[string]interface{}) {
	j.log.Errorf("[%s] failed: %s", step, errText)
	j.append(fmt.Sprintf("!! %s: %s", step, errText), Entry{
		Event:     EventStepError,
		Step:      step,
		Error:     errText,
		ErrorType: errType,
		Context:   context,
	})
}

// Warning records a non-fatal condition.
func (j *Journal) Warning(msg string) {
	j.log.Warn(msg)
	j.append("warning: "+msg, Entry{
		Event:       EventWarning,
		Description: msg,
	})
}

// Info records an informational event.
func (j *Journal) Info(msg string) {
	j.log.Info(msg)
	j.append(msg, Entry{
		Event:       EventInfo,
		Description: msg,
	})
}

// append writes the human line followed by the structured line, then
// notifies subscribers.
func (j *Journal) append(human string, entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	j.mu.Lock()
	if j.file != nil {
		fmt.Fprintf(j.file, "%s %s\n", entry.Timestamp.Format(time.RFC3339), human)
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintf(j.file, "%s%s\n", Marker, data)
		}
	}
	subs := j.subs
	j.mu.Unlock()

	for _, fn := range subs {
		fn(entry)
	}
}

// Parse reads a journal file and returns its structured entries. Lines
// without the marker are ignored; a malformed structured line is skipped.
// A missing file yields an empty slice, not an error.
func Parse(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.Index(line, Marker)
		if idx < 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(line[idx+len(Marker):]), &entry); err != nil {
			// Tolerate truncated or garbled entries from abrupt termination.
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("failed to read journal: %w", err)
	}
	return entries, nil
}
