// Package audit analyzes installation journals after a failure and produces
// actionable recovery guidance from a pattern knowledge base.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/noxsuite/noxinstall/pkg/telemetry"
)

// Category pairs error signatures with the remediations known to work for
// them.
type Category struct {
	Patterns  []string `json:"patterns"`
	Solutions []string `json:"solutions"`
}

// defaultCategories is the built-in knowledge base. A user-provided JSON
// file with the same shape replaces matching categories and may add new
// ones.
var defaultCategories = map[string]Category{
	"encoding_issues": {
		Patterns: []string{"UnicodeDecodeError", "codec can't decode", "charmap"},
		Solutions: []string{
			"force_utf8",
			"fallback_encoding",
			"safe_decode",
		},
	},
	"dependency_failures": {
		Patterns: []string{"command not found", "ModuleNotFoundError", "ImportError"},
		Solutions: []string{
			"alternative_package_manager",
			"manual_install",
			"containerized_fallback",
		},
	},
	"permission_errors": {
		Patterns: []string{"Permission denied", "PermissionError", "Access is denied"},
		Solutions: []string{
			"elevate_privileges",
			"user_directory",
			"docker_mode",
		},
	},
	"network_issues": {
		Patterns: []string{"ConnectionError", "timeout", "refused", "unreachable"},
		Solutions: []string{
			"retry_with_backoff",
			"alternative_mirror",
			"offline_mode",
		},
	},
}

// KnowledgeBase holds failure categories and stays current with an optional
// user override file.
type KnowledgeBase struct {
	mu         sync.RWMutex
	categories map[string]Category

	log  *telemetry.Logger
	path string
}

// NewKnowledgeBase returns the built-in knowledge base.
func NewKnowledgeBase(log *telemetry.Logger) *KnowledgeBase {
	if log == nil {
		log = telemetry.NopLogger()
	}
	kb := &KnowledgeBase{
		categories: make(map[string]Category, len(defaultCategories)),
		log:        log.NewComponentLogger("audit"),
	}
	for name, cat := range defaultCategories {
		kb.categories[name] = cat
	}
	return kb
}

// LoadFile merges the categories from a user override file on top of the
// defaults. A missing file is not an error; the defaults stay in effect.
func (kb *KnowledgeBase) LoadFile(path string) error {
	kb.mu.Lock()
	kb.path = path
	kb.mu.Unlock()
	return kb.reload()
}

// reload re-reads the override file and applies it.
func (kb *KnowledgeBase) reload() error {
	kb.mu.RLock()
	path := kb.path
	kb.mu.RUnlock()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read knowledge base: %w", err)
	}

	var overrides map[string]Category
	if err := json.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("failed to parse knowledge base: %w", err)
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()
	for name, cat := range overrides {
		kb.categories[name] = cat
	}
	kb.log.WithField("path", path).WithField("categories", len(overrides)).Debug("Knowledge base loaded")
	return nil
}

// Watch reloads the override file whenever it changes, until ctx is done.
// Reload errors are logged and the previous categories stay in effect.
func (kb *KnowledgeBase) Watch(ctx context.Context) error {
	kb.mu.RLock()
	path := kb.path
	kb.mu.RUnlock()
	if path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create knowledge base watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch knowledge base: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := kb.reload(); err != nil {
					kb.log.WithError(err).Warn("Knowledge base reload failed")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				kb.log.WithError(err).Warn("Knowledge base watcher error")
			}
		}
	}()
	return nil
}

// Categories returns a snapshot of the current category map.
func (kb *KnowledgeBase) Categories() map[string]Category {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	out := make(map[string]Category, len(kb.categories))
	for name, cat := range kb.categories {
		out[name] = cat
	}
	return out
}

// Match returns the names of every category whose patterns occur in text.
// Matching is case-insensitive substring containment.
func (kb *KnowledgeBase) Match(text string) []string {
	lower := strings.ToLower(text)
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	var matched []string
	for name, cat := range kb.categories {
		for _, pattern := range cat.Patterns {
			if strings.Contains(lower, strings.ToLower(pattern)) {
				matched = append(matched, name)
				break
			}
		}
	}
	return matched
}
