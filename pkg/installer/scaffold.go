package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/noxsuite/noxinstall/pkg/engine"
)

// directoryTree is the nested layout of an installation. Conditional
// branches are resolved against the plan before flattening.
func (inst *Installer) directoryTree() map[string][]string {
	tree := map[string][]string{
		"frontend": {"noxpanel-ui"},
		"backend":  {"fastapi", "flask-legacy"},
		"services": {},
		"data":     {"postgres", "redis", "logs"},
		"config":   {},
		"scripts":  {},
		"docker":   {},
		"plugins":  {},
	}
	if inst.plan.EnableMobile {
		tree["frontend"] = append(tree["frontend"], "noxgo-mobile")
	}
	if inst.plan.EnableAI {
		tree["services"] = append(tree["services"], "ollama", "langflow")
	}
	return tree
}

// flattenTree turns the nested layout into a sorted, deduplicated list of
// relative paths. Selected component directories are merged in.
func (inst *Installer) flattenTree() []string {
	seen := make(map[string]bool)
	for parent, children := range inst.directoryTree() {
		seen[parent] = true
		for _, child := range children {
			seen[filepath.Join(parent, child)] = true
		}
	}
	for _, module := range inst.plan.Modules {
		if comp, ok := ComponentFor(module); ok {
			for _, dir := range comp.Directories {
				seen[dir] = true
			}
		}
	}

	paths := make([]string, 0, len(seen))
	for path := range seen {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// scaffoldSteps builds the directory creation stage: one step that creates
// the whole tree and can unwind what it created.
func (inst *Installer) scaffoldSteps() []*engine.AtomicStep {
	return []*engine.AtomicStep{
		engine.NewStep("create-directories", "Create the installation directory tree", inst.createDirectories).
			WithRollback(inst.removeCreatedDirectories).
			WithValidate(inst.validateDirectories),
	}
}

// createDirectories creates every path in order, recording exactly which
// directories this run created so rollback never touches pre-existing ones.
func (inst *Installer) createDirectories(ctx context.Context) (interface{}, error) {
	base := inst.plan.InstallDirectory
	var created []string

	mk := func(path string) error {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		if err := os.Mkdir(path, 0755); err != nil {
			return err
		}
		created = append(created, path)
		return nil
	}

	// The base may be several levels below an existing ancestor.
	if err := mkdirAllRecorded(base, mk); err != nil {
		return created, engine.NewError(engine.KindPermissionDenied,
			fmt.Sprintf("failed to create %s", base), err)
	}

	for _, rel := range inst.flattenTree() {
		path := filepath.Join(base, rel)
		if err := mkdirAllRecorded(path, mk); err != nil {
			return created, engine.NewError(engine.KindPermissionDenied,
				fmt.Sprintf("failed to create %s", path), err)
		}
	}
	return created, nil
}

// removeCreatedDirectories removes the recorded directories in reverse
// creation order. Only empty directories are removed; anything that gained
// content since creation is left alone.
func (inst *Installer) removeCreatedDirectories(ctx context.Context, data interface{}) error {
	created, _ := data.([]string)
	var firstErr error
	for i := len(created) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(created[i])
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(created[i]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// validateDirectories confirms the full tree exists after creation.
func (inst *Installer) validateDirectories(ctx context.Context, data interface{}) bool {
	for _, rel := range inst.flattenTree() {
		info, err := os.Stat(filepath.Join(inst.plan.InstallDirectory, rel))
		if err != nil || !info.IsDir() {
			return false
		}
	}
	return true
}

// mkdirAllRecorded creates path and any missing ancestors through mk, which
// records each directory it actually creates.
func mkdirAllRecorded(path string, mk func(string) error) error {
	parent := filepath.Dir(path)
	if parent != path {
		if _, err := os.Stat(parent); os.IsNotExist(err) {
			if err := mkdirAllRecorded(parent, mk); err != nil {
				return err
			}
		}
	}
	return mk(path)
}
