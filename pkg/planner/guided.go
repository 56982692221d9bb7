package planner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/noxsuite/noxinstall/pkg/engine"
	"github.com/noxsuite/noxinstall/pkg/platform"
)

// minFreeDiskGB is the floor applied during directory validation. The full
// estimate is checked later by the pre-check stage; the prompt only catches
// hopeless choices early.
const minFreeDiskGB = 2.0

// ModelChoice is one entry of the AI model catalog offered during guided
// planning.
type ModelChoice struct {
	Name   string
	SizeGB float64
	Note   string
}

// modelCatalog is the curated model selection, smallest-footprint entries
// last.
var modelCatalog = []ModelChoice{
	{Name: "mistral:7b-instruct", SizeGB: 4.1, Note: "general assistant, recommended"},
	{Name: "gemma:7b-it", SizeGB: 5.0, Note: "instruction tuned"},
	{Name: "llama3:8b", SizeGB: 4.7, Note: "strong general model"},
	{Name: "codellama:7b", SizeGB: 3.8, Note: "code assistance"},
	{Name: "phi3:mini", SizeGB: 2.3, Note: "small, fast"},
	{Name: "tinyllama", SizeGB: 0.7, Note: "minimal footprint"},
}

// guidedPlan runs the interactive prompt sequence. Returns (nil, nil) when
// the user declines the final confirmation or input ends.
func (p *Planner) guidedPlan(ctx context.Context, in io.Reader, out io.Writer) (*engine.InstallPlan, error) {
	prompter := &prompter{
		scanner: bufio.NewScanner(in),
		out:     out,
		ctx:     ctx,
	}

	fmt.Fprintln(out, "NoxSuite guided installation")
	fmt.Fprintln(out)

	dir, ok := p.promptDirectory(prompter)
	if !ok {
		return nil, ctx.Err()
	}

	modules, ok := p.promptModules(prompter)
	if !ok {
		return nil, ctx.Err()
	}

	plan := &engine.InstallPlan{
		InstallDirectory: dir,
		Modules:          modules,
		Mode:             engine.ModeGuided,
	}

	aiDefault := p.caps.MemoryGB >= aiMemoryThresholdGB
	plan.EnableAI = prompter.yesNo(fmt.Sprintf("Enable local AI features (%.0f GB memory detected)", p.caps.MemoryGB), aiDefault)
	if plan.EnableAI {
		models, ok := p.promptModels(prompter)
		if !ok {
			return nil, ctx.Err()
		}
		plan.AIModels = models
		if len(plan.AIModels) == 0 {
			plan.EnableAI = false
		}
	}

	plan.EnableVoice = prompter.yesNo("Enable voice interface", false)
	plan.EnableMobile = prompter.yesNo("Enable mobile companion app", true)
	plan.DevMode = prompter.yesNo("Install development tooling", false)
	plan.AutoStart = prompter.yesNo("Start services after installation", true)

	p.preview(out, plan)
	if !prompter.yesNo("Proceed with installation", true) {
		fmt.Fprintln(out, "Installation cancelled.")
		return nil, nil
	}
	return plan, nil
}

// promptDirectory loops until the user supplies a usable directory.
func (p *Planner) promptDirectory(pr *prompter) (string, bool) {
	for {
		dir, ok := pr.ask(fmt.Sprintf("Install directory [%s]", p.defaultDirectory()))
		if !ok {
			return "", false
		}
		if dir == "" {
			dir = p.defaultDirectory()
		}
		if reason := p.validateDirectory(dir); reason != "" {
			fmt.Fprintf(pr.out, "  %s\n", reason)
			continue
		}
		return dir, true
	}
}

// validateDirectory returns an empty string when dir is acceptable, or the
// reason it is not.
func (p *Planner) validateDirectory(dir string) string {
	if !filepath.IsAbs(dir) {
		return "please provide an absolute path"
	}
	if p.caps.OSFamily == "windows" && strings.Contains(dir, " ") {
		// Spaces in the install path break several of the tools the suite
		// shells out to on Windows.
		return "paths containing spaces are not supported on Windows"
	}
	parent := platform.ExistingAncestor(filepath.Dir(dir))
	if !platform.Writable(parent) {
		return fmt.Sprintf("cannot write to %s, choose a different location", parent)
	}
	if free, err := platform.FreeDiskGB(parent); err == nil && free < minFreeDiskGB {
		return fmt.Sprintf("only %.1f GB free at %s, at least %.0f GB required", free, parent, minFreeDiskGB)
	}
	return ""
}

// promptModules offers the standard set or a per-module selection.
func (p *Planner) promptModules(pr *prompter) ([]string, bool) {
	if pr.yesNo(fmt.Sprintf("Install the standard module set (%s)", strings.Join(defaultModules, ", ")), true) {
		return append([]string(nil), defaultModules...), true
	}

	var selected []string
	for {
		for _, mod := range defaultModules {
			if pr.yesNo("  include "+mod, contains(safeModules, mod)) {
				selected = append(selected, mod)
			}
		}
		if len(selected) > 0 {
			return selected, true
		}
		fmt.Fprintln(pr.out, "  select at least one module")
	}
}

// promptModels walks the catalog and warns when the selection approaches
// the host's memory.
func (p *Planner) promptModels(pr *prompter) ([]string, bool) {
	fmt.Fprintln(pr.out, "Available AI models:")
	for i, m := range modelCatalog {
		fmt.Fprintf(pr.out, "  %d) %-22s %.1f GB  %s\n", i+1, m.Name, m.SizeGB, m.Note)
	}

	for {
		answer, ok := pr.ask("Models to install (comma-separated numbers, empty for defaults)")
		if !ok {
			return nil, false
		}
		if answer == "" {
			return append([]string(nil), defaultModels...), true
		}

		var models []string
		var totalGB float64
		valid := true
		for _, field := range strings.Split(answer, ",") {
			idx, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil || idx < 1 || idx > len(modelCatalog) {
				fmt.Fprintf(pr.out, "  invalid selection %q\n", strings.TrimSpace(field))
				valid = false
				break
			}
			choice := modelCatalog[idx-1]
			models = append(models, choice.Name)
			totalGB += choice.SizeGB
		}
		if !valid {
			continue
		}

		if totalGB > 0.8*p.caps.MemoryGB {
			fmt.Fprintf(pr.out, "  selected models need ~%.1f GB against %.1f GB of memory\n", totalGB, p.caps.MemoryGB)
			if !pr.yesNo("  continue with this selection anyway", false) {
				continue
			}
		}
		return models, true
	}
}

// preview prints the plan and its estimates before the final confirmation.
func (p *Planner) preview(out io.Writer, plan *engine.InstallPlan) {
	est := EstimatePlan(plan)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Installation plan:")
	fmt.Fprintf(out, "  directory: %s\n", plan.InstallDirectory)
	fmt.Fprintf(out, "  modules:   %s\n", strings.Join(plan.Modules, ", "))
	fmt.Fprintf(out, "  AI:        %v", plan.EnableAI)
	if plan.EnableAI {
		fmt.Fprintf(out, " (%s)", strings.Join(plan.AIModels, ", "))
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  voice=%v mobile=%v dev=%v autostart=%v\n", plan.EnableVoice, plan.EnableMobile, plan.DevMode, plan.AutoStart)
	fmt.Fprintf(out, "  estimated size: %.1f GB, estimated time: %d min\n", est.SizeGB, est.TimeMinutes)

	if free, err := platform.FreeDiskGB(filepath.Dir(plan.InstallDirectory)); err == nil && free < est.SizeGB*1.5 {
		fmt.Fprintf(out, "  warning: %.1f GB free is close to the estimate\n", free)
	}
	fmt.Fprintln(out)
}

// prompter reads line-oriented answers, honoring context cancellation
// between prompts.
type prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
	ctx     context.Context
}

// ask returns the trimmed answer; ok is false when input ended or the
// context was cancelled.
func (pr *prompter) ask(question string) (string, bool) {
	if pr.ctx.Err() != nil {
		return "", false
	}
	fmt.Fprintf(pr.out, "%s: ", question)
	if !pr.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(pr.scanner.Text()), true
}

// yesNo asks a y/n question with a default. Input ending counts as the
// default answer.
func (pr *prompter) yesNo(question string, def bool) bool {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	answer, ok := pr.ask(fmt.Sprintf("%s [%s]", question, hint))
	if !ok || answer == "" {
		return def
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return def
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
