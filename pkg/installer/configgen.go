package installer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/noxsuite/noxinstall/pkg/engine"
)

// composeService is one service entry of the generated compose file.
type composeService struct {
	Image       string            `yaml:"image"`
	Restart     string            `yaml:"restart,omitempty"`
	Ports       []string          `yaml:"ports,omitempty"`
	Volumes     []string          `yaml:"volumes,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
	DependsOn   []string          `yaml:"depends_on,omitempty"`
}

// composeDocument is the generated docker compose file.
type composeDocument struct {
	Services map[string]composeService `yaml:"services"`
	Volumes  map[string]struct{}       `yaml:"volumes,omitempty"`
}

// configGenSteps generates the suite configuration, the compose file, and
// the control scripts. Every step removes its own artifact on rollback.
func (inst *Installer) configGenSteps() []*engine.AtomicStep {
	return []*engine.AtomicStep{
		engine.NewStep("generate-config", "Write the suite configuration", inst.generateSuiteConfig).
			WithRollback(removeArtifact),
		engine.NewStep("generate-compose", "Write the service compose file", inst.generateCompose).
			WithRollback(removeArtifact),
		engine.NewStep("generate-scripts", "Write the start and stop scripts", inst.generateScripts).
			WithRollback(removeArtifacts),
	}
}

// generateSuiteConfig writes config/noxsuite.json, the document later
// validated by the validation stage and read by every suite service.
func (inst *Installer) generateSuiteConfig(ctx context.Context) (interface{}, error) {
	path := filepath.Join(inst.plan.InstallDirectory, "config", "noxsuite.json")

	doc := map[string]interface{}{
		"version":           "1.0",
		"installed_at":      time.Now().Format(time.RFC3339),
		"install_directory": inst.plan.InstallDirectory,
		"modules":           inst.plan.Modules,
		"features": map[string]bool{
			"enable_ai":     inst.plan.EnableAI,
			"enable_voice":  inst.plan.EnableVoice,
			"enable_mobile": inst.plan.EnableMobile,
			"dev_mode":      inst.plan.DevMode,
			"auto_start":    inst.plan.AutoStart,
		},
		"ai_models":         inst.plan.AIModels,
		"encoding_fallback": inst.plan.EncodingFallback,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return path, engine.NewError(engine.KindPermissionDenied, "failed to write suite configuration", err)
	}
	return path, nil
}

// generateCompose assembles the compose document from the static component
// catalog plus the shared infrastructure services.
func (inst *Installer) generateCompose(ctx context.Context) (interface{}, error) {
	path := filepath.Join(inst.plan.InstallDirectory, composeFile)

	doc := composeDocument{
		Services: map[string]composeService{
			"postgres": {
				Image:   "postgres:15-alpine",
				Restart: "unless-stopped",
				Volumes: []string{"./../data/postgres:/var/lib/postgresql/data"},
				Environment: map[string]string{
					"POSTGRES_DB":       "noxsuite",
					"POSTGRES_USER":     "noxsuite",
					"POSTGRES_PASSWORD": "noxsuite",
				},
			},
			"redis": {
				Image:   "redis:7-alpine",
				Restart: "unless-stopped",
				Volumes: []string{"./../data/redis:/data"},
			},
		},
	}

	port := 7000
	for _, module := range inst.plan.Modules {
		comp, ok := ComponentFor(module)
		if !ok {
			continue
		}
		for _, service := range comp.Services {
			doc.Services[service] = composeService{
				Image:     fmt.Sprintf("ghcr.io/noxsuite/%s:latest", service),
				Restart:   "unless-stopped",
				Ports:     []string{fmt.Sprintf("%d:8000", port)},
				DependsOn: []string{"postgres", "redis"},
				Environment: map[string]string{
					"NOXSUITE_CONFIG": "/config/noxsuite.json",
				},
				Volumes: []string{"./../config:/config:ro"},
			}
			port++
		}
	}

	if inst.plan.EnableAI {
		doc.Services["ollama"] = composeService{
			Image:   "ollama/ollama:latest",
			Restart: "unless-stopped",
			Ports:   []string{"11434:11434"},
			Volumes: []string{"./../services/ollama:/root/.ollama"},
		}
		doc.Services["langflow"] = composeService{
			Image:     "langflowai/langflow:latest",
			Restart:   "unless-stopped",
			Ports:     []string{"7860:7860"},
			DependsOn: []string{"ollama"},
			Volumes:   []string{"./../services/langflow:/app/langflow"},
		}
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return path, engine.NewError(engine.KindPermissionDenied, "failed to write compose file", err)
	}
	return path, nil
}

// generateScripts writes platform-appropriate start and stop scripts.
func (inst *Installer) generateScripts(ctx context.Context) (interface{}, error) {
	scriptsDir := filepath.Join(inst.plan.InstallDirectory, "scripts")
	compose := filepath.Join(inst.plan.InstallDirectory, composeFile)

	var written []string
	write := func(name, content string, mode os.FileMode) error {
		path := filepath.Join(scriptsDir, name)
		if err := os.WriteFile(path, []byte(content), mode); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	var err error
	if inst.caps.OSFamily == "windows" {
		err = write("start.bat", fmt.Sprintf("@echo off\r\ndocker compose -f \"%s\" up -d\r\n", compose), 0644)
		if err == nil {
			err = write("stop.bat", fmt.Sprintf("@echo off\r\ndocker compose -f \"%s\" down\r\n", compose), 0644)
		}
	} else {
		err = write("start.sh", fmt.Sprintf("#!/bin/sh\nexec docker compose -f %q up -d\n", compose), 0755)
		if err == nil {
			err = write("stop.sh", fmt.Sprintf("#!/bin/sh\nexec docker compose -f %q down\n", compose), 0755)
		}
	}
	if err != nil {
		return written, engine.NewError(engine.KindPermissionDenied, "failed to write control scripts", err)
	}
	return written, nil
}

// removeArtifact deletes the single file a generation step produced.
func removeArtifact(ctx context.Context, data interface{}) error {
	path, ok := data.(string)
	if !ok || path == "" {
		return nil
	}
	return os.Remove(path)
}

// removeArtifacts deletes every file a generation step produced.
func removeArtifacts(ctx context.Context, data interface{}) error {
	paths, _ := data.([]string)
	var firstErr error
	for _, path := range paths {
		if err := os.Remove(path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
