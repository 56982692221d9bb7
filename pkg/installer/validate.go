package installer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ValidateInstallation checks an existing installation directory the same
// way the validation stage does and returns every problem found. An empty
// slice means the installation looks healthy.
func ValidateInstallation(dir string) []string {
	var problems []string

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return []string{fmt.Sprintf("installation directory missing: %s", dir)}
	}

	for _, rel := range requiredDirs {
		path := filepath.Join(dir, rel)
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			problems = append(problems, fmt.Sprintf("required directory missing: %s", rel))
		}
	}

	configPath := filepath.Join(dir, "config", "noxsuite.json")
	data, err := os.ReadFile(configPath)
	if err != nil {
		problems = append(problems, "suite configuration missing: config/noxsuite.json")
	} else {
		var doc map[string]interface{}
		if err := json.Unmarshal(data, &doc); err != nil {
			problems = append(problems, "suite configuration is not valid JSON")
		}
	}

	if _, err := os.Stat(filepath.Join(dir, summaryFileName)); err != nil {
		problems = append(problems, "installation summary missing: "+summaryFileName)
	}
	return problems
}
