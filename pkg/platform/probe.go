// Package platform detects host capabilities for the installer. Detection
// is failure-tolerant: no individual probe aborts it, each capability falls
// back to a conservative default, and the result is always a complete
// snapshot.
package platform

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/noxsuite/noxinstall/pkg/telemetry"
)

// encodingProbe is a fixed multi-script string round-tripped through UTF-8
// to verify the platform's text handling.
const encodingProbe = "🧠 NoxSuite 🚀 Test 测试 تجربة"

// versionProbeTimeout bounds each tool's --version query.
const versionProbeTimeout = 10 * time.Second

// defaultMemoryGB is assumed when every memory probe fails.
const defaultMemoryGB = 8.0

// ToolInfo records the probed state of one executable.
type ToolInfo struct {
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
}

// CapabilitySnapshot is an immutable, point-in-time record of what the host
// supports. Created once at startup and never mutated.
type CapabilitySnapshot struct {
	OSFamily        string              `json:"os_family"`
	Arch            string              `json:"arch"`
	RuntimeVersion  string              `json:"runtime_version"`
	MemoryGB        float64             `json:"memory_gb"`
	CPUCores        int                 `json:"cpu_cores"`
	Tools           map[string]ToolInfo `json:"tools"`
	PackageManagers []string            `json:"package_managers"`
	UTF8Supported   bool                `json:"utf8_supported"`
	CWDWritable     bool                `json:"cwd_writable"`
	HomeWritable    bool                `json:"home_writable"`
	Elevated        bool                `json:"elevated"`
	HomeDirectory   string              `json:"home_directory,omitempty"`
	DetectedAt      time.Time           `json:"detected_at"`
}

// Tool returns the probed info for a named tool.
func (s *CapabilitySnapshot) Tool(name string) ToolInfo {
	return s.Tools[name]
}

// HasManager reports whether the named package manager resolved on PATH.
func (s *CapabilitySnapshot) HasManager(name string) bool {
	for _, m := range s.PackageManagers {
		if m == name {
			return true
		}
	}
	return false
}

// Prober detects host capabilities.
type Prober struct {
	log *telemetry.Logger

	// probeTools is the set of executables checked for availability.
	probeTools []string
}

// defaultProbeTools are the executables every detection run checks.
var defaultProbeTools = []string{"docker", "git", "node", "npm", "python3", "pip"}

// NewProber creates a prober. log may be nil.
func NewProber(log *telemetry.Logger) *Prober {
	if log == nil {
		log = telemetry.NopLogger()
	}
	return &Prober{
		log:        log.NewComponentLogger("platform"),
		probeTools: defaultProbeTools,
	}
}

// WithTools overrides the default probe tool set.
func (p *Prober) WithTools(tools ...string) *Prober {
	p.probeTools = tools
	return p
}

// Detect probes the host and returns a complete snapshot. The only side
// effect is the transient creation and deletion of uniquely named permission
// marker files.
func (p *Prober) Detect(ctx context.Context) *CapabilitySnapshot {
	snap := &CapabilitySnapshot{
		OSFamily:       runtime.GOOS,
		Arch:           runtime.GOARCH,
		RuntimeVersion: runtime.Version(),
		CPUCores:       runtime.NumCPU(),
		Tools:          make(map[string]ToolInfo, len(p.probeTools)),
		DetectedAt:     time.Now(),
	}

	snap.MemoryGB = p.detectMemoryGB(ctx)

	for _, tool := range p.probeTools {
		snap.Tools[tool] = p.ProbeTool(ctx, tool)
	}

	snap.PackageManagers = p.detectPackageManagers()
	snap.UTF8Supported = checkEncoding()
	snap.CWDWritable = Writable(".")

	if home, err := os.UserHomeDir(); err == nil {
		snap.HomeDirectory = home
		snap.HomeWritable = Writable(home)
	}

	snap.Elevated = isElevated()

	p.log.WithFields(map[string]interface{}{
		"os":       snap.OSFamily,
		"arch":     snap.Arch,
		"memory":   fmt.Sprintf("%.1fGB", snap.MemoryGB),
		"cpus":     snap.CPUCores,
		"managers": snap.PackageManagers,
	}).Debug("Capability snapshot collected")

	return snap
}

// ProbeTool resolves a tool on PATH and queries its version best-effort.
// A missing version response does not invalidate availability.
func (p *Prober) ProbeTool(ctx context.Context, name string) ToolInfo {
	info := ToolInfo{}

	path, err := exec.LookPath(name)
	if err != nil {
		return info
	}
	info.Available = true
	info.Path = path

	probeCtx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	out, err := exec.CommandContext(probeCtx, path, "--version").CombinedOutput()
	if err == nil {
		if line := firstLine(string(out)); line != "" {
			info.Version = line
		}
	}

	return info
}

// detectMemoryGB walks the fallback chain: syscall-level query, then an
// OS-specific command probe, then the fixed default.
func (p *Prober) detectMemoryGB(ctx context.Context) float64 {
	if bytes, err := totalMemoryBytes(); err == nil && bytes > 0 {
		return float64(bytes) / (1 << 30)
	}

	if gb, err := memoryFromCommand(ctx); err == nil && gb > 0 {
		return gb
	}

	p.log.Debug("Memory probes failed, assuming default")
	return defaultMemoryGB
}

// detectPackageManagers returns the ordered, platform-specific manager list,
// native managers first, universal managers last. Only managers whose
// executable resolves are included.
func (p *Prober) detectPackageManagers() []string {
	var candidates []string
	switch runtime.GOOS {
	case "windows":
		candidates = []string{"choco", "winget", "scoop"}
	case "darwin":
		candidates = []string{"brew", "port"}
	default:
		candidates = []string{"apt-get", "apt", "yum", "dnf", "pacman", "zypper", "emerge"}
	}
	// Universal managers come after the native ones.
	candidates = append(candidates, "pip", "conda", "snap")

	found := make([]string, 0, len(candidates))
	for _, mgr := range candidates {
		if _, err := exec.LookPath(mgr); err == nil {
			found = append(found, mgr)
		}
	}
	return found
}

// checkEncoding round-trips the multi-script probe string through UTF-8.
// Never raises; failure is recorded as false.
func checkEncoding() bool {
	encoded := []byte(encodingProbe)
	if !utf8.Valid(encoded) {
		return false
	}
	return string(encoded) == encodingProbe
}

// Writable reports whether dir accepts file creation, verified by creating
// and removing a uniquely named marker file. Mode bits alone are not
// trusted; they lie on read-only mounts and for elevated users.
func Writable(dir string) bool {
	marker := filepath.Join(dir, fmt.Sprintf(".nox_permission_test_%d", time.Now().UnixNano()))
	f, err := os.Create(marker)
	if err != nil {
		return false
	}
	_ = f.Close()
	return os.Remove(marker) == nil
}

// ExistingAncestor walks up from path to the closest directory that
// exists, so free-space and permission probes run against something real.
func ExistingAncestor(path string) string {
	for p := path; ; {
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		p = parent
	}
}

// firstLine returns the first non-empty trimmed line of s.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
