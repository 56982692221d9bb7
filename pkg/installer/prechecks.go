package installer

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/noxsuite/noxinstall/pkg/engine"
	"github.com/noxsuite/noxinstall/pkg/planner"
	"github.com/noxsuite/noxinstall/pkg/platform"
)

// networkProbeTimeout bounds each connectivity probe.
const networkProbeTimeout = 10 * time.Second

// markerFiles identify an existing installation under the install
// directory.
var markerFiles = []string{
	filepath.Join("config", "noxsuite.json"),
	"INSTALLATION_SUMMARY.json",
	filepath.Join("docker", "docker-compose.noxsuite.yml"),
}

// supportedOS is the set of platforms the suite runs on.
var supportedOS = map[string]bool{"linux": true, "darwin": true, "windows": true}

// precheckSteps builds the pre-flight verification steps. None of them
// mutates the system.
func (inst *Installer) precheckSteps() []*engine.AtomicStep {
	steps := []*engine.AtomicStep{
		engine.NewStep("check-system", "Verify operating system compatibility", inst.checkSystem),
		engine.NewStep("check-disk-space", "Verify available disk space", inst.checkDiskSpace),
		engine.NewStep("check-permissions", "Verify install directory is writable", inst.checkPermissions),
		engine.NewStep("check-existing", "Detect a previous installation", inst.checkExisting).NonCritical(),
	}
	if !inst.plan.DryRun() {
		steps = append(steps,
			engine.NewStep("check-network", "Probe required network endpoints", inst.checkNetwork).NonCritical())
	}
	return steps
}

func (inst *Installer) checkSystem(ctx context.Context) (interface{}, error) {
	if !supportedOS[inst.caps.OSFamily] {
		return nil, engine.NewError(engine.KindSystemIncompatible,
			fmt.Sprintf("unsupported operating system: %s", inst.caps.OSFamily), nil)
	}
	if inst.plan.EncodingFallback {
		// The planner made the encoding decision; the plan is frozen once
		// steps are running, so this check only reports it.
		inst.journal.Warning("conservative text handling enabled")
	}
	if inst.caps.MemoryGB < 2.0 {
		return nil, engine.NewError(engine.KindInsufficientResources,
			fmt.Sprintf("%.1f GB memory detected, at least 2 GB required", inst.caps.MemoryGB), nil)
	}
	return nil, nil
}

func (inst *Installer) checkDiskSpace(ctx context.Context) (interface{}, error) {
	est := planner.EstimatePlan(inst.plan)
	parent := platform.ExistingAncestor(inst.plan.InstallDirectory)

	free, err := platform.FreeDiskGB(parent)
	if err != nil {
		inst.journal.Warning(fmt.Sprintf("disk space probe failed for %s: %v", parent, err))
		return nil, nil
	}
	if free < est.SizeGB {
		return nil, engine.NewError(engine.KindInsufficientResources,
			fmt.Sprintf("%.1f GB free at %s, %.1f GB required", free, parent, est.SizeGB), nil).
			WithDetail("free_gb", free).
			WithDetail("required_gb", est.SizeGB)
	}
	if free < est.SizeGB*1.5 {
		inst.journal.Warning(fmt.Sprintf("%.1f GB free is close to the %.1f GB estimate", free, est.SizeGB))
	}
	return nil, nil
}

func (inst *Installer) checkPermissions(ctx context.Context) (interface{}, error) {
	parent := platform.ExistingAncestor(inst.plan.InstallDirectory)
	if !platform.Writable(parent) {
		return nil, engine.NewError(engine.KindPermissionDenied,
			fmt.Sprintf("cannot write to %s", parent), nil).
			WithDetail("directory", parent)
	}
	return nil, nil
}

func (inst *Installer) checkExisting(ctx context.Context) (interface{}, error) {
	found := ""
	for _, marker := range markerFiles {
		path := filepath.Join(inst.plan.InstallDirectory, marker)
		if _, err := os.Stat(path); err == nil {
			found = path
			break
		}
	}
	if found == "" {
		return nil, nil
	}

	if inst.plan.ForceReinstall {
		inst.journal.Warning(fmt.Sprintf("existing installation at %s will be overwritten", inst.plan.InstallDirectory))
	} else {
		inst.journal.Warning(fmt.Sprintf("existing installation detected (%s), performing in-place upgrade", found))
	}
	return nil, nil
}

// checkNetwork probes the endpoints the later stages pull from. Failures
// are warnings: the install continues and the affected stage fails on its
// own if the network really is down.
func (inst *Installer) checkNetwork(ctx context.Context) (interface{}, error) {
	endpoints := []string{"github.com:443", "hub.docker.com:443"}
	if inst.plan.EnableAI {
		endpoints = append(endpoints, "ollama.ai:443")
	}

	var unreachable []string
	dialer := &net.Dialer{Timeout: networkProbeTimeout}
	for _, endpoint := range endpoints {
		conn, err := dialer.DialContext(ctx, "tcp", endpoint)
		if err != nil {
			unreachable = append(unreachable, endpoint)
			continue
		}
		_ = conn.Close()
	}

	if len(unreachable) > 0 {
		for _, endpoint := range unreachable {
			inst.journal.Warning("endpoint unreachable: " + endpoint)
		}
		return nil, engine.NewError(engine.KindNetworkUnreachable,
			fmt.Sprintf("%d of %d endpoints unreachable", len(unreachable), len(endpoints)), nil).
			WithDetail("unreachable", unreachable)
	}
	return nil, nil
}
