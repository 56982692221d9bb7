package platform

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// memoryProbeTimeout bounds the OS command fallback for memory detection.
const memoryProbeTimeout = 10 * time.Second

// memoryFromCommand probes total memory via an OS-specific command. Used
// when the syscall-level query yields nothing usable.
func memoryFromCommand(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, memoryProbeTimeout)
	defer cancel()

	switch runtime.GOOS {
	case "windows":
		out, err := exec.CommandContext(ctx, "wmic", "computersystem", "get", "TotalPhysicalMemory").Output()
		if err != nil {
			return 0, err
		}
		for _, line := range strings.Split(string(out), "\n") {
			line = strings.TrimSpace(line)
			if bytes, err := strconv.ParseUint(line, 10, 64); err == nil && bytes > 0 {
				return float64(bytes) / (1 << 30), nil
			}
		}
		return 0, fmt.Errorf("no usable value in wmic output")

	case "darwin":
		out, err := exec.CommandContext(ctx, "sysctl", "-n", "hw.memsize").Output()
		if err != nil {
			return 0, err
		}
		bytes, err := strconv.ParseUint(strings.TrimSpace(string(out)), 10, 64)
		if err != nil {
			return 0, err
		}
		return float64(bytes) / (1 << 30), nil

	default:
		data, err := os.ReadFile("/proc/meminfo")
		if err != nil {
			return 0, err
		}
		return memTotalFromMeminfo(string(data))
	}
}

// memTotalFromMeminfo parses the MemTotal line of /proc/meminfo (kB).
func memTotalFromMeminfo(content string) (float64, error) {
	for _, line := range strings.Split(content, "\n") {
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, err
		}
		return float64(kb) / (1 << 20), nil
	}
	return 0, fmt.Errorf("MemTotal not found in meminfo")
}
