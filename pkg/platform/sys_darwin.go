package platform

import (
	"os"

	"golang.org/x/sys/unix"
)

// totalMemoryBytes queries total physical memory via sysctl.
func totalMemoryBytes() (uint64, error) {
	return unix.SysctlUint64("hw.memsize")
}

// availableMemoryBytes is not cheaply available on darwin without parsing
// vm_stat output; callers fall back to the command probe.
func availableMemoryBytes() (uint64, error) {
	return 0, unix.ENOTSUP
}

// isElevated reports whether the process runs with effective uid 0.
func isElevated() bool {
	return os.Geteuid() == 0
}
