package platform

import (
	"os"

	"golang.org/x/sys/unix"
)

// totalMemoryBytes queries total physical memory via sysinfo.
func totalMemoryBytes() (uint64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, err
	}
	return uint64(info.Totalram) * uint64(info.Unit), nil
}

// availableMemoryBytes returns currently free memory including buffers.
func availableMemoryBytes() (uint64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, err
	}
	return (uint64(info.Freeram) + uint64(info.Bufferram)) * uint64(info.Unit), nil
}

// isElevated reports whether the process runs with effective uid 0.
func isElevated() bool {
	return os.Geteuid() == 0
}
