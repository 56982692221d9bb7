//go:build !windows

package platform

import (
	"golang.org/x/sys/unix"
)

// DiskUsage reports free and total bytes for the filesystem containing path.
func DiskUsage(path string) (free, total uint64, err error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	bsize := uint64(stat.Bsize)
	return stat.Bavail * bsize, stat.Blocks * bsize, nil
}

// FreeDiskGB returns the free space of the filesystem containing path in GB.
func FreeDiskGB(path string) (float64, error) {
	free, _, err := DiskUsage(path)
	if err != nil {
		return 0, err
	}
	return float64(free) / (1 << 30), nil
}
