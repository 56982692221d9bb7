package platform

import (
	"golang.org/x/sys/windows"
)

// DiskUsage reports free and total bytes for the volume containing path.
func DiskUsage(path string) (free, total uint64, err error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, 0, err
	}
	var freeBytesAvailable, totalBytes, totalFreeBytes uint64
	if err := windows.GetDiskFreeSpaceEx(p, &freeBytesAvailable, &totalBytes, &totalFreeBytes); err != nil {
		return 0, 0, err
	}
	return freeBytesAvailable, totalBytes, nil
}

// FreeDiskGB returns the free space of the volume containing path in GB.
func FreeDiskGB(path string) (float64, error) {
	free, _, err := DiskUsage(path)
	if err != nil {
		return 0, err
	}
	return float64(free) / (1 << 30), nil
}
