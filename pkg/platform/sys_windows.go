package platform

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// totalMemoryBytes queries total physical memory via GlobalMemoryStatusEx.
func totalMemoryBytes() (uint64, error) {
	var status windows.MemoryStatusEx
	status.Length = uint32(unsafe.Sizeof(status))
	if err := windows.GlobalMemoryStatusEx(&status); err != nil {
		return 0, err
	}
	return status.TotalPhys, nil
}

// availableMemoryBytes returns currently available physical memory.
func availableMemoryBytes() (uint64, error) {
	var status windows.MemoryStatusEx
	status.Length = uint32(unsafe.Sizeof(status))
	if err := windows.GlobalMemoryStatusEx(&status); err != nil {
		return 0, err
	}
	return status.AvailPhys, nil
}

// isElevated reports whether the process token carries administrator
// elevation. Failure to determine defaults to false.
func isElevated() bool {
	token := windows.GetCurrentProcessToken()
	return token.IsElevated()
}
