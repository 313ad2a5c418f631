//go:build windows

package diag

import (
	"os"

	"golang.org/x/sys/windows"
)

// diskFree returns the bytes available to the current user on the
// volume holding path.
func diskFree(path string) (uint64, error) {
	target, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	var free, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(target, &free, &total, &totalFree); err != nil {
		return 0, err
	}
	return free, nil
}

// writable approximates write access from the file mode; Windows ACLs
// are not consulted.
func writable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().Perm()&0o200 != 0
}
