//go:build !windows

package diag

import "golang.org/x/sys/unix"

// diskFree returns the bytes available to the current user on the
// filesystem holding path.
func diskFree(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// writable reports whether the current user may write to path.
func writable(path string) bool {
	return unix.Access(path, unix.W_OK) == nil
}
