//go:build linux || darwin

package fs

import "golang.org/x/sys/unix"

// diskUsage returns the total and available bytes of the filesystem holding
// path.
func diskUsage(path string) (total, available uint64, err error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	return stat.Blocks * uint64(stat.Bsize), stat.Bavail * uint64(stat.Bsize), nil
}
