//go:build unix

package store

import "syscall"

// freeMegabytes returns the free space on the filesystem holding path.
func freeMegabytes(path string) (int64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return int64(stat.Bavail) * int64(stat.Bsize) / (1024 * 1024), nil
}
