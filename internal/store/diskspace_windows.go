//go:build windows

package store

import "errors"

// freeMegabytes is not implemented on Windows; the caller fails open.
func freeMegabytes(path string) (int64, error) {
	return 0, errors.New("disk space inspection not supported on windows")
}
