//go:build unix && !linux

package shm

import "os"

// Without memfd an unlinked temp file stands in for the anonymous region.
func createFile(size int) (*os.File, error) {
	f, err := os.CreateTemp("", "xrtipc-shm-*")
	if err != nil {
		return nil, err
	}
	os.Remove(f.Name())
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
