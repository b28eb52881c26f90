package shm

import (
	"os"

	"golang.org/x/sys/unix"
)

func createFile(size int) (*os.File, error) {
	fd, err := unix.MemfdCreate("xrtipc-shm", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	f := os.NewFile(uintptr(fd), "xrtipc-shm")
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
