package shm

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Size is the size in bytes of the shared region.
var Size = int(unsafe.Sizeof(Layout{}))

// Region is a mapped shared region.
type Region struct {
	f   *os.File
	mem []byte
	l   *Layout
}

// Create creates and maps a new, zeroed shared region. The server calls this once at start.
func Create() (*Region, error) {
	f, err := createFile(Size)
	if err != nil {
		return nil, fmt.Errorf("creating shared region: %w", err)
	}
	r, err := mapFile(f, Size)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// Map maps a shared region received from the server. The Region takes ownership of f.
func Map(f *os.File) (*Region, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat of shared region: %w", err)
	}
	if fi.Size() < int64(Size) {
		return nil, fmt.Errorf("shared region is %d bytes, need %d", fi.Size(), Size)
	}
	r, err := mapFile(f, Size)
	if err != nil {
		return nil, err
	}
	if magic, version := r.l.Magic, r.l.Version; magic != Magic || version != Version {
		r.Close()
		return nil, fmt.Errorf("shared region has magic %#x version %d, want %#x version %d", magic, version, Magic, Version)
	}
	return r, nil
}

func mapFile(f *os.File, size int) (*Region, error) {
	mem, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap of shared region: %w", err)
	}
	return &Region{f: f, mem: mem, l: (*Layout)(unsafe.Pointer(&mem[0]))}, nil
}

// Layout returns the region's layout. It is valid until Close.
func (r *Region) Layout() *Layout {
	return r.l
}

// File returns the handle that is sent to clients.
func (r *Region) File() *os.File {
	return r.f
}

// Close unmaps the region and closes its handle.
func (r *Region) Close() error {
	r.l = nil
	var err error
	if r.mem != nil {
		err = unix.Munmap(r.mem)
		r.mem = nil
	}
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	return err
}
