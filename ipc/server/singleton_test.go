package server

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.lock")

	first, err := AcquireLock(path, nil)
	if err != nil {
		t.Fatalf("[TestAcquireLock]: first AcquireLock: %s", err)
	}

	held, err := ReadLock(path)
	if err != nil {
		t.Fatalf("[TestAcquireLock]: ReadLock: %s", err)
	}
	if held.PID != os.Getpid() {
		t.Errorf("[TestAcquireLock]: lock PID = %d, want %d", held.PID, os.Getpid())
	}

	if _, err := AcquireLock(path, nil); !errors.Is(err, ErrServerLocked) {
		t.Errorf("[TestAcquireLock]: second AcquireLock: got err == %v, want ErrServerLocked", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("[TestAcquireLock]: Release: %s", err)
	}
	if err := first.Release(); err != nil {
		t.Errorf("[TestAcquireLock]: second Release: %s", err)
	}

	again, err := AcquireLock(path, nil)
	if err != nil {
		t.Fatalf("[TestAcquireLock]: AcquireLock after Release: %s", err)
	}
	again.Release()
}
