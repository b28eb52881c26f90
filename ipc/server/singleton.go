package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bearlytools/xrtipc/internal/logging"
)

// ErrServerLocked is returned by AcquireLock when another server holds the lock.
var ErrServerLocked = errors.New("another server instance is running")

// Lock is the advisory lock that keeps a second server from starting. The kernel drops it when
// the holder exits, so a crashed server never leaves a stale lock behind.
type Lock struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`

	path string
	f    *os.File
}

// AcquireLock takes the lock at path. It must be held before the socket is bound, as binding
// removes a stale socket file. logger may be nil.
func AcquireLock(path string, logger *logging.Logger) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|unix.O_CLOEXEC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		defer f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			held, rerr := ReadLock(path)
			if logger != nil {
				logger.Error("failed to acquire server lock", "path", path, "holder_pid", held.PID)
			}
			if rerr == nil {
				return nil, fmt.Errorf("%w: PID %d on %s", ErrServerLocked, held.PID, held.Hostname)
			}
			return nil, ErrServerLocked
		}
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	l := &Lock{
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
		path:      path,
		f:         f,
	}

	data, err := json.Marshal(l)
	if err != nil {
		l.Release()
		return nil, fmt.Errorf("failed to marshal lock: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		l.Release()
		return nil, fmt.Errorf("truncating lock file: %w", err)
	}
	if _, err := f.WriteAt(data, 0); err != nil {
		l.Release()
		return nil, fmt.Errorf("writing lock file: %w", err)
	}
	return l, nil
}

// ReadLock reads the holder information written to the lock file at path.
func ReadLock(path string) (Lock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Lock{}, err
	}
	var l Lock
	if err := json.Unmarshal(data, &l); err != nil {
		return Lock{}, fmt.Errorf("parsing lock file: %w", err)
	}
	return l, nil
}

// Release removes the lock file and drops the lock. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	// Remove before unlocking so a new server never locks a file we then delete.
	os.Remove(l.path)
	unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}
