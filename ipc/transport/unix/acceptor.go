// Package unix is the direct socket acceptor: a listening unix socket polled by the server's
// mainloop. The socket can also be handed over by systemd socket activation.
package unix

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"code.hybscloud.com/iox"
	"github.com/gostdlib/base/concurrency/sync"
	"github.com/gostdlib/base/context"
	sysunix "golang.org/x/sys/unix"

	"github.com/bearlytools/xrtipc/ipc/transport"
)

// listenFDsStart is the first fd systemd passes to an activated service.
const listenFDsStart = 3

// Acceptor implements transport.Acceptor over a listening unix socket.
type Acceptor struct {
	listener *net.UnixListener
	config   *config
	path     string
	// activated is set when the socket came from systemd. We don't own the path then.
	activated bool

	mu     sync.Mutex
	closed bool
}

var _ transport.Acceptor = (*Acceptor)(nil)

// Listen creates an Acceptor listening on path. If systemd passed a socket to the process
// it is used instead and path is only informational.
//
// Example:
//
//	acc, err := unix.Listen(ctx, "/run/user/1000/xrtipc_comp_ipc")
//	if err != nil {
//	    return err
//	}
//	defer acc.Close()
func Listen(ctx context.Context, path string, opts ...Option) (*Acceptor, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.systemd {
		l, err := systemdListener()
		if err != nil {
			return nil, err
		}
		if l != nil {
			return &Acceptor{listener: l, config: cfg, path: path, activated: true}, nil
		}
	}

	// Remove existing socket file if configured.
	if cfg.unlinkExisting {
		if info, err := os.Stat(path); err == nil {
			if info.Mode()&os.ModeSocket != 0 {
				if err := os.Remove(path); err != nil {
					return nil, err
				}
			}
		}
	}

	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, err
	}
	// We remove the file ourselves in Close.
	listener.SetUnlinkOnClose(false)

	if err := os.Chmod(path, os.FileMode(cfg.socketMode)); err != nil {
		listener.Close()
		os.Remove(path)
		return nil, err
	}

	return &Acceptor{
		listener: listener,
		config:   cfg,
		path:     path,
	}, nil
}

// systemdListener returns the socket passed by systemd, or nil if there is none.
func systemdListener() (*net.UnixListener, error) {
	pid, err := strconv.Atoi(os.Getenv("LISTEN_PID"))
	if err != nil || pid != os.Getpid() {
		return nil, nil
	}
	n, err := strconv.Atoi(os.Getenv("LISTEN_FDS"))
	if err != nil || n < 1 {
		return nil, nil
	}
	if n > 1 {
		return nil, errors.New("systemd passed more than one socket")
	}

	f := os.NewFile(listenFDsStart, "systemd-socket")
	defer f.Close() // net.FileListener dups the fd.

	l, err := net.FileListener(f)
	if err != nil {
		return nil, err
	}
	ul, ok := l.(*net.UnixListener)
	if !ok {
		l.Close()
		return nil, errors.New("systemd socket is not a unix socket")
	}
	ul.SetUnlinkOnClose(false)
	os.Unsetenv("LISTEN_PID")
	os.Unsetenv("LISTEN_FDS")
	return ul, nil
}

// AcceptNext implements transport.Acceptor.AcceptNext.
func (a *Acceptor) AcceptNext(ctx context.Context) (*transport.Pending, error) {
	if a.isClosed() {
		return nil, transport.ErrShuttingDown
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := a.listener.SetDeadline(time.Now().Add(a.config.pollInterval)); err != nil {
		if a.isClosed() {
			return nil, transport.ErrShuttingDown
		}
		return nil, err
	}
	conn, err := a.listener.AcceptUnix()
	if err != nil {
		switch {
		case errors.Is(err, os.ErrDeadlineExceeded):
			return nil, iox.ErrWouldBlock
		case a.isClosed():
			return nil, transport.ErrShuttingDown
		case errors.Is(err, sysunix.ECONNABORTED):
			return nil, fmt.Errorf("%w: %w", transport.ErrConnFailed, err)
		}
		return nil, err
	}
	return transport.NewPending(conn, nil), nil
}

// Close closes the listener and removes the socket file.
func (a *Acceptor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	err := a.listener.Close()
	if !a.activated {
		os.Remove(a.path)
	}
	return err
}

// Activated reports if the socket was passed by systemd.
func (a *Acceptor) Activated() bool {
	return a.activated
}

// Addr returns the listener's network address.
func (a *Acceptor) Addr() net.Addr {
	return a.listener.Addr()
}

// Path returns the socket file path.
func (a *Acceptor) Path() string {
	return a.path
}

func (a *Acceptor) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}
