// Package transport provides the connection plumbing between the server and its clients:
// the Acceptor abstraction that turns connection attempts into sockets, and the Channel that
// moves framed messages and handles over a socket.
package transport

import (
	"errors"
	"net"
	"os"

	"github.com/gostdlib/base/concurrency/sync"
	"github.com/gostdlib/base/context"
	"golang.org/x/sys/unix"
)

// Common errors.
var (
	// ErrClosed is returned when using a Channel after Close.
	ErrClosed = errors.New("transport closed")
	// ErrShuttingDown is returned by acceptors once Close has been called.
	ErrShuttingDown = errors.New("acceptor shutting down")
	// ErrConnFailed wraps an acceptor error that only lost one connection attempt. The
	// mainloop logs it and keeps accepting.
	ErrConnFailed = errors.New("connection setup failed")
)

// Pending is a connection handed out by an Acceptor.
type Pending struct {
	// Conn is the client's socket.
	Conn *net.UnixConn

	once sync.Once
	done func()
}

// NewPending returns a Pending for conn. done, if not nil, is called once by Done.
func NewPending(conn *net.UnixConn, done func()) *Pending {
	return &Pending{Conn: conn, done: done}
}

// Done must be called once the server has finished handling the connection attempt, whether it
// started a session for it or rejected it.
func (p *Pending) Done() {
	p.once.Do(func() {
		if p.done != nil {
			p.done()
		}
	})
}

// Acceptor turns incoming connection attempts into sockets for the server's mainloop.
type Acceptor interface {
	// AcceptNext waits up to the acceptor's poll interval for a connection. It returns
	// an error satisfying iox.IsWouldBlock when the interval passed without one, and
	// ErrShuttingDown after Close. Errors wrapping ErrConnFailed concern one connection attempt only.
	AcceptNext(ctx context.Context) (*Pending, error)
	// Close stops the acceptor. Any caller blocked handing a connection to the acceptor is released.
	Close() error
}

// SocketPair returns two connected unix stream sockets.
func SocketPair() (*net.UnixConn, *net.UnixConn, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, err
	}
	a, err := FileConn(fds[0])
	if err != nil {
		unix.Close(fds[1])
		return nil, nil, err
	}
	b, err := FileConn(fds[1])
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, b, nil
}

// FileConn wraps the socket fd as a *net.UnixConn. The fd is owned by the returned conn, fd is
// closed on error.
func FileConn(fd int) (*net.UnixConn, error) {
	f := os.NewFile(uintptr(fd), "unix-socket")
	defer f.Close() // net.FileConn dups the fd.

	c, err := net.FileConn(f)
	if err != nil {
		return nil, err
	}
	uc, ok := c.(*net.UnixConn)
	if !ok {
		c.Close()
		return nil, errors.New("fd is not a unix socket")
	}
	return uc, nil
}
