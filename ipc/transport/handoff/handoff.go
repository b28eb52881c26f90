// Package handoff is the acceptor for platforms where a foreign framework thread owns the listening
// step. That thread calls Submit with each connected socket and blocks until the server's mainloop
// has started a session for it, or until the acceptor shuts down.
//
// Only one socket is ever in flight: concurrent submitters queue on a submission lock. This is
// the acceptor's backpressure.
package handoff

import (
	"fmt"
	stdsync "sync"
	"time"

	"code.hybscloud.com/iox"
	"github.com/gostdlib/base/concurrency/sync"
	"github.com/gostdlib/base/context"

	"github.com/bearlytools/xrtipc/ipc/transport"
)

// submission is one fd in flight. Its identity, not the fd number, is what "last accepted" refers to,
// so a reused fd number can never be mistaken for an earlier handshake.
type submission struct {
	fd    int
	taken bool
	err   error
}

// Acceptor implements transport.Acceptor for handed off sockets.
type Acceptor struct {
	pollInterval time.Duration

	// submitMu serialises submitters for the whole handshake.
	submitMu sync.Mutex

	// mu is the acceptance lock. It guards the fields below and is cond's locker.
	mu           sync.Mutex
	cond         *stdsync.Cond
	last         *submission
	shuttingDown bool

	// queue is the single slot the mainloop reads from.
	queue chan *submission
}

var _ transport.Acceptor = (*Acceptor)(nil)

// New returns an Acceptor whose AcceptNext waits up to pollInterval.
func New(pollInterval time.Duration) *Acceptor {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	a := &Acceptor{
		pollInterval: pollInterval,
		queue:        make(chan *submission, 1),
	}
	a.cond = stdsync.NewCond(&a.mu)
	return a
}

// Submit hands the connected socket fd to the server. It returns once the mainloop has handled the
// socket, and then the server owns fd. If the acceptor shuts down first, Submit returns
// transport.ErrShuttingDown and the caller still owns fd.
func (a *Acceptor) Submit(fd int) error {
	a.submitMu.Lock()
	defer a.submitMu.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.shuttingDown {
		return transport.ErrShuttingDown
	}

	s := &submission{fd: fd}
	a.queue <- s // Never blocks: the previous submitter left the slot empty.

	for a.last != s && !(a.shuttingDown && !s.taken) {
		a.cond.Wait()
	}
	if a.last == s {
		return s.err
	}
	// Shut down before the mainloop took it. Drain the slot so the fd isn't picked up later.
	select {
	case <-a.queue:
	default:
	}
	return transport.ErrShuttingDown
}

// AcceptNext implements transport.Acceptor.AcceptNext.
func (a *Acceptor) AcceptNext(ctx context.Context) (*transport.Pending, error) {
	if a.isShuttingDown() {
		return nil, transport.ErrShuttingDown
	}

	timer := time.NewTimer(a.pollInterval)
	defer timer.Stop()

	var s *submission
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, iox.ErrWouldBlock
	case s = <-a.queue:
	}

	a.mu.Lock()
	if a.shuttingDown {
		// Not taken, the submitter keeps the fd.
		a.mu.Unlock()
		return nil, transport.ErrShuttingDown
	}
	s.taken = true
	a.mu.Unlock()

	conn, err := transport.FileConn(s.fd)
	if err != nil {
		// The submitter gets the cause, the mainloop only learns this attempt is gone.
		s.err = err
		a.ack(s)
		return nil, fmt.Errorf("%w: fd %d: %w", transport.ErrConnFailed, s.fd, err)
	}
	return transport.NewPending(conn, func() { a.ack(s) }), nil
}

// ack records s as the last accepted submission and wakes submitters.
func (a *Acceptor) ack(s *submission) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.last = s
	a.cond.Broadcast()
}

// LastAccepted returns the fd of the last submission the mainloop finished with, or -1.
func (a *Acceptor) LastAccepted() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.last == nil {
		return -1
	}
	return a.last.fd
}

// Close starts shutdown. Submitters whose socket the mainloop has not taken return
// transport.ErrShuttingDown right away.
func (a *Acceptor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.shuttingDown = true
	a.cond.Broadcast()
	return nil
}

func (a *Acceptor) isShuttingDown() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.shuttingDown
}
