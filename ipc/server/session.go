package server

import (
	"fmt"
	"io"
	"net"
	"os"

	"code.hybscloud.com/iox"
	"github.com/gostdlib/base/context"

	"github.com/bearlytools/xrtipc/errors"
	"github.com/bearlytools/xrtipc/internal/logging"
	"github.com/bearlytools/xrtipc/ipc/protocol"
	"github.com/bearlytools/xrtipc/ipc/transport"
	"github.com/bearlytools/xrtipc/xrt"
)

type swapchainEntry struct {
	sc         xrt.Swapchain
	width      uint32
	height     uint32
	format     int64
	imageCount uint32
}

// session is the server side of one client connection.
type session struct {
	srv    *Server
	id     int
	serial uint32
	ch     *transport.Channel
	log    *logging.Logger
	events *eventQueue

	// Only touched by the session goroutine.
	swapchains *table[swapchainEntry]
	semaphores *table[xrt.CompositorSemaphore]

	// Guarded by srv.mu.
	comp     xrt.Compositor
	info     protocol.ClientDescription
	ioActive bool
	active   bool
	visible  bool
	focused  bool
	overlay  bool
	zOrder   int64
}

func newSession(s *Server, id int, serial uint32, conn *net.UnixConn) *session {
	return &session{
		srv:        s,
		id:         id,
		serial:     serial,
		ch:         transport.NewChannel(conn),
		log:        s.log.With("client", id, "serial", serial),
		events:     newEventQueue(),
		swapchains: newTable[swapchainEntry](protocol.MaxClientSwapchains),
		semaphores: newTable[xrt.CompositorSemaphore](protocol.MaxClientSemaphores),
		ioActive:   true,
	}
}

// run serves requests until the client hangs up, a transport error happens or ctx is done.
func (c *session) run(ctx context.Context) {
	c.srv.mu.Lock()
	c.srv.threads[c.id].state = stateRunning
	c.srv.mu.Unlock()

	c.srv.metrics.SessionOpened(ctx)
	c.log.Info("client connected")

	for ctx.Err() == nil {
		msg, err := c.ch.Read(c.srv.pollInterval)
		if err != nil {
			if iox.IsWouldBlock(err) {
				continue
			}
			if errors.Is(err, io.EOF) {
				c.log.Debug("client hung up")
			} else {
				c.log.Error("reading request", "err", err)
			}
			break
		}
		if err := c.dispatch(ctx, msg); err != nil {
			c.log.Error("dropping client", "err", err)
			break
		}
	}

	c.teardown(ctx)
}

// dispatch handles one request and writes the reply. A returned error is fatal to the connection.
func (c *session) dispatch(ctx context.Context, msg transport.Message) error {
	cmd := protocol.Command(msg.Tag)
	h, ok := c.srv.registry.Lookup(cmd)
	if !ok {
		msg.CloseFiles()
		return fmt.Errorf("unknown command %s", cmd)
	}

	ctx, done := c.srv.metrics.StartRequest(ctx, cmd.String(), c.id)
	c.log.Trace("request", "cmd", cmd.String(), "handles", len(msg.Files))

	rep, err := h(ctx, c, msg)
	if errors.TypeOf(err) == errors.TypeConn {
		done("conn")
		return err
	}

	result := protocol.ResultFor(err)
	if err != nil {
		c.logResult(cmd, err)
		rep = reply{}
	}

	frame, err := protocol.EncodeResponse(result, rep.resp)
	if err != nil {
		done("encode")
		return err
	}
	if err := c.ch.Write(frame, rep.files); err != nil {
		done("conn")
		return err
	}
	done(result.String())
	return nil
}

func (c *session) logResult(cmd protocol.Command, err error) {
	switch {
	case errors.TypeOf(err) == errors.TypeUnsupported:
		c.log.Warn("request not supported", "cmd", cmd.String(), "err", err)
	case errors.CategoryOf(err) == errors.CatUser:
		c.log.Debug("request rejected", "cmd", cmd.String(), "err", err)
	default:
		c.log.Error("request failed", "cmd", cmd.String(), "err", err)
	}
}

// teardown releases everything the session holds and hands its slot back.
func (c *session) teardown(ctx context.Context) {
	s := c.srv

	s.mu.Lock()
	c.ch.Close()
	t := &s.threads[c.id]
	t.state = stateStopping
	t.ics = nil
	comp := c.detachLocked()
	c.info = protocol.ClientDescription{}
	s.mu.Unlock()

	c.destroyResources(comp)
	s.metrics.SessionClosed(ctx)
	c.log.Info("client disconnected")

	if s.exitOnDisconnect {
		c.log.Info("client disconnected, stopping server")
		s.Stop()
	}
	s.updateState(ctx)
}

// detachLocked takes the compositor out of arbitration. s.mu must be held.
func (c *session) detachLocked() xrt.Compositor {
	comp := c.comp
	c.comp = nil
	c.active = false
	c.visible = false
	c.focused = false
	c.srv.stateDirty = true
	return comp
}

// destroyResources destroys the swapchains, semaphores and then the compositor they came from.
// comp may be nil.
func (c *session) destroyResources(comp xrt.Compositor) {
	c.swapchains.drain(func(_ uint32, e swapchainEntry) {
		e.sc.Destroy()
	})
	c.semaphores.drain(func(_ uint32, sem xrt.CompositorSemaphore) {
		sem.Destroy()
	})
	if comp != nil {
		comp.Destroy()
	}
}

// compositor returns the session's compositor or a TypeSessionNotCreated error.
func (c *session) compositor(ctx context.Context) (xrt.Compositor, error) {
	c.srv.mu.Lock()
	comp := c.comp
	c.srv.mu.Unlock()

	if comp == nil {
		return nil, errors.E(ctx, errors.CatUser, errors.TypeSessionNotCreated, errors.New("session not created"), errors.WithSuppressTraceErr())
	}
	return comp, nil
}

// queueEventLocked queues ev for the client. s.mu must be held.
func (c *session) queueEventLocked(ctx context.Context, ev protocol.Event) {
	if err := c.events.push(ev); err != nil {
		c.log.Error("event queue full, dropping event", "type", ev.Type)
		c.srv.metrics.EventDropped(ctx)
	}
}

func closeFiles(files []*os.File) {
	for _, f := range files {
		if f != nil {
			f.Close()
		}
	}
}
