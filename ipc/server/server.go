// Package server is the session broker. It owns the devices, the system compositor and the
// shared region, accepts client connections through a transport.Acceptor and runs one session
// goroutine per client. Sessions talk to the compositor and devices on the client's behalf, while
// the arbiter decides which application is primary and pushes visibility, focus and z-order.
package server

import (
	"fmt"
	"net"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"github.com/gostdlib/base/concurrency/sync"
	"github.com/gostdlib/base/context"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/bearlytools/xrtipc/errors"
	"github.com/bearlytools/xrtipc/internal/logging"
	"github.com/bearlytools/xrtipc/internal/metrics"
	"github.com/bearlytools/xrtipc/ipc/protocol"
	"github.com/bearlytools/xrtipc/ipc/shm"
	"github.com/bearlytools/xrtipc/ipc/transport"
	"github.com/bearlytools/xrtipc/xrt"
)

// Common errors.
var (
	ErrNoDevices      = errors.New("server needs at least one device")
	ErrTooManyClients = errors.New("max client count reached")
)

// serial numbers every session the process starts, for logs.
var serial atomix.Uint32

type threadState uint8

const (
	stateReady threadState = iota
	stateStarting
	stateRunning
	stateStopping
)

func (t threadState) String() string {
	switch t {
	case stateReady:
		return "ready"
	case stateStarting:
		return "starting"
	case stateRunning:
		return "running"
	case stateStopping:
		return "stopping"
	}
	return fmt.Sprintf("threadState(%d)", t)
}

// thread is one client slot. A slot in stateStopping still has a goroutine finishing its
// teardown, done is closed when it has.
type thread struct {
	state threadState
	done  chan struct{}
	ics   *session
}

// Server brokers sessions between clients and the system compositor.
type Server struct {
	log              *logging.Logger
	metrics          *metrics.Metrics
	pollInterval     time.Duration
	exitOnDisconnect bool

	acceptor transport.Acceptor
	sysc     xrt.SystemCompositor
	devices  []xrt.Device
	region   *shm.Region
	registry *Registry

	stopOnce sync.Once
	stopCh   chan struct{}

	// mu guards everything below and the arbitration fields of every session.
	mu               sync.Mutex
	threads          [protocol.MaxClients]thread
	deviceIO         [protocol.MaxSharedDevices]bool
	activeClient     int
	lastActiveClient int
	// stateDirty is set when a session's activity changed since the last arbitration.
	stateDirty  bool
	currentSlot uint32
}

// New creates a server that accepts clients from acceptor. The devices are published in a new
// shared region, failing if they do not fit.
func New(ctx context.Context, acceptor transport.Acceptor, sysc xrt.SystemCompositor, devices []xrt.Device, opts ...Option) (*Server, error) {
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}

	s := &Server{
		log:              logging.Discard(),
		pollInterval:     500 * time.Millisecond,
		acceptor:         acceptor,
		sysc:             sysc,
		devices:          devices,
		registry:         NewRegistry(),
		stopCh:           make(chan struct{}),
		activeClient:     -1,
		lastActiveClient: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		m, err := metrics.New(ctx, noop.NewMeterProvider())
		if err != nil {
			return nil, err
		}
		s.metrics = m
	}
	for i := range s.deviceIO {
		s.deviceIO[i] = true
	}

	region, err := shm.Create()
	if err != nil {
		return nil, fmt.Errorf("creating shared region: %w", err)
	}
	if err := region.Layout().Populate(ctx, devices); err != nil {
		region.Close()
		return nil, fmt.Errorf("publishing devices: %w", err)
	}
	s.region = region

	if err := s.registerHandlers(); err != nil {
		region.Close()
		return nil, err
	}

	s.log.Info("server created", "devices", len(devices), "shm_size", shm.Size)
	return s, nil
}

// Registry returns the server's command handlers.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Region returns the shared region published to clients.
func (s *Server) Region() *shm.Region {
	return s.region
}

// Run accepts clients until ctx is done, Stop is called or the acceptor fails. Before returning
// it closes the acceptor and waits for every session to finish its teardown. A nil error means a
// clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	context.Pool(ctx).Submit(ctx, func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	})

	s.log.Info("server running")
	var runErr error
loop:
	for ctx.Err() == nil {
		p, err := s.acceptor.AcceptNext(ctx)
		switch {
		case err == nil:
			s.handleConnected(ctx, p)
		case iox.IsWouldBlock(err):
		case errors.Is(err, transport.ErrShuttingDown), ctx.Err() != nil:
			break loop
		case errors.Is(err, transport.ErrConnFailed):
			s.log.Warn("dropping connection attempt", "err", err)
		default:
			s.log.Error("accepting clients failed, stopping", "err", err)
			runErr = err
			break loop
		}
	}

	s.Stop()
	cancel()
	if err := s.acceptor.Close(); err != nil {
		s.log.Warn("closing acceptor", "err", err)
	}
	s.waitSessions()
	if err := s.region.Close(); err != nil {
		s.log.Warn("closing shared region", "err", err)
	}
	s.log.Info("server stopped")
	return runErr
}

// Stop makes Run return. It can be called from any goroutine, more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

func (s *Server) waitSessions() {
	for {
		s.mu.Lock()
		var wait chan struct{}
		for i := range s.threads {
			t := &s.threads[i]
			if t.state != stateReady && t.done != nil {
				wait = t.done
				t.state = stateReady
				t.done = nil
				break
			}
		}
		s.mu.Unlock()

		if wait == nil {
			return
		}
		<-wait
	}
}

func (s *Server) handleConnected(ctx context.Context, p *transport.Pending) {
	defer p.Done()

	if err := s.startClient(ctx, p.Conn); err != nil {
		s.log.Error("client not started", "err", err)
	}
}

// startClient claims a free client slot for conn and starts its session. conn is closed if
// there is no free slot.
func (s *Server) startClient(ctx context.Context, conn *net.UnixConn) error {
	s.mu.Lock()
	id := -1
	for i := range s.threads {
		if st := s.threads[i].state; st == stateReady || st == stateStopping {
			id = i
			break
		}
	}
	if id < 0 {
		s.mu.Unlock()
		conn.Close()
		s.metrics.Rejected(ctx)
		return ErrTooManyClients
	}
	t := &s.threads[id]
	prev := t.done
	t.state = stateStarting
	t.done = nil
	s.mu.Unlock()

	// The previous occupant is past the point of touching the slot, only its teardown remains.
	if prev != nil {
		<-prev
	}

	c := newSession(s, id, serial.Add(1), conn)
	done := make(chan struct{})

	s.mu.Lock()
	t.ics = c
	t.done = done
	s.mu.Unlock()

	context.Pool(ctx).Submit(ctx, func() {
		defer close(done)
		c.run(ctx)
	})
	return nil
}

// clientLocked returns the session in slot id. s.mu must be held.
func (s *Server) clientLocked(id int32) (*session, bool) {
	if id < 0 || int(id) >= len(s.threads) {
		return nil, false
	}
	c := s.threads[id].ics
	return c, c != nil
}

// device returns the device at id.
func (s *Server) device(ctx context.Context, id uint32) (xrt.Device, error) {
	if int(id) >= len(s.devices) {
		return nil, errors.E(ctx, errors.CatUser, errors.TypeInvalidHandle, fmt.Errorf("no device %d", id), errors.WithSuppressTraceErr())
	}
	return s.devices[id], nil
}

// advanceSlot moves the frame slot ring on and returns the next free slot.
func (s *Server) advanceSlot() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentSlot = (s.currentSlot + 1) % protocol.MaxSlots
	return s.currentSlot
}
