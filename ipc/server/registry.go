package server

import (
	"fmt"
	"os"

	"github.com/gostdlib/base/concurrency/sync"
	"github.com/gostdlib/base/context"

	"github.com/bearlytools/xrtipc/errors"
	"github.com/bearlytools/xrtipc/ipc/protocol"
	"github.com/bearlytools/xrtipc/ipc/transport"
)

// ErrHandlerExists is returned when trying to register a handler that already exists.
var ErrHandlerExists = errors.New("handler already registered")

// reply is what a handler sends back on success. Files are borrowed: they stay owned by the
// server resource that produced them and are not closed after sending.
type reply struct {
	resp  any
	files []*os.File
}

// Handler handles one decoded request on a session. It owns msg.Files.
type Handler func(ctx context.Context, c *session, msg transport.Message) (reply, error)

// Registry maps commands to their handlers.
type Registry struct {
	handlers map[protocol.Command]Handler
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[protocol.Command]Handler)}
}

// Register registers h for cmd.
func (r *Registry) Register(cmd protocol.Command, h Handler) error {
	if !cmd.Valid() {
		return fmt.Errorf("cannot register invalid command %d", uint32(cmd))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[cmd]; exists {
		return fmt.Errorf("%w: %s", ErrHandlerExists, cmd)
	}
	r.handlers[cmd] = h
	return nil
}

// Lookup finds the handler for cmd.
func (r *Registry) Lookup(cmd protocol.Command) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[cmd]
	return h, ok
}

// decodeErr marks a payload that could not be decoded. It is fatal to the connection.
func decodeErr(ctx context.Context, err error) error {
	return errors.E(ctx, errors.CatUser, errors.TypeConn, err)
}

// handle adapts a typed handler for a request that carries no handles. Any handles that
// arrive with it are closed.
func handle[Req any](fn func(ctx context.Context, c *session, req Req) (reply, error)) Handler {
	return func(ctx context.Context, c *session, msg transport.Message) (reply, error) {
		msg.CloseFiles()

		var req Req
		if err := protocol.Unmarshal(msg.Payload, &req); err != nil {
			return reply{}, decodeErr(ctx, err)
		}
		return fn(ctx, c, req)
	}
}

// handleFiles adapts a typed handler that takes ownership of the request's handles.
func handleFiles[Req any](fn func(ctx context.Context, c *session, req Req, files []*os.File) (reply, error)) Handler {
	return func(ctx context.Context, c *session, msg transport.Message) (reply, error) {
		var req Req
		if err := protocol.Unmarshal(msg.Payload, &req); err != nil {
			msg.CloseFiles()
			return reply{}, decodeErr(ctx, err)
		}
		return fn(ctx, c, req, msg.Files)
	}
}

// empty is the request type of commands without a payload.
type empty struct{}
