// Package client is the client side of the broker protocol. A Client wraps one connection and
// makes typed calls on it, one at a time.
package client

import (
	"fmt"
	"net"
	"os"

	"code.hybscloud.com/iox"
	"github.com/gostdlib/base/concurrency/sync"
	"github.com/gostdlib/base/context"
	"github.com/gostdlib/base/retry/exponential"

	"github.com/bearlytools/xrtipc/errors"
	"github.com/bearlytools/xrtipc/ipc/protocol"
	"github.com/bearlytools/xrtipc/ipc/shm"
	"github.com/bearlytools/xrtipc/ipc/transport"
)

// ErrClosed is returned by calls on a closed Client.
var ErrClosed = errors.New("client closed")

// Client is a connection to the server.
type Client struct {
	ch     *transport.Channel
	config *config

	mu     sync.Mutex
	region *shm.Region
	closed bool
}

// Dial connects to the server listening at path, retrying with backoff while the server is not
// up yet.
//
// Example:
//
//	c, err := client.Dial(ctx, "/tmp/xrtipc_comp_ipc")
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
func Dial(ctx context.Context, path string, opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	backoff, err := exponential.New(exponential.WithPolicy(cfg.retryPolicy))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.dialTimeout)
	defer cancel()

	var conn *net.UnixConn
	err = backoff.Retry(ctx, func(retryCtx context.Context, r exponential.Record) error {
		d := net.Dialer{}
		c, err := d.DialContext(retryCtx, "unix", path)
		if err != nil {
			return err
		}
		conn = c.(*net.UnixConn)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", path, err)
	}
	return newClient(conn, cfg), nil
}

// New returns a Client on an already connected socket, as handed over by a launcher.
func New(conn *net.UnixConn, opts ...Option) *Client {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return newClient(conn, cfg)
}

func newClient(conn *net.UnixConn, cfg *config) *Client {
	return &Client{ch: transport.NewChannel(conn), config: cfg}
}

// Call sends cmd with payload req and handles files, then waits for the reply. A non success
// result is returned as an error carrying the matching errors.Type. On success the reply
// payload is decoded into resp (if not nil) and the handles that came with the reply are
// returned, owned by the caller.
func (c *Client) Call(ctx context.Context, cmd protocol.Command, req any, files []*os.File, resp any) ([]*os.File, error) {
	frame, err := protocol.EncodeRequest(cmd, req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if err := c.ch.Write(frame, files); err != nil {
		return nil, fmt.Errorf("sending %s: %w", cmd, err)
	}

	var msg transport.Message
	for {
		msg, err = c.ch.Read(c.config.pollInterval)
		if err == nil {
			break
		}
		if !iox.IsWouldBlock(err) {
			return nil, fmt.Errorf("reading reply to %s: %w", cmd, err)
		}
		if ctx.Err() != nil {
			// The reply is still coming, the connection can't be used for another call.
			c.closeLocked()
			return nil, ctx.Err()
		}
	}

	if err := protocol.Result(int32(msg.Tag)).Err(ctx, cmd); err != nil {
		msg.CloseFiles()
		return nil, err
	}
	if resp != nil {
		if err := protocol.Unmarshal(msg.Payload, resp); err != nil {
			msg.CloseFiles()
			return nil, err
		}
	}
	return msg.Files, nil
}

// Close closes the connection and unmaps the shared region, if it was mapped.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.closed {
		return nil
	}
	c.closed = true

	err := c.ch.Close()
	if c.region != nil {
		if rerr := c.region.Close(); err == nil {
			err = rerr
		}
		c.region = nil
	}
	return err
}

// call is Call for the commands that carry no handles either way.
func (c *Client) call(ctx context.Context, cmd protocol.Command, req, resp any) error {
	files, err := c.Call(ctx, cmd, req, nil, resp)
	for _, f := range files {
		f.Close()
	}
	return err
}
