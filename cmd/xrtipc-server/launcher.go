package main

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/gostdlib/base/context"
	"golang.org/x/sys/unix"

	"github.com/bearlytools/xrtipc/internal/logging"
	"github.com/bearlytools/xrtipc/ipc/transport"
	"github.com/bearlytools/xrtipc/ipc/transport/handoff"
)

// launch plays the part of a platform service that owns the listening socket and hands each
// client's fd to the broker, one at a time.
func launch(ctx context.Context, path string, acc *handoff.Acceptor, log *logging.Logger) error {
	os.Remove(path)
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return fmt.Errorf("listening on %s: %w", path, err)
	}

	context.Pool(ctx).Submit(ctx, func() {
		<-ctx.Done()
		ln.Close()
	})
	context.Pool(ctx).Submit(ctx, func() {
		for {
			conn, err := ln.AcceptUnix()
			if err != nil {
				if ctx.Err() == nil {
					log.Error("launcher accept failed", "err", err)
				}
				return
			}
			fd, err := rawFD(conn)
			conn.Close()
			if err != nil {
				log.Error("launcher could not take client fd", "err", err)
				continue
			}

			// Once taken, the fd belongs to the broker, even if it fails to use it.
			err = acc.Submit(fd)
			switch {
			case err == nil:
			case errors.Is(err, transport.ErrShuttingDown):
				unix.Close(fd)
				return
			default:
				log.Error("handing client to broker", "err", err)
			}
		}
	})
	return nil
}

// rawFD returns a duplicate of conn's fd that no *os.File owns.
func rawFD(conn *net.UnixConn) (int, error) {
	f, err := conn.File()
	if err != nil {
		return -1, err
	}
	defer f.Close()
	return unix.Dup(int(f.Fd()))
}
