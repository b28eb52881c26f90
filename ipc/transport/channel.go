package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"code.hybscloud.com/iox"
	"github.com/gostdlib/base/concurrency/sync"
	"golang.org/x/sys/unix"

	"github.com/bearlytools/xrtipc/ipc/protocol"
)

// Message is one received frame.
type Message struct {
	// Tag is the Command of a request or the Result of a response.
	Tag     uint32
	Payload []byte
	// Files are the handles that came with the message. The receiver owns them.
	Files []*os.File
}

// CloseFiles closes every handle in the message.
func (m Message) CloseFiles() {
	for _, f := range m.Files {
		f.Close()
	}
}

// Channel sends and receives framed messages with handles over a unix stream socket.
// Reads must come from one goroutine, writes may come from any.
type Channel struct {
	conn *net.UnixConn
	oob  []byte

	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

// NewChannel returns a Channel that owns conn.
func NewChannel(conn *net.UnixConn) *Channel {
	return &Channel{
		conn: conn,
		oob:  make([]byte, unix.CmsgSpace(protocol.MaxHandles*4)),
	}
}

// Conn returns the underlying socket.
func (c *Channel) Conn() *net.UnixConn {
	return c.conn
}

// Read reads the next message. If timeout is > 0 and nothing arrives within it, Read returns
// iox.ErrWouldBlock. Once the first byte of a message has arrived the rest is read without a timeout.
// A closed peer returns io.EOF.
func (c *Channel) Read(timeout time.Duration) (Message, error) {
	if c.isClosed() {
		return Message{}, ErrClosed
	}

	var dl time.Time
	if timeout > 0 {
		dl = time.Now().Add(timeout)
	}
	if err := c.conn.SetReadDeadline(dl); err != nil {
		return Message{}, err
	}

	var (
		hdr   [protocol.HeaderSize]byte
		got   int
		files []*os.File
	)
	for got < len(hdr) {
		n, oobn, _, _, err := c.conn.ReadMsgUnix(hdr[got:], c.oob)
		if oobn > 0 {
			fs, perr := parseRights(c.oob[:oobn])
			files = append(files, fs...)
			if perr != nil {
				closeAll(files)
				return Message{}, perr
			}
		}
		// n is -1 when the read fails.
		if n > 0 {
			got += n
		}
		if err != nil {
			if got == 0 && errors.Is(err, os.ErrDeadlineExceeded) {
				return Message{}, iox.ErrWouldBlock
			}
			closeAll(files)
			if errors.Is(err, io.EOF) && got == 0 {
				return Message{}, io.EOF
			}
			return Message{}, fmt.Errorf("reading message header: %w", err)
		}
		if n == 0 && oobn == 0 {
			closeAll(files)
			return Message{}, io.EOF
		}
		if got > 0 && !dl.IsZero() {
			if err := c.conn.SetReadDeadline(time.Time{}); err != nil {
				closeAll(files)
				return Message{}, err
			}
			dl = time.Time{}
		}
	}

	h, err := protocol.ParseHeader(hdr[:])
	if err != nil {
		closeAll(files)
		return Message{}, err
	}
	if len(files) > protocol.MaxHandles {
		closeAll(files)
		return Message{}, fmt.Errorf("message carried %d handles, max is %d", len(files), protocol.MaxHandles)
	}

	msg := Message{Tag: h.Tag, Files: files}
	if n := h.PayloadLen(); n > 0 {
		msg.Payload = make([]byte, n)
		if _, err := io.ReadFull(c.conn, msg.Payload); err != nil {
			closeAll(files)
			return Message{}, fmt.Errorf("reading message payload: %w", err)
		}
	}
	return msg, nil
}

// Write sends frame with files attached. The caller keeps ownership of files.
func (c *Channel) Write(frame []byte, files []*os.File) error {
	if c.isClosed() {
		return ErrClosed
	}
	if len(files) > protocol.MaxHandles {
		return fmt.Errorf("cannot send %d handles, max is %d", len(files), protocol.MaxHandles)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var oob []byte
	if len(files) > 0 {
		fds := make([]int, len(files))
		for i, f := range files {
			fds[i] = int(f.Fd())
		}
		oob = unix.UnixRights(fds...)
	}

	n, _, err := c.conn.WriteMsgUnix(frame, oob, nil)
	if err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if n < len(frame) {
		if _, err := c.conn.Write(frame[n:]); err != nil {
			return fmt.Errorf("writing message: %w", err)
		}
	}
	return nil
}

// Close closes the channel and its socket.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func parseRights(oob []byte) ([]*os.File, error) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, fmt.Errorf("parsing control message: %w", err)
	}
	var files []*os.File
	for i := range msgs {
		fds, err := unix.ParseUnixRights(&msgs[i])
		if err != nil {
			continue
		}
		for _, fd := range fds {
			files = append(files, os.NewFile(uintptr(fd), "ipc-handle"))
		}
	}
	return files, nil
}

func closeAll(files []*os.File) {
	for _, f := range files {
		f.Close()
	}
}
