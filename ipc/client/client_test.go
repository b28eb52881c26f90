package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"code.hybscloud.com/iox"
	"github.com/gostdlib/base/context"
	"github.com/kylelemons/godebug/pretty"

	"github.com/bearlytools/xrtipc/errors"
	"github.com/bearlytools/xrtipc/ipc/protocol"
	"github.com/bearlytools/xrtipc/ipc/transport"
)

const testPoll = 5 * time.Millisecond

// peer is the server end of a socket pair, answering each request with the next scripted reply.
type peer struct {
	ch   *transport.Channel
	got  chan transport.Message
	stop chan struct{}
}

type scripted struct {
	result protocol.Result
	resp   any
	files  []*os.File
	// silent reads the request but never answers it.
	silent bool
}

func newPeer(t *testing.T, replies ...scripted) (*peer, *Client) {
	t.Helper()

	a, b, err := transport.SocketPair()
	if err != nil {
		t.Fatalf("SocketPair: %s", err)
	}
	p := &peer{ch: transport.NewChannel(a), got: make(chan transport.Message, len(replies)), stop: make(chan struct{})}
	c := New(b, WithPollInterval(testPoll))
	t.Cleanup(func() {
		close(p.stop)
		c.Close()
		p.ch.Close()
	})

	go func() {
		for _, r := range replies {
			var (
				msg transport.Message
				err error
			)
			for {
				select {
				case <-p.stop:
					return
				default:
				}
				msg, err = p.ch.Read(testPoll)
				if err == nil {
					break
				}
				if !iox.IsWouldBlock(err) {
					return
				}
			}
			p.got <- msg
			if r.silent {
				continue
			}
			frame, err := protocol.EncodeResponse(r.result, r.resp)
			if err != nil {
				return
			}
			if err := p.ch.Write(frame, r.files); err != nil {
				return
			}
		}
	}()
	return p, c
}

func TestCall(t *testing.T) {
	tmp, err := os.Create(filepath.Join(t.TempDir(), "handle"))
	if err != nil {
		t.Fatal(err)
	}
	defer tmp.Close()

	tests := []struct {
		name      string
		reply     scripted
		wantList  protocol.ClientList
		wantFiles int
		wantType  errors.Type
		wantErr   bool
	}{
		{
			name:     "Success: payload decoded",
			reply:    scripted{result: protocol.ResultSuccess, resp: protocol.ClientList{IDs: []int32{0, 3}}},
			wantList: protocol.ClientList{IDs: []int32{0, 3}},
		},
		{
			name:      "Success: handles returned",
			reply:     scripted{result: protocol.ResultSuccess, resp: protocol.ClientList{}, files: []*os.File{tmp}},
			wantFiles: 1,
		},
		{
			name:     "Error: result carries its type",
			reply:    scripted{result: protocol.ResultInvalidHandle},
			wantType: errors.TypeInvalidHandle,
			wantErr:  true,
		},
		{
			name:     "Error: unknown result",
			reply:    scripted{result: protocol.ResultFailure},
			wantType: errors.TypeUnknown,
			wantErr:  true,
		},
	}

	for _, test := range tests {
		p, c := newPeer(t, test.reply)

		var got protocol.ClientList
		files, err := c.Call(t.Context(), protocol.CmdSystemGetClients, nil, nil, &got)
		switch {
		case err == nil && test.wantErr:
			t.Errorf("[TestCall(%s)]: got err == nil, want err != nil", test.name)
			continue
		case err != nil && !test.wantErr:
			t.Errorf("[TestCall(%s)]: got err == %s, want err == nil", test.name, err)
			continue
		case err != nil:
			if errors.TypeOf(err) != test.wantType {
				t.Errorf("[TestCall(%s)]: got type %s, want %s", test.name, errors.TypeOf(err), test.wantType)
			}
			continue
		}

		req := <-p.got
		if protocol.Command(req.Tag) != protocol.CmdSystemGetClients {
			t.Errorf("[TestCall(%s)]: server saw command %d", test.name, req.Tag)
		}
		if diff := pretty.Compare(test.wantList, got); diff != "" {
			t.Errorf("[TestCall(%s)]: reply -want/+got:\n%s", test.name, diff)
		}
		if len(files) != test.wantFiles {
			t.Errorf("[TestCall(%s)]: got %d files, want %d", test.name, len(files), test.wantFiles)
		}
		for _, f := range files {
			f.Close()
		}
	}
}

func TestCallCancelClosesClient(t *testing.T) {
	_, c := newPeer(t, scripted{silent: true})

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Clients(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("[TestCallCancelClosesClient]: got err == %v, want deadline exceeded", err)
	}
	if _, err := c.Clients(t.Context()); !errors.Is(err, ErrClosed) {
		t.Errorf("[TestCallCancelClosesClient]: call after cancel got %v, want ErrClosed", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("[TestCallCancelClosesClient]: second Close: %s", err)
	}
}

func TestDialTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nobody.sock")

	start := time.Now()
	_, err := Dial(t.Context(), path, WithDialTimeout(50*time.Millisecond))
	if err == nil {
		t.Fatalf("[TestDialTimeout]: got err == nil, want err != nil")
	}
	if took := time.Since(start); took > 5*time.Second {
		t.Errorf("[TestDialTimeout]: Dial took %v", took)
	}
}
