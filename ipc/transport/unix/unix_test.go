package unix

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"code.hybscloud.com/iox"

	"github.com/bearlytools/xrtipc/ipc/transport"
)

func tempSocketPath(t *testing.T) string {
	t.Helper()
	// Socket paths have a short length limit, so avoid t.TempDir()'s long names.
	dir, err := os.MkdirTemp("", "xrtipc")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "ipc.sock")
}

func TestAcceptNext(t *testing.T) {
	tests := []struct {
		name      string
		dial      bool
		wantBlock bool
	}{
		{name: "Success: no connection would block", dial: false, wantBlock: true},
		{name: "Success: connection is accepted", dial: true},
	}

	for _, test := range tests {
		ctx := t.Context()
		path := tempSocketPath(t)

		acc, err := Listen(ctx, path, WithPollInterval(20*time.Millisecond), WithSystemd(false))
		if err != nil {
			t.Fatalf("[TestAcceptNext(%s)]: Listen: %s", test.name, err)
		}

		if test.dial {
			c, err := net.Dial("unix", path)
			if err != nil {
				t.Fatalf("[TestAcceptNext(%s)]: Dial: %s", test.name, err)
			}
			defer c.Close()
		}

		p, err := acc.AcceptNext(ctx)
		switch {
		case test.wantBlock:
			if !iox.IsWouldBlock(err) {
				t.Errorf("[TestAcceptNext(%s)]: got err == %v, want would block", test.name, err)
			}
		case err != nil:
			t.Errorf("[TestAcceptNext(%s)]: got err == %s, want err == nil", test.name, err)
		default:
			if p.Conn == nil {
				t.Errorf("[TestAcceptNext(%s)]: got nil conn", test.name)
			} else {
				p.Conn.Close()
			}
			p.Done()
		}

		if err := acc.Close(); err != nil {
			t.Errorf("[TestAcceptNext(%s)]: Close: %s", test.name, err)
		}
		if _, err := acc.AcceptNext(ctx); err != transport.ErrShuttingDown {
			t.Errorf("[TestAcceptNext(%s)]: after Close got %v, want ErrShuttingDown", test.name, err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("[TestAcceptNext(%s)]: socket file not removed on Close", test.name)
		}
	}
}

func TestListenUnlinksStaleSocket(t *testing.T) {
	ctx := t.Context()
	path := tempSocketPath(t)

	first, err := Listen(ctx, path, WithSystemd(false))
	if err != nil {
		t.Fatalf("[TestListenUnlinksStaleSocket]: Listen: %s", err)
	}
	// Simulate a crashed server: the listener is gone but the file stays.
	first.listener.Close()

	second, err := Listen(ctx, path, WithSystemd(false))
	if err != nil {
		t.Fatalf("[TestListenUnlinksStaleSocket]: second Listen: %s", err)
	}
	defer second.Close()

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("[TestListenUnlinksStaleSocket]: %s", err)
	}
	if fi.Mode().Perm() != 0600 {
		t.Errorf("[TestListenUnlinksStaleSocket]: got mode %v, want 0600", fi.Mode().Perm())
	}
}
