package transport

import (
	"io"
	"os"
	"testing"
	"time"

	"code.hybscloud.com/iox"

	"github.com/bearlytools/xrtipc/ipc/protocol"
)

func pair(t *testing.T) (*Channel, *Channel) {
	t.Helper()
	a, b, err := SocketPair()
	if err != nil {
		t.Fatalf("SocketPair: %s", err)
	}
	ca, cb := NewChannel(a), NewChannel(b)
	t.Cleanup(func() {
		ca.Close()
		cb.Close()
	})
	return ca, cb
}

func TestChannelRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		req       any
		withFiles int
	}{
		{name: "Success: no payload", req: nil},
		{name: "Success: payload", req: &protocol.ClientRequest{ID: 3}},
		{name: "Success: payload with handles", req: &protocol.ShmHandleReply{Size: 4096}, withFiles: 2},
	}

	for _, test := range tests {
		client, server := pair(t)

		frame, err := protocol.EncodeRequest(protocol.CmdSystemGetClientInfo, test.req)
		if err != nil {
			t.Fatalf("[TestChannelRoundTrip(%s)]: encode: %s", test.name, err)
		}
		var files []*os.File
		for i := 0; i < test.withFiles; i++ {
			f, err := os.CreateTemp(t.TempDir(), "handle")
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()
			files = append(files, f)
		}

		if err := client.Write(frame, files); err != nil {
			t.Fatalf("[TestChannelRoundTrip(%s)]: Write: %s", test.name, err)
		}
		msg, err := server.Read(time.Second)
		if err != nil {
			t.Fatalf("[TestChannelRoundTrip(%s)]: Read: %s", test.name, err)
		}
		if protocol.Command(msg.Tag) != protocol.CmdSystemGetClientInfo {
			t.Errorf("[TestChannelRoundTrip(%s)]: got tag %d, want %d", test.name, msg.Tag, protocol.CmdSystemGetClientInfo)
		}
		if len(msg.Payload) != len(frame)-protocol.HeaderSize {
			t.Errorf("[TestChannelRoundTrip(%s)]: got payload of %d bytes, want %d", test.name, len(msg.Payload), len(frame)-protocol.HeaderSize)
		}
		if len(msg.Files) != test.withFiles {
			t.Errorf("[TestChannelRoundTrip(%s)]: got %d handles, want %d", test.name, len(msg.Files), test.withFiles)
		}
		for i, f := range msg.Files {
			want, _ := files[i].Stat()
			got, err := f.Stat()
			if err != nil {
				t.Errorf("[TestChannelRoundTrip(%s)]: stat of received handle: %s", test.name, err)
				continue
			}
			if !os.SameFile(want, got) {
				t.Errorf("[TestChannelRoundTrip(%s)]: handle %d is not the sent file", test.name, i)
			}
		}
		msg.CloseFiles()
	}
}

func TestChannelReadTimeout(t *testing.T) {
	client, server := pair(t)

	// Several timeouts in a row leave the channel usable.
	for i := 0; i < 3; i++ {
		start := time.Now()
		_, err := server.Read(20 * time.Millisecond)
		if !iox.IsWouldBlock(err) {
			t.Fatalf("[TestChannelReadTimeout]: read %d: got err == %v, want would block", i, err)
		}
		if time.Since(start) > 2*time.Second {
			t.Errorf("[TestChannelReadTimeout]: read %d took %s", i, time.Since(start))
		}
	}

	frame, err := protocol.EncodeRequest(protocol.CmdSystemGetClients, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.Write(frame, nil); err != nil {
		t.Fatalf("[TestChannelReadTimeout]: Write: %s", err)
	}
	msg, err := server.Read(time.Second)
	if err != nil {
		t.Fatalf("[TestChannelReadTimeout]: Read after timeouts: %s", err)
	}
	if protocol.Command(msg.Tag) != protocol.CmdSystemGetClients {
		t.Errorf("[TestChannelReadTimeout]: got tag %d, want %d", msg.Tag, protocol.CmdSystemGetClients)
	}
}

func TestChannelHangup(t *testing.T) {
	client, server := pair(t)
	client.Close()

	_, err := server.Read(time.Second)
	if err != io.EOF {
		t.Fatalf("[TestChannelHangup]: got err == %v, want io.EOF", err)
	}
}

func TestChannelClosed(t *testing.T) {
	client, _ := pair(t)
	client.Close()

	if err := client.Write([]byte{1}, nil); err != ErrClosed {
		t.Errorf("[TestChannelClosed]: Write got %v, want ErrClosed", err)
	}
	if _, err := client.Read(0); err != ErrClosed {
		t.Errorf("[TestChannelClosed]: Read got %v, want ErrClosed", err)
	}
}
