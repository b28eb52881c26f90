package server

import (
	"math"
	"testing"

	"github.com/kylelemons/godebug/pretty"

	"github.com/bearlytools/xrtipc/errors"
	"github.com/bearlytools/xrtipc/ipc/client"
	"github.com/bearlytools/xrtipc/ipc/protocol"
	"github.com/bearlytools/xrtipc/xrt"
	"github.com/bearlytools/xrtipc/xrt/mock"
)

func hidden() mock.State  { return mock.State{ZOrder: math.MinInt64} }
func primary() mock.State { return mock.State{Visible: true, Focused: true, ZOrder: math.MinInt64} }

func (h *harness) states() []mock.State {
	var out []mock.State
	for _, c := range h.sys.Compositors() {
		out = append(out, h.sys.StateOf(c))
	}
	return out
}

func mainAppCalls(calls []mock.Call) []mock.Call {
	var out []mock.Call
	for _, c := range calls {
		if c.Op == "mainapp" {
			out = append(out, c)
		}
	}
	return out
}

func mustDo(t *testing.T, what string, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("[TestArbitration]: %s: %s", what, err)
	}
}

func TestArbitration(t *testing.T) {
	ctx := t.Context()
	h := newHarness(t)
	a := h.withSession(t, xrt.SessionInfo{})
	b := h.withSession(t, xrt.SessionInfo{})

	mustDo(t, "a begin", a.SessionBegin(ctx))
	mustDo(t, "b begin", b.SessionBegin(ctx))

	// The first active application stays primary when another begins.
	if diff := pretty.Compare([]mock.State{primary(), hidden()}, h.states()); diff != "" {
		t.Errorf("[TestArbitration]: after both begin -want/+got:\n%s", diff)
	}
	info, err := a.ClientInfo(ctx, 0)
	mustDo(t, "client info", err)
	if !info.PrimaryApplication || !info.SessionVisible || !info.SessionFocused || !info.SessionActive {
		t.Errorf("[TestArbitration]: client 0 info = %+v, want primary, visible, focused and active", info)
	}

	mustDo(t, "set primary", a.SetPrimaryClient(ctx, 1))
	if diff := pretty.Compare([]mock.State{hidden(), primary()}, h.states()); diff != "" {
		t.Errorf("[TestArbitration]: after set primary -want/+got:\n%s", diff)
	}

	o := h.withSession(t, xrt.SessionInfo{IsOverlay: true, ZOrder: 5})
	mustDo(t, "overlay begin", o.SessionBegin(ctx))

	overlay := mock.State{Visible: true, Focused: true, ZOrder: 5}
	if diff := pretty.Compare([]mock.State{hidden(), primary(), overlay}, h.states()); diff != "" {
		t.Errorf("[TestArbitration]: overlay precedence -want/+got:\n%s", diff)
	}
	info, err = o.ClientInfo(ctx, 2)
	mustDo(t, "overlay client info", err)
	if info.PrimaryApplication || !info.SessionOverlay || info.ZOrder != 5 {
		t.Errorf("[TestArbitration]: overlay info = %+v", info)
	}

	// Overlays can't be primary, the first active application takes over.
	mustDo(t, "set primary to overlay", a.SetPrimaryClient(ctx, 2))
	if diff := pretty.Compare([]mock.State{primary(), hidden(), overlay}, h.states()); diff != "" {
		t.Errorf("[TestArbitration]: set primary to overlay -want/+got:\n%s", diff)
	}

	// Idempotence.
	before := h.states()
	h.srv.updateState(ctx)
	calls := len(h.sys.Calls())
	h.srv.updateState(ctx)
	if diff := pretty.Compare(before, h.states()); diff != "" {
		t.Errorf("[TestArbitration]: repeated update changed state -want/+got:\n%s", diff)
	}
	if got := len(h.sys.Calls()); got != calls {
		t.Errorf("[TestArbitration]: repeated update pushed %d calls", got-calls)
	}

	// The primary ends: fall back to the other application, the overlay sees a cross-fade.
	h.sys.ResetCalls()
	mustDo(t, "a end", a.SessionEnd(ctx))
	if diff := pretty.Compare([]mock.State{hidden(), primary(), overlay}, h.states()); diff != "" {
		t.Errorf("[TestArbitration]: fallback -want/+got:\n%s", diff)
	}
	oc := h.sys.Compositors()[2].ID()
	want := []mock.Call{{Op: "mainapp", Comp: oc, Visible: false}, {Op: "mainapp", Comp: oc, Visible: true}}
	if diff := pretty.Compare(want, mainAppCalls(h.sys.Calls())); diff != "" {
		t.Errorf("[TestArbitration]: app to app fade -want/+got:\n%s", diff)
	}

	// Nothing left to show: idle.
	h.sys.ResetCalls()
	mustDo(t, "b end", b.SessionEnd(ctx))
	if diff := pretty.Compare([]mock.State{hidden(), hidden(), overlay}, h.states()); diff != "" {
		t.Errorf("[TestArbitration]: idle -want/+got:\n%s", diff)
	}
	want = []mock.Call{{Op: "mainapp", Comp: oc, Visible: false}}
	if diff := pretty.Compare(want, mainAppCalls(h.sys.Calls())); diff != "" {
		t.Errorf("[TestArbitration]: app to idle fade -want/+got:\n%s", diff)
	}

	h.sys.ResetCalls()
	mustDo(t, "b begin again", b.SessionBegin(ctx))
	want = []mock.Call{{Op: "mainapp", Comp: oc, Visible: true}}
	if diff := pretty.Compare(want, mainAppCalls(h.sys.Calls())); diff != "" {
		t.Errorf("[TestArbitration]: idle to app fade -want/+got:\n%s", diff)
	}

	err = a.SetPrimaryClient(ctx, 6)
	if errors.TypeOf(err) != errors.TypeInvalidHandle {
		t.Errorf("[TestArbitration]: set primary to an empty slot: got err == %v, want InvalidHandle", err)
	}
}

func pollAll(t *testing.T, c *client.Client) []protocol.Event {
	t.Helper()
	var out []protocol.Event
	for {
		ev, err := c.PollEvent(t.Context())
		if err != nil {
			t.Fatalf("PollEvent: %s", err)
		}
		if ev.Type == protocol.EventNone {
			return out
		}
		out = append(out, ev)
	}
}

func TestArbitrationEvents(t *testing.T) {
	ctx := t.Context()
	h := newHarness(t)
	a := h.withSession(t, xrt.SessionInfo{})
	b := h.withSession(t, xrt.SessionInfo{})
	o := h.withSession(t, xrt.SessionInfo{IsOverlay: true, ZOrder: 1})

	if err := o.SessionBegin(ctx); err != nil {
		t.Fatal(err)
	}
	if err := a.SessionBegin(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.SessionBegin(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.SetPrimaryClient(ctx, 1); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		client *client.Client
		want   []protocol.Event
	}{
		{
			name:   "primary then replaced",
			client: a,
			want: []protocol.Event{
				{Type: protocol.EventStateChange, Visible: true, Focused: true},
				{Type: protocol.EventStateChange},
			},
		},
		{
			name:   "made primary",
			client: b,
			want:   []protocol.Event{{Type: protocol.EventStateChange, Visible: true, Focused: true}},
		},
		{
			name:   "overlay",
			client: o,
			want: []protocol.Event{
				{Type: protocol.EventStateChange, Visible: true, Focused: true},
				{Type: protocol.EventOverlayChange, Visible: true},
				{Type: protocol.EventOverlayChange, Visible: true},
			},
		},
	}

	for _, test := range tests {
		if diff := pretty.Compare(test.want, pollAll(t, test.client)); diff != "" {
			t.Errorf("[TestArbitrationEvents(%s)]: -want/+got:\n%s", test.name, diff)
		}
	}
}
