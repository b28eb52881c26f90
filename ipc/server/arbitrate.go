package server

import (
	"math"

	"github.com/gostdlib/base/context"

	"github.com/bearlytools/xrtipc/ipc/protocol"
)

// bottomZOrder is where non overlay sessions are kept, under every overlay.
const bottomZOrder = math.MinInt64

// displayable reports if c can be the primary application.
func displayable(c *session) bool {
	return c != nil && !c.overlay && c.active
}

// updateState decides which session is the primary application and pushes visibility, focus
// and z-order to the system compositor for every session that has a compositor. Sessions whose
// state changed get an event. Calling it again without a session's activity changing in between
// does nothing.
func (s *Server) updateState(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stateDirty && s.activeClient >= 0 && s.activeClient == s.lastActiveClient && displayable(s.threads[s.activeClient].ics) {
		s.metrics.Arbitration(ctx, true)
		return
	}
	s.metrics.Arbitration(ctx, false)

	if s.activeClient < 0 || !displayable(s.threads[s.activeClient].ics) {
		s.activeClient = -1
		for i := range s.threads {
			if displayable(s.threads[i].ics) {
				s.activeClient = i
				break
			}
		}
	}

	for i := range s.threads {
		c := s.threads[i].ics
		if c == nil {
			continue
		}

		visible, focused, z := false, false, int64(bottomZOrder)
		if c.overlay {
			visible, focused, z = c.active, c.active, c.zOrder
		} else if i == s.activeClient {
			visible, focused = true, true
		}
		changed := visible != c.visible || focused != c.focused
		c.visible, c.focused = visible, focused

		if c.comp == nil {
			continue
		}
		if changed {
			c.queueEventLocked(ctx, protocol.Event{Type: protocol.EventStateChange, Visible: visible, Focused: focused})
		}
		if err := s.sysc.SetState(ctx, c.comp, visible, focused); err != nil {
			c.log.Error("setting compositor state", "err", err)
		}
		if err := s.sysc.SetZOrder(ctx, c.comp, z); err != nil {
			c.log.Error("setting compositor z-order", "err", err)
		}
		if c.overlay {
			s.fadeLocked(ctx, c)
		}
	}

	s.lastActiveClient = s.activeClient
	s.stateDirty = false
}

// fadeLocked tells an overlay session about a change of primary application. Switching between
// two applications hides and shows the main application so the overlay can fade.
func (s *Server) fadeLocked(ctx context.Context, c *session) {
	var seq []bool
	switch {
	case s.activeClient == s.lastActiveClient:
		return
	case s.activeClient >= 0 && s.lastActiveClient >= 0:
		seq = []bool{false, true}
	case s.activeClient >= 0:
		seq = []bool{true}
	default:
		seq = []bool{false}
	}

	for _, v := range seq {
		if err := s.sysc.SetMainAppVisibility(ctx, c.comp, v); err != nil {
			c.log.Error("setting main application visibility", "err", err)
		}
	}
	c.queueEventLocked(ctx, protocol.Event{Type: protocol.EventOverlayChange, Visible: seq[len(seq)-1]})
}
