package server

import (
	"fmt"

	"github.com/gostdlib/base/context"

	"github.com/bearlytools/xrtipc/errors"
	"github.com/bearlytools/xrtipc/ipc/protocol"
	"github.com/bearlytools/xrtipc/xrt"
)

// ioActive reports if session c may see the inputs of device id.
func (s *Server) ioActive(c *session, id uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.ioActive && s.deviceIO[id]
}

// updateInput refreshes a device's inputs and publishes them in the shared region. With I/O off
// for the session or device, the client sees every input zeroed except its name, and the head
// pose keeps its active flag.
func (s *Server) updateInput(ctx context.Context, c *session, req protocol.DeviceRequest) (reply, error) {
	dev, err := s.device(ctx, req.ID)
	if err != nil {
		return reply{}, err
	}
	if err := dev.UpdateInputs(ctx); err != nil {
		return reply{}, collabErr(ctx, "updating inputs", err)
	}
	inputs := dev.Inputs()
	active := s.ioActive(c, req.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	dst := s.region.Layout().DeviceInputs(int(req.ID))
	if len(dst) != len(inputs) {
		return reply{}, errors.E(ctx, errors.CatInternal, errors.TypeBug, fmt.Errorf("device %d has %d inputs, %d published", req.ID, len(inputs), len(dst)))
	}
	for i, in := range inputs {
		if active {
			dst[i] = in
			continue
		}
		dst[i] = xrt.Input{Name: in.Name}
		if in.Name == xrt.InputGenericHeadPose {
			dst[i].Active = in.Active
		}
	}
	return reply{}, nil
}

// cachedInput returns the input name of device id as last published in the shared region.
func (s *Server) cachedInput(ctx context.Context, id uint32, name xrt.InputName) (xrt.Input, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, in := range s.region.Layout().DeviceInputs(int(id)) {
		if in.Name == name {
			return in, nil
		}
	}
	return xrt.Input{}, errors.E(ctx, errors.CatUser, errors.TypeParameter, fmt.Errorf("device %d has no input %d", id, name))
}

func poseNotActive(ctx context.Context, err error) error {
	return errors.E(ctx, errors.CatUser, errors.TypePoseNotActive, err, errors.WithSuppressTraceErr())
}

// poseGate decides a pose read of name on device id from what the client last saw published.
// zero means the client still holds an active input from before its I/O was turned off and gets a
// zeroed value. Otherwise a nil error lets the read reach the device. The head pose is never
// disabled, but like any pose it must be active in the client's view.
func (s *Server) poseGate(ctx context.Context, c *session, id uint32, name xrt.InputName) (zero bool, err error) {
	in, err := s.cachedInput(ctx, id, name)
	if err != nil {
		return false, err
	}
	disabled := name != xrt.InputGenericHeadPose && !s.ioActive(c, id)

	switch {
	case disabled && in.Active:
		return true, nil
	case disabled || !in.Active:
		return false, poseNotActive(ctx, fmt.Errorf("input %d of device %d is not active", name, id))
	}
	return false, nil
}

func (s *Server) getTrackedPose(ctx context.Context, c *session, req protocol.PoseRequest) (reply, error) {
	dev, err := s.device(ctx, req.ID)
	if err != nil {
		return reply{}, err
	}

	zero, err := s.poseGate(ctx, c, req.ID, req.Name)
	switch {
	case err != nil:
		return reply{}, err
	case zero:
		return reply{resp: xrt.SpaceRelation{}}, nil
	}

	rel, err := dev.GetTrackedPose(ctx, req.Name, req.AtTimeNs)
	if err != nil {
		if errors.Is(err, xrt.ErrNotActive) {
			return reply{}, poseNotActive(ctx, err)
		}
		return reply{}, collabErr(ctx, "getting tracked pose", err)
	}
	return reply{resp: rel}, nil
}

func (s *Server) getHandTracking(ctx context.Context, c *session, req protocol.PoseRequest) (reply, error) {
	dev, err := s.device(ctx, req.ID)
	if err != nil {
		return reply{}, err
	}

	zero, err := s.poseGate(ctx, c, req.ID, req.Name)
	switch {
	case err != nil:
		return reply{}, err
	case zero:
		return reply{resp: protocol.HandTrackingReply{TimestampNs: req.AtTimeNs}}, nil
	}

	set, ts, err := dev.GetHandTracking(ctx, req.Name, req.AtTimeNs)
	if err != nil {
		if errors.Is(err, xrt.ErrNotActive) {
			return reply{}, poseNotActive(ctx, err)
		}
		return reply{}, collabErr(ctx, "getting hand tracking", err)
	}
	return reply{resp: protocol.HandTrackingReply{Set: set, TimestampNs: ts}}, nil
}

func (s *Server) getViewPose(ctx context.Context, c *session, req protocol.ViewPoseRequest) (reply, error) {
	dev, err := s.device(ctx, req.ID)
	if err != nil {
		return reply{}, err
	}
	pose, err := dev.GetViewPose(ctx, req.EyeRelation, req.View)
	if err != nil {
		return reply{}, collabErr(ctx, "getting view pose", err)
	}
	return reply{resp: pose}, nil
}

// setOutput drives a device output. Outputs are not subject to I/O gating.
func (s *Server) setOutput(ctx context.Context, c *session, req protocol.SetOutputRequest) (reply, error) {
	dev, err := s.device(ctx, req.ID)
	if err != nil {
		return reply{}, err
	}
	if err := dev.SetOutput(ctx, req.Name, req.Value); err != nil {
		return reply{}, collabErr(ctx, "setting output", err)
	}
	return reply{}, nil
}
