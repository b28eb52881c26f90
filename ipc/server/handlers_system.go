package server

import (
	"fmt"
	"os"

	"github.com/gostdlib/base/context"

	"github.com/bearlytools/xrtipc/errors"
	"github.com/bearlytools/xrtipc/ipc/protocol"
	"github.com/bearlytools/xrtipc/ipc/shm"
)

func (s *Server) registerHandlers() error {
	handlers := map[protocol.Command]Handler{
		protocol.CmdInstanceGetShmHandle:       handle(s.getShmHandle),
		protocol.CmdInstanceDescribeClient:     handle(s.describeClient),
		protocol.CmdSystemGetClients:           handle(s.getClients),
		protocol.CmdSystemGetClientInfo:        handle(s.getClientInfo),
		protocol.CmdSystemSetPrimaryClient:     handle(s.setPrimaryClient),
		protocol.CmdSystemSetFocusedClient:     handle(s.setFocusedClient),
		protocol.CmdSystemToggleIOClient:       handle(s.toggleIOClient),
		protocol.CmdSystemToggleIODevice:       handle(s.toggleIODevice),
		protocol.CmdSystemCompositorGetInfo:    handle(s.systemCompositorInfo),
		protocol.CmdSessionCreate:              handle(s.sessionCreate),
		protocol.CmdSessionBegin:               handle(s.sessionBegin),
		protocol.CmdSessionEnd:                 handle(s.sessionEnd),
		protocol.CmdSessionDestroy:             handle(s.sessionDestroy),
		protocol.CmdSessionPollEvents:          handle(s.pollEvents),
		protocol.CmdCompositorGetInfo:          handle(s.compositorInfo),
		protocol.CmdCompositorPredictFrame:     handle(s.predictFrame),
		protocol.CmdCompositorWaitWoke:         handle(s.waitWoke),
		protocol.CmdCompositorBeginFrame:       handle(s.beginFrame),
		protocol.CmdCompositorDiscardFrame:     handle(s.discardFrame),
		protocol.CmdCompositorLayerSync:        handleFiles(s.layerSync),
		protocol.CmdCompositorSemaphoreCreate:  handle(s.semaphoreCreate),
		protocol.CmdCompositorSemaphoreDestroy: handle(s.semaphoreDestroy),
		protocol.CmdSwapchainCreate:            handle(s.swapchainCreate),
		protocol.CmdSwapchainImport:            handleFiles(s.swapchainImport),
		protocol.CmdSwapchainWaitImage:         handle(s.swapchainWaitImage),
		protocol.CmdSwapchainAcquireImage:      handle(s.swapchainAcquireImage),
		protocol.CmdSwapchainReleaseImage:      handle(s.swapchainReleaseImage),
		protocol.CmdSwapchainDestroy:           handle(s.swapchainDestroy),
		protocol.CmdDeviceUpdateInput:          handle(s.updateInput),
		protocol.CmdDeviceGetTrackedPose:       handle(s.getTrackedPose),
		protocol.CmdDeviceGetHandTracking:      handle(s.getHandTracking),
		protocol.CmdDeviceGetViewPose:          handle(s.getViewPose),
		protocol.CmdDeviceSetOutput:            handle(s.setOutput),
	}
	for cmd, h := range handlers {
		if err := s.registry.Register(cmd, h); err != nil {
			return err
		}
	}
	return nil
}

func invalidHandle(ctx context.Context, format string, args ...any) error {
	return errors.E(ctx, errors.CatUser, errors.TypeInvalidHandle, fmt.Errorf(format, args...), errors.WithSuppressTraceErr())
}

func (s *Server) getShmHandle(ctx context.Context, c *session, _ empty) (reply, error) {
	return reply{
		resp:  protocol.ShmHandleReply{Size: uint64(shm.Size)},
		files: []*os.File{s.region.File()},
	}, nil
}

func (s *Server) describeClient(ctx context.Context, c *session, req protocol.ClientDescription) (reply, error) {
	if len(req.ApplicationName) > protocol.MaxNameLen {
		return reply{}, errors.E(ctx, errors.CatUser, errors.TypeParameter, fmt.Errorf("application name is longer than %d bytes", protocol.MaxNameLen))
	}

	s.mu.Lock()
	c.info = req
	s.mu.Unlock()

	c.log.Info("client described", "application", req.ApplicationName, "pid", req.PID)
	return reply{}, nil
}

func (s *Server) getClients(ctx context.Context, c *session, _ empty) (reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := protocol.ClientList{IDs: []int32{}}
	for i := range s.threads {
		if s.threads[i].ics != nil {
			list.IDs = append(list.IDs, int32(i))
		}
	}
	return reply{resp: list}, nil
}

func (s *Server) getClientInfo(ctx context.Context, c *session, req protocol.ClientRequest) (reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.clientLocked(req.ID)
	if !ok {
		return reply{}, invalidHandle(ctx, "no client %d", req.ID)
	}
	return reply{resp: protocol.ClientInfo{
		ApplicationName:    o.info.ApplicationName,
		PID:                o.info.PID,
		PrimaryApplication: int(req.ID) == s.activeClient,
		SessionActive:      o.active,
		SessionVisible:     o.visible,
		SessionFocused:     o.focused,
		SessionOverlay:     o.overlay,
		IOActive:           o.ioActive,
		ZOrder:             o.zOrder,
	}}, nil
}

func (s *Server) setPrimaryClient(ctx context.Context, c *session, req protocol.ClientRequest) (reply, error) {
	s.mu.Lock()
	if _, ok := s.clientLocked(req.ID); !ok {
		s.mu.Unlock()
		return reply{}, invalidHandle(ctx, "no client %d", req.ID)
	}
	s.activeClient = int(req.ID)
	s.mu.Unlock()

	c.log.Info("primary client set", "primary", req.ID)
	s.updateState(ctx)
	return reply{}, nil
}

func (s *Server) setFocusedClient(ctx context.Context, c *session, req protocol.ClientRequest) (reply, error) {
	c.log.Info("set focused client is not implemented, ignoring", "focused", req.ID)
	return reply{}, nil
}

func (s *Server) toggleIOClient(ctx context.Context, c *session, req protocol.ClientRequest) (reply, error) {
	s.mu.Lock()
	o, ok := s.clientLocked(req.ID)
	if !ok {
		s.mu.Unlock()
		return reply{}, invalidHandle(ctx, "no client %d", req.ID)
	}
	o.ioActive = !o.ioActive
	active := o.ioActive
	s.mu.Unlock()

	c.log.Info("client io toggled", "target", req.ID, "io_active", active)
	return reply{}, nil
}

func (s *Server) toggleIODevice(ctx context.Context, c *session, req protocol.DeviceRequest) (reply, error) {
	if _, err := s.device(ctx, req.ID); err != nil {
		return reply{}, err
	}

	s.mu.Lock()
	s.deviceIO[req.ID] = !s.deviceIO[req.ID]
	active := s.deviceIO[req.ID]
	s.mu.Unlock()

	c.log.Info("device io toggled", "device", req.ID, "io_active", active)
	return reply{}, nil
}

func (s *Server) systemCompositorInfo(ctx context.Context, c *session, _ empty) (reply, error) {
	return reply{resp: s.sysc.Info()}, nil
}
