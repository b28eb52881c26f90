package server

import (
	"fmt"
	"os"

	"github.com/gostdlib/base/context"

	"github.com/bearlytools/xrtipc/errors"
	"github.com/bearlytools/xrtipc/ipc/protocol"
	"github.com/bearlytools/xrtipc/ipc/shm"
	"github.com/bearlytools/xrtipc/xrt"
)

// collabErr wraps an error from the compositor or a device.
func collabErr(ctx context.Context, what string, err error) error {
	t := errors.TypeCompositor
	if errors.Is(err, xrt.ErrUnsupported) {
		t = errors.TypeUnsupported
	}
	return errors.E(ctx, errors.CatInternal, t, fmt.Errorf("%s: %w", what, err), errors.WithCallNum(2))
}

func exhausted(ctx context.Context, what string) error {
	return errors.E(ctx, errors.CatUser, errors.TypeResourceExhausted, fmt.Errorf("too many %s", what), errors.WithSuppressTraceErr())
}

func (s *Server) sessionCreate(ctx context.Context, c *session, req protocol.SessionCreateRequest) (reply, error) {
	s.mu.Lock()
	created := c.comp != nil
	s.mu.Unlock()
	if created {
		return reply{}, errors.E(ctx, errors.CatUser, errors.TypeSessionAlreadyCreated, errors.New("session already created"), errors.WithSuppressTraceErr())
	}

	comp, err := s.sysc.CreateNativeCompositor(ctx, req.Info)
	if err != nil {
		return reply{}, collabErr(ctx, "creating native compositor", err)
	}

	s.mu.Lock()
	c.comp = comp
	c.overlay = req.Info.IsOverlay
	c.zOrder = req.Info.ZOrder
	c.active = false
	s.mu.Unlock()

	c.log.Info("session created", "overlay", req.Info.IsOverlay, "z_order", req.Info.ZOrder)
	return reply{}, nil
}

func (s *Server) sessionBegin(ctx context.Context, c *session, _ empty) (reply, error) {
	comp, err := c.compositor(ctx)
	if err != nil {
		return reply{}, err
	}
	if err := comp.BeginSession(ctx); err != nil {
		return reply{}, collabErr(ctx, "beginning session", err)
	}

	s.mu.Lock()
	c.active = true
	s.stateDirty = true
	s.mu.Unlock()

	s.updateState(ctx)
	return reply{}, nil
}

func (s *Server) sessionEnd(ctx context.Context, c *session, _ empty) (reply, error) {
	comp, err := c.compositor(ctx)
	if err != nil {
		return reply{}, err
	}
	if err := comp.EndSession(ctx); err != nil {
		return reply{}, collabErr(ctx, "ending session", err)
	}

	s.mu.Lock()
	c.active = false
	s.stateDirty = true
	s.mu.Unlock()

	s.updateState(ctx)
	return reply{}, nil
}

func (s *Server) sessionDestroy(ctx context.Context, c *session, _ empty) (reply, error) {
	if _, err := c.compositor(ctx); err != nil {
		return reply{}, err
	}

	s.mu.Lock()
	comp := c.detachLocked()
	s.mu.Unlock()

	c.destroyResources(comp)
	c.log.Info("session destroyed")
	s.updateState(ctx)
	return reply{}, nil
}

func (s *Server) pollEvents(ctx context.Context, c *session, _ empty) (reply, error) {
	if _, err := c.compositor(ctx); err != nil {
		return reply{}, err
	}
	return reply{resp: c.events.pop()}, nil
}

func (s *Server) compositorInfo(ctx context.Context, c *session, _ empty) (reply, error) {
	comp, err := c.compositor(ctx)
	if err != nil {
		return reply{}, err
	}
	return reply{resp: comp.Info()}, nil
}

func (s *Server) predictFrame(ctx context.Context, c *session, _ empty) (reply, error) {
	comp, err := c.compositor(ctx)
	if err != nil {
		return reply{}, err
	}
	ft, err := comp.PredictFrame(ctx)
	if err != nil {
		return reply{}, collabErr(ctx, "predicting frame", err)
	}
	return reply{resp: ft}, nil
}

func (s *Server) waitWoke(ctx context.Context, c *session, req protocol.FrameRequest) (reply, error) {
	comp, err := c.compositor(ctx)
	if err != nil {
		return reply{}, err
	}
	if err := comp.WaitWoke(ctx, req.FrameID); err != nil {
		return reply{}, collabErr(ctx, "waiting for wake up", err)
	}
	return reply{}, nil
}

func (s *Server) beginFrame(ctx context.Context, c *session, req protocol.FrameRequest) (reply, error) {
	comp, err := c.compositor(ctx)
	if err != nil {
		return reply{}, err
	}
	if err := comp.BeginFrame(ctx, req.FrameID); err != nil {
		return reply{}, collabErr(ctx, "beginning frame", err)
	}
	return reply{}, nil
}

func (s *Server) discardFrame(ctx context.Context, c *session, req protocol.FrameRequest) (reply, error) {
	comp, err := c.compositor(ctx)
	if err != nil {
		return reply{}, err
	}
	if err := comp.DiscardFrame(ctx, req.FrameID); err != nil {
		return reply{}, collabErr(ctx, "discarding frame", err)
	}
	return reply{}, nil
}

// layerSync submits the layers the client wrote to a frame slot and returns the next free slot.
func (s *Server) layerSync(ctx context.Context, c *session, req protocol.LayerSyncRequest, files []*os.File) (reply, error) {
	sync, rest := xrt.TakeFirstFile(files)
	closeFiles(rest)
	closeSync := func() {
		if f, ok := sync.Get(); ok {
			f.Close()
		}
	}

	comp, err := c.compositor(ctx)
	if err != nil {
		closeSync()
		return reply{}, err
	}
	if req.SlotID >= protocol.MaxSlots {
		closeSync()
		return reply{}, invalidHandle(ctx, "no frame slot %d", req.SlotID)
	}

	// The client may write the region at any time, work from a copy.
	slot := s.region.Layout().Slots[req.SlotID]
	if slot.LayerCount > protocol.MaxLayers {
		closeSync()
		return reply{}, errors.E(ctx, errors.CatUser, errors.TypeParameter, fmt.Errorf("frame slot has %d layers", slot.LayerCount))
	}

	if err := comp.LayerBegin(ctx, req.FrameID, slot.DisplayTimeNs, slot.EnvBlendMode); err != nil {
		closeSync()
		return reply{}, collabErr(ctx, "beginning layers", err)
	}
	for i := range slot.Layers[:slot.LayerCount] {
		if err := s.submitLayer(ctx, c, comp, &slot.Layers[i]); err != nil {
			closeSync()
			return reply{}, err
		}
	}
	if err := comp.LayerCommit(ctx, req.FrameID, sync); err != nil {
		return reply{}, collabErr(ctx, "committing layers", err)
	}

	s.metrics.LayerSync(ctx, int(slot.LayerCount))
	return reply{resp: protocol.LayerSyncReply{FreeSlotID: s.advanceSlot()}}, nil
}

func (s *Server) submitLayer(ctx context.Context, c *session, comp xrt.Compositor, e *shm.LayerEntry) error {
	n := e.Data.Type.SwapchainCount()
	if n == 0 {
		return errors.E(ctx, errors.CatUser, errors.TypeUnknownLayer, fmt.Errorf("unknown layer type %d", e.Data.Type), errors.WithSuppressTraceErr())
	}

	dev, err := s.device(ctx, e.DeviceID)
	if err != nil {
		return err
	}
	refs := xrt.LayerRefs{Device: dev}
	for j := range n {
		sc, ok := c.swapchains.get(e.SwapchainIDs[j])
		if !ok {
			return invalidHandle(ctx, "layer references swapchain %d", e.SwapchainIDs[j])
		}
		refs.Swapchains[j] = sc.sc
	}

	var submit func(context.Context, xrt.LayerRefs, *xrt.LayerData) error
	switch e.Data.Type {
	case xrt.LayerProjection:
		submit = comp.LayerProjection
	case xrt.LayerProjectionDepth:
		submit = comp.LayerProjectionDepth
	case xrt.LayerQuad:
		submit = comp.LayerQuad
	case xrt.LayerCube:
		submit = comp.LayerCube
	case xrt.LayerCylinder:
		submit = comp.LayerCylinder
	case xrt.LayerEquirect1:
		submit = comp.LayerEquirect1
	case xrt.LayerEquirect2:
		submit = comp.LayerEquirect2
	}
	if err := submit(ctx, refs, &e.Data); err != nil {
		return collabErr(ctx, fmt.Sprintf("submitting %v layer", e.Data.Type), err)
	}
	return nil
}

func (s *Server) semaphoreCreate(ctx context.Context, c *session, _ empty) (reply, error) {
	comp, err := c.compositor(ctx)
	if err != nil {
		return reply{}, err
	}
	id, ok := c.semaphores.firstFree()
	if !ok {
		return reply{}, exhausted(ctx, "compositor semaphores")
	}
	sem, err := comp.CreateSemaphore(ctx)
	if err != nil {
		return reply{}, collabErr(ctx, "creating semaphore", err)
	}
	c.semaphores.set(id, sem)

	return reply{
		resp:  protocol.SemaphoreReply{ID: id},
		files: []*os.File{sem.Handle()},
	}, nil
}

func (s *Server) semaphoreDestroy(ctx context.Context, c *session, req protocol.SemaphoreRequest) (reply, error) {
	if _, err := c.compositor(ctx); err != nil {
		return reply{}, err
	}
	sem, ok := c.semaphores.remove(req.ID)
	if !ok {
		return reply{}, invalidHandle(ctx, "no semaphore %d", req.ID)
	}
	sem.Destroy()
	return reply{}, nil
}

func (s *Server) swapchainCreate(ctx context.Context, c *session, req protocol.SwapchainCreateRequest) (reply, error) {
	comp, err := c.compositor(ctx)
	if err != nil {
		return reply{}, err
	}
	id, ok := c.swapchains.firstFree()
	if !ok {
		return reply{}, exhausted(ctx, "swapchains")
	}

	sc, err := comp.CreateSwapchain(ctx, req.Info)
	if err != nil {
		return reply{}, collabErr(ctx, "creating swapchain", err)
	}

	images := sc.Images()
	if err := checkImages(ctx, images); err != nil {
		sc.Destroy()
		return reply{}, err
	}
	c.swapchains.set(id, swapchainEntry{
		sc:         sc,
		width:      req.Info.Width,
		height:     req.Info.Height,
		format:     req.Info.Format,
		imageCount: uint32(len(images)),
	})

	files := make([]*os.File, len(images))
	for i, img := range images {
		files[i] = img.Handle
	}
	return reply{
		resp: protocol.SwapchainReply{
			ID:                     id,
			ImageCount:             uint32(len(images)),
			Size:                   images[0].Size,
			UseDedicatedAllocation: images[0].UseDedicatedAllocation,
		},
		files: files,
	}, nil
}

// checkImages makes sure the compositor gave us images a client can map with one size.
func checkImages(ctx context.Context, images []xrt.ImageNative) error {
	if len(images) == 0 || len(images) > xrt.MaxSwapchainImages {
		return errors.E(ctx, errors.CatInternal, errors.TypeBug, fmt.Errorf("compositor returned %d swapchain images", len(images)))
	}
	for i, img := range images[1:] {
		if img.Size != images[0].Size || img.Alignment != images[0].Alignment {
			return errors.E(ctx, errors.CatInternal, errors.TypeBug, fmt.Errorf("swapchain image %d has size %d, alignment %d, image 0 has %d, %d", i+1, img.Size, img.Alignment, images[0].Size, images[0].Alignment))
		}
	}
	return nil
}

func (s *Server) swapchainImport(ctx context.Context, c *session, req protocol.SwapchainImportRequest, files []*os.File) (reply, error) {
	comp, err := c.compositor(ctx)
	if err != nil {
		closeFiles(files)
		return reply{}, err
	}
	if len(files) == 0 || len(files) > xrt.MaxSwapchainImages {
		closeFiles(files)
		return reply{}, errors.E(ctx, errors.CatUser, errors.TypeParameter, fmt.Errorf("swapchain import with %d images", len(files)))
	}
	id, ok := c.swapchains.firstFree()
	if !ok {
		closeFiles(files)
		return reply{}, exhausted(ctx, "swapchains")
	}

	images := make([]xrt.ImageNative, len(files))
	for i, f := range files {
		images[i] = xrt.ImageNative{Handle: f, Size: req.Size, UseDedicatedAllocation: req.UseDedicatedAllocation}
	}
	sc, err := comp.ImportSwapchain(ctx, req.Info, images)
	if err != nil {
		closeFiles(files)
		return reply{}, collabErr(ctx, "importing swapchain", err)
	}
	c.swapchains.set(id, swapchainEntry{
		sc:         sc,
		width:      req.Info.Width,
		height:     req.Info.Height,
		format:     req.Info.Format,
		imageCount: uint32(len(images)),
	})

	return reply{resp: protocol.SwapchainReply{
		ID:                     id,
		ImageCount:             uint32(len(images)),
		Size:                   req.Size,
		UseDedicatedAllocation: req.UseDedicatedAllocation,
	}}, nil
}

func (c *session) swapchain(ctx context.Context, id uint32) (xrt.Swapchain, error) {
	if _, err := c.compositor(ctx); err != nil {
		return nil, err
	}
	e, ok := c.swapchains.get(id)
	if !ok {
		return nil, invalidHandle(ctx, "no swapchain %d", id)
	}
	return e.sc, nil
}

func (s *Server) swapchainWaitImage(ctx context.Context, c *session, req protocol.SwapchainRequest) (reply, error) {
	sc, err := c.swapchain(ctx, req.ID)
	if err != nil {
		return reply{}, err
	}
	if err := sc.WaitImage(ctx, req.TimeoutNs, req.Index); err != nil {
		return reply{}, collabErr(ctx, "waiting for image", err)
	}
	return reply{}, nil
}

func (s *Server) swapchainAcquireImage(ctx context.Context, c *session, req protocol.SwapchainRequest) (reply, error) {
	sc, err := c.swapchain(ctx, req.ID)
	if err != nil {
		return reply{}, err
	}
	idx, err := sc.AcquireImage(ctx)
	if err != nil {
		return reply{}, collabErr(ctx, "acquiring image", err)
	}
	return reply{resp: protocol.ImageIndexReply{Index: idx}}, nil
}

func (s *Server) swapchainReleaseImage(ctx context.Context, c *session, req protocol.SwapchainRequest) (reply, error) {
	sc, err := c.swapchain(ctx, req.ID)
	if err != nil {
		return reply{}, err
	}
	if err := sc.ReleaseImage(ctx, req.Index); err != nil {
		return reply{}, collabErr(ctx, "releasing image", err)
	}
	return reply{}, nil
}

func (s *Server) swapchainDestroy(ctx context.Context, c *session, req protocol.SwapchainRequest) (reply, error) {
	if _, err := c.compositor(ctx); err != nil {
		return reply{}, err
	}
	e, ok := c.swapchains.remove(req.ID)
	if !ok {
		return reply{}, invalidHandle(ctx, "no swapchain %d", req.ID)
	}
	e.sc.Destroy()
	return reply{}, nil
}
