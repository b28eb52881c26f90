package client

import (
	"fmt"
	"os"

	"github.com/gostdlib/base/context"

	"github.com/bearlytools/xrtipc/ipc/protocol"
	"github.com/bearlytools/xrtipc/ipc/shm"
	"github.com/bearlytools/xrtipc/xrt"
)

// Connect describes the client to the server and maps the shared region.
func (c *Client) Connect(ctx context.Context, desc protocol.ClientDescription) (*shm.Region, error) {
	if err := c.DescribeClient(ctx, desc); err != nil {
		return nil, err
	}
	return c.MapShm(ctx)
}

// MapShm fetches the shared region handle and maps it. The region is unmapped by Close.
func (c *Client) MapShm(ctx context.Context) (*shm.Region, error) {
	var rep protocol.ShmHandleReply
	files, err := c.Call(ctx, protocol.CmdInstanceGetShmHandle, nil, nil, &rep)
	if err != nil {
		return nil, err
	}
	if len(files) != 1 {
		for _, f := range files {
			f.Close()
		}
		return nil, fmt.Errorf("shm handle reply carried %d handles", len(files))
	}

	r, err := shm.Map(files[0])
	if err != nil {
		files[0].Close()
		return nil, err
	}

	c.mu.Lock()
	old := c.region
	c.region = r
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return r, nil
}

// DescribeClient tells the server the application's name and PID.
func (c *Client) DescribeClient(ctx context.Context, desc protocol.ClientDescription) error {
	return c.call(ctx, protocol.CmdInstanceDescribeClient, desc, nil)
}

// Clients returns the slot IDs of the connected clients.
func (c *Client) Clients(ctx context.Context) ([]int32, error) {
	var rep protocol.ClientList
	if err := c.call(ctx, protocol.CmdSystemGetClients, nil, &rep); err != nil {
		return nil, err
	}
	return rep.IDs, nil
}

// ClientInfo returns the state of the client in slot id.
func (c *Client) ClientInfo(ctx context.Context, id int32) (protocol.ClientInfo, error) {
	var rep protocol.ClientInfo
	err := c.call(ctx, protocol.CmdSystemGetClientInfo, protocol.ClientRequest{ID: id}, &rep)
	return rep, err
}

// SetPrimaryClient makes the client in slot id the primary application, if it can be.
func (c *Client) SetPrimaryClient(ctx context.Context, id int32) error {
	return c.call(ctx, protocol.CmdSystemSetPrimaryClient, protocol.ClientRequest{ID: id}, nil)
}

// SetFocusedClient is accepted by the server but has no effect.
func (c *Client) SetFocusedClient(ctx context.Context, id int32) error {
	return c.call(ctx, protocol.CmdSystemSetFocusedClient, protocol.ClientRequest{ID: id}, nil)
}

// ToggleIOClient flips input and output for the client in slot id.
func (c *Client) ToggleIOClient(ctx context.Context, id int32) error {
	return c.call(ctx, protocol.CmdSystemToggleIOClient, protocol.ClientRequest{ID: id}, nil)
}

// ToggleIODevice flips input and output of device id for every client.
func (c *Client) ToggleIODevice(ctx context.Context, id uint32) error {
	return c.call(ctx, protocol.CmdSystemToggleIODevice, protocol.DeviceRequest{ID: id}, nil)
}

// SystemCompositorInfo describes the system compositor.
func (c *Client) SystemCompositorInfo(ctx context.Context) (xrt.SystemCompositorInfo, error) {
	var rep xrt.SystemCompositorInfo
	err := c.call(ctx, protocol.CmdSystemCompositorGetInfo, nil, &rep)
	return rep, err
}

// SessionCreate creates the connection's session.
func (c *Client) SessionCreate(ctx context.Context, info xrt.SessionInfo) error {
	return c.call(ctx, protocol.CmdSessionCreate, protocol.SessionCreateRequest{Info: info}, nil)
}

func (c *Client) SessionBegin(ctx context.Context) error {
	return c.call(ctx, protocol.CmdSessionBegin, nil, nil)
}

func (c *Client) SessionEnd(ctx context.Context) error {
	return c.call(ctx, protocol.CmdSessionEnd, nil, nil)
}

func (c *Client) SessionDestroy(ctx context.Context) error {
	return c.call(ctx, protocol.CmdSessionDestroy, nil, nil)
}

// PollEvent returns the oldest queued session event, an EventNone event if there is none.
func (c *Client) PollEvent(ctx context.Context) (protocol.Event, error) {
	var rep protocol.Event
	err := c.call(ctx, protocol.CmdSessionPollEvents, nil, &rep)
	return rep, err
}

func (c *Client) CompositorInfo(ctx context.Context) (xrt.CompositorInfo, error) {
	var rep xrt.CompositorInfo
	err := c.call(ctx, protocol.CmdCompositorGetInfo, nil, &rep)
	return rep, err
}

func (c *Client) PredictFrame(ctx context.Context) (xrt.FrameTiming, error) {
	var rep xrt.FrameTiming
	err := c.call(ctx, protocol.CmdCompositorPredictFrame, nil, &rep)
	return rep, err
}

func (c *Client) WaitWoke(ctx context.Context, frameID int64) error {
	return c.call(ctx, protocol.CmdCompositorWaitWoke, protocol.FrameRequest{FrameID: frameID}, nil)
}

func (c *Client) BeginFrame(ctx context.Context, frameID int64) error {
	return c.call(ctx, protocol.CmdCompositorBeginFrame, protocol.FrameRequest{FrameID: frameID}, nil)
}

func (c *Client) DiscardFrame(ctx context.Context, frameID int64) error {
	return c.call(ctx, protocol.CmdCompositorDiscardFrame, protocol.FrameRequest{FrameID: frameID}, nil)
}

// LayerSync submits the layers written to frame slot slotID and returns the slot to write the
// next frame into. syncFile, if not nil, is sent along and closed.
func (c *Client) LayerSync(ctx context.Context, slotID uint32, frameID int64, syncFile *os.File) (uint32, error) {
	var files []*os.File
	if syncFile != nil {
		files = []*os.File{syncFile}
		defer syncFile.Close()
	}
	var rep protocol.LayerSyncReply
	reply, err := c.Call(ctx, protocol.CmdCompositorLayerSync, protocol.LayerSyncRequest{SlotID: slotID, FrameID: frameID}, files, &rep)
	for _, f := range reply {
		f.Close()
	}
	return rep.FreeSlotID, err
}

// SemaphoreCreate creates a compositor semaphore and returns its ID and handle.
func (c *Client) SemaphoreCreate(ctx context.Context) (uint32, *os.File, error) {
	var rep protocol.SemaphoreReply
	files, err := c.Call(ctx, protocol.CmdCompositorSemaphoreCreate, nil, nil, &rep)
	if err != nil {
		return 0, nil, err
	}
	if len(files) != 1 {
		for _, f := range files {
			f.Close()
		}
		return 0, nil, fmt.Errorf("semaphore reply carried %d handles", len(files))
	}
	return rep.ID, files[0], nil
}

func (c *Client) SemaphoreDestroy(ctx context.Context, id uint32) error {
	return c.call(ctx, protocol.CmdCompositorSemaphoreDestroy, protocol.SemaphoreRequest{ID: id}, nil)
}

// Swapchain is a swapchain the server created or imported for this client.
type Swapchain struct {
	protocol.SwapchainReply
	// Images are the image handles of a created swapchain. Empty for imported ones.
	Images []*os.File
}

// Close closes the image handles. It does not destroy the swapchain on the server.
func (s *Swapchain) Close() {
	for _, f := range s.Images {
		f.Close()
	}
	s.Images = nil
}

// SwapchainCreate asks the server to allocate a swapchain.
func (c *Client) SwapchainCreate(ctx context.Context, info xrt.SwapchainCreateInfo) (*Swapchain, error) {
	sc := &Swapchain{}
	files, err := c.Call(ctx, protocol.CmdSwapchainCreate, protocol.SwapchainCreateRequest{Info: info}, nil, &sc.SwapchainReply)
	if err != nil {
		return nil, err
	}
	sc.Images = files
	if uint32(len(files)) != sc.ImageCount {
		sc.Close()
		return nil, fmt.Errorf("swapchain reply says %d images, carried %d handles", sc.ImageCount, len(files))
	}
	return sc, nil
}

// SwapchainImport hands images the client allocated to the server. The images are sent, the
// caller keeps its handles.
func (c *Client) SwapchainImport(ctx context.Context, info xrt.SwapchainCreateInfo, size uint64, dedicated bool, images []*os.File) (*Swapchain, error) {
	sc := &Swapchain{}
	req := protocol.SwapchainImportRequest{Info: info, Size: size, UseDedicatedAllocation: dedicated}
	files, err := c.Call(ctx, protocol.CmdSwapchainImport, req, images, &sc.SwapchainReply)
	for _, f := range files {
		f.Close()
	}
	if err != nil {
		return nil, err
	}
	return sc, nil
}

func (c *Client) SwapchainWaitImage(ctx context.Context, id uint32, timeoutNs int64, index uint32) error {
	return c.call(ctx, protocol.CmdSwapchainWaitImage, protocol.SwapchainRequest{ID: id, Index: index, TimeoutNs: timeoutNs}, nil)
}

func (c *Client) SwapchainAcquireImage(ctx context.Context, id uint32) (uint32, error) {
	var rep protocol.ImageIndexReply
	err := c.call(ctx, protocol.CmdSwapchainAcquireImage, protocol.SwapchainRequest{ID: id}, &rep)
	return rep.Index, err
}

func (c *Client) SwapchainReleaseImage(ctx context.Context, id uint32, index uint32) error {
	return c.call(ctx, protocol.CmdSwapchainReleaseImage, protocol.SwapchainRequest{ID: id, Index: index}, nil)
}

func (c *Client) SwapchainDestroy(ctx context.Context, id uint32) error {
	return c.call(ctx, protocol.CmdSwapchainDestroy, protocol.SwapchainRequest{ID: id}, nil)
}

// UpdateInput refreshes the inputs of device id in the shared region.
func (c *Client) UpdateInput(ctx context.Context, id uint32) error {
	return c.call(ctx, protocol.CmdDeviceUpdateInput, protocol.DeviceRequest{ID: id}, nil)
}

func (c *Client) TrackedPose(ctx context.Context, id uint32, name xrt.InputName, atTimeNs int64) (xrt.SpaceRelation, error) {
	var rep xrt.SpaceRelation
	err := c.call(ctx, protocol.CmdDeviceGetTrackedPose, protocol.PoseRequest{ID: id, Name: name, AtTimeNs: atTimeNs}, &rep)
	return rep, err
}

func (c *Client) HandTracking(ctx context.Context, id uint32, name xrt.InputName, atTimeNs int64) (protocol.HandTrackingReply, error) {
	var rep protocol.HandTrackingReply
	err := c.call(ctx, protocol.CmdDeviceGetHandTracking, protocol.PoseRequest{ID: id, Name: name, AtTimeNs: atTimeNs}, &rep)
	return rep, err
}

func (c *Client) ViewPose(ctx context.Context, id uint32, eyeRelation xrt.Vec3, view uint32) (xrt.Pose, error) {
	var rep xrt.Pose
	err := c.call(ctx, protocol.CmdDeviceGetViewPose, protocol.ViewPoseRequest{ID: id, EyeRelation: eyeRelation, View: view}, &rep)
	return rep, err
}

func (c *Client) SetOutput(ctx context.Context, id uint32, name xrt.OutputName, value xrt.OutputValue) error {
	return c.call(ctx, protocol.CmdDeviceSetOutput, protocol.SetOutputRequest{ID: id, Name: name, Value: value}, nil)
}
