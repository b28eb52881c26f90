package protocol

import "github.com/bearlytools/xrtipc/xrt"

// Request and response payloads. Handles that travel with a message are noted on the type;
// they are carried out of band as SCM_RIGHTS and never appear in the payload.

// ShmHandleReply answers CmdInstanceGetShmHandle. Carries one handle: the shared region.
type ShmHandleReply struct {
	Size uint64 `cbor:"1,keyasint"`
}

// ClientDescription is what a client tells the server about itself.
type ClientDescription struct {
	ApplicationName string `cbor:"1,keyasint"`
	PID             int32  `cbor:"2,keyasint"`
}

// ClientList answers CmdSystemGetClients with the slot IDs of connected clients.
type ClientList struct {
	IDs []int32 `cbor:"1,keyasint"`
}

// ClientRequest names a client slot, used by get-info, set-primary, set-focused and toggle-io.
type ClientRequest struct {
	ID int32 `cbor:"1,keyasint"`
}

// DeviceRequest names a device by its index in the shared region.
type DeviceRequest struct {
	ID uint32 `cbor:"1,keyasint"`
}

// ClientInfo answers CmdSystemGetClientInfo.
type ClientInfo struct {
	ApplicationName    string `cbor:"1,keyasint"`
	PID                int32  `cbor:"2,keyasint"`
	PrimaryApplication bool   `cbor:"3,keyasint"`
	SessionActive      bool   `cbor:"4,keyasint"`
	SessionVisible     bool   `cbor:"5,keyasint"`
	SessionFocused     bool   `cbor:"6,keyasint"`
	SessionOverlay     bool   `cbor:"7,keyasint"`
	IOActive           bool   `cbor:"8,keyasint"`
	ZOrder             int64  `cbor:"9,keyasint"`
}

// SessionCreateRequest starts a session on the connection.
type SessionCreateRequest struct {
	Info xrt.SessionInfo `cbor:"1,keyasint"`
}

// EventType tags an Event.
type EventType uint32

const (
	EventNone EventType = iota
	EventStateChange
	EventOverlayChange
)

// Event answers CmdSessionPollEvents. Type EventNone means the queue was empty.
type Event struct {
	Type    EventType `cbor:"1,keyasint"`
	Visible bool      `cbor:"2,keyasint"`
	// Focused is only set on EventStateChange.
	Focused bool `cbor:"3,keyasint"`
}

// FrameRequest names a frame, used by wait-woke, begin-frame and discard-frame.
type FrameRequest struct {
	FrameID int64 `cbor:"1,keyasint"`
}

// LayerSyncRequest submits the frame slot SlotID. May carry one sync handle; any more are closed.
type LayerSyncRequest struct {
	SlotID  uint32 `cbor:"1,keyasint"`
	FrameID int64  `cbor:"2,keyasint"`
}

// LayerSyncReply returns the index of the next free frame slot.
type LayerSyncReply struct {
	FreeSlotID uint32 `cbor:"1,keyasint"`
}

// SemaphoreReply answers CmdCompositorSemaphoreCreate. Carries one handle.
type SemaphoreReply struct {
	ID uint32 `cbor:"1,keyasint"`
}

// SemaphoreRequest names a compositor semaphore.
type SemaphoreRequest struct {
	ID uint32 `cbor:"1,keyasint"`
}

// SwapchainCreateRequest creates a swapchain.
type SwapchainCreateRequest struct {
	Info xrt.SwapchainCreateInfo `cbor:"1,keyasint"`
}

// SwapchainImportRequest imports client allocated images. Carries one handle per image.
type SwapchainImportRequest struct {
	Info                   xrt.SwapchainCreateInfo `cbor:"1,keyasint"`
	Size                   uint64                  `cbor:"2,keyasint"`
	UseDedicatedAllocation bool                    `cbor:"3,keyasint"`
}

// SwapchainReply answers create and import. Create carries one handle per image.
type SwapchainReply struct {
	ID                     uint32 `cbor:"1,keyasint"`
	ImageCount             uint32 `cbor:"2,keyasint"`
	Size                   uint64 `cbor:"3,keyasint"`
	UseDedicatedAllocation bool   `cbor:"4,keyasint"`
}

// SwapchainRequest names a swapchain, with the image index and timeout where the command uses them.
type SwapchainRequest struct {
	ID        uint32 `cbor:"1,keyasint"`
	Index     uint32 `cbor:"2,keyasint"`
	TimeoutNs int64  `cbor:"3,keyasint"`
}

// ImageIndexReply answers CmdSwapchainAcquireImage.
type ImageIndexReply struct {
	Index uint32 `cbor:"1,keyasint"`
}

// PoseRequest reads a pose or hand tracking input of a device.
type PoseRequest struct {
	ID       uint32        `cbor:"1,keyasint"`
	Name     xrt.InputName `cbor:"2,keyasint"`
	AtTimeNs int64         `cbor:"3,keyasint"`
}

// HandTrackingReply answers CmdDeviceGetHandTracking.
type HandTrackingReply struct {
	Set         xrt.HandJointSet `cbor:"1,keyasint"`
	TimestampNs int64            `cbor:"2,keyasint"`
}

// ViewPoseRequest reads the pose of one view of a HMD.
type ViewPoseRequest struct {
	ID          uint32   `cbor:"1,keyasint"`
	EyeRelation xrt.Vec3 `cbor:"2,keyasint"`
	View        uint32   `cbor:"3,keyasint"`
}

// SetOutputRequest drives an output of a device.
type SetOutputRequest struct {
	ID    uint32          `cbor:"1,keyasint"`
	Name  xrt.OutputName  `cbor:"2,keyasint"`
	Value xrt.OutputValue `cbor:"3,keyasint"`
}
