package xrt

import (
	"context"
	"os"
)

// MaxSwapchainImages is the most images a swapchain may have.
const MaxSwapchainImages = 8

// SessionInfo is what a client asks for when it creates a session.
type SessionInfo struct {
	IsOverlay bool
	Flags     uint64
	ZOrder    int64
}

// ViewConfig is the recommended and max image size for one view.
type ViewConfig struct {
	RecommendedWidth       uint32
	RecommendedHeight      uint32
	RecommendedSampleCount uint32
	MaxWidth               uint32
	MaxHeight              uint32
	MaxSampleCount         uint32
}

// SystemCompositorInfo describes the system compositor to clients.
type SystemCompositorInfo struct {
	Views               [2]ViewConfig
	MaxLayers           uint32
	SupportedBlendModes []BlendMode
}

// CompositorInfo describes a native compositor to its client.
type CompositorInfo struct {
	Formats []int64
}

// FrameTiming is the result of predicting a frame.
type FrameTiming struct {
	FrameID                  int64
	WakeUpTimeNs             int64
	PredictedDisplayTimeNs   int64
	PredictedDisplayPeriodNs int64
}

// SwapchainCreateInfo describes a swapchain to create or import.
type SwapchainCreateInfo struct {
	CreateFlags uint32
	Bits        uint32
	Format      int64
	SampleCount uint32
	Width       uint32
	Height      uint32
	FaceCount   uint32
	ArraySize   uint32
	MipCount    uint32
}

// ImageNative is one native image of a swapchain. Handle is the memory the image lives in.
type ImageNative struct {
	Handle                 *os.File
	Size                   uint64
	Alignment              uint64
	UseDedicatedAllocation bool
}

// Swapchain is a set of images the client renders into.
type Swapchain interface {
	Images() []ImageNative
	WaitImage(ctx context.Context, timeoutNs int64, index uint32) error
	AcquireImage(ctx context.Context) (uint32, error)
	ReleaseImage(ctx context.Context, index uint32) error
	Destroy()
}

// CompositorSemaphore is a timeline semaphore shared with a client.
type CompositorSemaphore interface {
	// Handle is the native handle that is sent to the client.
	Handle() *os.File
	Destroy()
}

// LayerRefs are the resolved resources of one layer. Unused swapchain slots are nil.
type LayerRefs struct {
	Device     Device
	Swapchains [MaxLayerSwapchains]Swapchain
}

// Compositor is the per-session compositor created by the system compositor.
type Compositor interface {
	Info() CompositorInfo

	BeginSession(ctx context.Context) error
	EndSession(ctx context.Context) error

	CreateSwapchain(ctx context.Context, info SwapchainCreateInfo) (Swapchain, error)
	ImportSwapchain(ctx context.Context, info SwapchainCreateInfo, images []ImageNative) (Swapchain, error)
	CreateSemaphore(ctx context.Context) (CompositorSemaphore, error)

	PredictFrame(ctx context.Context) (FrameTiming, error)
	WaitWoke(ctx context.Context, frameID int64) error
	BeginFrame(ctx context.Context, frameID int64) error
	DiscardFrame(ctx context.Context, frameID int64) error

	LayerBegin(ctx context.Context, frameID int64, displayTimeNs int64, blend BlendMode) error
	LayerProjection(ctx context.Context, refs LayerRefs, data *LayerData) error
	LayerProjectionDepth(ctx context.Context, refs LayerRefs, data *LayerData) error
	LayerQuad(ctx context.Context, refs LayerRefs, data *LayerData) error
	LayerCube(ctx context.Context, refs LayerRefs, data *LayerData) error
	LayerCylinder(ctx context.Context, refs LayerRefs, data *LayerData) error
	LayerEquirect1(ctx context.Context, refs LayerRefs, data *LayerData) error
	LayerEquirect2(ctx context.Context, refs LayerRefs, data *LayerData) error
	// LayerCommit submits the frame. The compositor takes ownership of the sync handle, if any.
	LayerCommit(ctx context.Context, frameID int64, sync AtMostOne[*os.File]) error

	Destroy()
}

// SystemCompositor multiplexes the native compositors of all sessions.
type SystemCompositor interface {
	Info() SystemCompositorInfo
	CreateNativeCompositor(ctx context.Context, info SessionInfo) (Compositor, error)
	SetState(ctx context.Context, c Compositor, visible, focused bool) error
	SetZOrder(ctx context.Context, c Compositor, zOrder int64) error
	// SetMainAppVisibility is used by overlay sessions to fade the main application.
	SetMainAppVisibility(ctx context.Context, c Compositor, visible bool) error
}
