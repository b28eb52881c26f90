package mock

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/bearlytools/xrtipc/xrt"
	"github.com/gostdlib/base/concurrency/sync"
)

// Call is one state push recorded by the System.
type Call struct {
	// Op is one of "state", "zorder" or "mainapp".
	Op      string
	Comp    int
	Visible bool
	Focused bool
	ZOrder  int64
}

// State is the last state pushed to a compositor.
type State struct {
	Visible bool
	Focused bool
	ZOrder  int64
}

// System is a recording system compositor. Native compositors it creates do no rendering.
type System struct {
	// Formats are the swapchain formats the compositors support. Creating a swapchain with any other
	// format fails with xrt.ErrUnsupported.
	Formats []int64
	// ImageSize is the size of each image allocation, defaults to 4096.
	ImageSize uint64
	// MismatchImages makes every other image have a different size, which the broker must reject.
	MismatchImages bool

	mu     sync.Mutex
	nextID int
	calls  []Call
	states map[int]State
	comps  []*Compositor
}

var _ xrt.SystemCompositor = (*System)(nil)

// NewSystem returns a System that supports a single RGBA8 format.
func NewSystem() *System {
	return &System{Formats: []int64{FormatRGBA8}, ImageSize: 4096, states: map[int]State{}}
}

// FormatRGBA8 is the format value NewSystem supports (VK_FORMAT_R8G8B8A8_SRGB).
const FormatRGBA8 = 43

func (s *System) Info() xrt.SystemCompositorInfo {
	vc := xrt.ViewConfig{
		RecommendedWidth: 1440, RecommendedHeight: 1600, RecommendedSampleCount: 1,
		MaxWidth: 2880, MaxHeight: 3200, MaxSampleCount: 1,
	}
	return xrt.SystemCompositorInfo{
		Views:               [2]xrt.ViewConfig{vc, vc},
		MaxLayers:           16,
		SupportedBlendModes: []xrt.BlendMode{xrt.BlendModeOpaque},
	}
}

// CreateNativeCompositor implements xrt.SystemCompositor.CreateNativeCompositor.
func (s *System) CreateNativeCompositor(ctx context.Context, info xrt.SessionInfo) (xrt.Compositor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &Compositor{id: s.nextID, sys: s, info: info}
	s.nextID++
	s.comps = append(s.comps, c)
	return c, nil
}

func (s *System) id(c xrt.Compositor) int {
	mc, ok := c.(*Compositor)
	if !ok {
		return -1
	}
	return mc.id
}

// SetState implements xrt.SystemCompositor.SetState.
func (s *System) SetState(ctx context.Context, c xrt.Compositor, visible, focused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.id(c)
	st := s.states[id]
	st.Visible, st.Focused = visible, focused
	s.states[id] = st
	s.calls = append(s.calls, Call{Op: "state", Comp: id, Visible: visible, Focused: focused})
	return nil
}

// SetZOrder implements xrt.SystemCompositor.SetZOrder.
func (s *System) SetZOrder(ctx context.Context, c xrt.Compositor, zOrder int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.id(c)
	st := s.states[id]
	st.ZOrder = zOrder
	s.states[id] = st
	s.calls = append(s.calls, Call{Op: "zorder", Comp: id, ZOrder: zOrder})
	return nil
}

// SetMainAppVisibility implements xrt.SystemCompositor.SetMainAppVisibility.
func (s *System) SetMainAppVisibility(ctx context.Context, c xrt.Compositor, visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Op: "mainapp", Comp: s.id(c), Visible: visible})
	return nil
}

// Calls returns every state push so far.
func (s *System) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// ResetCalls forgets the recorded calls.
func (s *System) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// StateOf returns the last state pushed to c.
func (s *System) StateOf(c xrt.Compositor) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[s.id(c)]
}

// Compositors returns every compositor created so far, including destroyed ones.
func (s *System) Compositors() []*Compositor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.comps)
}

// Frame is a committed frame.
type Frame struct {
	ID            int64
	DisplayTimeNs int64
	Blend         xrt.BlendMode
	Layers        []xrt.LayerType
	Synced        bool
}

// Compositor is a native compositor created by System.
type Compositor struct {
	id   int
	sys  *System
	info xrt.SessionInfo

	mu        sync.Mutex
	frameID   int64
	begun     bool
	pending   Frame
	frames    []Frame
	live      int
	destroyed bool
}

var _ xrt.Compositor = (*Compositor)(nil)

// ID is the order the compositor was created in.
func (c *Compositor) ID() int { return c.id }

// SessionInfo returns what the compositor was created with.
func (c *Compositor) SessionInfo() xrt.SessionInfo { return c.info }

func (c *Compositor) Info() xrt.CompositorInfo {
	return xrt.CompositorInfo{Formats: slices.Clone(c.sys.Formats)}
}

func (c *Compositor) BeginSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.begun {
		return fmt.Errorf("session already begun")
	}
	c.begun = true
	return nil
}

func (c *Compositor) EndSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.begun {
		return fmt.Errorf("session not begun")
	}
	c.begun = false
	return nil
}

// CreateSwapchain implements xrt.Compositor.CreateSwapchain.
func (c *Compositor) CreateSwapchain(ctx context.Context, info xrt.SwapchainCreateInfo) (xrt.Swapchain, error) {
	if !slices.Contains(c.sys.Formats, info.Format) {
		return nil, fmt.Errorf("format %d: %w", info.Format, xrt.ErrUnsupported)
	}
	n := 3
	images := make([]xrt.ImageNative, 0, n)
	for i := 0; i < n; i++ {
		size := c.sys.ImageSize
		if size == 0 {
			size = 4096
		}
		if c.sys.MismatchImages && i%2 == 1 {
			size *= 2
		}
		f, err := imageFile(size)
		if err != nil {
			closeImages(images)
			return nil, err
		}
		images = append(images, xrt.ImageNative{Handle: f, Size: size, Alignment: 256})
	}
	c.mu.Lock()
	c.live++
	c.mu.Unlock()
	return &Swapchain{comp: c, images: images}, nil
}

// ImportSwapchain implements xrt.Compositor.ImportSwapchain. The compositor takes ownership of the images.
func (c *Compositor) ImportSwapchain(ctx context.Context, info xrt.SwapchainCreateInfo, images []xrt.ImageNative) (xrt.Swapchain, error) {
	if len(images) == 0 || len(images) > xrt.MaxSwapchainImages {
		return nil, fmt.Errorf("cannot import %d images", len(images))
	}
	c.mu.Lock()
	c.live++
	c.mu.Unlock()
	return &Swapchain{comp: c, images: images}, nil
}

// CreateSemaphore implements xrt.Compositor.CreateSemaphore.
func (c *Compositor) CreateSemaphore(ctx context.Context) (xrt.CompositorSemaphore, error) {
	f, err := imageFile(8)
	if err != nil {
		return nil, err
	}
	return &Semaphore{f: f}, nil
}

func (c *Compositor) PredictFrame(ctx context.Context) (xrt.FrameTiming, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.frameID++
	const period = 11_111_111
	return xrt.FrameTiming{
		FrameID:                  c.frameID,
		WakeUpTimeNs:             c.frameID * period,
		PredictedDisplayTimeNs:   (c.frameID + 2) * period,
		PredictedDisplayPeriodNs: period,
	}, nil
}

func (c *Compositor) WaitWoke(ctx context.Context, frameID int64) error   { return nil }
func (c *Compositor) BeginFrame(ctx context.Context, frameID int64) error { return nil }

func (c *Compositor) DiscardFrame(ctx context.Context, frameID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = Frame{}
	return nil
}

func (c *Compositor) LayerBegin(ctx context.Context, frameID int64, displayTimeNs int64, blend xrt.BlendMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = Frame{ID: frameID, DisplayTimeNs: displayTimeNs, Blend: blend}
	return nil
}

func (c *Compositor) layer(refs xrt.LayerRefs, data *xrt.LayerData) error {
	if refs.Device == nil {
		return fmt.Errorf("layer without device")
	}
	for i := 0; i < data.Type.SwapchainCount(); i++ {
		if refs.Swapchains[i] == nil {
			return fmt.Errorf("layer swapchain %d missing", i)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending.Layers = append(c.pending.Layers, data.Type)
	return nil
}

func (c *Compositor) LayerProjection(ctx context.Context, refs xrt.LayerRefs, data *xrt.LayerData) error {
	return c.layer(refs, data)
}

func (c *Compositor) LayerProjectionDepth(ctx context.Context, refs xrt.LayerRefs, data *xrt.LayerData) error {
	return c.layer(refs, data)
}

func (c *Compositor) LayerQuad(ctx context.Context, refs xrt.LayerRefs, data *xrt.LayerData) error {
	return c.layer(refs, data)
}

func (c *Compositor) LayerCube(ctx context.Context, refs xrt.LayerRefs, data *xrt.LayerData) error {
	return c.layer(refs, data)
}

func (c *Compositor) LayerCylinder(ctx context.Context, refs xrt.LayerRefs, data *xrt.LayerData) error {
	return c.layer(refs, data)
}

func (c *Compositor) LayerEquirect1(ctx context.Context, refs xrt.LayerRefs, data *xrt.LayerData) error {
	return c.layer(refs, data)
}

func (c *Compositor) LayerEquirect2(ctx context.Context, refs xrt.LayerRefs, data *xrt.LayerData) error {
	return c.layer(refs, data)
}

// LayerCommit implements xrt.Compositor.LayerCommit. The sync handle is closed right away.
func (c *Compositor) LayerCommit(ctx context.Context, frameID int64, sync xrt.AtMostOne[*os.File]) error {
	if f, ok := sync.Get(); ok {
		f.Close()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending.Synced = sync.Present()
	c.frames = append(c.frames, c.pending)
	c.pending = Frame{}
	return nil
}

// Frames returns the committed frames.
func (c *Compositor) Frames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.frames)
}

// LiveSwapchains is the number of swapchains not yet destroyed.
func (c *Compositor) LiveSwapchains() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// Destroyed reports if Destroy was called.
func (c *Compositor) Destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

func (c *Compositor) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed = true
}

// Swapchain is a swapchain backed by anonymous files.
type Swapchain struct {
	comp   *Compositor
	images []xrt.ImageNative

	mu        sync.Mutex
	next      uint32
	destroyed bool
}

func (s *Swapchain) Images() []xrt.ImageNative { return s.images }

func (s *Swapchain) WaitImage(ctx context.Context, timeoutNs int64, index uint32) error {
	if int(index) >= len(s.images) {
		return fmt.Errorf("image %d out of range", index)
	}
	return nil
}

func (s *Swapchain) AcquireImage(ctx context.Context) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	return i, nil
}

func (s *Swapchain) ReleaseImage(ctx context.Context, index uint32) error {
	if int(index) >= len(s.images) {
		return fmt.Errorf("image %d out of range", index)
	}
	return nil
}

// Destroy closes the image handles. Calling it more than once is a no-op.
func (s *Swapchain) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	s.destroyed = true
	closeImages(s.images)
	s.comp.mu.Lock()
	s.comp.live--
	s.comp.mu.Unlock()
}

// Semaphore is a compositor semaphore backed by an anonymous file.
type Semaphore struct {
	f *os.File
}

func (s *Semaphore) Handle() *os.File { return s.f }
func (s *Semaphore) Destroy()         { s.f.Close() }

func imageFile(size uint64) (*os.File, error) {
	f, err := os.CreateTemp("", "xrtipc-image-*")
	if err != nil {
		return nil, err
	}
	os.Remove(f.Name())
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func closeImages(images []xrt.ImageNative) {
	for _, img := range images {
		if img.Handle != nil {
			img.Handle.Close()
		}
	}
}
