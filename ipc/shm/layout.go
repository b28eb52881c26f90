// Package shm is the shared region: a fixed-layout block of memory created once by the server and
// mapped by every client. It mirrors device metadata, input and output state, binding tables and
// holds the ring of frame slots clients fill with layer submissions.
//
// The layout is the in-memory layout of the Layout struct. Nothing in it may hold a pointer.
package shm

import (
	"bytes"

	"github.com/bearlytools/xrtipc/ipc/protocol"
	"github.com/bearlytools/xrtipc/xrt"
)

const (
	// Magic is written at the start of the region.
	Magic uint32 = 0x43505258 // "XRPC"
	// Version is bumped on every layout change.
	Version uint32 = 1

	// StrLen is the size of fixed string fields.
	StrLen = 64
)

// Str is a fixed size, zero padded string.
type Str [StrLen]byte

// SetStr returns s as a Str, truncated if needed.
func SetStr(s string) Str {
	var out Str
	copy(out[:StrLen-1], s)
	return out
}

func (s *Str) String() string {
	if i := bytes.IndexByte(s[:], 0); i >= 0 {
		return string(s[:i])
	}
	return string(s[:])
}

// Range is an offset and count into one of the flat arrays.
type Range struct {
	First uint32
	Count uint32
}

// TrackingOrigin is a deduplicated tracking origin.
type TrackingOrigin struct {
	Name   Str
	Type   xrt.TrackingType
	Offset xrt.Pose
}

// Device is the flattened descriptor of one device.
type Device struct {
	Name                         xrt.DeviceName
	Type                         xrt.DeviceType
	Str                          Str
	Serial                       Str
	TrackingOriginIndex          uint32
	OrientationTrackingSupported bool
	PositionTrackingSupported    bool
	HandTrackingSupported        bool
	_                            bool
	Inputs                       Range
	Outputs                      Range
	BindingProfiles              Range
}

// BindingProfile is one binding profile of a device, its pairs are in the flat pair arrays.
type BindingProfile struct {
	Name        xrt.DeviceName
	InputPairs  Range
	OutputPairs Range
}

// HMD is the display information of the device with a HMD part.
type HMD struct {
	Views          [2]xrt.HMDView
	BlendModes     [xrt.MaxBlendModes]xrt.BlendMode
	BlendModeCount uint32
}

// Roles are the device indices of well known roles, -1 if none.
type Roles struct {
	Head  int32
	Left  int32
	Right int32
}

// LayerEntry is one layer of a frame slot. Swapchain IDs are handles from the submitting session's
// swapchain table, DeviceID is an index into Devices.
type LayerEntry struct {
	DeviceID     uint32
	SwapchainIDs [xrt.MaxLayerSwapchains]uint32
	_            uint32
	Data         xrt.LayerData
}

// LayerSlot is one frame's worth of layers.
type LayerSlot struct {
	DisplayTimeNs int64
	EnvBlendMode  xrt.BlendMode
	LayerCount    uint32
	Layers        [protocol.MaxLayers]LayerEntry
}

// Layout is the shared region.
type Layout struct {
	Magic   uint32
	Version uint32

	OriginCount uint32
	DeviceCount uint32
	Origins     [protocol.MaxSharedTrackingOrigins]TrackingOrigin
	Devices     [protocol.MaxSharedDevices]Device

	HasHMD uint32
	HMD    HMD
	Roles  Roles

	InputCount          uint32
	OutputCount         uint32
	BindingProfileCount uint32
	InputPairCount      uint32
	OutputPairCount     uint32

	Inputs          [protocol.MaxSharedInputs]xrt.Input
	Outputs         [protocol.MaxSharedOutputs]xrt.Output
	BindingProfiles [protocol.MaxSharedBindingProfiles]BindingProfile
	InputPairs      [protocol.MaxSharedInputPairs]xrt.BindingInputPair
	OutputPairs     [protocol.MaxSharedOutputPairs]xrt.BindingOutputPair

	Slots [protocol.MaxSlots]LayerSlot
}

// DeviceInputs returns the inputs of device i as a slice into the region.
func (l *Layout) DeviceInputs(i int) []xrt.Input {
	r := l.Devices[i].Inputs
	return l.Inputs[r.First : r.First+r.Count]
}

// DeviceOutputs returns the outputs of device i as a slice into the region.
func (l *Layout) DeviceOutputs(i int) []xrt.Output {
	r := l.Devices[i].Outputs
	return l.Outputs[r.First : r.First+r.Count]
}
