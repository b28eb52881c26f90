package xrt

import (
	"context"
	"errors"
)

// ErrUnsupported is returned (possibly wrapped) by collaborators for requests that are valid
// but that the implementation does not support, such as a swapchain format it cannot create.
var ErrUnsupported = errors.New("valid but unsupported")

// ErrNotActive is returned by devices when a pose input is not currently tracked.
var ErrNotActive = errors.New("pose input not active")

// TrackingOrigin is the space a device is tracked in. Several devices may share one origin;
// identity of the *TrackingOrigin value is what makes them the same origin.
type TrackingOrigin struct {
	Name   string
	Type   TrackingType
	Offset Pose
}

// DeviceInfo is the static description of a device.
type DeviceInfo struct {
	Name DeviceName
	Type DeviceType
	// Str is a human readable name.
	Str string
	// Serial is the device serial, may be empty.
	Serial                       string
	OrientationTrackingSupported bool
	PositionTrackingSupported    bool
	HandTrackingSupported        bool
}

// HMDView is the display and field of view of one eye.
type HMDView struct {
	DisplayWidth  uint32
	DisplayHeight uint32
	Fov           Fov
}

// HMDParts is present on devices that are head mounted displays.
type HMDParts struct {
	Views      [2]HMDView
	BlendModes []BlendMode
}

// BindingProfile maps an interaction profile onto a device's inputs and outputs.
type BindingProfile struct {
	Name    DeviceName
	Inputs  []BindingInputPair
	Outputs []BindingOutputPair
}

// Device is a tracked device owned by the runtime. Implementations must be safe for concurrent use,
// since every session's handler goroutine may call into the same device.
type Device interface {
	Info() DeviceInfo
	// TrackingOrigin returns the origin the device is tracked in. Never nil.
	TrackingOrigin() *TrackingOrigin
	// HMD returns the HMD parts or nil if the device is not a HMD.
	HMD() *HMDParts
	// Inputs returns a snapshot of the device's inputs, in a stable order.
	Inputs() []Input
	// Outputs returns the device's outputs, in a stable order.
	Outputs() []Output
	BindingProfiles() []BindingProfile

	// UpdateInputs refreshes the values returned by Inputs.
	UpdateInputs(ctx context.Context) error
	GetTrackedPose(ctx context.Context, name InputName, atTimeNs int64) (SpaceRelation, error)
	// GetHandTracking returns the joint set and the time it was sampled at.
	GetHandTracking(ctx context.Context, name InputName, atTimeNs int64) (HandJointSet, int64, error)
	GetViewPose(ctx context.Context, eyeRelation Vec3, view uint32) (Pose, error)
	SetOutput(ctx context.Context, name OutputName, value OutputValue) error
}
