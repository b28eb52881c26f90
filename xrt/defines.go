// Package xrt holds the contracts between the IPC broker and the collaborators it does not own:
// devices, the system compositor and the per-session compositors.
//
// Value types in this package are fixed-layout: they contain no pointers, strings or slices so
// they can be stored directly in the shared region that client processes map.
package xrt

// Vec2 is a two component vector.
type Vec2 struct {
	X, Y float32
}

// Vec3 is a three component vector.
type Vec3 struct {
	X, Y, Z float32
}

// Quat is a rotation quaternion.
type Quat struct {
	X, Y, Z, W float32
}

// IdentityQuat is the rotation that does nothing.
var IdentityQuat = Quat{W: 1}

// Pose is an orientation and a position.
type Pose struct {
	Orientation Quat
	Position    Vec3
}

// IdentityPose is the pose at the origin with no rotation.
var IdentityPose = Pose{Orientation: IdentityQuat}

// Fov is a field of view in radians, OpenXR style.
type Fov struct {
	AngleLeft  float32
	AngleRight float32
	AngleUp    float32
	AngleDown  float32
}

// Rect is an integer rectangle inside an image.
type Rect struct {
	X, Y, W, H int32
}

// RelationFlags say which parts of a SpaceRelation are valid.
type RelationFlags uint32

const (
	RelationOrientationValid RelationFlags = 1 << iota
	RelationPositionValid
	RelationLinearVelocityValid
	RelationAngularVelocityValid
	RelationOrientationTracked
	RelationPositionTracked
)

// RelationAllValid is the flag set of a fully tracked relation.
const RelationAllValid = RelationOrientationValid | RelationPositionValid |
	RelationLinearVelocityValid | RelationAngularVelocityValid |
	RelationOrientationTracked | RelationPositionTracked

// SpaceRelation is a pose plus velocities, with flags saying what is valid.
// The zero value is the "nothing known" relation.
type SpaceRelation struct {
	Flags           RelationFlags
	Pose            Pose
	LinearVelocity  Vec3
	AngularVelocity Vec3
}

// HandJointCount is the number of joints in a HandJointSet.
const HandJointCount = 26

// HandJointValue is one joint of a tracked hand.
type HandJointValue struct {
	Relation SpaceRelation
	Radius   float32
}

// HandJointSet is a full tracked hand.
type HandJointSet struct {
	Joints   [HandJointCount]HandJointValue
	HandPose SpaceRelation
	IsActive bool
	_        [3]byte
}

// BlendMode is an environment blend mode.
type BlendMode uint32

const (
	BlendModeNone BlendMode = iota
	BlendModeOpaque
	BlendModeAdditive
	BlendModeAlphaBlend
)

// MaxBlendModes bounds how many blend modes a HMD may report.
const MaxBlendModes = 8

// TrackingType describes what a tracking origin can provide.
type TrackingType uint32

const (
	TrackingNone TrackingType = iota
	TrackingRGB
	TrackingLighthouse
	TrackingHMDInsideOut
	TrackingExternalSLAM
	TrackingOther
)

// DeviceName identifies the kind of device, e.g. a generic HMD.
type DeviceName uint32

const (
	DeviceGenericHMD DeviceName = iota + 1
	DeviceSimpleController
	DeviceHandTracker
	DeviceTouchController
	DeviceIndexController
)

// DeviceType is the role a device plays.
type DeviceType uint32

const (
	DeviceTypeUnknown DeviceType = iota
	DeviceTypeHMD
	DeviceTypeLeftHandController
	DeviceTypeRightHandController
	DeviceTypeAnyHandController
	DeviceTypeHandTracker
	DeviceTypeGenericTracker
)

// InputName identifies one input of a device.
type InputName uint32

const (
	InputGenericHeadPose InputName = iota + 1
	InputGenericHeadDetect
	InputGenericHandTrackingLeft
	InputGenericHandTrackingRight
	InputSimpleSelectClick
	InputSimpleMenuClick
	InputSimpleGripPose
	InputSimpleAimPose
	InputTriggerValue
	InputThumbstick
)

// InputValue is the union of the values an input can hold.
type InputValue struct {
	Vec1    float32
	Vec2    Vec2
	Boolean bool
	_       [3]byte
}

// Input is the state of a single input. It is stored in the shared region.
type Input struct {
	Active    bool
	_         [7]byte
	Timestamp int64
	Name      InputName
	Value     InputValue
}

// OutputName identifies one output of a device.
type OutputName uint32

const (
	OutputSimpleVibration OutputName = iota + 1
	OutputIndexHaptic
	OutputTouchHaptic
)

// Output is an output slot of a device. It is stored in the shared region.
type Output struct {
	Name OutputName
}

// OutputValue is what gets sent to an output.
type OutputValue struct {
	Frequency  float32
	Amplitude  float32
	DurationNs int64
}

// BindingInputPair maps an input of a profile to an input of the device.
type BindingInputPair struct {
	From   InputName
	Device InputName
}

// BindingOutputPair maps an output of a profile to an output of the device.
type BindingOutputPair struct {
	From   OutputName
	Device OutputName
}
