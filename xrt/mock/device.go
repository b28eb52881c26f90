// Package mock has simulated devices and a recording compositor. They stand in for device drivers
// and the real compositor when running the broker standalone and in tests.
package mock

import (
	"context"
	"fmt"
	"math"

	"github.com/bearlytools/xrtipc/xrt"
	"github.com/gostdlib/base/concurrency/sync"
)

// Device is a simulated device. It is safe for concurrent use.
type Device struct {
	info     xrt.DeviceInfo
	origin   *xrt.TrackingOrigin
	hmd      *xrt.HMDParts
	outputs  []xrt.Output
	profiles []xrt.BindingProfile

	mu      sync.Mutex
	inputs  []xrt.Input
	poses   map[xrt.InputName]xrt.SpaceRelation
	set     []OutputSet
	updates int
}

// OutputSet records a call to SetOutput.
type OutputSet struct {
	Name  xrt.OutputName
	Value xrt.OutputValue
}

var _ xrt.Device = (*Device)(nil)

// Origin returns a tracking origin that devices can share.
func Origin(name string) *xrt.TrackingOrigin {
	return &xrt.TrackingOrigin{Name: name, Type: xrt.TrackingOther, Offset: xrt.IdentityPose}
}

// NewHMD returns a simulated head mounted display with a tracked head pose.
func NewHMD(origin *xrt.TrackingOrigin) *Device {
	d := &Device{
		info: xrt.DeviceInfo{
			Name:                         xrt.DeviceGenericHMD,
			Type:                         xrt.DeviceTypeHMD,
			Str:                          "Simulated HMD",
			Serial:                       "sim-hmd-0",
			OrientationTrackingSupported: true,
			PositionTrackingSupported:    true,
		},
		origin: origin,
		hmd: &xrt.HMDParts{
			Views: [2]xrt.HMDView{
				{DisplayWidth: 1440, DisplayHeight: 1600, Fov: symmetricFov(0.8)},
				{DisplayWidth: 1440, DisplayHeight: 1600, Fov: symmetricFov(0.8)},
			},
			BlendModes: []xrt.BlendMode{xrt.BlendModeOpaque},
		},
		inputs: []xrt.Input{
			{Name: xrt.InputGenericHeadPose, Active: true},
			{Name: xrt.InputGenericHeadDetect, Active: true},
		},
		poses: map[xrt.InputName]xrt.SpaceRelation{},
	}
	d.poses[xrt.InputGenericHeadPose] = tracked(xrt.Vec3{Y: 1.6})
	return d
}

// NewController returns a simulated simple controller of device type t.
func NewController(origin *xrt.TrackingOrigin, t xrt.DeviceType) *Device {
	d := &Device{
		info: xrt.DeviceInfo{
			Name:                         xrt.DeviceSimpleController,
			Type:                         t,
			Str:                          "Simulated Controller",
			Serial:                       fmt.Sprintf("sim-ctrl-%d", t),
			OrientationTrackingSupported: true,
			PositionTrackingSupported:    true,
		},
		origin: origin,
		inputs: []xrt.Input{
			{Name: xrt.InputSimpleSelectClick, Active: true},
			{Name: xrt.InputSimpleMenuClick, Active: true},
			{Name: xrt.InputSimpleGripPose, Active: true},
			{Name: xrt.InputSimpleAimPose, Active: true},
		},
		outputs: []xrt.Output{{Name: xrt.OutputSimpleVibration}},
		profiles: []xrt.BindingProfile{
			{
				Name: xrt.DeviceSimpleController,
				Inputs: []xrt.BindingInputPair{
					{From: xrt.InputSimpleSelectClick, Device: xrt.InputSimpleSelectClick},
					{From: xrt.InputSimpleMenuClick, Device: xrt.InputSimpleMenuClick},
					{From: xrt.InputSimpleGripPose, Device: xrt.InputSimpleGripPose},
					{From: xrt.InputSimpleAimPose, Device: xrt.InputSimpleAimPose},
				},
				Outputs: []xrt.BindingOutputPair{
					{From: xrt.OutputSimpleVibration, Device: xrt.OutputSimpleVibration},
				},
			},
		},
		poses: map[xrt.InputName]xrt.SpaceRelation{},
	}
	x := float32(-0.2)
	if t == xrt.DeviceTypeRightHandController {
		x = 0.2
	}
	d.poses[xrt.InputSimpleGripPose] = tracked(xrt.Vec3{X: x, Y: 1.2, Z: -0.3})
	d.poses[xrt.InputSimpleAimPose] = tracked(xrt.Vec3{X: x, Y: 1.2, Z: -0.35})
	return d
}

// NewBare returns a device with n inputs, n outputs and n binding profiles. It is used to fill
// the shared region past its capacity.
func NewBare(origin *xrt.TrackingOrigin, inputs, outputs, profiles int) *Device {
	d := &Device{
		info:   xrt.DeviceInfo{Name: xrt.DeviceSimpleController, Type: xrt.DeviceTypeGenericTracker, Str: "Bare"},
		origin: origin,
		poses:  map[xrt.InputName]xrt.SpaceRelation{},
	}
	d.inputs = make([]xrt.Input, inputs)
	for i := range d.inputs {
		d.inputs[i].Name = xrt.InputTriggerValue
	}
	d.outputs = make([]xrt.Output, outputs)
	for i := range d.outputs {
		d.outputs[i].Name = xrt.OutputSimpleVibration
	}
	d.profiles = make([]xrt.BindingProfile, profiles)
	for i := range d.profiles {
		d.profiles[i].Name = xrt.DeviceSimpleController
	}
	return d
}

func symmetricFov(a float32) xrt.Fov {
	return xrt.Fov{AngleLeft: -a, AngleRight: a, AngleUp: a, AngleDown: -a}
}

func tracked(pos xrt.Vec3) xrt.SpaceRelation {
	return xrt.SpaceRelation{
		Flags: xrt.RelationAllValid,
		Pose:  xrt.Pose{Orientation: xrt.IdentityQuat, Position: pos},
	}
}

func (d *Device) Info() xrt.DeviceInfo                  { return d.info }
func (d *Device) TrackingOrigin() *xrt.TrackingOrigin   { return d.origin }
func (d *Device) HMD() *xrt.HMDParts                    { return d.hmd }
func (d *Device) Outputs() []xrt.Output                 { return d.outputs }
func (d *Device) BindingProfiles() []xrt.BindingProfile { return d.profiles }

// Inputs implements xrt.Device.Inputs.
func (d *Device) Inputs() []xrt.Input {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]xrt.Input, len(d.inputs))
	copy(out, d.inputs)
	return out
}

// UpdateInputs stamps every input with a new timestamp and toggles the boolean inputs.
func (d *Device) UpdateInputs(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.updates++
	for i := range d.inputs {
		d.inputs[i].Timestamp = int64(d.updates)
		d.inputs[i].Value.Boolean = d.updates%2 == 1
	}
	return nil
}

// Updates returns how many times UpdateInputs was called.
func (d *Device) Updates() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.updates
}

// SetPose sets the relation returned for a pose input.
func (d *Device) SetPose(name xrt.InputName, rel xrt.SpaceRelation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.poses[name] = rel
}

// GetTrackedPose implements xrt.Device.GetTrackedPose.
func (d *Device) GetTrackedPose(ctx context.Context, name xrt.InputName, atTimeNs int64) (xrt.SpaceRelation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rel, ok := d.poses[name]
	if !ok {
		return xrt.SpaceRelation{}, fmt.Errorf("input %d: %w", name, xrt.ErrNotActive)
	}
	return rel, nil
}

// GetHandTracking implements xrt.Device.GetHandTracking. Simulated devices have no hand tracking
// so an inactive joint set is returned.
func (d *Device) GetHandTracking(ctx context.Context, name xrt.InputName, atTimeNs int64) (xrt.HandJointSet, int64, error) {
	return xrt.HandJointSet{}, atTimeNs, nil
}

// GetViewPose implements xrt.Device.GetViewPose.
func (d *Device) GetViewPose(ctx context.Context, eyeRelation xrt.Vec3, view uint32) (xrt.Pose, error) {
	if d.hmd == nil {
		return xrt.Pose{}, fmt.Errorf("device %q is not a HMD: %w", d.info.Str, xrt.ErrUnsupported)
	}
	if view > 1 {
		return xrt.Pose{}, fmt.Errorf("view %d out of range", view)
	}
	half := float32(math.Abs(float64(eyeRelation.X))) / 2
	if view == 0 {
		half = -half
	}
	return xrt.Pose{Orientation: xrt.IdentityQuat, Position: xrt.Vec3{X: half}}, nil
}

// SetOutput implements xrt.Device.SetOutput.
func (d *Device) SetOutput(ctx context.Context, name xrt.OutputName, value xrt.OutputValue) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, o := range d.outputs {
		if o.Name == name {
			d.set = append(d.set, OutputSet{Name: name, Value: value})
			return nil
		}
	}
	return fmt.Errorf("device %q has no output %d", d.info.Str, name)
}

// OutputsSet returns the SetOutput calls seen so far.
func (d *Device) OutputsSet() []OutputSet {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]OutputSet, len(d.set))
	copy(out, d.set)
	return out
}
