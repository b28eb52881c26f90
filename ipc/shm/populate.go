package shm

import (
	"fmt"

	"github.com/bearlytools/xrtipc/errors"
	"github.com/bearlytools/xrtipc/ipc/protocol"
	"github.com/bearlytools/xrtipc/xrt"
	"github.com/gostdlib/base/context"
)

// Populate fills the device part of the region from devices, in order. Device i in the region is
// devices[i]. Tracking origins are deduplicated by identity. It fails if anything would exceed
// the region's fixed capacity, in which case the region is left zeroed.
func (l *Layout) Populate(ctx context.Context, devices []xrt.Device) error {
	*l = Layout{Magic: Magic, Version: Version, Roles: Roles{Head: -1, Left: -1, Right: -1}}

	err := l.populate(devices)
	if err != nil {
		*l = Layout{}
		return errors.E(ctx, errors.CatInternal, errors.TypeResourceExhausted, err)
	}
	return nil
}

func capErr(what string, need, max int) error {
	return fmt.Errorf("shared region holds %d %s, need %d", max, what, need)
}

func (l *Layout) populate(devices []xrt.Device) error {
	if len(devices) > protocol.MaxSharedDevices {
		return capErr("devices", len(devices), protocol.MaxSharedDevices)
	}

	var origins []*xrt.TrackingOrigin
	for i, xd := range devices {
		info := xd.Info()
		d := &l.Devices[i]
		d.Name = info.Name
		d.Type = info.Type
		d.Str = SetStr(info.Str)
		d.Serial = SetStr(info.Serial)
		d.OrientationTrackingSupported = info.OrientationTrackingSupported
		d.PositionTrackingSupported = info.PositionTrackingSupported
		d.HandTrackingSupported = info.HandTrackingSupported

		idx, err := l.origin(&origins, xd.TrackingOrigin())
		if err != nil {
			return err
		}
		d.TrackingOriginIndex = idx

		if err := l.appendInputs(d, xd.Inputs()); err != nil {
			return err
		}
		if err := l.appendOutputs(d, xd.Outputs()); err != nil {
			return err
		}
		if err := l.appendProfiles(d, xd.BindingProfiles()); err != nil {
			return err
		}

		if hmd := xd.HMD(); hmd != nil && l.HasHMD == 0 {
			if err := l.setHMD(hmd); err != nil {
				return err
			}
			l.Roles.Head = int32(i)
		}
		switch info.Type {
		case xrt.DeviceTypeLeftHandController:
			if l.Roles.Left < 0 {
				l.Roles.Left = int32(i)
			}
		case xrt.DeviceTypeRightHandController:
			if l.Roles.Right < 0 {
				l.Roles.Right = int32(i)
			}
		}
	}
	l.DeviceCount = uint32(len(devices))
	return nil
}

func (l *Layout) origin(seen *[]*xrt.TrackingOrigin, o *xrt.TrackingOrigin) (uint32, error) {
	for i, s := range *seen {
		if s == o {
			return uint32(i), nil
		}
	}
	if len(*seen) >= protocol.MaxSharedTrackingOrigins {
		return 0, capErr("tracking origins", len(*seen)+1, protocol.MaxSharedTrackingOrigins)
	}
	idx := len(*seen)
	*seen = append(*seen, o)
	l.Origins[idx] = TrackingOrigin{Name: SetStr(o.Name), Type: o.Type, Offset: o.Offset}
	l.OriginCount = uint32(len(*seen))
	return uint32(idx), nil
}

func (l *Layout) appendInputs(d *Device, inputs []xrt.Input) error {
	need := int(l.InputCount) + len(inputs)
	if need > protocol.MaxSharedInputs {
		return capErr("inputs", need, protocol.MaxSharedInputs)
	}
	d.Inputs = Range{First: l.InputCount, Count: uint32(len(inputs))}
	copy(l.Inputs[l.InputCount:], inputs)
	l.InputCount = uint32(need)
	return nil
}

func (l *Layout) appendOutputs(d *Device, outputs []xrt.Output) error {
	need := int(l.OutputCount) + len(outputs)
	if need > protocol.MaxSharedOutputs {
		return capErr("outputs", need, protocol.MaxSharedOutputs)
	}
	d.Outputs = Range{First: l.OutputCount, Count: uint32(len(outputs))}
	copy(l.Outputs[l.OutputCount:], outputs)
	l.OutputCount = uint32(need)
	return nil
}

func (l *Layout) appendProfiles(d *Device, profiles []xrt.BindingProfile) error {
	need := int(l.BindingProfileCount) + len(profiles)
	if need > protocol.MaxSharedBindingProfiles {
		return capErr("binding profiles", need, protocol.MaxSharedBindingProfiles)
	}
	d.BindingProfiles = Range{First: l.BindingProfileCount, Count: uint32(len(profiles))}

	for _, p := range profiles {
		bp := &l.BindingProfiles[l.BindingProfileCount]
		bp.Name = p.Name

		in := int(l.InputPairCount) + len(p.Inputs)
		if in > protocol.MaxSharedInputPairs {
			return capErr("input pairs", in, protocol.MaxSharedInputPairs)
		}
		bp.InputPairs = Range{First: l.InputPairCount, Count: uint32(len(p.Inputs))}
		copy(l.InputPairs[l.InputPairCount:], p.Inputs)
		l.InputPairCount = uint32(in)

		out := int(l.OutputPairCount) + len(p.Outputs)
		if out > protocol.MaxSharedOutputPairs {
			return capErr("output pairs", out, protocol.MaxSharedOutputPairs)
		}
		bp.OutputPairs = Range{First: l.OutputPairCount, Count: uint32(len(p.Outputs))}
		copy(l.OutputPairs[l.OutputPairCount:], p.Outputs)
		l.OutputPairCount = uint32(out)

		l.BindingProfileCount++
	}
	return nil
}

func (l *Layout) setHMD(hmd *xrt.HMDParts) error {
	if len(hmd.BlendModes) > xrt.MaxBlendModes {
		return capErr("blend modes", len(hmd.BlendModes), xrt.MaxBlendModes)
	}
	l.HasHMD = 1
	l.HMD.Views = hmd.Views
	copy(l.HMD.BlendModes[:], hmd.BlendModes)
	l.HMD.BlendModeCount = uint32(len(hmd.BlendModes))
	return nil
}
