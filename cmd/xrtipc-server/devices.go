package main

import (
	"fmt"

	"github.com/bearlytools/xrtipc/internal/config"
	"github.com/bearlytools/xrtipc/xrt"
	"github.com/bearlytools/xrtipc/xrt/mock"
)

// buildDevices creates the simulated devices named in the config. They all share one
// tracking origin.
func buildDevices(names []string) ([]xrt.Device, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no devices configured")
	}

	origin := mock.Origin("simulated")
	devices := make([]xrt.Device, 0, len(names))
	for _, n := range names {
		switch n {
		case config.DeviceHMD:
			devices = append(devices, mock.NewHMD(origin))
		case config.DeviceLeft:
			devices = append(devices, mock.NewController(origin, xrt.DeviceTypeLeftHandController))
		case config.DeviceRight:
			devices = append(devices, mock.NewController(origin, xrt.DeviceTypeRightHandController))
		default:
			return nil, fmt.Errorf("unknown device %q", n)
		}
	}
	return devices, nil
}
