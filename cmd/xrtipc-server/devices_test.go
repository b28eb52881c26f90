package main

import (
	"testing"

	"github.com/bearlytools/xrtipc/xrt"
)

func TestBuildDevices(t *testing.T) {
	tests := []struct {
		name      string
		names     []string
		wantTypes []xrt.DeviceType
		wantErr   bool
	}{
		{name: "Error: empty", wantErr: true},
		{name: "Error: unknown device", names: []string{"hmd", "tail"}, wantErr: true},
		{
			name:      "Success: hmd and controllers",
			names:     []string{"hmd", "left", "right"},
			wantTypes: []xrt.DeviceType{xrt.DeviceTypeHMD, xrt.DeviceTypeLeftHandController, xrt.DeviceTypeRightHandController},
		},
	}

	for _, test := range tests {
		got, err := buildDevices(test.names)
		switch {
		case err == nil && test.wantErr:
			t.Errorf("[TestBuildDevices(%s)]: got err == nil, want err != nil", test.name)
			continue
		case err != nil && !test.wantErr:
			t.Errorf("[TestBuildDevices(%s)]: got err == %s, want err == nil", test.name, err)
			continue
		case err != nil:
			continue
		}

		if len(got) != len(test.wantTypes) {
			t.Fatalf("[TestBuildDevices(%s)]: got %d devices, want %d", test.name, len(got), len(test.wantTypes))
		}
		for i, d := range got {
			if d.Info().Type != test.wantTypes[i] {
				t.Errorf("[TestBuildDevices(%s)]: device %d is %v, want %v", test.name, i, d.Info().Type, test.wantTypes[i])
			}
			if d.TrackingOrigin() != got[0].TrackingOrigin() {
				t.Errorf("[TestBuildDevices(%s)]: device %d has its own origin", test.name, i)
			}
		}
	}
}
