package device

import (
	cl "github.com/samuel/go-opencl/cl"
)

// NewPlatformEnumerator returns a PlatformEnumerator backed by the real
// OpenCL driver binding.
func NewPlatformEnumerator() PlatformEnumerator {
	return clPlatformEnumerator{}
}

// clPlatformEnumerator implements PlatformEnumerator over the real OpenCL
// driver binding.
type clPlatformEnumerator struct{}

func (clPlatformEnumerator) Platforms() ([]Platform, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		return nil, err
	}
	out := make([]Platform, len(platforms))
	for i, p := range platforms {
		out[i] = clPlatform{platform: p}
	}
	return out, nil
}

type clPlatform struct {
	platform *cl.Platform
}

func (p clPlatform) Devices() ([]Device, error) {
	devices, err := p.platform.GetDevices(cl.DeviceTypeAll)
	if err != nil {
		return nil, err
	}
	out := make([]Device, len(devices))
	for i, d := range devices {
		out[i] = clDevice{device: d}
	}
	return out, nil
}

type clDevice struct {
	device *cl.Device
}

func (d clDevice) Vendor() (string, error)            { return d.device.Vendor() }
func (d clDevice) Name() (string, error)              { return d.device.Name() }
func (d clDevice) DriverVersion() (string, error)     { return d.device.DriverVersion() }
func (d clDevice) MaxComputeUnits() (uint32, error)   { return d.device.MaxComputeUnits() }
func (d clDevice) MaxClockFrequency() (uint32, error) { return d.device.MaxClockFrequency() }
func (d clDevice) Handle() any                        { return d.device }
