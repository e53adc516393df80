package device

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	vendor, name, driverVersion string
	computeUnits, clockFreq     uint32
	handle                      any
	err                         error
}

func (d fakeDevice) Vendor() (string, error)           { return d.vendor, d.err }
func (d fakeDevice) Name() (string, error)             { return d.name, d.err }
func (d fakeDevice) DriverVersion() (string, error)    { return d.driverVersion, d.err }
func (d fakeDevice) MaxComputeUnits() (uint32, error)  { return d.computeUnits, d.err }
func (d fakeDevice) MaxClockFrequency() (uint32, error) { return d.clockFreq, d.err }
func (d fakeDevice) Handle() any                       { return d.handle }

type fakePlatform struct {
	devices []Device
	err     error
}

func (p fakePlatform) Devices() ([]Device, error) { return p.devices, p.err }

type fakeEnumerator struct {
	platforms []Platform
	err       error
}

func (e fakeEnumerator) Platforms() ([]Platform, error) { return e.platforms, e.err }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStableID_DeterministicAndSensitiveToInputs(t *testing.T) {
	a := StableID("NVIDIA", "RTX 4090", "550.1")
	b := StableID("NVIDIA", "RTX 4090", "550.1")
	c := StableID("NVIDIA", "RTX 3090", "550.1")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestInspector_Enumerate_ComputesPowerIndex(t *testing.T) {
	enumerator := fakeEnumerator{platforms: []Platform{
		fakePlatform{devices: []Device{
			fakeDevice{vendor: "Acme", name: "GPU-1", driverVersion: "1.0", computeUnits: 8, clockFreq: 2, handle: "gpu-1"},
		}},
	}}
	inspector := NewInspectorWithEnumerator(discardLogger(), enumerator)

	records, err := inspector.Enumerate()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.EqualValues(t, 16, records[0].PowerIndex)
	assert.Equal(t, "gpu-1", records[0].Handle)
	assert.Equal(t, StableID("Acme", "GPU-1", "1.0"), records[0].StableID)
}

func TestInspector_Enumerate_SkipsDeviceOnInfoError(t *testing.T) {
	enumerator := fakeEnumerator{platforms: []Platform{
		fakePlatform{devices: []Device{
			fakeDevice{err: errors.New("driver exploded")},
			fakeDevice{vendor: "Acme", name: "GPU-2", driverVersion: "1.0", computeUnits: 4, clockFreq: 1},
		}},
	}}
	inspector := NewInspectorWithEnumerator(discardLogger(), enumerator)

	records, err := inspector.Enumerate()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Acme GPU-2 (driver 1.0)", records[0].Description)
}

func TestInspector_Enumerate_SkipsPlatformOnDeviceQueryError(t *testing.T) {
	enumerator := fakeEnumerator{platforms: []Platform{
		fakePlatform{err: errors.New("no devices")},
		fakePlatform{devices: []Device{
			fakeDevice{vendor: "Acme", name: "GPU-3", driverVersion: "2.0", computeUnits: 1, clockFreq: 1},
		}},
	}}
	inspector := NewInspectorWithEnumerator(discardLogger(), enumerator)

	records, err := inspector.Enumerate()
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestInspector_Enumerate_PropagatesPlatformQueryFailure(t *testing.T) {
	enumerator := fakeEnumerator{err: errors.New("no opencl runtime installed")}
	inspector := NewInspectorWithEnumerator(discardLogger(), enumerator)

	_, err := inspector.Enumerate()
	assert.Error(t, err)
}

func TestInspector_Enumerate_NoDevicesReturnsEmpty(t *testing.T) {
	inspector := NewInspectorWithEnumerator(discardLogger(), fakeEnumerator{})

	records, err := inspector.Enumerate()
	require.NoError(t, err)
	assert.Empty(t, records)
}
