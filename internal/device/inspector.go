// Package device implements the Device Inspector: enumeration of OpenCL
// platforms and devices, and the stable identifiers the Diagnostics Engine
// uses to pin and rank them.
package device

import (
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
)

// ErrInfoUnavailable is returned when a driver info query fails.
var ErrInfoUnavailable = errors.New("device info unavailable")

// Device abstracts the subset of an OpenCL device's info queries the
// inspector needs, and exposes an opaque Handle for the Diagnostics Engine to
// build programs against. It is implemented over the real driver in
// cl_driver.go and faked in tests.
type Device interface {
	Vendor() (string, error)
	Name() (string, error)
	DriverVersion() (string, error)
	MaxComputeUnits() (uint32, error)
	MaxClockFrequency() (uint32, error)
	Handle() any
}

// Platform abstracts an OpenCL platform's device enumeration.
type Platform interface {
	Devices() ([]Device, error)
}

// PlatformEnumerator abstracts OpenCL platform discovery so production code
// can run against the real driver and tests can run against a fake.
type PlatformEnumerator interface {
	Platforms() ([]Platform, error)
}

// Record is a Device Record: a device's opaque handle plus the identifying
// and ranking information derived from it.
type Record struct {
	Handle      any
	StableID    uint32
	Description string
	PowerIndex  uint64
}

// Inspector enumerates OpenCL platforms/devices and describes each one.
type Inspector struct {
	logger     *slog.Logger
	enumerator PlatformEnumerator
}

// NewInspector creates an Inspector backed by the real OpenCL driver.
func NewInspector(logger *slog.Logger) *Inspector {
	return NewInspectorWithEnumerator(logger, NewPlatformEnumerator())
}

// NewInspectorWithEnumerator creates an Inspector backed by an arbitrary
// PlatformEnumerator, primarily for tests.
func NewInspectorWithEnumerator(logger *slog.Logger, enumerator PlatformEnumerator) *Inspector {
	return &Inspector{logger: logger, enumerator: enumerator}
}

// Enumerate walks every platform/device pair and returns a Record for each
// device whose info query succeeded. A platform or device whose query fails
// is logged and skipped rather than failing the whole enumeration.
func (i *Inspector) Enumerate() ([]Record, error) {
	platforms, err := i.enumerator.Platforms()
	if err != nil {
		return nil, fmt.Errorf("query opencl platforms: %w", err)
	}
	i.logger.Info("found opencl platforms", "count", len(platforms))

	var records []Record
	for _, platform := range platforms {
		devices, err := platform.Devices()
		if err != nil {
			i.logger.Error("enumerate opencl devices failed", "error", err)
			continue
		}
		i.logger.Info("found opencl devices", "count", len(devices))
		for _, d := range devices {
			record, err := describe(d)
			if err != nil {
				i.logger.Error("failed to get info for a device", "error", err)
				continue
			}
			records = append(records, record)
		}
	}
	return records, nil
}

func describe(d Device) (Record, error) {
	vendor, err := d.Vendor()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInfoUnavailable, err)
	}
	name, err := d.Name()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInfoUnavailable, err)
	}
	driverVersion, err := d.DriverVersion()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInfoUnavailable, err)
	}
	computeUnits, err := d.MaxComputeUnits()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInfoUnavailable, err)
	}
	clockFrequency, err := d.MaxClockFrequency()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInfoUnavailable, err)
	}

	return Record{
		Handle:      d.Handle(),
		StableID:    StableID(vendor, name, driverVersion),
		Description: Describe(vendor, name, driverVersion),
		PowerIndex:  uint64(computeUnits) * uint64(clockFrequency),
	}, nil
}

// Describe concatenates vendor, name, and driver version for human display.
func Describe(vendor, name, driverVersion string) string {
	return fmt.Sprintf("%s %s (driver %s)", vendor, name, driverVersion)
}

// StableID hashes vendor, name, and driver version into a 32-bit identifier
// suitable for a client to pin a device across runs and for transmission
// through JSON numbers.
func StableID(vendor, name, driverVersion string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(vendor))
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte(driverVersion))
	return h.Sum32()
}
