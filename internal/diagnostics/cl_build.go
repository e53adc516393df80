package diagnostics

import (
	cl "github.com/samuel/go-opencl/cl"

	"github.com/ocls-project/ocls/internal/device"
)

// build creates a single-device context and program from source, builds it
// with the given options, and returns the build log. Build failures that are
// ordinary compile errors are expected and not logged as internal errors;
// any other build failure is logged and the build log is still fetched. A
// failure to create the context or program, or to fetch the build log, is
// logged and an empty log is returned, matching the reference driver's "diagnostics failure yields an empty
// diagnostic array" behavior rather than propagating an error.
func (e *Engine) build(selected *device.Record, source, options string) string {
	clDevice, ok := selected.Handle.(*cl.Device)
	if !ok {
		e.logger.Error("selected device has no opencl handle")
		return ""
	}

	context, err := cl.CreateContext([]*cl.Device{clDevice})
	if err != nil {
		e.logger.Error("failed to create opencl context", "error", err)
		return ""
	}
	defer context.Release()

	program, err := context.CreateProgramWithSource([]string{source})
	if err != nil {
		e.logger.Error("failed to create opencl program", "error", err)
		return ""
	}
	defer program.Release()

	e.logger.Debug("building opencl program", "options", options)
	if err := program.BuildProgram([]*cl.Device{clDevice}, options); err != nil {
		if err != cl.ErrBuildProgramFailure {
			e.logger.Error("failed to build opencl program", "error", err)
		}
	}

	buildLog, err := program.GetBuildLog(clDevice)
	if err != nil {
		e.logger.Error("failed to fetch opencl build log", "error", err)
		return ""
	}
	return buildLog
}
