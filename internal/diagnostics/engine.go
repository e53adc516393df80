package diagnostics

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ocls-project/ocls/internal/device"
)

const defaultMaxProblems = 100

// DeviceEnumerator is the subset of *device.Inspector the engine depends on,
// so tests can inject a fake device population.
type DeviceEnumerator interface {
	Enumerate() ([]device.Record, error)
}

// Engine compiles OpenCL source on a selected device and turns its build log
// into LSP diagnostics.
type Engine struct {
	logger     *slog.Logger
	enumerator DeviceEnumerator

	mu           sync.Mutex
	device       *device.Record
	buildOptions string
	maxProblems  int
}

// NewEngine creates an Engine with no device selected and default settings.
func NewEngine(logger *slog.Logger, enumerator DeviceEnumerator) *Engine {
	return &Engine{
		logger:      logger,
		enumerator:  enumerator,
		maxProblems: defaultMaxProblems,
	}
}

// SetBuildOptions concatenates options with a single space separator and
// stores the result as the compiler invocation flag string. A non-string
// entry aborts the update, logs an error, and leaves the previous value in
// place.
func (e *Engine) SetBuildOptions(options []any) {
	parts := make([]string, 0, len(options))
	for _, opt := range options {
		s, ok := opt.(string)
		if !ok {
			e.logger.Error("failed to parse build options", "error", fmt.Sprintf("non-string build option: %v", opt))
			return
		}
		parts = append(parts, s)
	}

	e.mu.Lock()
	e.buildOptions = strings.Join(parts, " ")
	e.mu.Unlock()
	e.logger.Debug("set build options", "options", e.buildOptions)
}

// SetMaxProblems sets the diagnostic count cap applied by Get.
func (e *Engine) SetMaxProblems(n int) {
	e.mu.Lock()
	e.maxProblems = n
	e.mu.Unlock()
	e.logger.Debug("set max number of problems", "max", n)
}

// SetDevice (re-)selects a device. stableID zero means "auto": pick the
// device with the greatest power index. A non-zero stableID that matches a
// device exactly wins regardless of power index; otherwise auto-selection
// applies. If enumeration itself fails, ErrCompilerUnavailable is returned
// wrapping the underlying error. If enumeration yields zero devices, the
// selection is left empty and subsequent Get calls fail with ErrNoDevice.
func (e *Engine) SetDevice(stableID uint32) error {
	records, err := e.enumerator.Enumerate()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCompilerUnavailable, err)
	}

	var exact, best *device.Record
	for i := range records {
		record := &records[i]
		if stableID != 0 && record.StableID == stableID {
			exact = record
			break
		}
		if best == nil || record.PowerIndex > best.PowerIndex {
			best = record
		}
	}

	selected := exact
	if selected == nil {
		selected = best
	}

	e.mu.Lock()
	e.device = selected
	e.mu.Unlock()

	if selected != nil {
		e.logger.Info("selected opencl device", "description", selected.Description, "stable_id", selected.StableID)
	} else {
		e.logger.Info("no opencl device available")
	}
	return nil
}

// Get compiles source on the selected device and returns the resulting
// diagnostics, capped at the configured maximum problem count.
func (e *Engine) Get(source Source) ([]Diagnostic, error) {
	e.mu.Lock()
	selected := e.device
	buildOptions := e.buildOptions
	maxProblems := e.maxProblems
	e.mu.Unlock()

	if selected == nil {
		return nil, ErrNoDevice
	}

	buildLog := e.build(selected, source.Text, buildOptions)
	buildLog = strings.TrimSuffix(buildLog, "\x00")

	sourceName := ""
	if source.FilePath != "" {
		sourceName = filepath.Base(source.FilePath)
	}

	return ParseBuildLog(buildLog, sourceName, maxProblems), nil
}
