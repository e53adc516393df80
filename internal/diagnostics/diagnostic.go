// Package diagnostics implements the Diagnostics Engine: OpenCL device
// selection, source compilation, and build-log-to-diagnostic parsing.
package diagnostics

import "errors"

// Sentinel errors returned by Engine methods.
var (
	// ErrNoDevice is returned by Get when no device has been selected.
	ErrNoDevice = errors.New("no opencl device selected")
	// ErrCompilerUnavailable is returned when the platform/device query
	// itself failed during device selection.
	ErrCompilerUnavailable = errors.New("opencl compiler unavailable")
)

// Position is a zero-based line/character position in a document.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a start/end pair of positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Severity levels a Diagnostic may carry, matching LSP's DiagnosticSeverity.
const (
	SeverityError   = 1
	SeverityWarning = 2
)

// Diagnostic is a single compiler message translated to LSP shape.
type Diagnostic struct {
	Source   string `json:"source,omitempty"`
	Range    Range  `json:"range"`
	Severity int    `json:"severity"`
	Message  string `json:"message"`
}

// Source is a compilation job: source text plus an optional originating file
// path used only to derive the diagnostics' display source field.
type Source struct {
	Text     string
	FilePath string
}
