package diagnostics

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocls-project/ocls/internal/device"
)

type fakeEnumerator struct {
	records []device.Record
	err     error
}

func (f fakeEnumerator) Enumerate() ([]device.Record, error) { return f.records, f.err }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEngine_SetDevice_AutoSelectsHighestPowerIndex(t *testing.T) {
	enumerator := fakeEnumerator{records: []device.Record{
		{StableID: 1, PowerIndex: 16, Description: "weak"},
		{StableID: 2, PowerIndex: 64, Description: "strong"},
	}}
	engine := NewEngine(discardLogger(), enumerator)

	err := engine.SetDevice(0)
	require.NoError(t, err)

	_, getErr := engine.Get(Source{Text: "kernel"})
	assert.NotErrorIs(t, getErr, ErrNoDevice)
	assert.Equal(t, uint32(2), engine.device.StableID)
}

func TestEngine_SetDevice_ExactMatchWinsOverPowerIndex(t *testing.T) {
	enumerator := fakeEnumerator{records: []device.Record{
		{StableID: 1, PowerIndex: 64, Description: "strong"},
		{StableID: 2, PowerIndex: 16, Description: "weak but requested"},
	}}
	engine := NewEngine(discardLogger(), enumerator)

	err := engine.SetDevice(2)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), engine.device.StableID)
}

func TestEngine_SetDevice_NoDevicesLeavesSelectionEmpty(t *testing.T) {
	engine := NewEngine(discardLogger(), fakeEnumerator{})

	err := engine.SetDevice(0)
	require.NoError(t, err)

	_, getErr := engine.Get(Source{Text: "kernel"})
	assert.ErrorIs(t, getErr, ErrNoDevice)
}

func TestEngine_SetDevice_PropagatesEnumerationFailure(t *testing.T) {
	engine := NewEngine(discardLogger(), fakeEnumerator{err: errors.New("no runtime")})

	err := engine.SetDevice(0)
	assert.ErrorIs(t, err, ErrCompilerUnavailable)
}

func TestEngine_Get_NoDeviceSelected(t *testing.T) {
	engine := NewEngine(discardLogger(), fakeEnumerator{})

	_, err := engine.Get(Source{Text: "kernel"})
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestEngine_SetBuildOptions_JoinsWithSpaces(t *testing.T) {
	engine := NewEngine(discardLogger(), fakeEnumerator{})

	engine.SetBuildOptions([]any{"-cl-std=CL2.0", "-Werror"})

	assert.Equal(t, "-cl-std=CL2.0 -Werror", engine.buildOptions)
}

func TestEngine_SetBuildOptions_MalformedEntryAbortsUpdate(t *testing.T) {
	engine := NewEngine(discardLogger(), fakeEnumerator{})
	engine.SetBuildOptions([]any{"-cl-std=CL2.0"})

	engine.SetBuildOptions([]any{"-Werror", 42})

	assert.Equal(t, "-cl-std=CL2.0", engine.buildOptions)
}

func TestEngine_SetMaxProblems(t *testing.T) {
	engine := NewEngine(discardLogger(), fakeEnumerator{})

	engine.SetMaxProblems(5)

	assert.Equal(t, 5, engine.maxProblems)
}
