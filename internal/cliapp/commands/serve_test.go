package commands

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocls-project/ocls/internal/config"
)

func TestNewServeCommand_Metadata(t *testing.T) {
	cmd := NewServeCommand(func(*pflag.FlagSet) (config.Config, error) {
		return config.Config{}, nil
	})

	assert.Equal(t, "serve", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
}

func TestRunServe_ConfigLoadErrorShortCircuitsBeforeStartingServer(t *testing.T) {
	cmd := NewServeCommand(func(*pflag.FlagSet) (config.Config, error) {
		return config.Config{}, errors.New("bad config file")
	})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
	assert.Contains(t, err.Error(), "bad config file")
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logLevel("debug"))
	assert.Equal(t, slog.LevelWarn, logLevel("warn"))
	assert.Equal(t, slog.LevelError, logLevel("error"))
	assert.Equal(t, slog.LevelInfo, logLevel("not-a-level"))
}
