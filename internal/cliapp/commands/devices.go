package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ocls-project/ocls/internal/device"
)

// NewDevicesCommand creates the devices command, which lists OpenCL devices
// so a user can pick a deviceID for --device-id or $/setDevice. A nil
// enumerator falls back to the real OpenCL driver binding; tests supply a
// fake to exercise the table-rendering logic without a driver present.
func NewDevicesCommand(enumerator device.PlatformEnumerator) *cobra.Command {
	if enumerator == nil {
		enumerator = device.NewPlatformEnumerator()
	}
	return &cobra.Command{
		Use:   "devices",
		Short: "List available OpenCL platforms and devices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDevices(cmd, enumerator)
		},
	}
}

func runDevices(cmd *cobra.Command, enumerator device.PlatformEnumerator) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	inspector := device.NewInspectorWithEnumerator(logger, enumerator)

	records, err := inspector.Enumerate()
	if err != nil {
		return fmt.Errorf("enumerate opencl devices: %w", err)
	}

	if len(records) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No OpenCL devices found.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Stable ID", "Description", "Power Index"})
	for _, r := range records {
		t.AppendRow(table.Row{r.StableID, r.Description, r.PowerIndex})
	}
	t.Render()
	return nil
}
