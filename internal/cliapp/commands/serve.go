package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ocls-project/ocls/internal/config"
	"github.com/ocls-project/ocls/internal/lsp"
)

// ConfigLoader resolves a Config from a command's flag set.
type ConfigLoader func(flags *pflag.FlagSet) (config.Config, error)

// NewServeCommand creates the serve command, which runs the LSP server over stdio.
func NewServeCommand(loadConfig ConfigLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the OpenCL Language Server over stdio",
		Long: `Start the LSP server for editor integration.

The server communicates over stdin/stdout using JSON-RPC. Diagnostics
are produced by compiling each open document against a selected OpenCL
device and parsing the driver's build log.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, loadConfig)
		},
	}
	return cmd
}

func runServe(cmd *cobra.Command, loadConfig ConfigLoader) error {
	cfg, err := loadConfig(cmd.Root().PersistentFlags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))

	server := lsp.NewServerWithLogger(os.Stdin, os.Stdout, logger)
	server.ApplySettings(cfg)

	if err := server.Run(); err != nil {
		return fmt.Errorf("run lsp server: %w", err)
	}
	if code := server.ExitCode(); code != 0 {
		os.Exit(code)
	}
	return nil
}

func logLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}
