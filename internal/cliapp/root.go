// Package cliapp provides the command-line interface for ocls.
package cliapp

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ocls-project/ocls/internal/cliapp/commands"
	"github.com/ocls-project/ocls/internal/config"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ocls",
		Short: "ocls - OpenCL Language Server",
		Long: `ocls speaks the Language Server Protocol for the OpenCL C kernel
language. It compiles kernel sources against a real OpenCL driver and
turns build log output into editor diagnostics.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./ocls.yaml)")
	rootCmd.PersistentFlags().StringSlice("build-options", nil, "OpenCL compiler build options")
	rootCmd.PersistentFlags().Int("max-number-of-problems", 100, "maximum diagnostics per compilation")
	rootCmd.PersistentFlags().Uint32("device-id", 0, "stable device id to pin (0 selects automatically)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug|info|warn|error)")

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewServeCommand(loadConfig))
	rootCmd.AddCommand(commands.NewDevicesCommand(nil))
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// loadConfig resolves the layered Config using the persistent flag set of
// the invoked command.
func loadConfig(flags *pflag.FlagSet) (config.Config, error) {
	return config.Load(cfgFile, flags)
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for ocls.

Bash:
  $ source <(ocls completion bash)

Zsh:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc
  $ ocls completion zsh > "${fpath[1]}/_ocls"

Fish:
  $ ocls completion fish | source

PowerShell:
  PS> ocls completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}
	return cmd
}
