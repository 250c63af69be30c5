// Package cli provides the command-line interface for patchdesk.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/packwisely/patchdesk/internal/config"
	"github.com/packwisely/patchdesk/internal/logging"
	"github.com/packwisely/patchdesk/internal/version"
)

var (
	// Global flags
	cfgFile    string
	socketAddr string
	verbose    bool

	// Resolved configuration, set in PersistentPreRunE
	settings *config.Config

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command for CLI mode.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "patchdesk",
		Short: "PatchDesk - install updates and build patches",
		Long: `PatchDesk ` + version.Version + ` - Built: ` + version.BuildTime + `
Desktop front end for the PatchDesk worker.

CLI Mode:
  Check for updates, install them and create patches from the terminal.

GUI Mode (gui command, or no arguments with a display):
  The same operations in a desktop window.

Settings are read from patchdesk.conf and can be overridden with flags or
PATCHDESK_* environment variables (e.g. PATCHDESK_SOCKET, PATCHDESK_SIZE_BASE).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger = logging.NewDefaultCLILogger()

			cfg, err := resolveSettings(cmd)
			if err != nil {
				return err
			}
			settings = cfg

			level := logging.ParseLevel(cfg.Log.Level)
			if verbose || envBool("PATCHDESK_DEBUG") {
				level = zerolog.DebugLevel
			}
			logging.SetGlobalLevel(level)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&socketAddr, "socket", "", "Worker socket path or pipe name (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")

	rootCmd.Version = version.String()

	return rootCmd
}

// ExecuteArgs runs the CLI with args in place of the process arguments.
func ExecuteArgs(args []string) error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(rootContext)

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newInstallCmd())
	rootCmd.AddCommand(newCreatePatchCmd())
	rootCmd.AddCommand(newMockWorkerCmd())
	rootCmd.AddCommand(newGUICmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// GetSettings returns the resolved configuration, or defaults before the
// root command has run.
func GetSettings() *config.Config {
	if settings == nil {
		return config.NewConfig()
	}
	return settings
}
