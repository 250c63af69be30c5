package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/packwisely/patchdesk/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage patchdesk.conf",
		Long: `Configuration management commands for patchdesk.

Commands:
  init  - Write patchdesk.conf from the current settings
  show  - Display the resolved settings
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// configPath is --config, or the per-user default.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file",
		Long: `Write patchdesk.conf from the resolved settings.

Flags and PATCHDESK_* environment variables given with this command are
saved, so "PATCHDESK_SIZE_BASE=1000 patchdesk config init" persists decimal
units. Use --force to overwrite an existing file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			if err := config.SaveConfig(GetSettings(), path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			GetLogger().Info().Str("path", path).Msg("Configuration saved")
			fmt.Fprintf(out, "Configuration saved to: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the settings patchdesk would run with.

Priority: flags > environment > config file > defaults`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			cfg := GetSettings()
			out := cmd.OutOrStdout()

			source := "defaults (file not found)"
			if _, err := os.Stat(path); err == nil {
				source = path
			}

			fmt.Fprintf(out, "Configuration file:   %s\n", source)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Worker:")
			fmt.Fprintf(out, "  socket:               %s\n", cfg.Worker.Socket)
			fmt.Fprintf(out, "  dial_timeout_seconds: %d\n", cfg.Worker.DialTimeoutSeconds)
			fmt.Fprintln(out, "Display:")
			fmt.Fprintf(out, "  size_base:            %d\n", cfg.Display.SizeBase)
			fmt.Fprintf(out, "  max_unit_index:       %d\n", cfg.Display.MaxUnitIndex)
			fmt.Fprintf(out, "  example:              %s\n", cfg.SizeFormat().String(1536000))
			fmt.Fprintln(out, "Log:")
			fmt.Fprintf(out, "  level:                %s\n", cfg.Log.Level)
			fmt.Fprintln(out, "Notify:")
			fmt.Fprintf(out, "  enabled:              %t\n", cfg.Notify.Enabled)
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
