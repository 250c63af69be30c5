package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newStatusCmd creates the 'status' command.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether an update is ready to install",
		Long: `Ask the worker whether its update check has finished.

Examples:
  patchdesk status
  PATCHDESK_SOCKET=/tmp/worker.sock patchdesk status`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			client, bus, err := connect(ctx, GetSettings())
			if err != nil {
				return err
			}
			defer bus.Close()
			defer client.Close()

			status, err := client.GetUpdateCheckStatus(ctx)
			if err != nil {
				return fmt.Errorf("failed to query update status: %w", err)
			}

			state := "not ready"
			if status.Ready {
				state = "ready"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Update: %s\n", state)
			if status.Reason != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", status.Reason)
			}
			return nil
		},
	}
}
