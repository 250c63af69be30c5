package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/packwisely/patchdesk/internal/version"
)

// newVersionCmd creates the 'version' command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "patchdesk %s\n", version.String())
			return nil
		},
	}
}
