package cli

import (
	"github.com/spf13/cobra"

	"github.com/packwisely/patchdesk/internal/wailsapp"
)

// newGUICmd creates the 'gui' command.
func newGUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gui",
		Short: "Open the desktop window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return wailsapp.Run(GetSettings())
		},
	}
}
