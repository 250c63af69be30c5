package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/packwisely/patchdesk/internal/logging"
	"github.com/packwisely/patchdesk/internal/models"
	"github.com/packwisely/patchdesk/internal/progress"
	"github.com/packwisely/patchdesk/internal/view"
)

// installTracks are the two install bars drawn in the terminal.
var installTracks = []progress.Track{
	{Name: "Download", Bar: view.BarInstallNet, Text: view.LabelInstallNet},
	{Name: "Disk", Bar: view.BarInstallDisk, Text: view.LabelInstallDisk},
}

// newInstallCmd creates the 'install' command.
func newInstallCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the available update",
		Long: `Wait for the worker's update check, then install the update it found.

Download and disk progress are shown as bars on a terminal; otherwise the
status lines are printed as they change.

Examples:
  patchdesk install
  patchdesk install --wait 2m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bars := progress.NewMultiBar(os.Stderr, installTracks,
				[]view.ElementID{view.LabelUpdateStatus, view.LabelInstallDetail})

			prevOutput := logging.DefaultOutput()
			logging.SetDefaultOutput(bars.Writer())
			defer logging.SetDefaultOutput(prevOutput)

			op := operation{
				kind:      models.OperationInstall,
				sink:      bars,
				readyWait: wait,
			}
			snap, err := op.run(GetContext(), GetSettings())
			bars.Close()
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), snap.Labels[string(view.LabelInstallMessage)])
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 30*time.Second, "How long to wait for the update check to finish")
	return cmd
}
