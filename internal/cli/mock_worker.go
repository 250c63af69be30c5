package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/packwisely/patchdesk/internal/ipc"
	"github.com/packwisely/patchdesk/internal/worker/mock"
)

// newMockWorkerCmd creates the 'mock-worker' command.
func newMockWorkerCmd() *cobra.Command {
	opts := mock.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "mock-worker",
		Short: "Run a simulated worker for development and demos",
		Long: `Serve the worker commands with simulated timings until interrupted.

The update check finishes after --update-delay and announces itself on
update-check-finished. Install streams download and disk progress; create-patch
really writes raw.tar, diff.tar and manifest.json into the output directory.

Examples:
  # Terminal 1
  patchdesk mock-worker --socket /tmp/pd.sock

  # Terminal 2
  patchdesk --socket /tmp/pd.sock install`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			addr := GetSettings().Worker.Socket
			log := GetLogger()

			if ipc.InUse(addr) {
				return fmt.Errorf("a worker is already serving %s", addr)
			}

			worker := mock.New(opts)
			srv := ipc.NewServer(addr, worker)
			if err := srv.Start(); err != nil {
				return err
			}
			defer srv.Stop()

			log.Info().Str("address", srv.Addr()).Str("version", opts.Version).Msg("Mock worker listening")
			go worker.RunUpdateCheck(ctx, srv)

			<-ctx.Done()
			log.Info().Msg("Mock worker stopping")
			return nil
		},
	}

	cmd.Flags().DurationVar(&opts.UpdateCheckDelay, "update-delay", opts.UpdateCheckDelay, "Time until the update check finishes")
	cmd.Flags().DurationVar(&opts.Step, "step", opts.Step, "Pause between progress events")
	cmd.Flags().StringVar(&opts.Version, "release", opts.Version, "Version reported as available")
	cmd.Flags().Uint64Var(&opts.InstallBytes, "install-bytes", opts.InstallBytes, "Simulated download size")
	cmd.Flags().IntVar(&opts.InstallSteps, "install-steps", opts.InstallSteps, "Number of install progress events")
	cmd.Flags().StringVar(&opts.FailInstall, "fail-install", "", "Make install fail with this message")
	return cmd
}
