package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/packwisely/patchdesk/internal/core"
	"github.com/packwisely/patchdesk/internal/models"
	"github.com/packwisely/patchdesk/internal/pathutil"
	"github.com/packwisely/patchdesk/internal/progress"
	"github.com/packwisely/patchdesk/internal/view"
)

// newCreatePatchCmd creates the 'create-patch' command.
func newCreatePatchCmd() *cobra.Command {
	var outDir, newDir, oldDir string

	cmd := &cobra.Command{
		Use:   "create-patch",
		Short: "Build a patch from a new version directory",
		Long: `Build a patch that upgrades an installation to the contents of --new.

With --old the patch is incremental: files present in both versions are
diffed and files only in --old are removed. Without --old every file is
shipped in full.

Examples:
  # Full patch
  patchdesk create-patch --out ./patch --new ./build/v2

  # Incremental patch from v1
  patchdesk create-patch --out ./patch --new ./build/v2 --old ./build/v1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The worker resolves paths from its own working directory.
			dirs := map[view.ElementID]string{
				view.FieldOutDir: outDir,
				view.FieldNewDir: newDir,
				view.FieldOldDir: oldDir,
			}
			for id, dir := range dirs {
				abs, err := absDir(dir)
				if err != nil {
					return fmt.Errorf("invalid %s: %w", id, err)
				}
				dirs[id] = abs
			}

			bar := progress.NewCountBar(os.Stderr,
				progress.Track{Name: "Files", Bar: view.BarCreatePatch, Text: view.LabelCreatePatchCount},
				view.LabelCreatePatchPath, nil)

			op := operation{
				kind: models.OperationCreatePatch,
				sink: bar,
				prepare: func(ctx context.Context, s *core.Session) error {
					for id, dir := range dirs {
						if err := s.SetField(ctx, id, dir); err != nil {
							return err
						}
					}
					return nil
				},
			}
			snap, err := op.run(GetContext(), GetSettings())
			bar.Close()
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), snap.Labels[string(view.LabelCreatePatchMessage)])
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory the patch is written to (required)")
	cmd.Flags().StringVarP(&newDir, "new", "n", "", "Directory holding the new version (required)")
	cmd.Flags().StringVar(&oldDir, "old", "", "Directory holding the previous version (optional)")
	return cmd
}

// absDir makes dir absolute; empty stays empty so the form can reject it.
func absDir(dir string) (string, error) {
	return pathutil.Resolve(dir)
}
