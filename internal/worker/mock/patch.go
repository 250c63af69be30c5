package mock

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/packwisely/patchdesk/internal/diskspace"
	"github.com/packwisely/patchdesk/internal/events"
	"github.com/packwisely/patchdesk/internal/ipc"
	"github.com/packwisely/patchdesk/internal/models"
	"github.com/packwisely/patchdesk/internal/progress"
	"github.com/packwisely/patchdesk/internal/util/tar"
)

// ManifestVersion is written into every manifest.
const ManifestVersion = "V1"

// Patch layout inside the output directory.
const (
	rawArchive   = "raw.tar"
	diffArchive  = "diff.tar"
	manifestFile = "manifest.json"
)

// createPatch writes a patch for req.NewDir into req.OutDir. Files also
// present in req.OldDir are diffed, files only in req.OldDir are stale, the
// rest are new. Without an old directory every file is new.
func (w *Worker) createPatch(ctx context.Context, req models.CreatePatchRequest, emit ipc.Emitter) (models.CreatePatchResult, error) {
	var res models.CreatePatchResult

	newFiles, err := tar.ListFiles(req.NewDir)
	if err != nil {
		return res, fmt.Errorf("new version: %w", err)
	}
	remaining := make(map[string]bool, len(newFiles))
	for _, f := range newFiles {
		remaining[f] = true
	}

	required, err := sourceSize(req.NewDir, newFiles)
	if err != nil {
		return res, fmt.Errorf("new version: %w", err)
	}
	if err := w.checkSpace(req.OutDir, required); err != nil {
		if diskspace.IsInsufficientSpaceError(err) {
			w.logger.Warnf("Not enough space in %s for a %d byte patch", req.OutDir, required)
		}
		return res, err
	}

	var oldFiles []string
	if req.Incremental() {
		if oldFiles, err = tar.ListFiles(req.OldDir); err != nil {
			return res, fmt.Errorf("old version: %w", err)
		}
	}

	manifest := models.PatchManifest{
		ManifestVersion: ManifestVersion,
		NewFiles:        []models.FileManifest{},
		DiffFiles:       []models.FileManifest{},
		StaleFiles:      []string{},
	}
	total := uint64(len(newFiles))
	var done uint64
	var patchSize int64

	report := func(path string) error {
		return emit.Emit(events.ChannelCreatePatchProgress, progress.FilePayload{
			Done:  done,
			Total: total,
			Path:  filepath.Join(req.NewDir, filepath.FromSlash(path)),
		})
	}

	// pack appends each file to archive and records it in list.
	pack := func(archive *tar.Archive, files []string, list *[]models.FileManifest) error {
		for _, rel := range files {
			if err := report(rel); err != nil {
				return err
			}
			if err := sleep(ctx, w.opts.Step); err != nil {
				return err
			}

			h := sha256.New()
			n, err := archive.AddFile(rel, filepath.Join(req.NewDir, filepath.FromSlash(rel)), h)
			if err != nil {
				return err
			}
			*list = append(*list, models.FileManifest{Path: rel, Len: uint64(n), Hash: h.Sum(nil)})

			done++
			if err := report(rel); err != nil {
				return err
			}
		}
		return nil
	}

	if req.Incremental() {
		var diffs []string
		for _, rel := range oldFiles {
			if !remaining[rel] {
				manifest.StaleFiles = append(manifest.StaleFiles, rel)
				continue
			}
			delete(remaining, rel)
			diffs = append(diffs, rel)
		}

		archive, err := tar.Create(filepath.Join(req.OutDir, diffArchive))
		if err != nil {
			return res, err
		}
		if err := pack(archive, diffs, &manifest.DiffFiles); err != nil {
			archive.Close()
			return res, err
		}
		size, err := archive.Close()
		if err != nil {
			return res, err
		}
		patchSize += size
	}

	var fresh []string
	for _, rel := range newFiles {
		if remaining[rel] {
			fresh = append(fresh, rel)
		}
	}

	archive, err := tar.Create(filepath.Join(req.OutDir, rawArchive))
	if err != nil {
		return res, err
	}
	if err := pack(archive, fresh, &manifest.NewFiles); err != nil {
		archive.Close()
		return res, err
	}
	size, err := archive.Close()
	if err != nil {
		return res, err
	}
	patchSize += size

	data, err := json.Marshal(manifest)
	if err != nil {
		return res, err
	}
	if err := os.WriteFile(filepath.Join(req.OutDir, manifestFile), data, 0644); err != nil {
		return res, fmt.Errorf("failed to write manifest: %w", err)
	}
	patchSize += int64(len(data))

	w.logger.Info().
		Int("new", len(manifest.NewFiles)).
		Int("diff", len(manifest.DiffFiles)).
		Int("stale", len(manifest.StaleFiles)).
		Int64("patch_size", patchSize).
		Msg("Patch created")

	res.Manifest = manifest
	res.PatchSize = uint64(patchSize)
	return res, nil
}

// sourceSize sums the sizes of files under dir. The archives hold at most
// this much file data.
func sourceSize(dir string, files []string) (uint64, error) {
	var total uint64
	for _, rel := range files {
		info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return 0, err
		}
		total += uint64(info.Size())
	}
	return total, nil
}
