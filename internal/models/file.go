package models

// FileManifest describes one file carried by a patch.
// Hash is a fixed-size content digest; it is base64 on the wire and opaque here.
type FileManifest struct {
	Path string `json:"path"`
	Len  uint64 `json:"len"`
	Hash []byte `json:"hash"`
}

// PatchManifest is the manifest written alongside a created patch.
type PatchManifest struct {
	ManifestVersion string         `json:"manifest_version"`
	NewFiles        []FileManifest `json:"new_files"`
	DiffFiles       []FileManifest `json:"diff_files"`
	StaleFiles      []string       `json:"stale_files"`
}

// FileCount returns the number of files the patch writes (new plus diffed).
// Stale files are only removed, so they are not counted.
func (m PatchManifest) FileCount() int {
	return len(m.NewFiles) + len(m.DiffFiles)
}

// CreatePatchRequest holds the arguments of the create_patch command.
// An empty OldDir means "no previous version": the worker builds a full patch.
type CreatePatchRequest struct {
	OutDir string `json:"out_dir"`
	NewDir string `json:"new_dir"`
	OldDir string `json:"old_dir,omitempty"`
}

// Incremental reports whether the request diffs against a previous version.
func (r CreatePatchRequest) Incremental() bool {
	return r.OldDir != ""
}

// CreatePatchResult is the structured result of a successful create_patch.
type CreatePatchResult struct {
	Manifest  PatchManifest `json:"manifest"`
	PatchSize uint64        `json:"patch_size"`
}
