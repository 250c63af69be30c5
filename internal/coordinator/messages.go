package coordinator

import (
	"fmt"

	"github.com/packwisely/patchdesk/internal/models"
	"github.com/packwisely/patchdesk/internal/util/size"
	stringutil "github.com/packwisely/patchdesk/internal/util/strings"
)

// InstallSucceeded is shown when the install command settles without error.
const InstallSucceeded = "Install complete"

// PatchCreated summarizes a create_patch result, e.g.
// "Patch created: 3 files (2 new, 1 diff, 1 stale), 12MiB".
func PatchCreated(res models.CreatePatchResult, f size.Format) string {
	m := res.Manifest
	total := m.FileCount()
	return fmt.Sprintf("Patch created: %d %s (%d new, %d diff, %d stale), %s",
		total, stringutil.Pluralize("file", int64(total)),
		len(m.NewFiles), len(m.DiffFiles), len(m.StaleFiles),
		f.String(res.PatchSize))
}

// FailureMessage is the status text for a failed request. Worker messages
// are shown verbatim.
func FailureMessage(err error) string {
	return "Error: " + err.Error()
}
