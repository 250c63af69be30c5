// Package diskspace checks free space on the filesystem a patch is written to.
package diskspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/packwisely/patchdesk/internal/util/size"
)

// DefaultMargin is the headroom applied to a required byte count.
const DefaultMargin = 1.1

// InsufficientSpaceError indicates that there is not enough disk space available.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  uint64
	AvailableBytes uint64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space for %s: need %s, have %s available",
		e.Path, size.Binary.String(e.RequiredBytes), size.Binary.String(e.AvailableBytes))
}

// IsInsufficientSpaceError checks if an error is an InsufficientSpaceError.
func IsInsufficientSpaceError(err error) bool {
	var target *InsufficientSpaceError
	return errors.As(err, &target)
}

// Check reports an *InsufficientSpaceError if the filesystem holding
// targetPath has less than requiredBytes*margin free. targetPath need not
// exist yet; its nearest existing ancestor is checked. If free space cannot
// be determined the check passes and the write fails naturally instead.
func Check(targetPath string, requiredBytes uint64, margin float64) error {
	available, err := Available(targetPath)
	if err != nil {
		return nil
	}

	required := uint64(float64(requiredBytes) * margin)
	if available < required {
		return &InsufficientSpaceError{
			Path:           targetPath,
			RequiredBytes:  required,
			AvailableBytes: available,
		}
	}
	return nil
}

// Available returns the bytes available to the current user on the
// filesystem holding path or its nearest existing ancestor.
func Available(path string) (uint64, error) {
	dir, err := existingAncestor(path)
	if err != nil {
		return 0, err
	}
	return available(dir)
}

func existingAncestor(path string) (string, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no existing directory above %s", path)
		}
		dir = parent
	}
}
