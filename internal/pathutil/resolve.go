// Package pathutil resolves user-entered directories before they are sent to
// the worker, which runs in a different working directory.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// Resolve converts path to an absolute path. A leading ~ expands to the home
// directory. Symlinks and junctions in the existing portion of the path are
// resolved and any components that do not exist yet are appended, so an
// output directory the worker will create still resolves.
// An empty path stays empty.
func Resolve(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = home + path[1:]
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved, nil
	}

	// Find the deepest existing ancestor, resolve it, then append the rest.
	current := absPath
	var remainder []string
	for {
		if _, err := os.Stat(current); err == nil {
			resolved, err := filepath.EvalSymlinks(current)
			if err != nil {
				resolved = current
			}
			for i := len(remainder) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, remainder[i])
			}
			return resolved, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return absPath, nil
		}
		remainder = append(remainder, filepath.Base(current))
		current = parent
	}
}
