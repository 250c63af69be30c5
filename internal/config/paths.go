package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// LogDirectory returns the directory the GUI writes its log file to.
//
// Locations:
//   - Windows: %LOCALAPPDATA%\PatchDesk\logs
//   - Unix: ~/.config/patchdesk/logs
func LogDirectory() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "patchdesk-logs")
			}
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, "PatchDesk", "logs")
	}

	dir, err := ConfigDirectory()
	if err != nil {
		return filepath.Join(os.TempDir(), "patchdesk-logs")
	}
	return filepath.Join(dir, "logs")
}

// EnsureLogDirectory creates the log directory with owner-only permissions.
func EnsureLogDirectory() (string, error) {
	dir := LogDirectory()
	return dir, os.MkdirAll(dir, 0700)
}
