// Package config provides configuration management for PatchDesk.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/packwisely/patchdesk/internal/constants"
	"github.com/packwisely/patchdesk/internal/util/size"
)

// Config is the on-disk configuration of the desktop client.
//
// Config file location:
//   - Windows: %APPDATA%\PatchDesk\patchdesk.conf
//   - Unix: ~/.config/patchdesk/patchdesk.conf
//
// INI format:
//
//	[worker]
//	socket = /home/me/.config/patchdesk/worker.sock
//	dial_timeout_seconds = 5
//
//	[display]
//	size_base = 1024
//	max_unit_index = 8
//
//	[log]
//	level = info
//
//	[notify]
//	enabled = true
type Config struct {
	Worker  WorkerConfig
	Display DisplayConfig
	Log     LogConfig
	Notify  NotifyConfig
}

// WorkerConfig locates the background worker.
type WorkerConfig struct {
	// Socket is the unix socket path or Windows pipe name.
	// Empty means the platform default.
	Socket string `ini:"socket"`

	// DialTimeoutSeconds bounds the initial connection.
	// Minimum: 1, Maximum: 120, Default: 5
	DialTimeoutSeconds int `ini:"dial_timeout_seconds"`
}

// DisplayConfig controls how byte counts are rendered.
type DisplayConfig struct {
	// SizeBase is 1000 (kB, MB) or 1024 (KiB, MiB). Default: 1024
	SizeBase int `ini:"size_base"`

	// MaxUnitIndex caps the unit: 0 = bytes only, 8 = yotta. Default: 8
	MaxUnitIndex int `ini:"max_unit_index"`
}

// LogConfig sets the default log level.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `ini:"level"`
}

// NotifyConfig controls desktop notifications in GUI mode.
type NotifyConfig struct {
	// Enabled sends a notification when an install or patch finishes. Default: true
	Enabled bool `ini:"enabled"`
}

// Config validation errors
var (
	ErrInvalidDialTimeout = errors.New("dial_timeout_seconds must be between 1 and 120")
	ErrInvalidSizeBase    = errors.New("size_base must be 1000 or 1024")
	ErrInvalidUnitIndex   = errors.New("max_unit_index must be between 0 and 8")
	ErrInvalidLogLevel    = errors.New("level must be one of debug, info, warn, error")
)

var logLevels = []string{"debug", "info", "warn", "error"}

// DefaultConfigPath returns the default path for the patchdesk.conf file.
//   - Windows: %APPDATA%\PatchDesk\patchdesk.conf
//   - Unix: ~/.config/patchdesk/patchdesk.conf
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "patchdesk.conf"), nil
}

// ConfigDirectory returns the per-user configuration directory.
func ConfigDirectory() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", errors.New("neither APPDATA nor USERPROFILE environment variable set")
			}
			appData = filepath.Join(userProfile, "AppData", "Roaming")
		}
		return filepath.Join(appData, "PatchDesk"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "patchdesk"), nil
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Worker: WorkerConfig{
			DialTimeoutSeconds: int(constants.WorkerDialTimeout / time.Second),
		},
		Display: DisplayConfig{
			SizeBase:     constants.DefaultSizeBase,
			MaxUnitIndex: constants.DefaultMaxUnitIndex,
		},
		Log: LogConfig{
			Level: "info",
		},
		Notify: NotifyConfig{
			Enabled: true,
		},
	}
}

// LoadConfig loads configuration from the patchdesk.conf file.
// If path is empty, uses the default path.
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but is invalid, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load patchdesk.conf: %w", err)
	}

	worker := iniFile.Section("worker")
	cfg.Worker.Socket = strings.TrimSpace(worker.Key("socket").String())
	cfg.Worker.DialTimeoutSeconds = worker.Key("dial_timeout_seconds").MustInt(cfg.Worker.DialTimeoutSeconds)

	display := iniFile.Section("display")
	cfg.Display.SizeBase = display.Key("size_base").MustInt(constants.DefaultSizeBase)
	cfg.Display.MaxUnitIndex = display.Key("max_unit_index").MustInt(constants.DefaultMaxUnitIndex)

	cfg.Log.Level = strings.ToLower(iniFile.Section("log").Key("level").MustString("info"))
	cfg.Notify.Enabled = iniFile.Section("notify").Key("enabled").MustBool(true)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid patchdesk.conf: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves configuration to the patchdesk.conf file.
// If path is empty, uses the default path.
// Creates parent directories if they don't exist.
func SaveConfig(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	worker, err := iniFile.NewSection("worker")
	if err != nil {
		return fmt.Errorf("failed to create worker section: %w", err)
	}
	worker.Key("socket").SetValue(cfg.Worker.Socket)
	worker.Key("dial_timeout_seconds").SetValue(fmt.Sprintf("%d", cfg.Worker.DialTimeoutSeconds))

	display, err := iniFile.NewSection("display")
	if err != nil {
		return fmt.Errorf("failed to create display section: %w", err)
	}
	display.Key("size_base").SetValue(fmt.Sprintf("%d", cfg.Display.SizeBase))
	display.Key("max_unit_index").SetValue(fmt.Sprintf("%d", cfg.Display.MaxUnitIndex))

	logSection, err := iniFile.NewSection("log")
	if err != nil {
		return fmt.Errorf("failed to create log section: %w", err)
	}
	logSection.Key("level").SetValue(cfg.Log.Level)

	notify, err := iniFile.NewSection("notify")
	if err != nil {
		return fmt.Errorf("failed to create notify section: %w", err)
	}
	notify.Key("enabled").SetValue(fmt.Sprintf("%t", cfg.Notify.Enabled))

	// Write to a temporary file and rename so readers never see a partial file.
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid.
// Returns nil if valid, or an error describing what's wrong.
func (cfg *Config) Validate() error {
	if cfg.Worker.DialTimeoutSeconds < 1 || cfg.Worker.DialTimeoutSeconds > 120 {
		return ErrInvalidDialTimeout
	}
	if cfg.Display.SizeBase != 1000 && cfg.Display.SizeBase != 1024 {
		return ErrInvalidSizeBase
	}
	if cfg.Display.MaxUnitIndex < 0 || cfg.Display.MaxUnitIndex > 8 {
		return ErrInvalidUnitIndex
	}
	level := strings.ToLower(cfg.Log.Level)
	for _, l := range logLevels {
		if level == l {
			return nil
		}
	}
	return ErrInvalidLogLevel
}

// SizeFormat returns the formatter settings for byte counts.
func (cfg *Config) SizeFormat() size.Format {
	return size.Format{Base: uint64(cfg.Display.SizeBase), ClampIndex: cfg.Display.MaxUnitIndex}
}

// DialTimeout returns the worker connection timeout.
func (cfg *Config) DialTimeout() time.Duration {
	return time.Duration(cfg.Worker.DialTimeoutSeconds) * time.Second
}
