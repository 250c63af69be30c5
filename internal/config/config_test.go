package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packwisely/patchdesk/internal/util/size"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "", cfg.Worker.Socket)
	assert.Equal(t, 5, cfg.Worker.DialTimeoutSeconds)
	assert.Equal(t, 1024, cfg.Display.SizeBase)
	assert.Equal(t, 8, cfg.Display.MaxUnitIndex)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Notify.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestConfigLoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "patchdesk.conf")

	cfg := NewConfig()
	cfg.Worker.Socket = "/tmp/worker.sock"
	cfg.Worker.DialTimeoutSeconds = 30
	cfg.Display.SizeBase = 1000
	cfg.Display.MaxUnitIndex = 3
	cfg.Log.Level = "debug"
	cfg.Notify.Enabled = false

	require.NoError(t, SaveConfig(cfg, path))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file should be renamed away")

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.conf"))
	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoadConfigPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patchdesk.conf")
	content := "[display]\nsize_base = 1000\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Display.SizeBase)
	assert.Equal(t, 8, cfg.Display.MaxUnitIndex)
	assert.Equal(t, 5, cfg.Worker.DialTimeoutSeconds)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Notify.Enabled)
}

func TestLoadConfigInvalidValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patchdesk.conf")
	content := "[display]\nsize_base = 512\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidSizeBase)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"defaults", func(*Config) {}, nil},
		{"zero timeout", func(c *Config) { c.Worker.DialTimeoutSeconds = 0 }, ErrInvalidDialTimeout},
		{"huge timeout", func(c *Config) { c.Worker.DialTimeoutSeconds = 121 }, ErrInvalidDialTimeout},
		{"base 1000", func(c *Config) { c.Display.SizeBase = 1000 }, nil},
		{"base 10", func(c *Config) { c.Display.SizeBase = 10 }, ErrInvalidSizeBase},
		{"index 0", func(c *Config) { c.Display.MaxUnitIndex = 0 }, nil},
		{"index -1", func(c *Config) { c.Display.MaxUnitIndex = -1 }, ErrInvalidUnitIndex},
		{"index 9", func(c *Config) { c.Display.MaxUnitIndex = 9 }, ErrInvalidUnitIndex},
		{"level upper", func(c *Config) { c.Log.Level = "WARN" }, nil},
		{"level bogus", func(c *Config) { c.Log.Level = "verbose" }, ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestSaveConfigRejectsInvalid(t *testing.T) {
	cfg := NewConfig()
	cfg.Display.SizeBase = 3
	path := filepath.Join(t.TempDir(), "patchdesk.conf")

	assert.ErrorIs(t, SaveConfig(cfg, path), ErrInvalidSizeBase)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSizeFormatAndTimeout(t *testing.T) {
	cfg := NewConfig()
	cfg.Display.SizeBase = 1000
	cfg.Display.MaxUnitIndex = 2
	cfg.Worker.DialTimeoutSeconds = 7

	f := cfg.SizeFormat()
	assert.Equal(t, size.Format{Base: 1000, ClampIndex: 2}, f)
	assert.Equal(t, "5000MB", f.String(5_000_000_000))
	assert.Equal(t, 7*time.Second, cfg.DialTimeout())
}

func TestLogDirectoryUnderConfig(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("log directory is under LOCALAPPDATA on Windows")
	}
	dir, err := ConfigDirectory()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "logs"), LogDirectory())
}
