package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/packwisely/patchdesk/internal/config"
	"github.com/packwisely/patchdesk/internal/ipc"
)

// Keys accepted from flags and PATCHDESK_* environment variables.
const (
	keySocket       = "socket"
	keyDialTimeout  = "dial-timeout"
	keySizeBase     = "size-base"
	keyMaxUnitIndex = "max-unit-index"
	keyLogLevel     = "log-level"
	keyNotify       = "notify"
)

// resolveSettings loads the config file and applies overrides in viper's
// order: flag, environment, file.
func resolveSettings(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	v := newViper(cfg)
	if f := cmd.Flags().Lookup(keySocket); f != nil {
		if err := v.BindPFlag(keySocket, f); err != nil {
			return nil, fmt.Errorf("failed to bind --%s: %w", keySocket, err)
		}
	}
	return applyOverrides(cfg, v)
}

// newViper seeds a viper instance with the file values as defaults and
// enables PATCHDESK_* environment lookups.
func newViper(cfg *config.Config) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("PATCHDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(keySocket, cfg.Worker.Socket)
	v.SetDefault(keyDialTimeout, cfg.Worker.DialTimeoutSeconds)
	v.SetDefault(keySizeBase, cfg.Display.SizeBase)
	v.SetDefault(keyMaxUnitIndex, cfg.Display.MaxUnitIndex)
	v.SetDefault(keyLogLevel, cfg.Log.Level)
	v.SetDefault(keyNotify, cfg.Notify.Enabled)
	return v
}

func applyOverrides(cfg *config.Config, v *viper.Viper) (*config.Config, error) {
	out := *cfg
	out.Worker.Socket = v.GetString(keySocket)
	out.Worker.DialTimeoutSeconds = v.GetInt(keyDialTimeout)
	out.Display.SizeBase = v.GetInt(keySizeBase)
	out.Display.MaxUnitIndex = v.GetInt(keyMaxUnitIndex)
	out.Log.Level = strings.ToLower(v.GetString(keyLogLevel))
	out.Notify.Enabled = v.GetBool(keyNotify)

	if out.Worker.Socket == "" {
		out.Worker.Socket = ipc.DefaultAddress()
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &out, nil
}

func envBool(name string) bool {
	b, _ := strconv.ParseBool(os.Getenv(name))
	return b
}
