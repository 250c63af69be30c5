// PatchDesk - desktop front end for the PatchDesk update worker.
//
// - No args + display available → GUI mode
// - No args + no display → CLI help
// - --gui → GUI mode
// - --cli → CLI mode (force)
// - CLI subcommands/flags → CLI mode
//
// Build with: wails build (for all platforms)
package main

import (
	"embed"
	"os"
	"runtime"
	"slices"

	"github.com/packwisely/patchdesk/internal/cli"
	"github.com/packwisely/patchdesk/internal/wailsapp"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	wailsapp.Assets = assets

	args := os.Args[1:]
	if !isCLIMode(args) {
		// Suppress GTK ibus input method warnings; the webview handles input.
		if runtime.GOOS == "linux" && os.Getenv("GTK_IM_MODULE") == "" {
			os.Setenv("GTK_IM_MODULE", "none")
		}
		// Settings resolution (flags, env, config file) lives in the CLI,
		// so GUI mode goes through the gui subcommand.
		args = append(withoutModeFlags(args), "gui")
	} else {
		args = withoutModeFlags(args)
	}

	if err := cli.ExecuteArgs(args); err != nil {
		os.Exit(1)
	}
}

// isCLIMode determines whether to run in CLI mode based on arguments and environment.
//
// CLI mode when:
// - --cli flag is present (force CLI mode)
// - any other argument is present (subcommands, --help, --version)
// - No display available (DISPLAY/WAYLAND_DISPLAY not set on Linux)
//
// GUI mode when:
// - --gui flag is present (force GUI mode)
// - No arguments and display is available
func isCLIMode(args []string) bool {
	if slices.Contains(args, "--cli") {
		return true
	}
	if slices.Contains(args, "--gui") {
		return false
	}

	if len(args) == 0 {
		if runtime.GOOS == "linux" {
			if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
				return true // No display, default to CLI
			}
		}
		return false
	}

	// Unknown arguments - let CLI handle (might be typos or new commands)
	return true
}

func withoutModeFlags(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--cli" || a == "--gui" {
			continue
		}
		out = append(out, a)
	}
	return out
}
