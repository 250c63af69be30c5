package progress

import (
	"os"
	"runtime"
)

// enableANSIOnWindows enables Virtual Terminal processing on Windows so bar
// escape sequences render. No-op elsewhere.
func enableANSIOnWindows(f *os.File) {
	if runtime.GOOS == "windows" {
		enableWindowsANSI(f)
	}
}
