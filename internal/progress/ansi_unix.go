//go:build !windows

package progress

import "os"

// Unix terminals support ANSI natively.
func enableWindowsANSI(f *os.File) {}
