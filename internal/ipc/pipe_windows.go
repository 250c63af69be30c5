//go:build windows

package ipc

import (
	"context"
	"errors"
	"syscall"
	"time"

	"github.com/Microsoft/go-winio"
)

// Windows error codes for named pipes
const (
	ERROR_FILE_NOT_FOUND = syscall.Errno(2)
	ERROR_PIPE_BUSY      = syscall.Errno(231)
	ERROR_ACCESS_DENIED  = syscall.Errno(5)
)

// InUse reports whether the named pipe exists (another worker may own it).
// It returns false only when the pipe does not exist; os.IsNotExist is
// unreliable for pipes.
func InUse(addr string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	conn, err := winio.DialPipeContext(ctx, addr)
	if conn != nil {
		conn.Close()
		return true
	}
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if errno == ERROR_FILE_NOT_FOUND {
			return false
		}
		// ERROR_PIPE_BUSY, ERROR_ACCESS_DENIED -> pipe exists
		return true
	}

	// Timeouts and other errors: assume the pipe exists.
	return true
}
