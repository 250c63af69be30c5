//go:build windows

package ipc

import (
	"context"
	"net"
	"time"

	"github.com/Microsoft/go-winio"

	"github.com/packwisely/patchdesk/internal/constants"
)

// DefaultAddress returns the worker named pipe.
func DefaultAddress() string {
	return constants.WorkerPipeName
}

func dial(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return winio.DialPipeContext(ctx, addr)
}

func listen(addr string) (net.Listener, error) {
	cfg := &winio.PipeConfig{
		// Owner and SYSTEM only; the worker serves the user who started it.
		SecurityDescriptor: "D:P(A;;GA;;;OW)(A;;GA;;;SY)",
		InputBufferSize:    64 * 1024,
		OutputBufferSize:   64 * 1024,
	}
	return winio.ListenPipe(addr, cfg)
}
