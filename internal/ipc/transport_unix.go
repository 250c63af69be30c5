//go:build !windows

package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/packwisely/patchdesk/internal/constants"
)

// DefaultAddress returns the worker socket path: ~/.config/patchdesk/worker.sock
func DefaultAddress() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "patchdesk-"+constants.WorkerSocketName)
	}
	return filepath.Join(home, ".config", "patchdesk", constants.WorkerSocketName)
}

func dial(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	dialer := net.Dialer{Timeout: timeout}
	return dialer.DialContext(ctx, "unix", addr)
}

func listen(addr string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(addr), 0700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}
	// A socket file left by a crashed worker blocks Listen.
	if err := os.Remove(addr); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale socket: %w", err)
	}

	l, err := net.Listen("unix", addr)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(addr, 0600); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to restrict socket permissions: %w", err)
	}
	return l, nil
}

// InUse reports whether a worker is accepting connections on addr.
func InUse(addr string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	conn, err := dial(ctx, addr, 100*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
