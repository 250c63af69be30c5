package wailsapp

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/packwisely/patchdesk/internal/config"
	"github.com/packwisely/patchdesk/internal/logging"
)

var (
	// fileLogger is the rotating file logger
	fileLogger   *lumberjack.Logger
	fileLoggerMu sync.Mutex
)

// InitFileLogger tees log output to a rotating file in config.LogDirectory.
// A GUI started from a launcher has no visible stderr.
func InitFileLogger() error {
	fileLoggerMu.Lock()
	defer fileLoggerMu.Unlock()

	if fileLogger != nil {
		return nil
	}

	logDir, err := config.EnsureLogDirectory()
	if err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	fileLogger = &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "patchdesk.log"),
		MaxSize:    10, // MB per file
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	logging.SetDefaultOutput(io.MultiWriter(os.Stderr, fileLogger))
	wailsLogger = logging.NewLogger("wails")
	wailsLogger.Info().Str("path", fileLogger.Filename).Msg("File logging started")
	return nil
}

// LogFilePath returns the current log file path, or "" if file logging is off.
func LogFilePath() string {
	fileLoggerMu.Lock()
	defer fileLoggerMu.Unlock()

	if fileLogger == nil {
		return ""
	}
	return fileLogger.Filename
}

// CloseFileLogger closes the file logger (call on shutdown).
func CloseFileLogger() {
	fileLoggerMu.Lock()
	defer fileLoggerMu.Unlock()

	if fileLogger != nil {
		logging.SetDefaultOutput(os.Stderr)
		fileLogger.Close()
		fileLogger = nil
	}
}
