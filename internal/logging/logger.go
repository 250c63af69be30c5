// Package logging provides structured logging for both CLI and GUI modes.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const timeFormat = "15:04:05"

var (
	defaultOutput   io.Writer = os.Stderr
	defaultOutputMu sync.RWMutex
)

// Logger wraps zerolog with a component name.
type Logger struct {
	zlog      zerolog.Logger
	component string
	output    io.Writer // current output writer
}

// NewLogger creates a logger for the named component.
// Output goes to the process-wide default writer (stderr unless changed).
func NewLogger(component string) *Logger {
	l := &Logger{component: component}
	l.SetOutput(DefaultOutput())
	return l
}

// NewDefaultCLILogger creates a default CLI logger.
// CLI mode logs to stdout; stderr is reserved for progress bars.
func NewDefaultCLILogger() *Logger {
	l := &Logger{component: "cli"}
	l.SetOutput(os.Stdout)
	return l
}

// Nop returns a logger that discards everything. Useful in tests.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop(), component: "nop", output: io.Discard}
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// Fatal returns a fatal level event.
func (l *Logger) Fatal() *zerolog.Event {
	return l.zlog.Fatal()
}

// With creates a child logger context with additional fields.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// SetOutput changes the output writer for the logger.
// Used to route log lines above terminal progress bars.
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
	l.zlog = zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: timeFormat,
	}).With().Timestamp().Str("component", l.component).Logger()
}

// Output returns the current output writer.
func (l *Logger) Output() io.Writer {
	return l.output
}

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Errorf logs an error message with printf-style formatting.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zlog.Error().Msgf(format, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// ParseLevel converts a config string ("debug", "info", ...) to a zerolog level.
// Unknown values fall back to info.
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(s)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// SetDefaultOutput changes the writer used by loggers created afterwards.
func SetDefaultOutput(w io.Writer) {
	defaultOutputMu.Lock()
	defer defaultOutputMu.Unlock()
	defaultOutput = w
}

// DefaultOutput returns the writer new loggers use.
func DefaultOutput() io.Writer {
	defaultOutputMu.RLock()
	defer defaultOutputMu.RUnlock()
	return defaultOutput
}

func init() {
	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Configure global logger
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: timeFormat,
	})
}
