// Package logger provides structured logging for stashkv.
//
// It wraps the standard library log/slog to provide structured JSON or
// text logging with a process-wide, dynamically adjustable level. The
// level can be changed at runtime, which the server uses for live
// configuration reload.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Format is the output format (json, text).
	Format string
	// Output is the output writer (defaults to os.Stderr).
	Output io.Writer
	// AddSource adds source file information to log entries.
	AddSource bool
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Output: os.Stderr,
	}
}

// globalLevel holds the current log level for dynamic adjustment.
var globalLevel = new(slog.LevelVar)

// New creates a slog.Logger with the given configuration and binds it to
// the global level var.
func New(cfg Config) *slog.Logger {
	globalLevel.Set(parseLevel(cfg.Level))

	opts := &slog.HandlerOptions{
		Level:     globalLevel,
		AddSource: cfg.AddSource,
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text", "console":
		handler = slog.NewTextHandler(output, opts)
	default: // json
		handler = slog.NewJSONHandler(output, opts)
	}

	return slog.New(handler)
}

// SetLevel dynamically sets the global log level.
func SetLevel(level string) {
	globalLevel.Set(parseLevel(level))
}

// GetLevel returns the current log level as a string.
func GetLevel() string {
	switch globalLevel.Level() {
	case slog.LevelDebug:
		return "debug"
	case slog.LevelWarn:
		return "warn"
	case slog.LevelError:
		return "error"
	default:
		return "info"
	}
}

// parseLevel converts a string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default logger instance for packages that are not handed one.
var defaultLogger atomic.Pointer[slog.Logger]

func init() {
	defaultLogger.Store(New(DefaultConfig()))
}

// SetDefault sets the default global logger.
func SetDefault(l *slog.Logger) {
	defaultLogger.Store(l)
	slog.SetDefault(l)
}

// Default returns the default global logger.
func Default() *slog.Logger {
	return defaultLogger.Load()
}
