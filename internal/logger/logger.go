// Package logger configures the diagnostic log stream. Interactive commands
// log to stderr; hook invocations log to a file under the state directory so
// the host tool's stdout/stderr contract is never polluted.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
)

// Setup installs a tinted stderr handler for interactive commands.
func Setup(level string) {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      parseLevel(level),
		TimeFormat: time.TimeOnly,
	})
	slog.SetDefault(slog.New(handler))
}

// SetupHook installs a handler appending to <stateDir>/hook.log.
// When debug is false only Info and above is recorded. If the log file
// cannot be opened logging is discarded entirely: telemetry of the
// telemetry tool must never break the host invocation.
func SetupHook(stateDir string, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var w io.Writer = io.Discard
	if err := os.MkdirAll(stateDir, 0o755); err == nil {
		path := filepath.Join(stateDir, "hook.log")
		if f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
			w = f
		}
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
