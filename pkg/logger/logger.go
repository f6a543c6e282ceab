// Package logger provides a process-wide structured logger built on slog.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// singleton holds the process-wide logger. It is swapped atomically so that
// tests can substitute their own handler without racing request goroutines.
var singleton atomic.Pointer[slog.Logger]

func init() {
	Initialize()
}

// unstructuredLogs reports whether human-readable text output was requested.
// Defaults to true so local development gets readable logs; deployments set
// UNSTRUCTURED_LOGS=false for JSON.
func unstructuredLogs() bool {
	v, err := strconv.ParseBool(os.Getenv("UNSTRUCTURED_LOGS"))
	if err != nil {
		return true
	}
	return v
}

func logLevel() slog.Level {
	switch strings.ToLower(os.Getenv("FLAPI_LOG_LEVEL")) {
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

// Initialize builds the singleton logger from the environment.
func Initialize() {
	opts := &slog.HandlerOptions{Level: logLevel()}
	var h slog.Handler
	if unstructuredLogs() {
		h = slog.NewTextHandler(os.Stderr, opts)
	} else {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	singleton.Store(slog.New(h))
}

// Get returns the current singleton logger.
func Get() *slog.Logger {
	return singleton.Load()
}

// Set replaces the singleton logger. Intended for tests.
func Set(l *slog.Logger) {
	singleton.Store(l)
}

// Log emits a record with structured attributes at the given level.
func Log(ctx context.Context, level slog.Level, msg string, args ...any) {
	singleton.Load().Log(ctx, level, msg, args...)
}

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) {
	singleton.Load().Debug(fmt.Sprintf(format, args...))
}

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) {
	singleton.Load().Info(fmt.Sprintf(format, args...))
}

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) {
	singleton.Load().Warn(fmt.Sprintf(format, args...))
}

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) {
	singleton.Load().Error(fmt.Sprintf(format, args...))
}
