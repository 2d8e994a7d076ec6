// Package logging provides centralized structured logging for mcpcore.
//
// Log Level Semantics:
//   - Error: Unrecoverable per-turn failures and unexpected states indicating bugs
//   - Warn: Recoverable issues, missing data, fallbacks (e.g., bus full, duplicate suppressed)
//   - Info: High-level operations (turn lifecycle, tool dispatch, client creation)
//   - Debug: Detailed execution trace (raw extracted JSON, stream events, ledger fingerprints)
//
// The log level can be controlled via:
//  1. MCPCORE_DEBUG environment variable (0=Error, 1=Warn, 2=Info, 3=Debug)
//  2. logging.SetLogLevel() for programmatic control
//
// All logging is global and affects every package in the process.
package logging

import (
	"log/slog"
	"os"
)

var (
	logLevel = new(slog.LevelVar)
	logger   *slog.Logger
)

func init() {
	level := parseLogLevel(os.Getenv("MCPCORE_DEBUG"))
	logLevel.Set(level)

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	logger = slog.New(handler)
}

// Logger returns the global logger instance.
func Logger() *slog.Logger {
	return logger
}

// For returns a logger scoped to a named component, e.g. logging.For("orchestrator").
func For(component string) *slog.Logger {
	return logger.With("component", component)
}

// SetLogLevel sets the global log level for the entire process.
// Changes take effect immediately for all future log calls.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

// parseLogLevel converts MCPCORE_DEBUG environment variable values to slog levels.
// Mapping: 0=Error, 1=Warn, 2=Info, 3=Debug
// Default: Warn if not set or invalid
func parseLogLevel(envVal string) slog.Level {
	switch envVal {
	case "0":
		return slog.LevelError
	case "1":
		return slog.LevelWarn
	case "2":
		return slog.LevelInfo
	case "3":
		return slog.LevelDebug
	default:
		return slog.LevelWarn
	}
}
