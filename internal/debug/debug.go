// Package debug provides global debug logging flags
package debug

import (
	"log/slog"
	"sync/atomic"
)

var (
	enabled atomic.Bool
	ticks   atomic.Bool
)

// SetEnabled toggles general debug logging.
func SetEnabled(on bool) { enabled.Store(on) }

// SetTicks toggles per-tick logging (captures, drops, dispatches).
// Use --debug-ticks to enable these very verbose logs.
func SetTicks(on bool) { ticks.Store(on) }

// Log writes a debug record only if debug mode is enabled
func Log(l *slog.Logger, msg string, args ...any) {
	if enabled.Load() {
		l.Debug(msg, args...)
	}
}

// TickLog writes a debug record only if tick debug mode is enabled
func TickLog(l *slog.Logger, msg string, args ...any) {
	if ticks.Load() {
		l.Debug(msg, args...)
	}
}
