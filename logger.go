// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framecore

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the package logger.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the default logger for framecore and the backends
// it opens. By default framecore produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to restore silence.
// Contexts capture the logger at Initialize; use WithLogger to give one
// Context its own logger.
//
// Log levels used by framecore:
//   - [slog.LevelDebug]: per-frame diagnostics (fence values, buffer index)
//   - [slog.LevelInfo]: lifecycle events (device opened, resize, close)
//   - [slog.LevelWarn]: non-fatal issues (validation messages, device loss)
//
// Example:
//
//	framecore.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current default logger. It is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
