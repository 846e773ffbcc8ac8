// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging provides structured logging for tethr.
//
// It wraps log/slog with a process-wide logger whose level can be changed at
// runtime. CLI commands log to stderr; the TUI redirects output to a file so
// log lines never corrupt the alternate screen.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	level   = new(slog.LevelVar)
	output  = &swapWriter{w: os.Stderr}
	current = slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: level}))
)

// swapWriter lets SetOutput redirect loggers that were already derived
// with With.
type swapWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *swapWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *swapWriter) set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

func init() {
	if lvl, ok := ParseLevel(os.Getenv("TETHR_LOG_LEVEL")); ok {
		level.Set(lvl)
	} else if lvl, ok := ParseLevel(os.Getenv("LOG_LEVEL")); ok {
		level.Set(lvl)
	} else {
		level.Set(slog.LevelWarn)
	}
}

// ParseLevel maps a level name ("debug", "info", "warn", "error") to a slog level.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return 0, false
}

// SetLevel changes the minimum level for every logger derived from this package.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// Level returns the active minimum level.
func Level() slog.Level {
	return level.Level()
}

// SetVerbose switches between debug and info logging.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// SetOutput replaces the destination of every logger from this package,
// including loggers obtained earlier through With.
func SetOutput(w io.Writer) {
	output.set(w)
}

// OpenFile redirects logging to the file at path, creating parent directories
// as needed. The returned closer restores stderr output and closes the file.
func OpenFile(path string) (io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}
	SetOutput(f)
	return closerFunc(func() error {
		SetOutput(os.Stderr)
		return f.Close()
	}), nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Logger returns the default logger.
func Logger() *slog.Logger {
	return current
}

// With returns a logger carrying the given attributes, e.g. With("component", "frame").
func With(args ...any) *slog.Logger {
	return Logger().With(args...)
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

// DebugContext logs at debug level with a context.
func DebugContext(ctx context.Context, msg string, args ...any) {
	Logger().DebugContext(ctx, msg, args...)
}
