// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging configures structured logging for Litora services.
//
// The package is a thin layer over the standard library slog package:
// it builds a handler from a Config (stderr output, optional file
// output, minimum level) and installs it as the process default, so
// every component logging through slog inherits the configuration.
//
// # Basic Usage
//
//	closer, err := logging.Setup(logging.Config{
//	    Level:   slog.LevelInfo,
//	    Service: "session-service",
//	    JSON:    true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer closer.Close()
//
// # File Logging
//
// Setting LogDir writes logs to a "{service}_{date}.log" file in JSON
// format alongside stderr. The directory is created if missing, and ~
// expands to the user's home directory.
//
// # Security Considerations
//
// This package does NOT automatically redact sensitive data. Callers
// must ensure PII, tokens, and secrets are not logged.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// =============================================================================
// Configuration
// =============================================================================

// Config configures the process logger.
//
// A zero-value Config writes Info+ messages to stderr in text format.
type Config struct {
	// Level sets the minimum log level. Default: slog.LevelInfo.
	Level slog.Level

	// Service is included in every log entry as the "service"
	// attribute. Default: "" (no attribute).
	Service string

	// JSON selects JSON output on stderr instead of text. File logs
	// are always JSON regardless of this setting.
	JSON bool

	// LogDir enables file logging to the given directory. Supports ~
	// expansion. Default: "" (file logging disabled).
	LogDir string

	// Quiet disables stderr output. Useful for daemons whose stderr
	// is not monitored; logs then go only to the file.
	Quiet bool
}

// =============================================================================
// Setup
// =============================================================================

// Setup builds a handler from cfg and installs it as the slog default.
//
// # Description
//
// The returned closer must be closed on shutdown so the log file, if
// one was opened, is synced and released. It is always non-nil.
//
// # Outputs
//
//   - io.Closer: Releases the log file on shutdown
//   - error: Non-nil if the log directory or file could not be opened
func Setup(cfg Config) (io.Closer, error) {
	var handlers []slog.Handler
	opts := &slog.HandlerOptions{Level: cfg.Level}

	if !cfg.Quiet {
		if cfg.JSON {
			handlers = append(handlers, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}

	closer := &logFile{}

	if cfg.LogDir != "" {
		logDir := expandPath(cfg.LogDir)
		if err := os.MkdirAll(logDir, 0750); err != nil {
			return closer, fmt.Errorf("create log directory: %w", err)
		}
		serviceName := cfg.Service
		if serviceName == "" {
			serviceName = "litora"
		}
		filename := fmt.Sprintf("%s_%s.log", serviceName, time.Now().Format("2006-01-02"))
		logPath := filepath.Join(logDir, filename)

		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return closer, fmt.Errorf("open log file: %w", err)
		}
		closer.file = file
		handlers = append(handlers, slog.NewJSONHandler(file, opts))
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		// Quiet with no file still needs a sink.
		handler = slog.NewTextHandler(io.Discard, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	if cfg.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{
			slog.String("service", cfg.Service),
		})
	}

	slog.SetDefault(slog.New(handler))
	return closer, nil
}

// logFile is the closer returned by Setup.
type logFile struct {
	file *os.File
}

func (f *logFile) Close() error {
	if f.file == nil {
		return nil
	}
	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("sync log file: %w", err)
	}
	return f.file.Close()
}

// =============================================================================
// Multi-Handler (Internal)
// =============================================================================

// multiHandler fans out log records to multiple slog handlers,
// enabling simultaneous stderr and file output with different formats.
type multiHandler struct {
	handlers []slog.Handler
}

// Enabled returns true if any handler is enabled for the level.
func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle sends the record to all enabled handlers.
func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WithAttrs returns a new handler with additional attributes.
func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

// WithGroup returns a new handler with a group name.
func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// =============================================================================
// Helper Functions
// =============================================================================

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
