// Copyright 2026 The Cage Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli holds shared plumbing for the cage wrapper binaries.
package cli

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewLogger creates the structured logger for wrapper invocations. When
// stderr is a terminal, it uses slog.TextHandler for human-readable
// output. When stderr is piped or redirected (scripts, CI), it uses
// slog.JSONHandler so the diagnostics stay machine-parseable. Debug level
// is enabled by setting CAGE_DEBUG.
func NewLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("CAGE_DEBUG") != "" {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}
