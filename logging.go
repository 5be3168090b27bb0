package main

import (
	"io"
	"log/slog"

	console "github.com/phsym/console-slog"
)

// newLogger builds the stderr logger. Plain output uses slog's text handler so
// that logs stay greppable when redirected.
func newLogger(w io.Writer, verbose, pretty bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	if pretty {
		return slog.New(console.NewHandler(w, &console.HandlerOptions{Level: level}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
