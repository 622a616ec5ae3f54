// Package logger opens the supervisor's own event log (spec.md §6 "Log
// file"): one line per event, truncated on open by default. Rotation is
// opt-in: when the config sets rotation knobs, writes go through
// lumberjack instead of a plain *os.File (SPEC_FULL.md §6.3).
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters, applied only once rotation is requested.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Config describes the supervisor's own event log destination.
type Config struct {
	Path string // event log path; empty means log to stderr only

	// Rotation is opt-in: a zero Config here means truncate-on-open via a
	// plain file, matching spec.md's default ("truncated on open").
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func (c Config) rotationRequested() bool {
	return c.MaxSizeMB > 0 || c.MaxBackups > 0 || c.MaxAgeDays > 0 || c.Compress
}

// Open returns the event-log writer described by c and a slog.Logger built
// on top of it. The caller (cmd/supervisrd) keeps the returned Closer (if
// any) open for the supervisor's lifetime.
func Open(c Config) (*slog.Logger, io.Closer, error) {
	if c.Path == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, nil)), nil, nil
	}

	if c.rotationRequested() {
		w := &lj.Logger{
			Filename:   c.Path,
			MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   c.Compress,
		}
		return slog.New(slog.NewTextHandler(w, nil)), w, nil
	}

	f, err := os.OpenFile(c.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open event log %q: %w", c.Path, err)
	}
	return slog.New(slog.NewTextHandler(f, nil)), f, nil
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
