// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeffryhq/jeffry/internal/config"
)

// Options adjust a logger beyond the configured values.
type Options struct {
	// Verbose forces debug level.
	Verbose bool
	// Stderr replaces os.Stderr as the console writer; nil keeps it.
	Stderr io.Writer
	// Quiet drops console output and logs only to the configured file.
	Quiet bool
}

// New returns a logger writing to stderr and, when cfg.File is set, to that
// file as well. The returned func closes the file.
func New(cfg config.LoggingConfig, opts Options) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}

	var writers []io.Writer
	if !opts.Quiet {
		if opts.Stderr != nil {
			writers = append(writers, opts.Stderr)
		} else {
			writers = append(writers, os.Stderr)
		}
	}

	closer := func() error { return nil }
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, nil, fmt.Errorf("log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, f)
		closer = f.Close
	}

	var w io.Writer
	switch len(writers) {
	case 0:
		w = io.Discard
	case 1:
		w = writers[0]
	default:
		w = io.MultiWriter(writers...)
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "text":
		h = slog.NewTextHandler(w, handlerOpts)
	case "json":
		h = slog.NewJSONHandler(w, handlerOpts)
	default:
		_ = closer()
		return nil, nil, fmt.Errorf("unknown logging.format: %s", cfg.Format)
	}

	return slog.New(h), closer, nil
}

// ParseLevel maps a config level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown logging.level: %s", s)
	}
}
