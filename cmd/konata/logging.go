package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/vito/konata/pkg/config"
	"github.com/vito/konata/pkg/ioctx"
)

// newLogger builds the logger for one command. A configured log file always
// wins. Otherwise batch commands log to stderr, and the viewer, which owns
// the terminal, logs nowhere.
func newLogger(ctx context.Context, cfg config.Config, interactive bool) (*slog.Logger, func(), error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, nil, err
	}

	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		handler := slog.NewTextHandler(f, &slog.HandlerOptions{
			Level: level,
		})
		return slog.New(handler), func() { _ = f.Close() }, nil
	}

	if interactive {
		return slog.New(slog.DiscardHandler), func() {}, nil
	}

	stderr := ioctx.StderrFromContext(ctx)
	handler := tint.NewHandler(stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    !isTerminal(stderr),
	})
	return slog.New(handler), func() {}, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
