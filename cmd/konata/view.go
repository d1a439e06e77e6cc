package main

import (
	"context"
	"fmt"
	"os"

	"github.com/vito/konata/pkg/config"
	"github.com/vito/konata/pkg/ioctx"
	"github.com/vito/konata/pkg/kanata"
	"github.com/vito/konata/pkg/palette"
	"github.com/vito/konata/pkg/pitui"
	"github.com/vito/konata/pkg/timeline"
	"github.com/vito/konata/pkg/viewer"
)

// loadDatabase reads and folds the trace at path.
func loadDatabase(ctx context.Context, path string, cfg config.Config) (*timeline.Database, error) {
	logger := ioctx.LoggerFromContext(ctx)

	opts := append(cfg.ReadOptions(), kanata.WithLogger(logger))
	tr, err := kanata.ReadFile(ctx, path, opts...)
	if err != nil {
		return nil, err
	}
	if tr.Skipped != nil {
		logger.WarnContext(ctx, "skipped malformed lines", "path", path, "count", len(tr.Skipped.Errors))
	}

	db, err := timeline.Build(path, tr, timeline.WithLenient(cfg.Lenient), timeline.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	stats := db.Stats()
	logger.DebugContext(ctx, "loaded trace",
		"path", path,
		"lines", tr.Lines,
		"events", len(tr.Events),
		"instructions", stats.Instructions,
		"stages", stats.Stages,
		"cycles", fmt.Sprintf("%d:%d", db.StartCycle, db.EndCycle))
	return db, nil
}

func runView(ctx context.Context, path string, cfg config.Config, renderStats string) error {
	db, err := loadDatabase(ctx, path, cfg)
	if err != nil {
		return err
	}

	term := pitui.NewProcessTerminal()
	if err := palette.RequireTrueColor(term.ColorProfile()); err != nil {
		return err
	}
	pal := palette.New(cfg.PaletteConfig())

	screen := pitui.NewScreen(term)
	if renderStats != "" {
		f, err := os.OpenFile(renderStats, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open render stats: %w", err)
		}
		defer f.Close() //nolint:errcheck
		screen.SetDebugWriter(f)
	}

	if err := term.Start(); err != nil {
		return err
	}
	// Also runs while a panic unwinds.
	defer term.Stop()

	v := viewer.New(db, pal)
	v.QuitKeys = cfg.Keys.Quit
	v.Logger = ioctx.LoggerFromContext(ctx)
	return v.Run(ctx, term, screen)
}
