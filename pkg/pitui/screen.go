package pitui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
)

// RenderStats captures performance metrics for a single Draw.
type RenderStats struct {
	// DiffTime is how long building the escape sequences took.
	DiffTime time.Duration

	// WriteTime is how long it took to write the frame to the terminal.
	WriteTime time.Duration

	// TotalTime is the wall-clock duration of the entire Draw call.
	TotalTime time.Duration

	// TotalLines is the number of lines in the frame.
	TotalLines int

	// LinesRepainted is the number of lines that were actually written
	// to the terminal (changed lines).
	LinesRepainted int

	// CacheHits is the number of lines that matched the previous frame
	// and were skipped.
	CacheHits int

	// FullRedraw is true when the entire screen was repainted (no diff).
	FullRedraw bool

	// BytesWritten is the number of bytes sent to the terminal.
	BytesWritten int

	// FirstChangedLine is the first line index that differed from the
	// previous frame, or -1 if nothing changed.
	FirstChangedLine int

	// LastChangedLine is the last line index that differed from the
	// previous frame, or -1 if nothing changed.
	LastChangedLine int
}

// renderStatsJSON is the JSONL record written by the debug writer.
type renderStatsJSON struct {
	Ts             int64 `json:"ts"`
	TotalUs        int64 `json:"total_us"`
	DiffUs         int64 `json:"diff_us"`
	WriteUs        int64 `json:"write_us"`
	TotalLines     int   `json:"total_lines"`
	LinesRepainted int   `json:"lines_repainted"`
	CacheHits      int   `json:"cache_hits"`
	FullRedraw     bool  `json:"full_redraw"`
	BytesWritten   int   `json:"bytes_written"`
	FirstChanged   int   `json:"first_changed"`
	LastChanged    int   `json:"last_changed"`
}

// Screen paints full-screen frames on a Terminal, rewriting only the rows
// that changed since the previous frame. Every frame is staged into one
// buffer and written once inside synchronized output.
//
// A Screen is used from a single goroutine.
type Screen struct {
	terminal Terminal

	previousLines   []string
	previousWidth   int
	fullRedrawCount int

	debugWriter io.Writer // if non-nil, render stats are logged here
}

// NewScreen creates a Screen drawing to term.
func NewScreen(term Terminal) *Screen {
	return &Screen{terminal: term}
}

// SetDebugWriter enables render performance logging. Each Draw writes a
// single stats line to w. Pass nil to disable.
func (s *Screen) SetDebugWriter(w io.Writer) {
	s.debugWriter = w
}

// FullRedraws returns the number of full (non-differential) redraws performed.
func (s *Screen) FullRedraws() int {
	return s.fullRedrawCount
}

// Invalidate forces the next Draw to repaint every row.
func (s *Screen) Invalidate() {
	s.previousLines = nil
}

// Draw paints lines as rows 1..len(lines). Lines must already fit the
// terminal width. A change of width or row count repaints everything.
func (s *Screen) Draw(lines []string) (RenderStats, error) {
	totalStart := time.Now()
	width := s.terminal.Columns()

	stats := RenderStats{
		TotalLines:       len(lines),
		FirstChangedLine: -1,
		LastChangedLine:  -1,
	}

	full := s.previousLines == nil ||
		width != s.previousWidth ||
		len(lines) != len(s.previousLines)

	diffStart := time.Now()
	var buf strings.Builder
	buf.WriteString(ansi.SetModeSynchronizedOutput)
	if full {
		s.fullRedrawCount++
		stats.FullRedraw = true
		buf.WriteString(ansi.EraseEntireScreen)
	}
	for i, line := range lines {
		if !full && line == s.previousLines[i] {
			stats.CacheHits++
			continue
		}
		if stats.FirstChangedLine < 0 {
			stats.FirstChangedLine = i
		}
		stats.LastChangedLine = i
		stats.LinesRepainted++

		buf.WriteString(ansi.CursorPosition(1, i+1))
		if !full {
			buf.WriteString(ansi.EraseEntireLine)
		}
		buf.WriteString(line)
		buf.WriteString(segmentReset)
	}
	buf.WriteString(ansi.ResetModeSynchronizedOutput)
	stats.DiffTime = time.Since(diffStart)

	s.previousLines = append(s.previousLines[:0], lines...)
	s.previousWidth = width

	if stats.LinesRepainted > 0 || full {
		stats.BytesWritten = buf.Len()
		writeStart := time.Now()
		_, err := s.terminal.WriteString(buf.String())
		stats.WriteTime = time.Since(writeStart)
		if err != nil {
			s.previousLines = nil
			return stats, fmt.Errorf("draw: %w", err)
		}
	}

	stats.TotalTime = time.Since(totalStart)
	s.emitStats(stats)
	return stats, nil
}

// emitStats writes the debug stats as JSONL if a debug writer is configured.
func (s *Screen) emitStats(stats RenderStats) {
	if s.debugWriter == nil {
		return
	}
	rec := renderStatsJSON{
		Ts:             time.Now().UnixMilli(),
		TotalUs:        stats.TotalTime.Microseconds(),
		DiffUs:         stats.DiffTime.Microseconds(),
		WriteUs:        stats.WriteTime.Microseconds(),
		TotalLines:     stats.TotalLines,
		LinesRepainted: stats.LinesRepainted,
		CacheHits:      stats.CacheHits,
		FullRedraw:     stats.FullRedraw,
		BytesWritten:   stats.BytesWritten,
		FirstChanged:   stats.FirstChangedLine,
		LastChanged:    stats.LastChangedLine,
	}
	data, _ := json.Marshal(rec)
	data = append(data, '\n')
	s.debugWriter.Write(data) //nolint:errcheck
}
