// Package palette assigns terminal colours to pipeline stages.
//
// Colours are addressed by ColorID, laid out like a curses pair table:
// ids 1 to 16 are neutral pairs (a basic colour on black), ids 17 to 116
// are the bright hue ramp and ids 117 to 216 the dark ramp used for
// flushed instructions. Ramp pairs draw white text on an RGB background.
package palette

import (
	"errors"
	"fmt"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/x/ansi"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/vito/konata/pkg/intern"
)

// ColorID names a registered colour pair.
type ColorID uint16

const (
	// Slots is the number of hues in each ramp.
	Slots = 100

	// Offset is the id of the first bright ramp pair.
	Offset ColorID = 17

	// Dark is added to a bright id to get its dark counterpart.
	Dark ColorID = Slots

	// Filler colours the dotted rows drawn outside the instruction range.
	Filler ColorID = 1

	// Blank colours empty stage bar cells.
	Blank ColorID = 7

	// ChromeSlot is the bright slot used for the header and footer.
	ChromeSlot = 75

	last = Offset + 2*Slots - 1
)

// ErrNoTrueColor is returned by RequireTrueColor for terminals without
// 24-bit colour.
var ErrNoTrueColor = errors.New("terminal does not support 24-bit color")

// Config sets the HSL parameters shared by every ramp slot.
type Config struct {
	Saturation float64
	Lightness  float64
}

// DefaultConfig returns the stock saturation and lightness.
func DefaultConfig() Config {
	return Config{Saturation: 0.4, Lightness: 0.4}
}

// Pair is a foreground and background colour.
type Pair struct {
	Foreground ansi.Color
	Background ansi.Color
}

// Style returns the SGR style for p, optionally in reverse video.
func (p Pair) Style(reverse bool) ansi.Style {
	s := ansi.Style{}.ForegroundColor(p.Foreground).BackgroundColor(p.Background)
	if reverse {
		s = s.Reverse(true)
	}
	return s
}

// Lipgloss returns a lipgloss style drawing with p.
func (p Pair) Lipgloss() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(p.Foreground).Background(p.Background)
}

// Palette is the immutable pair table.
type Palette struct {
	cfg   Config
	pairs [last + 1]Pair
}

// New builds the pair table for cfg. Out-of-range parameters are clamped
// to [0, 1].
func New(cfg Config) *Palette {
	cfg.Saturation = clamp01(cfg.Saturation)
	cfg.Lightness = clamp01(cfg.Lightness)

	p := &Palette{cfg: cfg}
	for id := ColorID(1); id < Offset; id++ {
		p.pairs[id] = Pair{Foreground: neutral(id), Background: ansi.Black}
	}
	for i := range Slots {
		hue := float64(i) / Slots
		bright := ansiRGB(colorful.Hsl(hue*360, cfg.Saturation, cfg.Lightness))
		dark := ansiRGB(colorful.Hsl(hue*360, cfg.Saturation, cfg.Lightness/2))
		p.pairs[Offset+ColorID(i)] = Pair{Foreground: ansi.White, Background: bright}
		p.pairs[Offset+Dark+ColorID(i)] = Pair{Foreground: ansi.White, Background: dark}
	}
	return p
}

// Config returns the clamped parameters p was built with.
func (p *Palette) Config() Config { return p.cfg }

// Slot returns the ramp pair for a stage-name hash.
func (p *Palette) Slot(hash uint32, flushed bool) ColorID {
	id := Offset + ColorID(hash%Slots)
	if flushed {
		id += Dark
	}
	return id
}

// ColorFor returns the ramp pair for a stage name.
func (p *Palette) ColorFor(stage string, flushed bool) ColorID {
	return p.Slot(intern.Hash(stage), flushed)
}

// Pair returns the pair registered under id. Unregistered ids return the
// Blank pair.
func (p *Palette) Pair(id ColorID) Pair {
	if id == 0 || id > last {
		return p.pairs[Blank]
	}
	return p.pairs[id]
}

// Chrome returns the pair for the header and footer rows.
func (p *Palette) Chrome() Pair {
	return p.pairs[Offset+ChromeSlot]
}

// RequireTrueColor fails unless profile supports 24-bit colour.
func RequireTrueColor(profile colorprofile.Profile) error {
	if profile != colorprofile.TrueColor {
		return fmt.Errorf("%w (detected %s)", ErrNoTrueColor, profile)
	}
	return nil
}

func neutral(id ColorID) ansi.Color {
	if id < 16 {
		return ansi.BasicColor(id)
	}
	return ansi.IndexedColor(id)
}

func ansiRGB(c colorful.Color) ansi.Color {
	r, g, b := c.RGB255()
	return ansi.RGBColor{R: r, G: g, B: b}
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
