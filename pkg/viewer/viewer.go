package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	uv "github.com/charmbracelet/ultraviolet"

	"github.com/vito/konata/pkg/palette"
	"github.com/vito/konata/pkg/pitui"
	"github.com/vito/konata/pkg/timeline"
)

// DefaultQuitKeys end the session.
var DefaultQuitKeys = []string{pitui.KeyF2, "q", pitui.KeyCtrlC}

// Viewer couples a Renderer with navigation state.
type Viewer struct {
	Renderer *Renderer
	State    State

	// QuitKeys are the key names that end Run.
	QuitKeys []string

	Logger *slog.Logger

	dims Dims
}

// New returns a Viewer of db at scroll 0, cursor 0.
func New(db *timeline.Database, pal *palette.Palette) *Viewer {
	return &Viewer{
		Renderer: &Renderer{DB: db, Palette: pal, Title: "konata"},
		QuitKeys: DefaultQuitKeys,
		Logger:   slog.New(slog.DiscardHandler),
		dims:     Dims{Rows: 24, Cols: 80},
	}
}

// Resize sets the terminal size used by Frame and by paging keys.
func (v *Viewer) Resize(dims Dims) {
	v.dims = dims
}

// Frame renders the current state at the last size given to Resize.
func (v *Viewer) Frame() []string {
	return v.Renderer.RenderFrame(&v.State, v.dims)
}

// HandleKey applies one key press and reports whether it asked to quit.
// raw is the input the key was decoded from.
func (v *Viewer) HandleKey(key uv.Key, raw []byte) (quit bool) {
	v.State.LastKey = pitui.KeyName(key)
	v.State.LastRaw = raw

	if pitui.Matches(key, v.QuitKeys...) {
		return true
	}

	page := int64(max(v.dims.BodyRows(), 1))
	st := &v.State
	switch {
	case key.Code == uv.KeyLeft || key.Text == "h":
		if st.CursorCycle > 0 {
			st.CursorCycle--
		}
	case key.Code == uv.KeyRight || key.Text == "l":
		st.CursorCycle = addSat(st.CursorCycle, 1)
	case key.Code == uv.KeyUp || key.Text == "k":
		st.ScrollInstruction--
	case key.Code == uv.KeyDown || key.Text == "j":
		st.ScrollInstruction++
	case key.Code == uv.KeySpace && key.Mod == 0, key.Code == uv.KeyPgDown:
		st.ScrollInstruction += page
	case key.Code == uv.KeyPgUp:
		st.ScrollInstruction -= page
	case key.Code == uv.KeyHome:
		st.ScrollInstruction = 0
	case key.Code == uv.KeyEnd:
		st.ScrollInstruction = max(int64(v.Renderer.DB.Len())-1, 0)
	}
	v.clampScroll()
	return false
}

// clampScroll keeps at least one instruction row on screen.
func (v *Viewer) clampScroll() {
	lo := -int64(max(v.dims.BodyRows()-1, 0))
	hi := max(int64(v.Renderer.DB.Len())-1, 0)
	v.State.ScrollInstruction = min(max(v.State.ScrollInstruction, lo), hi)
}

// Run draws a frame, then blocks for a key, until a quit key, a read
// error or ctx ends it.
func (v *Viewer) Run(ctx context.Context, term pitui.Terminal, screen *pitui.Screen) error {
	input := pitui.NewInput(term)
	for {
		v.Resize(Dims{Rows: term.Rows(), Cols: term.Columns()})
		if _, err := screen.Draw(v.Frame()); err != nil {
			return err
		}

		key, raw, err := input.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read input: %w", err)
		}
		v.Logger.Debug("key", "name", pitui.KeyName(key), "raw", pitui.HexBytes(raw))
		if v.HandleKey(key, raw) {
			return nil
		}
	}
}
