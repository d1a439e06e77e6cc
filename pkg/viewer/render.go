// Package viewer renders a timeline database as an instruction × cycle
// grid and drives it from the keyboard.
package viewer

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"

	"github.com/vito/konata/pkg/palette"
	"github.com/vito/konata/pkg/pitui"
	"github.com/vito/konata/pkg/timeline"
)

const (
	// minPaneCols is the narrowest terminal that still gets a detail pane.
	minPaneCols = 40

	// labelWidth is the widest label column after the stage bar. Labels
	// are right-aligned.
	labelWidth = 20

	filler = ".        "
)

// Dims is the terminal size in cells.
type Dims struct {
	Rows int
	Cols int
}

// BodyRows is the number of instruction rows between header and footer.
func (d Dims) BodyRows() int {
	return max(d.Rows-2, 0)
}

// State is the navigation state shared by the renderer and the key loop.
type State struct {
	// ScrollInstruction is the id shown on the first body row. It may be
	// negative, leaving blank rows above instruction 0.
	ScrollInstruction int64

	// CursorCycle is the highlighted absolute cycle.
	CursorCycle uint64

	LastKey string
	LastRaw []byte
}

type layout struct {
	split    int // first column of the detail pane
	barWidth int // stage bar cells
	pane     bool
}

func layoutFor(d Dims) layout {
	l := layout{split: d.Cols * 2 / 3, pane: true}
	if d.Cols < minPaneCols {
		l.split = d.Cols
		l.pane = false
	}
	l.barWidth = max(l.split*3/4, 1)
	return l
}

// Renderer draws frames of a Database.
type Renderer struct {
	DB      *timeline.Database
	Palette *palette.Palette

	// Title starts the header row.
	Title string
}

// RenderFrame returns exactly dims.Rows lines, each at most dims.Cols
// cells wide. It clamps st.CursorCycle into the visible cycle window.
func (r *Renderer) RenderFrame(st *State, dims Dims) []string {
	if dims.Rows <= 0 || dims.Cols <= 0 {
		return make([]string, max(dims.Rows, 0))
	}
	l := layoutFor(dims)

	base := uint64(0)
	top := r.instruction(st.ScrollInstruction)
	if top != nil {
		base = top.StartCycle
	}
	st.CursorCycle = min(max(st.CursorCycle, base), addSat(base, uint64(l.barWidth-1)))

	lines := make([]string, 0, dims.Rows)
	lines = append(lines, r.header(st, dims.Cols))

	body := dims.BodyRows()
	var pane []string
	if l.pane {
		pane = r.detailPane(st.ScrollInstruction, top, dims.Cols-l.split, body)
	}
	for i := range body {
		index := st.ScrollInstruction + int64(i)
		var row string
		if in := r.instruction(index); in != nil {
			row = r.instructionRow(in, base, st.CursorCycle, l)
		} else {
			row = r.fillerRow(l.split)
		}
		if l.pane {
			row += pane[i]
		}
		lines = append(lines, row)
	}

	if dims.Rows > 1 {
		lines = append(lines, r.footer(st, dims))
	}
	return lines
}

func (r *Renderer) instruction(index int64) *timeline.Instruction {
	if index < 0 || index > math.MaxInt {
		return nil
	}
	return r.DB.At(int(index))
}

func (r *Renderer) header(st *State, cols int) string {
	text := fmt.Sprintf("%s --- %s --- I(%d / %d) C(%d / [%d:%d])",
		r.Title, r.DB.Source,
		st.ScrollInstruction, r.DB.Len(),
		st.CursorCycle, r.DB.StartCycle, r.DB.EndCycle)
	return r.Palette.Chrome().Lipgloss().Render(pitui.Fit(text, cols))
}

func (r *Renderer) footer(st *State, dims Dims) string {
	text := fmt.Sprintf("%dx%d scroll=%d cursor=%d key=%s raw=%s",
		dims.Rows, dims.Cols,
		st.ScrollInstruction, st.CursorCycle,
		st.LastKey, pitui.HexBytes(st.LastRaw))
	return r.Palette.Chrome().Lipgloss().Render(pitui.Fit(text, dims.Cols))
}

func (r *Renderer) fillerRow(width int) string {
	text := strings.Repeat(filler, width/len(filler)+1)
	return r.Palette.Pair(palette.Filler).Style(false).Styled(pitui.Fit(text, width))
}

// cell is one stage bar position.
type cell struct {
	ch    rune
	color palette.ColorID
}

// stageCells lays the states of in over the cycles base..base+width-1.
// State i covers the cycles up to the next state; drawing stops at the
// retire entry, and the last state of an unretired instruction runs to
// end inclusive.
func (r *Renderer) stageCells(in *timeline.Instruction, base uint64, width int, end uint64) []cell {
	cells := blankCells(width)
	limit := addSat(base, uint64(width))

	current := palette.Blank
	for i, s := range in.States {
		if s.Kind == timeline.StageRetire {
			break
		}

		c := cell{ch: '.', color: current}
		if s.Kind == timeline.StageStart {
			c.ch = stageRune(s.Stage.String())
			c.color = r.Palette.Slot(s.Stage.Hash(), in.Flushed)
			current = c.color
		}

		spanEnd := addSat(end, 1)
		if i+1 < len(in.States) {
			spanEnd = in.States[i+1].Cycle
		}
		for cyc := max(s.Cycle, base); cyc < min(spanEnd, limit); cyc++ {
			cells[cyc-base] = c
		}
	}
	return cells
}

func blankCells(width int) []cell {
	cells := make([]cell, width)
	for i := range cells {
		cells[i] = cell{ch: ' ', color: palette.Blank}
	}
	return cells
}

// instructionRow draws the stage bar and label of in. Ids that were never
// begun get a blank bar and no label, whatever events named them.
func (r *Renderer) instructionRow(in *timeline.Instruction, base, cursor uint64, l layout) string {
	var cells []cell
	label := ""
	if in.Valid {
		cells = r.stageCells(in, base, l.barWidth, r.DB.EndCycle)
		label = in.Label
	} else {
		cells = blankCells(l.barWidth)
	}

	var sb strings.Builder
	var run strings.Builder
	runColor, runReverse := palette.ColorID(0), false
	flush := func() {
		if run.Len() > 0 {
			sb.WriteString(r.Palette.Pair(runColor).Style(runReverse).Styled(run.String()))
			run.Reset()
		}
	}
	for i, c := range cells {
		reverse := base+uint64(i) == cursor
		if c.color != runColor || reverse != runReverse {
			flush()
			runColor, runReverse = c.color, reverse
		}
		run.WriteRune(c.ch)
	}
	flush()

	if lw := min(labelWidth, l.split-l.barWidth-1); lw > 0 {
		text := fmt.Sprintf(" %*s", lw, ansi.Truncate(printable(label), lw, ""))
		sb.WriteString(r.Palette.Pair(palette.Blank).Style(false).Styled(text))
	}
	return pitui.Fit(sb.String(), l.split)
}

// detailPane renders the boxed state list of the topmost instruction as
// exactly height lines of width cells.
func (r *Renderer) detailPane(id int64, in *timeline.Instruction, width, height int) []string {
	lines := make([]string, height)
	if width < 4 || height < 3 {
		for i := range lines {
			lines[i] = strings.Repeat(" ", max(width, 0))
		}
		return lines
	}
	innerW, innerH := width-2, height-2

	var content []string
	if in == nil {
		content = append(content, "no instruction")
	} else {
		content = append(content, fmt.Sprintf("#%d %s", id, printable(in.Label)))
		status := "in flight"
		switch {
		case !in.Valid:
			status = "not begun"
		case in.Flushed:
			status = "flushed"
		case in.Retired():
			status = "retired"
		}
		content = append(content, fmt.Sprintf("[%d:%d] %s", in.StartCycle, in.EndCycle, status))
		for _, s := range in.States {
			content = append(content, fmt.Sprintf("%8d %s %s", s.Cycle, s.Kind, printable(s.Stage.String())))
		}
	}
	if len(content) > innerH {
		more := len(content) - innerH + 1
		content = append(content[:innerH-1], fmt.Sprintf("... %d more", more))
	}
	for len(content) < innerH {
		content = append(content, "")
	}
	for i, line := range content {
		content[i] = pitui.Fit(line, innerW)
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(r.Palette.Chrome().Background).
		Render(strings.Join(content, "\n"))
	for i, line := range strings.Split(box, "\n") {
		if i >= height {
			break
		}
		lines[i] = pitui.Fit(line, width)
	}
	for i, line := range lines {
		if line == "" {
			lines[i] = strings.Repeat(" ", width)
		}
	}
	return lines
}

// stageRune is the one-cell marker of a stage: its first rune, or '?' when
// that rune is not printable or not exactly one cell wide.
func stageRune(name string) rune {
	ch, _ := utf8.DecodeRuneInString(name)
	if ch == utf8.RuneError || !unicode.IsPrint(ch) || ansi.StringWidth(string(ch)) != 1 {
		return '?'
	}
	return ch
}

// printable replaces control characters, which labels may contain.
func printable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}

func addSat(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
