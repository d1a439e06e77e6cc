package kanata

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/vito/konata/pkg/intern"
)

const (
	// countChunkSize is the read size of the newline-counting pass.
	countChunkSize = 64 * 1024

	// DefaultMaxLineBytes bounds the length of a single trace line.
	DefaultMaxLineBytes = 1 << 20

	// cancelCheckInterval is how many lines are decoded between context
	// checks.
	cancelCheckInterval = 4096
)

// Trace is the ordered event list of one trace file.
type Trace struct {
	// Events are in file order, which defines the cycle of every event.
	Events []Event

	// Strings holds the interned stage names referenced by Events.
	Strings *intern.Table

	// Lines is the number of lines read, header included.
	Lines int

	// Skipped collects the *MalformedEventError of every line dropped in
	// lenient mode. It is nil when nothing was skipped.
	Skipped *multierror.Error
}

// ReadOption configures ReadFile and Read.
type ReadOption func(*readConfig)

type readConfig struct {
	lenient bool
	maxLine int
	strings *intern.Table
	logger  *slog.Logger
}

// WithLenient makes malformed lines a warning instead of an error.
func WithLenient(lenient bool) ReadOption {
	return func(c *readConfig) { c.lenient = lenient }
}

// WithMaxLineBytes sets the longest accepted line. Values <= 0 select
// DefaultMaxLineBytes.
func WithMaxLineBytes(n int) ReadOption {
	return func(c *readConfig) { c.maxLine = n }
}

// WithStrings interns stage names into tab instead of a fresh table.
func WithStrings(tab *intern.Table) ReadOption {
	return func(c *readConfig) { c.strings = tab }
}

// WithLogger sets the logger used for lenient-mode warnings.
func WithLogger(logger *slog.Logger) ReadOption {
	return func(c *readConfig) { c.logger = logger }
}

// ReadFile opens and reads the trace at path.
func ReadFile(ctx context.Context, path string, opts ...ReadOption) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	tr, err := Read(ctx, f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tr, nil
}

// Read reads a whole trace from src in two passes: the first counts lines
// to size the event list, the second rewinds and decodes every line.
func Read(ctx context.Context, src io.ReadSeeker, opts ...ReadOption) (*Trace, error) {
	cfg := readConfig{maxLine: DefaultMaxLineBytes}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxLine <= 0 {
		cfg.maxLine = DefaultMaxLineBytes
	}
	if cfg.strings == nil {
		cfg.strings = intern.NewTable()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	newlines, err := countLines(src)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind trace: %w", err)
	}

	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, min(64*1024, cfg.maxLine)), cfg.maxLine)
	sc.Split(scanLF)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, scanError(err, 1)
		}
		return nil, &HeaderError{Missing: true}
	}
	if got := sc.Text(); got != Header {
		return nil, &HeaderError{Got: got}
	}

	tr := &Trace{
		// The header takes one of the counted lines.
		Events:  make([]Event, 0, max(newlines-1, 0)),
		Strings: cfg.strings,
		Lines:   1,
	}
	dec := NewDecoder(cfg.strings)
	for sc.Scan() {
		tr.Lines++
		if tr.Lines%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		ev, err := dec.Decode(sc.Text())
		if err != nil {
			var me *MalformedEventError
			if errors.As(err, &me) {
				me.Line = tr.Lines
			}
			if !cfg.lenient {
				return nil, err
			}
			cfg.logger.Warn("skipping malformed event", "line", tr.Lines, "error", err)
			tr.Skipped = multierror.Append(tr.Skipped, err)
			continue
		}
		tr.Events = append(tr.Events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, scanError(err, tr.Lines+1)
	}

	return tr, nil
}

// countLines counts newline bytes in src, reading fixed-size chunks.
func countLines(src io.Reader) (int, error) {
	buf := make([]byte, countChunkSize)
	count := 0
	for {
		n, err := src.Read(buf)
		count += bytes.Count(buf[:n], []byte{'\n'})
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, err
		}
	}
}

// scanLF splits on '\n' only, so that a '\r' stays part of the line and
// the header comparison stays exact.
func scanLF(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func scanError(err error, line int) error {
	if errors.Is(err, bufio.ErrTooLong) {
		return &MalformedEventError{Line: line, Reason: "line too long", Err: err}
	}
	return fmt.Errorf("read trace: %w", err)
}
