package pitui

import (
	"context"
	"io"

	uv "github.com/charmbracelet/ultraviolet"
)

// Input turns raw terminal bytes into key presses.
type Input struct {
	r       io.Reader
	dec     uv.EventDecoder
	buf     []byte
	pending []byte
}

// NewInput reads from r, usually a Terminal.
func NewInput(r io.Reader) *Input {
	return &Input{r: r, buf: make([]byte, 4096)}
}

// Next blocks until the next key press and returns it with the bytes it
// was decoded from. Events other than key presses are dropped. The context
// is checked between reads; a read already blocked is not interrupted.
func (in *Input) Next(ctx context.Context) (uv.Key, []byte, error) {
	for {
		for len(in.pending) > 0 {
			n, ev := in.dec.Decode(in.pending)
			if n == 0 {
				break
			}
			raw := append([]byte(nil), in.pending[:n]...)
			in.pending = in.pending[n:]
			if key, ok := firstKey(ev); ok {
				return key, raw, nil
			}
		}

		if err := ctx.Err(); err != nil {
			return uv.Key{}, nil, err
		}
		n, err := in.r.Read(in.buf)
		if n > 0 {
			in.pending = append(in.pending, in.buf[:n]...)
			continue
		}
		if err != nil {
			return uv.Key{}, nil, err
		}
	}
}

func firstKey(ev uv.Event) (uv.Key, bool) {
	switch ev := ev.(type) {
	case uv.KeyPressEvent:
		return uv.Key(ev), true
	case uv.MultiEvent:
		for _, e := range ev {
			if key, ok := firstKey(e); ok {
				return key, true
			}
		}
	}
	return uv.Key{}, false
}
