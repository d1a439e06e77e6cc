package kanata

import (
	"strconv"
	"strings"

	"github.com/vito/konata/pkg/intern"
)

// Decoder turns trace lines into events, interning stage names into
// Strings.
type Decoder struct {
	Strings *intern.Table
}

// NewDecoder returns a Decoder interning into tab. A nil table gets a
// fresh one.
func NewDecoder(tab *intern.Table) *Decoder {
	if tab == nil {
		tab = intern.NewTable()
	}
	return &Decoder{Strings: tab}
}

// fieldCounts is the number of tab-separated fields per tag, tag included.
var fieldCounts = map[Tag]int{
	TagCycle:      2,
	TagCycleSet:   2,
	TagBegin:      4,
	TagLabel:      4,
	TagStageStart: 4,
	TagStageEnd:   4,
	TagRetire:     4,
	TagDependency: 4,
}

// Decode parses one line without its line terminator. Errors are
// *MalformedEventError with Line unset.
func (d *Decoder) Decode(line string) (Event, error) {
	tag, _, _ := strings.Cut(line, "\t")
	n, ok := fieldCounts[Tag(tag)]
	if !ok {
		return nil, malformed(line, "unknown tag "+strconv.Quote(tag), nil)
	}

	// The last field keeps any embedded tabs or spaces.
	fields := strings.SplitN(line, "\t", n)
	if len(fields) != n {
		return nil, malformed(line, "want "+strconv.Itoa(n)+" fields, got "+strconv.Itoa(len(fields)), nil)
	}

	p := fieldParser{line: line}
	var ev Event
	switch Tag(tag) {
	case TagCycle, TagCycleSet:
		ev = Cycle{
			Absolute: Tag(tag) == TagCycleSet,
			Value:    p.uint(fields[1], "cycle"),
		}
	case TagBegin:
		ev = Begin{
			ID:       p.uint(fields[1], "id"),
			SimID:    p.uint(fields[2], "sim id"),
			ThreadID: p.uint(fields[3], "thread id"),
		}
	case TagLabel:
		ev = Label{
			ID:   p.uint(fields[1], "id"),
			Kind: p.small(fields[2], "label kind"),
			// Keep the label independent of the line buffer.
			Text: strings.Clone(fields[3]),
		}
	case TagStageStart:
		ev = StageStart{
			ID:    p.uint(fields[1], "id"),
			Lane:  p.uint(fields[2], "lane"),
			Stage: d.stage(fields[3]),
		}
	case TagStageEnd:
		ev = StageEnd{
			ID:    p.uint(fields[1], "id"),
			Lane:  p.uint(fields[2], "lane"),
			Stage: d.stage(fields[3]),
		}
	case TagRetire:
		ev = Retire{
			ID:       p.uint(fields[1], "id"),
			RetireID: p.uint(fields[2], "retire id"),
			Kind:     RetireKind(p.small(fields[3], "retire kind")),
		}
	case TagDependency:
		ev = Dependency{
			Consumer: p.uint(fields[1], "consumer id"),
			Producer: p.uint(fields[2], "producer id"),
			Kind:     p.small(fields[3], "dependency kind"),
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return ev, nil
}

func (d *Decoder) stage(name string) intern.Symbol {
	if d.Strings == nil {
		d.Strings = intern.NewTable()
	}
	return d.Strings.Intern(name)
}

// fieldParser parses numeric fields, keeping the first error.
type fieldParser struct {
	line string
	err  error
}

func (p *fieldParser) uint(s, what string) uint64 {
	return p.parse(s, what, 64)
}

func (p *fieldParser) small(s, what string) uint8 {
	return uint8(p.parse(s, what, 8))
}

func (p *fieldParser) parse(s, what string, bits int) uint64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		p.err = malformed(p.line, "bad "+what, err)
		return 0
	}
	return v
}

func malformed(line, reason string, err error) *MalformedEventError {
	return &MalformedEventError{Text: line, Reason: reason, Err: err}
}
