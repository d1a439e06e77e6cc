package timeline

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/vito/konata/pkg/intern"
	"github.com/vito/konata/pkg/kanata"
)

// MaxInstructions bounds the instruction count of a Database.
const MaxInstructions = 1 << 26

// BuildOption configures Build and BuildEvents.
type BuildOption func(*buildConfig)

type buildConfig struct {
	lenient bool
	logger  *slog.Logger
}

// WithLenient keeps the cycle counter where it is, with a warning, when a
// cycle event would move it backwards or past the largest cycle.
func WithLenient(lenient bool) BuildOption {
	return func(c *buildConfig) { c.lenient = lenient }
}

// WithLogger sets the logger used for lenient-mode warnings.
func WithLogger(logger *slog.Logger) BuildOption {
	return func(c *buildConfig) { c.logger = logger }
}

// Build folds a read trace into a Database.
func Build(source string, tr *kanata.Trace, opts ...BuildOption) (*Database, error) {
	return BuildEvents(source, tr.Events, tr.Strings, opts...)
}

// BuildEvents folds events, in order, into a Database. tab is the
// table the stage names were interned into; nil gets an empty table.
func BuildEvents(source string, events []kanata.Event, tab *intern.Table, opts ...BuildOption) (*Database, error) {
	var cfg buildConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if tab == nil {
		tab = intern.NewTable()
	}

	count, err := countInstructions(events)
	if err != nil {
		return nil, err
	}

	b := builder{
		cfg: cfg,
		db:  &Database{
			Source:       source,
			Strings:      tab,
			instructions: make([]Instruction, count),
		},
	}
	for i, ev := range events {
		if err := b.apply(i, ev); err != nil {
			return nil, err
		}
	}
	b.db.EndCycle = b.cycle
	return b.db, nil
}

// countInstructions returns one more than the largest Begin id.
func countInstructions(events []kanata.Event) (int, error) {
	var count uint64
	for _, ev := range events {
		begin, ok := ev.(kanata.Begin)
		if !ok {
			continue
		}
		if begin.ID >= MaxInstructions {
			return 0, fmt.Errorf("instruction id %d: %w (max %d)", begin.ID, ErrTooManyInstructions, MaxInstructions)
		}
		count = max(count, begin.ID+1)
	}
	return int(count), nil
}

type builder struct {
	cfg      buildConfig
	db       *Database
	cycle    uint64
	cycleSet bool
}

func (b *builder) apply(i int, ev kanata.Event) error {
	switch e := ev.(type) {
	case kanata.Cycle:
		return b.advance(i, e)

	case kanata.Begin:
		in, err := b.inst(i, ev, e.ID)
		if err != nil {
			return err
		}
		in.Valid = true
		in.StartCycle = b.cycle

	case kanata.Label:
		in, err := b.inst(i, ev, e.ID)
		if err != nil {
			return err
		}
		if e.Kind == kanata.LabelText {
			in.Label = e.Text
		}

	case kanata.StageStart:
		in, err := b.inst(i, ev, e.ID)
		if err != nil {
			return err
		}
		in.States = append(in.States, StageEvent{
			Cycle: b.cycle,
			Kind:  StageStart,
			Stage: e.Stage,
			Lane:  e.Lane,
		})

	case kanata.StageEnd:
		in, err := b.inst(i, ev, e.ID)
		if err != nil {
			return err
		}
		in.States = append(in.States, StageEvent{
			Cycle: b.cycle,
			Kind:  StageEnd,
			Stage: e.Stage,
			Lane:  e.Lane,
		})

	case kanata.Retire:
		in, err := b.inst(i, ev, e.ID)
		if err != nil {
			return err
		}
		in.States = append(in.States, StageEvent{
			Cycle: b.cycle,
			Kind:  StageRetire,
		})
		in.EndCycle = b.cycle
		if e.Flushed() {
			in.Flushed = true
		}

	case kanata.Dependency:
		// not modelled

	case nil:
		return fmt.Errorf("event %d: nil event", i)

	default:
		return fmt.Errorf("event %d: unsupported event %T", i, ev)
	}
	return nil
}

func (b *builder) advance(i int, c kanata.Cycle) error {
	if c.Absolute {
		if c.Value < b.cycle {
			return b.badCycle(&CycleError{Index: i, Event: c, From: b.cycle})
		}
		b.cycle = c.Value
		if !b.cycleSet {
			b.cycleSet = true
			b.db.StartCycle = c.Value
		}
		return nil
	}
	if c.Value > math.MaxUint64-b.cycle {
		return b.badCycle(&CycleError{Index: i, Event: c, From: b.cycle})
	}
	b.cycle += c.Value
	return nil
}

// badCycle fails in strict mode. In lenient mode the counter stays put so
// states keep their cycle order.
func (b *builder) badCycle(err *CycleError) error {
	if !b.cfg.lenient {
		return err
	}
	b.cfg.logger.Warn("ignoring cycle event", "error", err)
	return nil
}

func (b *builder) inst(i int, ev kanata.Event, id uint64) (*Instruction, error) {
	if id >= uint64(len(b.db.instructions)) {
		return nil, &IndexError{Index: i, Event: ev, ID: id, Count: len(b.db.instructions)}
	}
	return &b.db.instructions[id], nil
}
