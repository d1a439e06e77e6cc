package timeline

import (
	"errors"
	"fmt"

	"github.com/vito/konata/pkg/kanata"
)

// ErrTooManyInstructions is returned when the largest begun id would need
// more than MaxInstructions slots.
var ErrTooManyInstructions = errors.New("too many instructions")

// IndexError reports an event naming an instruction id outside the range
// established by the Begin events.
type IndexError struct {
	// Index is the position of Event in the event list.
	Index int
	Event kanata.Event
	ID    uint64
	Count int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("event %d (%s): instruction %d out of range [0, %d)", e.Index, e.Event, e.ID, e.Count)
}

// CycleError reports a cycle event that would move the counter backwards
// or past the largest cycle.
type CycleError struct {
	Index int
	Event kanata.Event
	From  uint64
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("event %d (%s): cycle counter cannot move from %d", e.Index, e.Event, e.From)
}
