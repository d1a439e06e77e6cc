// Package timeline folds a decoded trace into a per-instruction database
// addressed by dense instruction id.
package timeline

import (
	"iter"

	"github.com/vito/konata/pkg/intern"
)

// StageKind says what a StageEvent records.
type StageKind uint8

const (
	StageStart StageKind = iota
	StageEnd
	StageRetire
)

func (k StageKind) String() string {
	switch k {
	case StageStart:
		return "S"
	case StageEnd:
		return "E"
	case StageRetire:
		return "R"
	default:
		return "?"
	}
}

// StageEvent is one entry in an instruction's state list. Retire entries
// have a zero Stage.
type StageEvent struct {
	Cycle uint64
	Kind  StageKind
	Stage intern.Symbol
	Lane  uint64
}

// Instruction is the folded history of one instruction id.
type Instruction struct {
	// Valid is false for ids that were never begun.
	Valid bool

	StartCycle uint64
	EndCycle   uint64
	Flushed    bool
	Label      string

	// States are in non-decreasing cycle order.
	States []StageEvent
}

// Retired reports whether the instruction has a retire entry.
func (in *Instruction) Retired() bool {
	n := len(in.States)
	return n > 0 && in.States[n-1].Kind == StageRetire
}

// Database is the immutable result of Build.
type Database struct {
	// Source names the trace, usually its path.
	Source string

	// StartCycle is the value of the first absolute cycle event, and
	// EndCycle the counter after the last event.
	StartCycle uint64
	EndCycle   uint64

	// Strings owns every stage name referenced by the database.
	Strings *intern.Table

	instructions []Instruction
}

// Len returns the instruction count, one more than the largest begun id.
func (db *Database) Len() int { return len(db.instructions) }

// At returns instruction id, or nil when id is out of range.
func (db *Database) At(id int) *Instruction {
	if id < 0 || id >= len(db.instructions) {
		return nil
	}
	return &db.instructions[id]
}

// Instructions iterates over every instruction in id order, including
// ones that were never begun.
func (db *Database) Instructions() iter.Seq2[int, *Instruction] {
	return func(yield func(int, *Instruction) bool) {
		for i := range db.instructions {
			if !yield(i, &db.instructions[i]) {
				return
			}
		}
	}
}

// Stats summarizes a Database.
type Stats struct {
	Instructions int
	Valid        int
	Retired      int
	Flushed      int
	StageEvents  int
	Stages       int
}

// Stats counts instructions and states.
func (db *Database) Stats() Stats {
	st := Stats{Instructions: len(db.instructions)}
	stages := map[intern.Symbol]struct{}{}
	for _, in := range db.Instructions() {
		if in.Valid {
			st.Valid++
		}
		if in.Retired() {
			st.Retired++
		}
		if in.Flushed {
			st.Flushed++
		}
		st.StageEvents += len(in.States)
		for _, s := range in.States {
			if !s.Stage.IsZero() {
				stages[s.Stage] = struct{}{}
			}
		}
	}
	st.Stages = len(stages)
	return st
}
