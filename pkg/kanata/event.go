// Package kanata reads pipeline traces in the Kanata log format.
//
// A trace is a header line followed by one tab-separated event per line:
//
//	Kanata	0004
//	C=	216			set the cycle counter
//	I	0	0	0		begin instruction 0
//	L	0	0	addi r1, r1, 1	label instruction 0
//	S	0	0	F		instruction 0 enters stage F
//	C	1			advance one cycle
//	E	0	0	F		instruction 0 leaves stage F
//	R	0	0	0		retire instruction 0 (1 = flush)
//	W	1	0	0		instruction 1 depends on 0
package kanata

import (
	"github.com/vito/konata/pkg/intern"
)

// Header is the exact first line of a supported trace.
const Header = "Kanata\t0004"

// Tag identifies the kind of an event line.
type Tag string

const (
	TagCycle      Tag = "C"
	TagCycleSet   Tag = "C="
	TagBegin      Tag = "I"
	TagLabel      Tag = "L"
	TagStageStart Tag = "S"
	TagStageEnd   Tag = "E"
	TagRetire     Tag = "R"
	TagDependency Tag = "W"
)

// Event is one decoded trace line. The concrete types are Cycle, Begin,
// Label, StageStart, StageEnd, Retire and Dependency.
type Event interface {
	Tag() Tag
	String() string

	event()
}

// Cycle advances the running cycle counter by Value, or sets it to Value
// when Absolute is true.
type Cycle struct {
	Absolute bool
	Value    uint64
}

// Begin starts the instruction with file-unique id ID.
type Begin struct {
	ID       uint64
	SimID    uint64
	ThreadID uint64
}

// LabelText is the label kind that sets an instruction's display text.
const LabelText uint8 = 0

// Label attaches free-form text to an instruction.
type Label struct {
	ID   uint64
	Kind uint8
	Text string
}

// StageStart records an instruction entering a pipeline stage.
type StageStart struct {
	ID    uint64
	Lane  uint64
	Stage intern.Symbol
}

// StageEnd records an instruction leaving a pipeline stage.
type StageEnd struct {
	ID    uint64
	Lane  uint64
	Stage intern.Symbol
}

// RetireKind tells a committed instruction from a flushed one.
type RetireKind uint8

const (
	RetireNormal RetireKind = 0
	RetireFlush  RetireKind = 1
)

// Retire ends the event stream of an instruction.
type Retire struct {
	ID       uint64
	RetireID uint64
	Kind     RetireKind
}

// Flushed reports whether the instruction was discarded.
func (r Retire) Flushed() bool { return r.Kind == RetireFlush }

// Dependency records that Consumer waits on Producer. The timeline does not
// model dependencies; they are decoded so that a trace round-trips.
type Dependency struct {
	Consumer uint64
	Producer uint64
	Kind     uint8
}

func (e Cycle) Tag() Tag {
	if e.Absolute {
		return TagCycleSet
	}
	return TagCycle
}
func (Begin) Tag() Tag      { return TagBegin }
func (Label) Tag() Tag      { return TagLabel }
func (StageStart) Tag() Tag { return TagStageStart }
func (StageEnd) Tag() Tag   { return TagStageEnd }
func (Retire) Tag() Tag     { return TagRetire }
func (Dependency) Tag() Tag { return TagDependency }

func (e Cycle) String() string      { return Encode(e) }
func (e Begin) String() string      { return Encode(e) }
func (e Label) String() string      { return Encode(e) }
func (e StageStart) String() string { return Encode(e) }
func (e StageEnd) String() string   { return Encode(e) }
func (e Retire) String() string     { return Encode(e) }
func (e Dependency) String() string { return Encode(e) }

func (Cycle) event()      {}
func (Begin) event()      {}
func (Label) event()      {}
func (StageStart) event() {}
func (StageEnd) event()   {}
func (Retire) event()     {}
func (Dependency) event() {}
