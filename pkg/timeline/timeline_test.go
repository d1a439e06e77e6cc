package timeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/golden"

	"github.com/vito/konata/pkg/intern"
	"github.com/vito/konata/pkg/kanata"
)

func build(t *testing.T, lines ...string) (*Database, error) {
	t.Helper()
	return buildWith(t, nil, lines...)
}

func buildWith(t *testing.T, opts []BuildOption, lines ...string) (*Database, error) {
	t.Helper()
	src := kanata.Header + "\n" + strings.Join(lines, "\n") + "\n"
	tr, err := kanata.Read(context.Background(), strings.NewReader(src))
	require.NoError(t, err)
	return Build("test.kanata", tr, opts...)
}

func mustBuild(t *testing.T, lines ...string) *Database {
	t.Helper()
	db, err := build(t, lines...)
	require.NoError(t, err)
	return db
}

func TestBuildSingleInstruction(t *testing.T) {
	db := mustBuild(t,
		"C=\t216",
		"I\t0\t0\t0",
		"S\t0\t0\tF",
		"C\t1",
		"S\t0\t0\tX",
		"R\t0\t0\t0",
	)

	assert.Equal(t, "test.kanata", db.Source)
	assert.Equal(t, uint64(216), db.StartCycle)
	assert.Equal(t, uint64(217), db.EndCycle)
	require.Equal(t, 1, db.Len())

	in := db.At(0)
	require.NotNil(t, in)
	assert.True(t, in.Valid)
	assert.False(t, in.Flushed)
	assert.True(t, in.Retired())
	assert.Equal(t, uint64(216), in.StartCycle)
	assert.Equal(t, uint64(217), in.EndCycle)

	require.Len(t, in.States, 3)
	assert.Equal(t, StageStart, in.States[0].Kind)
	assert.Equal(t, "F", in.States[0].Stage.String())
	assert.Equal(t, uint64(216), in.States[0].Cycle)
	assert.Equal(t, StageStart, in.States[1].Kind)
	assert.Equal(t, "X", in.States[1].Stage.String())
	assert.Equal(t, uint64(217), in.States[1].Cycle)
	assert.Equal(t, StageEvent{Cycle: 217, Kind: StageRetire}, in.States[2])
}

func TestBuildFlushed(t *testing.T) {
	db := mustBuild(t,
		"I\t0\t0\t0",
		"I\t1\t0\t0",
		"C\t3",
		"R\t0\t0\t0",
		"R\t1\t0\t1",
	)
	assert.False(t, db.At(0).Flushed)
	assert.True(t, db.At(1).Flushed)
	assert.Equal(t, uint64(3), db.At(1).EndCycle)
}

func TestBuildInstructionCount(t *testing.T) {
	db := mustBuild(t,
		"I\t3\t0\t0",
		"I\t1\t0\t0",
	)
	require.Equal(t, 4, db.Len())

	var valid []int
	for id, in := range db.Instructions() {
		if in.Valid {
			valid = append(valid, id)
		}
	}
	assert.Equal(t, []int{1, 3}, valid)
	assert.Nil(t, db.At(4))
	assert.Nil(t, db.At(-1))
}

func TestBuildEmpty(t *testing.T) {
	db, err := BuildEvents("empty", nil, nil)
	require.NoError(t, err)
	assert.Zero(t, db.Len())
	assert.Zero(t, db.StartCycle)
	assert.Zero(t, db.EndCycle)
	assert.NotNil(t, db.Strings)
}

func TestBuildLabels(t *testing.T) {
	db := mustBuild(t,
		"I\t0\t0\t0",
		"L\t0\t0\tfirst",
		"L\t0\t1\ttooltip text",
		"L\t0\t0\tsecond",
	)
	assert.Equal(t, "second", db.At(0).Label)
}

func TestBuildStartCycleIsFirstAbsolute(t *testing.T) {
	db := mustBuild(t,
		"C\t4",
		"C=\t10",
		"I\t0\t0\t0",
		"C=\t20",
		"C\t2",
	)
	assert.Equal(t, uint64(10), db.StartCycle)
	assert.Equal(t, uint64(22), db.EndCycle)
	assert.Equal(t, uint64(10), db.At(0).StartCycle)
}

func TestBuildStatesAreOrdered(t *testing.T) {
	db := mustBuild(t,
		"C=\t100",
		"I\t0\t0\t0",
		"I\t1\t0\t0",
		"S\t0\t0\tF",
		"S\t1\t0\tF",
		"C\t1",
		"E\t0\t0\tF",
		"S\t0\t0\tD",
		"C\t1",
		"C=\t105",
		"E\t1\t0\tF",
		"R\t1\t0\t1",
		"C\t7",
		"R\t0\t0\t0",
	)
	for id, in := range db.Instructions() {
		for i := 1; i < len(in.States); i++ {
			assert.LessOrEqual(t, in.States[i-1].Cycle, in.States[i].Cycle, "instruction %d state %d", id, i)
		}
		for _, s := range in.States {
			assert.GreaterOrEqual(t, s.Cycle, db.StartCycle)
			assert.LessOrEqual(t, s.Cycle, db.EndCycle)
		}
	}
}

func TestBuildStageIdentity(t *testing.T) {
	db := mustBuild(t,
		"I\t0\t0\t0",
		"I\t1\t0\t0",
		"S\t0\t0\tExecute",
		"S\t1\t2\tExecute",
	)
	a, b := db.At(0).States[0], db.At(1).States[0]
	assert.True(t, a.Stage == b.Stage)
	assert.Equal(t, uint64(2), b.Lane)

	sym, ok := db.Strings.Lookup("Execute")
	require.True(t, ok)
	assert.True(t, sym == a.Stage)
}

func TestBuildIndexError(t *testing.T) {
	for _, line := range []string{
		"L\t2\t0\tx",
		"S\t2\t0\tF",
		"E\t5\t0\tF",
		"R\t2\t0\t0",
	} {
		t.Run(line, func(t *testing.T) {
			_, err := build(t, "I\t0\t0\t0", "I\t1\t0\t0", line)
			require.Error(t, err)

			var ie *IndexError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, 2, ie.Index)
			assert.Equal(t, 2, ie.Count)
			assert.Equal(t, line, ie.Event.String())
		})
	}
}

func TestBuildIndexErrorWithoutBegin(t *testing.T) {
	_, err := build(t, "S\t0\t0\tF")

	var ie *IndexError
	require.True(t, errors.As(err, &ie))
	assert.Zero(t, ie.Count)
	assert.Equal(t, uint64(0), ie.ID)
}

func TestBuildDependenciesIgnored(t *testing.T) {
	db := mustBuild(t, "I\t0\t0\t0", "W\t7\t9\t0")
	assert.Equal(t, 1, db.Len())
	assert.Empty(t, db.At(0).States)
}

func TestBuildCycleBackwards(t *testing.T) {
	_, err := build(t, "C=\t10", "C\t5", "C=\t12")

	var ce *CycleError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 2, ce.Index)
	assert.Equal(t, uint64(15), ce.From)
	assert.Contains(t, err.Error(), "C=\t12")
}

func TestBuildCycleOverflow(t *testing.T) {
	_, err := build(t, "C=\t18446744073709551615", "C\t1")

	var ce *CycleError
	assert.True(t, errors.As(err, &ce))
}

func TestBuildLenientKeepsCycle(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	db, err := buildWith(t, []BuildOption{WithLenient(true), WithLogger(logger)},
		"C=\t10",
		"I\t0\t0\t0",
		"S\t0\t0\tF",
		"C=\t5",
		"S\t0\t0\tX",
		"C\t2",
		"R\t0\t0\t0",
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), db.StartCycle)
	assert.Equal(t, uint64(12), db.EndCycle)

	in := db.At(0)
	require.Len(t, in.States, 3)
	assert.Equal(t, uint64(10), in.States[0].Cycle)
	assert.Equal(t, uint64(10), in.States[1].Cycle)
	assert.Equal(t, uint64(12), in.States[2].Cycle)

	assert.Contains(t, logs.String(), "ignoring cycle event")
	assert.Contains(t, logs.String(), "cycle counter cannot move from 10")
}

func TestBuildLenientSaturates(t *testing.T) {
	db, err := buildWith(t, []BuildOption{WithLenient(true), WithLogger(slog.New(slog.DiscardHandler))},
		"C=\t18446744073709551615", "I\t0\t0\t0", "C\t1", "S\t0\t0\tF")
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), db.At(0).States[0].Cycle)
}

func TestBuildStrictByDefault(t *testing.T) {
	_, err := buildWith(t, []BuildOption{WithLenient(false)}, "C=\t10", "C=\t5")
	var ce *CycleError
	assert.True(t, errors.As(err, &ce))
}

func TestBuildTooManyInstructions(t *testing.T) {
	_, err := build(t, "I\t67108864\t0\t0")
	assert.ErrorIs(t, err, ErrTooManyInstructions)
}

func TestBuildNilEvent(t *testing.T) {
	_, err := BuildEvents("nil", []kanata.Event{kanata.Cycle{Value: 1}, nil}, intern.NewTable())
	assert.ErrorContains(t, err, "event 1: nil event")
}

func TestStats(t *testing.T) {
	db := mustBuild(t,
		"I\t0\t0\t0",
		"I\t2\t0\t0",
		"S\t0\t0\tF",
		"S\t2\t0\tF",
		"C\t1",
		"S\t0\t0\tD",
		"R\t0\t0\t0",
		"R\t2\t0\t1",
	)
	assert.Equal(t, Stats{
		Instructions: 3,
		Valid:        2,
		Retired:      2,
		Flushed:      1,
		StageEvents:  5,
		Stages:       2,
	}, db.Stats())
}

func TestDump(t *testing.T) {
	src := strings.Join([]string{
		kanata.Header,
		"C=\t216",
		"I\t0\t0\t0",
		"L\t0\t0\taddi r1, r1, 1",
		"S\t0\t0\tF",
		"I\t2\t0\t0",
		"L\t2\t0\tbne r1, r0",
		"S\t2\t0\tF",
		"C\t1",
		"E\t0\t0\tF",
		"S\t0\t0\tX",
		"S\t2\t0\tD",
		"R\t2\t1\t1",
		"C\t2",
		"R\t0\t0\t0",
	}, "\n") + "\n"
	tr, err := kanata.Read(context.Background(), strings.NewReader(src))
	require.NoError(t, err)
	db, err := Build("dump.kanata", tr)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, db.Dump(&buf))
	golden.Assert(t, buf.String(), "dump.golden")
}

func TestStageKindString(t *testing.T) {
	assert.Equal(t, "S", StageStart.String())
	assert.Equal(t, "E", StageEnd.String())
	assert.Equal(t, "R", StageRetire.String())
	assert.Equal(t, "?", StageKind(9).String())
}
