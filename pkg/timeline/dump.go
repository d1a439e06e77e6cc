package timeline

import (
	"bufio"
	"fmt"
	"io"
)

// Dump writes a text listing of db: a summary line, then every
// instruction with its states.
//
//	2 instructions in cycles [216:217] <trace.kanata>
//	[216:217]               addi r1:
//	---> 00000216: .S [F]
//	---> 00000217: .R [ ]
func (db *Database) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d instructions in cycles [%d:%d] <%s>\n", db.Len(), db.StartCycle, db.EndCycle, db.Source)
	for _, in := range db.Instructions() {
		fmt.Fprintf(bw, "[%d:%d] %20s:", in.StartCycle, in.EndCycle, in.Label)
		switch {
		case !in.Valid:
			bw.WriteString(" not begun")
		case in.Flushed:
			bw.WriteString(" flushed")
		}
		bw.WriteByte('\n')
		for _, s := range in.States {
			stage := s.Stage.String()
			if s.Kind == StageRetire {
				stage = " "
			}
			fmt.Fprintf(bw, "---> %08d: .%s [%s]\n", s.Cycle, s.Kind, stage)
		}
	}
	return bw.Flush()
}
