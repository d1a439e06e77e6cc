package main

import (
	"context"
	"io"

	"github.com/kr/pretty"
	"github.com/spf13/cobra"

	"github.com/vito/konata/pkg/config"
	"github.com/vito/konata/pkg/ioctx"
	"github.com/vito/konata/pkg/timeline"
)

func dumpCmd(flags *Flags) *cobra.Command {
	var goSyntax bool

	cmd := &cobra.Command{
		Use:   "dump [flags] <trace>",
		Short: "Print the instructions of a trace as text",
		Long: `Print a summary line for the trace, then every instruction with its
cycle span, label and stage transitions.

With --go the database is printed as Go values instead.`,
		Example: `  # List instructions and their stages
  konata dump trace.kanata

  # Inspect the folded structures
  konata dump --go trace.kanata`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, cleanup, err := setup(cmd, flags, false)
			if err != nil {
				return err
			}
			defer cleanup()
			return runDump(ctx, ioctx.StdoutFromContext(ctx), args[0], cfg, goSyntax)
		},
	}

	cmd.Flags().BoolVar(&goSyntax, "go", false, "Print Go values instead of the text listing")

	return cmd
}

// goStage is a state with its stage name resolved, for --go output.
type goStage struct {
	Cycle uint64
	Kind  string
	Stage string
	Lane  uint64
}

type goInstruction struct {
	ID         int
	Label      string
	StartCycle uint64
	EndCycle   uint64
	Valid      bool
	Flushed    bool
	States     []goStage
}

func runDump(ctx context.Context, w io.Writer, path string, cfg config.Config, goSyntax bool) error {
	db, err := loadDatabase(ctx, path, cfg)
	if err != nil {
		return err
	}
	if !goSyntax {
		return db.Dump(w)
	}

	if _, err := pretty.Fprintf(w, "%# v\n", db.Stats()); err != nil {
		return err
	}
	for id, in := range db.Instructions() {
		if _, err := pretty.Fprintf(w, "%# v\n", goValue(id, in)); err != nil {
			return err
		}
	}
	return nil
}

func goValue(id int, in *timeline.Instruction) goInstruction {
	out := goInstruction{
		ID:         id,
		Label:      in.Label,
		StartCycle: in.StartCycle,
		EndCycle:   in.EndCycle,
		Valid:      in.Valid,
		Flushed:    in.Flushed,
	}
	for _, s := range in.States {
		out.States = append(out.States, goStage{
			Cycle: s.Cycle,
			Kind:  s.Kind.String(),
			Stage: s.Stage.String(),
			Lane:  s.Lane,
		})
	}
	return out
}
