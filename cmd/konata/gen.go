package main

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vito/konata/pkg/intern"
	"github.com/vito/konata/pkg/ioctx"
	"github.com/vito/konata/pkg/kanata"
)

// genOptions shape a synthetic trace.
type genOptions struct {
	Instructions int
	Width        int
	Stages       []string
	MaxLatency   int
	FlushRate    float64
	StartCycle   uint64
	Seed         uint64
}

func genCmd() *cobra.Command {
	opts := genOptions{
		Instructions: 1000,
		Width:        2,
		Stages:       []string{"F", "D", "R", "X", "W"},
		MaxLatency:   3,
		FlushRate:    0.05,
	}

	cmd := &cobra.Command{
		Use:   "gen [flags]",
		Short: "Write a synthetic pipeline trace to stdout",
		Long: `Simulate a simple in-order pipeline and print its trace. Each cycle up to
--width instructions begin; each stays in a stage for a random number of
cycles up to --max-latency. A fraction of instructions are flushed instead of
retired. The same seed always produces the same trace.`,
		Example: `  # Stress the viewer with a long trace
  konata gen --instructions 100000 > big.kanata
  konata big.kanata`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Instructions < 0 || opts.Width < 1 || opts.MaxLatency < 1 || len(opts.Stages) == 0 {
				return fmt.Errorf("gen: need instructions >= 0, width >= 1, max-latency >= 1 and at least one stage")
			}
			for _, s := range opts.Stages {
				if s == "" || strings.ContainsAny(s, "\t\n") {
					return fmt.Errorf("gen: bad stage name %q", s)
				}
			}
			return encodeTrace(ioctx.StdoutFromContext(cmd.Context()), generate(opts))
		},
	}

	cmd.Flags().IntVarP(&opts.Instructions, "instructions", "n", opts.Instructions, "Instructions to generate")
	cmd.Flags().IntVar(&opts.Width, "width", opts.Width, "Instructions begun per cycle")
	cmd.Flags().StringSliceVar(&opts.Stages, "stages", opts.Stages, "Pipeline stage names in order")
	cmd.Flags().IntVar(&opts.MaxLatency, "max-latency", opts.MaxLatency, "Longest stay in one stage, in cycles")
	cmd.Flags().Float64Var(&opts.FlushRate, "flush-rate", opts.FlushRate, "Fraction of instructions flushed")
	cmd.Flags().Uint64Var(&opts.StartCycle, "start", opts.StartCycle, "First cycle")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", opts.Seed, "Random seed")

	return cmd
}

type genInst struct {
	id    uint64
	stage int
	next  uint64
	flush bool
}

// generate simulates the pipeline cycle by cycle until every instruction
// has retired.
func generate(opts genOptions) []kanata.Event {
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	tab := intern.NewTable()
	stages := make([]intern.Symbol, len(opts.Stages))
	for i, name := range opts.Stages {
		stages[i] = tab.Intern(name)
	}
	latency := func() uint64 { return 1 + rng.Uint64N(uint64(opts.MaxLatency)) }

	events := []kanata.Event{kanata.Cycle{Absolute: true, Value: opts.StartCycle}}
	var (
		active  []*genInst
		begun   uint64
		retired uint64
	)
	for cycle := opts.StartCycle; begun < uint64(opts.Instructions) || len(active) > 0; cycle++ {
		if cycle > opts.StartCycle {
			events = append(events, kanata.Cycle{Value: 1})
		}

		kept := active[:0]
		for _, in := range active {
			if in.next > cycle {
				kept = append(kept, in)
				continue
			}
			events = append(events, kanata.StageEnd{ID: in.id, Stage: stages[in.stage]})
			in.stage++
			if in.stage == len(stages) || (in.flush && in.stage == len(stages)/2+1) {
				kind := kanata.RetireNormal
				if in.flush {
					kind = kanata.RetireFlush
				}
				events = append(events, kanata.Retire{ID: in.id, RetireID: retired, Kind: kind})
				retired++
				continue
			}
			events = append(events, kanata.StageStart{ID: in.id, Stage: stages[in.stage]})
			in.next = cycle + latency()
			kept = append(kept, in)
		}
		active = kept

		for range opts.Width {
			if begun == uint64(opts.Instructions) {
				break
			}
			in := &genInst{
				id:    begun,
				next:  cycle + latency(),
				flush: rng.Float64() < opts.FlushRate,
			}
			begun++
			events = append(events,
				kanata.Begin{ID: in.id, SimID: in.id},
				kanata.Label{ID: in.id, Kind: kanata.LabelText, Text: fmt.Sprintf("op%d", in.id)},
				kanata.StageStart{ID: in.id, Stage: stages[0]},
			)
			active = append(active, in)
		}
	}
	return events
}

func encodeTrace(w io.Writer, events []kanata.Event) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(kanata.Header)
	bw.WriteByte('\n')
	buf := make([]byte, 0, 64)
	for _, ev := range events {
		buf = kanata.AppendEvent(buf[:0], ev)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}
