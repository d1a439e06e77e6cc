package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vito/konata/pkg/config"
	"github.com/vito/konata/pkg/ioctx"
	"github.com/vito/konata/pkg/kanata"
	"github.com/vito/konata/pkg/timeline"
)

func checkCmd(flags *Flags) *cobra.Command {
	var jobs int

	cmd := &cobra.Command{
		Use:   "check [flags] <trace>...",
		Short: "Validate traces without opening the viewer",
		Long: `Read every trace, re-encode its events and read them back, then fold
them into instructions. Each file is reported on its own line; the command
fails if any file does.`,
		Example: `  # Validate a directory of traces
  konata check traces/*.kanata`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, cleanup, err := setup(cmd, flags, false)
			if err != nil {
				return err
			}
			defer cleanup()
			return runCheck(ctx, ioctx.StdoutFromContext(ctx), args, cfg, jobs)
		},
	}

	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.GOMAXPROCS(0), "Files to check at once")

	return cmd
}

type checkResult struct {
	Lines   int
	Events  int
	Skipped int
	Stats   timeline.Stats
}

func runCheck(ctx context.Context, w io.Writer, paths []string, cfg config.Config, jobs int) error {
	results := make([]checkResult, len(paths))
	errs := make([]error, len(paths))

	eg := new(errgroup.Group)
	eg.SetLimit(max(jobs, 1))
	for i, path := range paths {
		eg.Go(func() error {
			results[i], errs[i] = checkFile(ctx, path, cfg)
			return nil
		})
	}
	_ = eg.Wait()

	var failed *multierror.Error
	for i, path := range paths {
		if errs[i] != nil {
			fmt.Fprintf(w, "FAIL %s: %v\n", path, errs[i])
			failed = multierror.Append(failed, errs[i])
			continue
		}
		res := results[i]
		fmt.Fprintf(w, "ok   %s: %d lines, %d events, %d instructions (%d retired, %d flushed), %d stages",
			path, res.Lines, res.Events,
			res.Stats.Instructions, res.Stats.Retired, res.Stats.Flushed, res.Stats.Stages)
		if res.Skipped > 0 {
			fmt.Fprintf(w, ", %d skipped", res.Skipped)
		}
		fmt.Fprintln(w)
	}
	return failed.ErrorOrNil()
}

// checkFile reads path, round trips every event through the encoder and
// builds the timeline.
func checkFile(ctx context.Context, path string, cfg config.Config) (checkResult, error) {
	var res checkResult

	logger := ioctx.LoggerFromContext(ctx)
	opts := append(cfg.ReadOptions(), kanata.WithLogger(logger))
	tr, err := kanata.ReadFile(ctx, path, opts...)
	if err != nil {
		return res, err
	}
	res.Lines = tr.Lines
	res.Events = len(tr.Events)
	if tr.Skipped != nil {
		res.Skipped = len(tr.Skipped.Errors)
	}

	var buf bytes.Buffer
	buf.WriteString(kanata.Header)
	buf.WriteByte('\n')
	for _, ev := range tr.Events {
		buf.WriteString(kanata.Encode(ev))
		buf.WriteByte('\n')
	}
	back, err := kanata.Read(ctx, bytes.NewReader(buf.Bytes()), kanata.WithLogger(logger))
	if err != nil {
		return res, fmt.Errorf("%s: re-encoded trace: %w", path, err)
	}
	if len(back.Events) != len(tr.Events) {
		return res, fmt.Errorf("%s: re-encoded trace has %d events, want %d", path, len(back.Events), len(tr.Events))
	}
	for i, ev := range tr.Events {
		if got, want := kanata.Encode(back.Events[i]), kanata.Encode(ev); got != want {
			return res, fmt.Errorf("%s: event %d re-encoded as %q, want %q", path, i, got, want)
		}
	}

	db, err := timeline.Build(path, tr, timeline.WithLenient(cfg.Lenient), timeline.WithLogger(logger))
	if err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}
	res.Stats = db.Stats()
	logger.DebugContext(ctx, "checked trace", "path", path, "events", res.Events)
	return res, nil
}
