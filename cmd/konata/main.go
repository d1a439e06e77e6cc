package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/vito/konata/pkg/config"
	"github.com/vito/konata/pkg/ioctx"
)

var (
	version = "v0.1.0"
	commit  = "dev"
)

// Flags holds the command line settings. Flags that were set explicitly
// override the config file.
type Flags struct {
	Config      string
	Debug       bool
	Lenient     bool
	LogFile     string
	RenderStats string
}

func main() {
	ctx := context.Background()
	ctx = ioctx.StdoutToContext(ctx, os.Stdout)
	ctx = ioctx.StderrToContext(ctx, os.Stderr)
	if err := fang.Execute(ctx, newRootCmd(),
		fang.WithVersion(version),
		fang.WithCommit(commit),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			_, _ = fmt.Fprintln(w, err.Error())
		}),
	); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags Flags

	rootCmd := &cobra.Command{
		Use:   "konata [flags] <trace>",
		Short: "Terminal viewer for Kanata pipeline traces",
		Long: `konata shows a Kanata (version 0004) processor pipeline trace as an
instruction by cycle grid. Each row is one instruction, each cell one cycle,
coloured by the pipeline stage the instruction occupies.

Keys: arrows or h/j/k/l move, space and page up/down scroll a page,
home/end jump, F2, q or ctrl+c quit.`,
		Example: `  # View a trace
  konata trace.kanata

  # Skip malformed lines instead of failing
  konata --lenient trace.kanata

  # Log key handling to a file
  konata -d --log-file konata.log trace.kanata`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, cleanup, err := setup(cmd, &flags, true)
			if err != nil {
				return err
			}
			defer cleanup()
			return runView(ctx, args[0], cfg, flags.RenderStats)
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.Config, "config", "", "Config file (default: nearest "+config.FileName+", then the user config)")
	rootCmd.PersistentFlags().BoolVarP(&flags.Debug, "debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flags.Lenient, "lenient", false, "Skip malformed trace lines instead of failing")
	rootCmd.PersistentFlags().StringVar(&flags.LogFile, "log-file", "", "Write logs to this file")
	rootCmd.Flags().StringVar(&flags.RenderStats, "render-stats", "", "Append per-frame render statistics as JSON lines to this file")

	rootCmd.AddCommand(dumpCmd(&flags))
	rootCmd.AddCommand(checkCmd(&flags))
	rootCmd.AddCommand(genCmd())

	return rootCmd
}

// settings resolves the config file and applies explicitly set flags on
// top of it.
func settings(cmd *cobra.Command, flags *Flags) (config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.Config{}, err
	}
	_, cfg, err := config.Resolve(flags.Config, cwd)
	if err != nil {
		return config.Config{}, err
	}

	if cmd.Flags().Changed("lenient") {
		cfg.Lenient = flags.Lenient
	}
	if flags.Debug {
		cfg.Log.Level = "debug"
	}
	if cmd.Flags().Changed("log-file") {
		cfg.Log.File = flags.LogFile
	}
	return cfg, nil
}

// setup resolves settings and installs the command's logger into its
// context.
func setup(cmd *cobra.Command, flags *Flags, interactive bool) (context.Context, config.Config, func(), error) {
	ctx := cmd.Context()
	cfg, err := settings(cmd, flags)
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	logger, cleanup, err := newLogger(ctx, cfg, interactive)
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	ctx = ioctx.LoggerToContext(ctx, logger)
	return ctx, cfg, cleanup, nil
}
