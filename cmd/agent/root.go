package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/statement-agent/internal/common"
	"github.com/joseph-ayodele/statement-agent/internal/repository"
)

type globalOptions struct {
	configPath string
	verbose    bool
	noColor    bool
}

// app is the per-invocation state shared by subcommands.
type app struct {
	cfg    *common.Config
	logger *slog.Logger
	out    io.Writer
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	var o runOptions

	root := &cobra.Command{
		Use:   "agent",
		Short: "Generate and self-correct bank statement parsers",
		Long: `agent writes a Go program that turns a bank's statement PDF into the CSV found next
to it under data/<bank>/, builds and runs it in isolation, and feeds any difference back to
the model until the output matches or the attempt budget is spent.

Running "agent --target icici" is the same as "agent run --target icici".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError("unexpected argument %q", args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.target == "" {
				_ = cmd.Help()
				return usageError("--target is required")
			}
			return runAgent(cmd, g, o)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &exitError{code: exitUsage, err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "YAML config file (default agent.yaml when present)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")
	pf.BoolVar(&g.noColor, "no-color", false, "disable colored output")
	o.bind(root)

	root.AddCommand(newRunCmd(g), newVerifyCmd(g), newHistoryCmd(g))
	return root
}

// setup loads and validates configuration, applying override before validation, and
// installs the process logger.
func (g *globalOptions) setup(cmd *cobra.Command, override func(*common.Config)) (*app, error) {
	cfg, err := common.LoadConfig(g.configPath)
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if g.noColor || cfg.Log.NoColor {
		color.NoColor = true
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Log.Level, g.verbose)
	slog.SetDefault(logger)
	return &app{cfg: cfg, logger: logger, out: cmd.OutOrStdout()}, nil
}

func newLogger(w io.Writer, level string, verbose bool) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// historyStore is an open history database. It is nil when history is disabled.
type historyStore struct {
	db   *repository.DB
	runs repository.RunRepository
}

func (a *app) openHistory(ctx context.Context) (*historyStore, error) {
	if a.cfg.History.DSN == "" {
		return nil, nil
	}
	db, err := repository.Open(ctx, repository.Config{DSN: a.cfg.History.DSN}, a.logger)
	if err != nil {
		return nil, err
	}
	return &historyStore{db: db, runs: repository.NewRunRepository(db, a.logger)}, nil
}

func (h *historyStore) close(logger *slog.Logger) {
	h.db.Close(logger)
}
