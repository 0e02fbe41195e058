package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/statement-agent/constants"
	"github.com/joseph-ayodele/statement-agent/internal/common"
	"github.com/joseph-ayodele/statement-agent/internal/entity"
	"github.com/joseph-ayodele/statement-agent/internal/export"
)

type historyOptions struct {
	target string
	limit  int
	xlsx   string
	check  bool
}

func newHistoryCmd(g *globalOptions) *cobra.Command {
	var o historyOptions
	cmd := &cobra.Command{
		Use:   "history [--target <bank>]",
		Short: "List recent runs and optionally export them with every attempt to XLSX",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return history(cmd, g, o)
		},
	}
	cmd.Flags().StringVarP(&o.target, "target", "t", "", "only runs for this bank")
	cmd.Flags().IntVarP(&o.limit, "limit", "n", 20, "number of runs to show")
	cmd.Flags().StringVar(&o.xlsx, "xlsx", "", "write runs and attempts to this XLSX file")
	cmd.Flags().BoolVar(&o.check, "check", false, "ping the history database before listing")
	return cmd
}

func history(cmd *cobra.Command, g *globalOptions, o historyOptions) error {
	bank := constants.NormalizeBank(o.target)
	v := common.NewValidator().Field("limit", o.limit, positive)
	if bank != "" {
		v.Field("target", bank, common.BankIdentifier, common.MaxLength(64))
	}
	if err := common.ValidateAndReturnError(v); err != nil {
		return err
	}

	a, err := g.setup(cmd, nil)
	if err != nil {
		return err
	}
	if a.cfg.History.DSN == "" {
		return common.NewAppError("CONFIG_ERROR", "history is disabled (history.dsn is empty)", common.ErrInvalidInput)
	}

	ctx := cmd.Context()
	store, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	defer store.close(a.logger)

	if o.check {
		if err := store.db.HealthCheck(ctx, 2*time.Second); err != nil {
			return fmt.Errorf("history database health: %w", err)
		}
		fmt.Fprintf(a.out, "history database OK (%s)\n", store.db.Dialect)
	}

	list, err := store.runs.ListRuns(ctx, bank, o.limit)
	if err != nil {
		return err
	}
	printRuns(a, list)

	if o.xlsx == "" {
		return nil
	}
	b, err := export.NewService(store.runs, a.logger).ExportHistoryXLSX(ctx, bank, o.limit)
	if err != nil {
		return err
	}
	if err := os.WriteFile(o.xlsx, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", o.xlsx, err)
	}
	fmt.Fprintf(a.out, "wrote %s\n", o.xlsx)
	return nil
}

func positive(field string, value interface{}) *common.ValidationError {
	if n, ok := value.(int); ok && n < 1 {
		return &common.ValidationError{Field: field, Value: value, Message: "must be >= 1"}
	}
	return nil
}

func printRuns(a *app, runs []*entity.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(a.out, "no runs recorded")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tBANK\tSTATUS\tATTEMPTS\tMODEL\tRUN ID")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Bank, statusText(r.Status),
			r.Attempts, r.MaxAttempts, r.Model, r.ID)
	}
	_ = tw.Flush()
}

func statusText(s constants.RunStatus) string {
	switch s {
	case constants.RunStatusSuccess:
		return color.GreenString(string(s))
	case constants.RunStatusExhausted, constants.RunStatusAborted:
		return color.RedString(string(s))
	default:
		return color.YellowString(string(s))
	}
}
