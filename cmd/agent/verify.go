package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/statement-agent/constants"
	"github.com/joseph-ayodele/statement-agent/internal/agent"
	"github.com/joseph-ayodele/statement-agent/internal/common"
	"github.com/joseph-ayodele/statement-agent/internal/sandbox"
	"github.com/joseph-ayodele/statement-agent/internal/table"
)

func newVerifyCmd(g *globalOptions) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "verify --target <bank>",
		Short: "Re-check the generated parser for a bank against its sample CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if target == "" {
				return usageError("--target is required")
			}
			return verify(cmd, g, target)
		},
	}
	cmd.Flags().StringVarP(&target, "target", "t", "", "bank identifier, e.g. icici")
	return cmd
}

func verify(cmd *cobra.Command, g *globalOptions, bank string) error {
	a, err := g.setup(cmd, nil)
	if err != nil {
		return err
	}
	target, err := agent.ResolveTarget(bank, a.cfg.Agent.DataDir, a.cfg.Agent.ParserDir)
	if err != nil {
		return err
	}
	expected, err := table.LoadFile(target.CSVPath)
	if err != nil {
		return common.NewAppError("SAMPLE_INVALID", "read expected csv", errors.Join(common.ErrInvalidInput, err))
	}

	ev, err := a.newEvaluator(sandbox.NewExecRunner(a.logger))
	if err != nil {
		return err
	}
	if err := ev.Evaluate(cmd.Context(), target.ParserPath, target.PDFPath, expected); err != nil {
		kind := agent.Classify(err)
		if kind == constants.FailureNone {
			return err
		}
		color.New(color.FgRed, color.Bold).Fprintf(a.out, "FAIL %s [%s]\n", target.ParserPath, kind)
		fmt.Fprintln(a.out, err)
		return &exitError{code: exitFailed}
	}
	color.New(color.FgGreen, color.Bold).Fprintf(a.out, "PASS %s reproduces %s (%d rows)\n",
		target.ParserPath, target.CSVPath, expected.NumRows())
	return nil
}
