package main

import (
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/statement-agent/constants"
	"github.com/joseph-ayodele/statement-agent/internal/agent"
	"github.com/joseph-ayodele/statement-agent/internal/artifact"
	"github.com/joseph-ayodele/statement-agent/internal/common"
	"github.com/joseph-ayodele/statement-agent/internal/evaluator"
	"github.com/joseph-ayodele/statement-agent/internal/llm"
	"github.com/joseph-ayodele/statement-agent/internal/llm/gemini"
	"github.com/joseph-ayodele/statement-agent/internal/llm/openai"
	"github.com/joseph-ayodele/statement-agent/internal/sample"
	"github.com/joseph-ayodele/statement-agent/internal/sandbox"
)

type runOptions struct {
	target      string
	maxAttempts int
}

func (o *runOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.target, "target", "t", "", "bank identifier, e.g. icici")
	cmd.Flags().IntVar(&o.maxAttempts, "max-attempts", 0, "attempt budget (overrides agent.max_attempts)")
}

func newRunCmd(g *globalOptions) *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "run --target <bank>",
		Short: "Generate a parser for a bank and iterate until it reproduces the sample CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAgent(cmd, g, o)
		},
	}
	o.bind(cmd)
	return cmd
}

func runAgent(cmd *cobra.Command, g *globalOptions, o runOptions) error {
	if o.target == "" {
		return usageError("--target is required")
	}
	ctx := cmd.Context()
	a, err := g.setup(cmd, func(c *common.Config) {
		if cmd.Flags().Changed("max-attempts") {
			c.Agent.MaxAttempts = o.maxAttempts
		}
	})
	if err != nil {
		return err
	}
	if err := a.cfg.ValidateLLM(); err != nil {
		return err
	}

	target, err := agent.ResolveTarget(o.target, a.cfg.Agent.DataDir, a.cfg.Agent.ParserDir)
	if err != nil {
		return err
	}

	runner := sandbox.NewExecRunner(a.logger)
	s, err := sample.NewLoader(sample.Config{Pdftotext: a.cfg.Evaluator.Pdftotext}, runner, a.logger).
		Load(ctx, target.PDFPath, target.CSVPath)
	if err != nil {
		return err
	}

	ev, err := a.newEvaluator(runner)
	if err != nil {
		return err
	}
	gen, model := a.newGenerator()

	var recorder agent.Recorder
	store, err := a.openHistory(ctx)
	switch {
	case err != nil:
		a.logger.Warn("history.disabled", "error", err)
	case store != nil:
		defer store.close(a.logger)
		recorder = store.runs
	}

	p := newProgress(a.out, target.Bank, a.cfg.Agent.MaxAttempts)
	loop := agent.NewLoop(gen, ev, artifact.NewWriter(a.logger), agent.Options{
		MaxAttempts: a.cfg.Agent.MaxAttempts,
		Provider:    a.cfg.LLM.Provider,
		Model:       model,
		Recorder:    recorder,
		Observer:    p.observe,
	}, a.logger)

	res, err := loop.Run(ctx, target, s)
	if res != nil {
		p.summary(res)
	}
	if err != nil {
		return err
	}
	if res.Status != constants.RunStatusSuccess {
		return &exitError{code: exitFailed}
	}
	return nil
}

func (a *app) newGenerator() (llm.CodeGenerator, string) {
	l := a.cfg.LLM
	if l.Provider == common.ProviderOpenAI {
		c := openai.NewClient(openai.Config{
			APIKey:          l.APIKey,
			BaseURL:         l.BaseURL,
			Model:           l.Model,
			Temperature:     l.Temperature,
			MaxTokens:       l.MaxTokens,
			Timeout:         l.Timeout,
			LenientResponse: l.LenientResponse,
		}, a.logger)
		return c, c.Model()
	}
	c := gemini.NewClient(gemini.Config{
		APIKey:      l.APIKey,
		BaseURL:     l.BaseURL,
		Model:       l.Model,
		Temperature: l.Temperature,
		MaxTokens:   l.MaxTokens,
		Timeout:     l.Timeout,
	}, a.logger)
	return c, c.Model()
}

func (a *app) newEvaluator(runner sandbox.Runner) (*evaluator.Evaluator, error) {
	tol, err := a.cfg.Tolerance()
	if err != nil {
		return nil, err
	}
	e := a.cfg.Evaluator
	return evaluator.New(evaluator.Config{
		GoBinary:     e.GoBinary,
		WorkDir:      e.WorkDir,
		BuildTimeout: e.BuildTimeout,
		RunTimeout:   e.RunTimeout,
		Tolerance:    tol,
	}, runner, a.logger), nil
}
