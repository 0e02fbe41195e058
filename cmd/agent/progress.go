package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/joseph-ayodele/statement-agent/constants"
	"github.com/joseph-ayodele/statement-agent/internal/agent"
)

// progress prints loop transitions for a human watching the terminal. Structured detail
// goes to the logger.
type progress struct {
	out  io.Writer
	bank string
	max  int

	info *color.Color
	ok   *color.Color
	warn *color.Color
	fail *color.Color
}

func newProgress(out io.Writer, bank string, maxAttempts int) *progress {
	return &progress{
		out:  out,
		bank: bank,
		max:  maxAttempts,
		info: color.New(color.FgCyan),
		ok:   color.New(color.FgGreen, color.Bold),
		warn: color.New(color.FgYellow),
		fail: color.New(color.FgRed, color.Bold),
	}
}

func (p *progress) observe(e agent.Event) {
	switch e.State {
	case agent.StateInit:
		p.info.Fprintf(p.out, "Generating parser for %s (up to %d attempts)\n", p.bank, p.max)
	case agent.StateGenerating:
		if e.Err != nil {
			p.warn.Fprintf(p.out, "  attempt %d failed: %s\n", e.Attempt-1, headline(e.Err))
		}
		fmt.Fprintf(p.out, "  attempt %d/%d: generating\n", e.Attempt, p.max)
	case agent.StateEvaluating:
		fmt.Fprintf(p.out, "  attempt %d/%d: evaluating\n", e.Attempt, p.max)
	case agent.StateSuccess:
		p.ok.Fprintf(p.out, "  attempt %d passed\n", e.Attempt)
	case agent.StateExhausted:
		if e.Err != nil {
			p.warn.Fprintf(p.out, "  attempt %d failed: %s\n", e.Attempt, headline(e.Err))
		}
	}
}

func (p *progress) summary(res *agent.Result) {
	n := len(res.Attempts)
	switch res.Status {
	case constants.RunStatusSuccess:
		p.ok.Fprintf(p.out, "SUCCESS: %s matches the sample CSV after %d attempt(s)\n", res.ParserPath, n)
	case constants.RunStatusExhausted:
		p.fail.Fprintf(p.out, "EXHAUSTED: no matching parser after %d attempt(s)\n", n)
		if res.LastError != nil {
			fmt.Fprintf(p.out, "last error:\n%s\n", res.LastError)
		}
	default:
		p.fail.Fprintf(p.out, "ABORTED after %d attempt(s)\n", n)
	}
}

func headline(err error) string {
	s := err.Error()
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
