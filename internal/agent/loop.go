package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/statement-agent/constants"
	"github.com/joseph-ayodele/statement-agent/internal/common"
	"github.com/joseph-ayodele/statement-agent/internal/entity"
	"github.com/joseph-ayodele/statement-agent/internal/llm"
	"github.com/joseph-ayodele/statement-agent/internal/sample"
	"github.com/joseph-ayodele/statement-agent/internal/table"
)

// State of the self-correction loop.
type State int

const (
	StateInit State = iota
	StateGenerating
	StateEvaluating
	StateSuccess
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateGenerating:
		return "generating"
	case StateEvaluating:
		return "evaluating"
	case StateSuccess:
		return "success"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool { return s == StateSuccess || s == StateExhausted }

type Evaluator interface {
	Evaluate(ctx context.Context, parserPath, pdfPath string, expected *table.Table) error
}

type Writer interface {
	Write(path, code string) error
}

// Recorder persists run history. Its failures are logged and never end a run.
type Recorder interface {
	Start(ctx context.Context, run *entity.Run) error
	RecordAttempt(ctx context.Context, a *entity.Attempt) error
	Finish(ctx context.Context, run *entity.Run) error
}

// Event is a state transition. Err is the failure fed into the new state, if any.
type Event struct {
	State   State
	Attempt int
	Err     error
}

type Observer func(Event)

type Options struct {
	MaxAttempts int
	SampleRows  int // expected rows shown in the prompt
	SampleChars int // first-page text shown in the prompt

	// recorded with the run
	Provider string
	Model    string

	Recorder Recorder
	Observer Observer
}

// Result is the outcome of Run.
type Result struct {
	RunID      uuid.UUID
	Status     constants.RunStatus
	Attempts   []Attempt
	ParserPath string
	LastError  error
}

// Final returns the last attempt made, or nil.
func (r *Result) Final() *Attempt {
	if len(r.Attempts) == 0 {
		return nil
	}
	return &r.Attempts[len(r.Attempts)-1]
}

// Loop drives generate, write and evaluate until the parser matches or the budget is spent.
type Loop struct {
	gen    llm.CodeGenerator
	eval   Evaluator
	writer Writer
	opts   Options
	logger *slog.Logger
}

func NewLoop(gen llm.CodeGenerator, eval Evaluator, writer Writer, opts Options, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = constants.DefaultMaxAttempts
	}
	if opts.SampleRows <= 0 {
		opts.SampleRows = 3
	}
	if opts.SampleChars <= 0 {
		opts.SampleChars = 500
	}
	return &Loop{gen: gen, eval: eval, writer: writer, opts: opts, logger: logger}
}

// Run executes the loop for one target. It returns an error only when the run was
// aborted outside the attempt taxonomy: parser write failure, evaluator infrastructure
// failure or context cancellation. Exhausting the budget is reported through Result.Status.
func (l *Loop) Run(ctx context.Context, target Target, s *sample.Sample) (*Result, error) {
	res := &Result{RunID: uuid.New(), Status: constants.RunStatusRunning, ParserPath: target.ParserPath}
	ctx = common.WithRunID(ctx, res.RunID.String())
	log := common.LoggerWith(ctx, l.logger).With("bank", target.Bank)

	run := &entity.Run{
		ID:          res.RunID,
		Bank:        target.Bank,
		Status:      constants.RunStatusRunning,
		Provider:    l.opts.Provider,
		Model:       l.opts.Model,
		MaxAttempts: l.opts.MaxAttempts,
		ParserPath:  target.ParserPath,
		StartedAt:   time.Now(),
	}
	l.record(log, "start", func(r Recorder) error { return r.Start(ctx, run) })

	base := l.baseRequest(target, s)
	l.observe(Event{State: StateInit})
	log.Info("agent.run.start", "max_attempts", l.opts.MaxAttempts, "pdf", target.PDFPath, "parser", target.ParserPath)

	var prev *Attempt
	for n := 1; n <= l.opts.MaxAttempts; n++ {
		actx := common.WithAttempt(ctx, n)
		a, err := l.attempt(actx, common.LoggerWith(actx, l.logger), base, prev, target, s)
		if err != nil {
			res.Status = constants.RunStatusAborted
			res.LastError = err
			log.Error("agent.run.aborted", "attempt", n, "error", err)
			l.finish(ctx, log, run, res)
			return res, err
		}

		res.Attempts = append(res.Attempts, a)
		l.record(log, "attempt", func(r Recorder) error { return r.RecordAttempt(ctx, toEntity(res.RunID, a)) })

		if a.Status == constants.AttemptPass {
			res.Status = constants.RunStatusSuccess
			res.LastError = nil
			l.observe(Event{State: StateSuccess, Attempt: n})
			log.Info("agent.run.success", "attempts", n)
			l.finish(ctx, log, run, res)
			return res, nil
		}
		res.LastError = a.Err
		last := a
		prev = &last
	}

	res.Status = constants.RunStatusExhausted
	l.observe(Event{State: StateExhausted, Attempt: l.opts.MaxAttempts, Err: res.LastError})
	log.Warn("agent.run.exhausted", "attempts", len(res.Attempts), "last_error", res.LastError)
	l.finish(ctx, log, run, res)
	return res, nil
}

// attempt runs one cycle. A non-nil error aborts the run; attempt failures are carried in
// the returned Attempt.
func (l *Loop) attempt(ctx context.Context, log *slog.Logger, base llm.GenerateRequest, prev *Attempt, target Target, s *sample.Sample) (Attempt, error) {
	n := common.AttemptFromContext(ctx)
	a := Attempt{Number: n, StartedAt: time.Now()}
	if err := ctx.Err(); err != nil {
		return a, err
	}

	req := base
	req.Attempt = n
	var feedback error
	if prev != nil {
		req.PreviousCode = prev.Code
		req.PreviousError = prev.ErrorDetail()
		feedback = prev.Err
	}

	l.observe(Event{State: StateGenerating, Attempt: n, Err: feedback})
	log.Info("agent.attempt.generate", "with_feedback", prev != nil)
	code, err := l.gen.GenerateCode(ctx, llm.BuildPrompt(req))
	if err != nil {
		if ctx.Err() != nil {
			return a, ctx.Err()
		}
		var ge *llm.GenerationError
		if !errors.As(err, &ge) {
			err = llm.NewGenerationError("llm", 0, err)
		}
		return l.fail(log, a, err), nil
	}
	a.Code = code

	if err := l.writer.Write(target.ParserPath, code); err != nil {
		log.Error("agent.attempt.write_failed", "path", target.ParserPath, "error", err)
		return a, fmt.Errorf("write parser: %w", err)
	}

	l.observe(Event{State: StateEvaluating, Attempt: n})
	err = l.eval.Evaluate(ctx, target.ParserPath, target.PDFPath, s.Expected)
	if err == nil {
		a.Status = constants.AttemptPass
		a.Elapsed = time.Since(a.StartedAt)
		log.Info("agent.attempt.pass", "elapsed_ms", a.Elapsed.Milliseconds())
		return a, nil
	}
	if Classify(err) == constants.FailureNone {
		if ctx.Err() != nil {
			return a, ctx.Err()
		}
		return a, fmt.Errorf("evaluate parser: %w", err)
	}
	return l.fail(log, a, err), nil
}

func (l *Loop) fail(log *slog.Logger, a Attempt, err error) Attempt {
	a.Status = constants.AttemptFail
	a.FailureKind = Classify(err)
	a.Err = err
	a.Elapsed = time.Since(a.StartedAt)
	log.Warn("agent.attempt.failed",
		"kind", a.FailureKind,
		"error", err,
		"elapsed_ms", a.Elapsed.Milliseconds(),
	)
	return a
}

func (l *Loop) baseRequest(target Target, s *sample.Sample) llm.GenerateRequest {
	req := llm.GenerateRequest{Bank: target.Bank}
	if s == nil {
		return req
	}
	if s.PDF != nil {
		req.PDFSummary = s.PDF.Summary(l.opts.SampleChars)
	}
	if s.Expected != nil {
		req.Columns = s.Expected.Columns
		for _, k := range s.Expected.ColumnKinds() {
			req.ColumnKinds = append(req.ColumnKinds, string(k))
		}
		req.ExpectedRows = s.Expected.NumRows()
		req.SampleRows = s.Expected.Head(l.opts.SampleRows)
	}
	return req
}

func (l *Loop) observe(e Event) {
	if l.opts.Observer != nil {
		l.opts.Observer(e)
	}
}

func (l *Loop) record(log *slog.Logger, op string, fn func(Recorder) error) {
	if l.opts.Recorder == nil {
		return
	}
	if err := fn(l.opts.Recorder); err != nil {
		log.Warn("agent.history.record_failed", "op", op, "error", err)
	}
}

func (l *Loop) finish(ctx context.Context, log *slog.Logger, run *entity.Run, res *Result) {
	now := time.Now()
	run.Status = res.Status
	run.Attempts = len(res.Attempts)
	run.FinishedAt = &now
	if res.LastError != nil {
		msg := res.LastError.Error()
		run.LastError = &msg
	}
	// history must survive a cancelled run
	ctx = context.WithoutCancel(ctx)
	l.record(log, "finish", func(r Recorder) error { return r.Finish(ctx, run) })
}

func toEntity(runID uuid.UUID, a Attempt) *entity.Attempt {
	e := &entity.Attempt{
		RunID:       runID,
		Number:      a.Number,
		Status:      a.Status,
		FailureKind: a.FailureKind,
		Code:        a.Code,
		StartedAt:   a.StartedAt,
		ElapsedMS:   a.Elapsed.Milliseconds(),
	}
	if a.Err != nil {
		d := a.ErrorDetail()
		e.ErrorDetail = &d
	}
	return e
}
