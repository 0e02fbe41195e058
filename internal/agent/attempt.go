package agent

import (
	"errors"
	"time"

	"github.com/joseph-ayodele/statement-agent/constants"
	"github.com/joseph-ayodele/statement-agent/internal/evaluator"
	"github.com/joseph-ayodele/statement-agent/internal/llm"
)

// Attempt records one generate, write, evaluate cycle. It is not modified once appended
// to a Result.
type Attempt struct {
	Number      int
	Code        string // empty when generation failed
	Status      constants.AttemptStatus
	FailureKind constants.FailureKind
	Err         error
	StartedAt   time.Time
	Elapsed     time.Duration
}

// ErrorDetail is the text fed back to the model on the next attempt.
func (a Attempt) ErrorDetail() string {
	if a.Err == nil {
		return ""
	}
	return a.Err.Error()
}

// Classify maps an error onto the attempt failure taxonomy. FailureNone means err is
// not an attempt failure and must end the run.
func Classify(err error) constants.FailureKind {
	var (
		ge *llm.GenerationError
		le *evaluator.LoadError
		re *evaluator.RuntimeError
		me *evaluator.MismatchError
	)
	switch {
	case err == nil:
		return constants.FailureNone
	case errors.As(err, &ge):
		return constants.FailureGeneration
	case errors.As(err, &le):
		return constants.FailureLoad
	case errors.As(err, &re):
		return constants.FailureRuntime
	case errors.As(err, &me):
		return constants.FailureMismatch
	default:
		return constants.FailureNone
	}
}
