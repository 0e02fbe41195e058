package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/statement-agent/constants"
)

// Attempt is one generate, write, evaluate cycle of a Run.
type Attempt struct {
	RunID       uuid.UUID               `json:"run_id"`
	Number      int                     `json:"number"`
	Status      constants.AttemptStatus `json:"status"`
	FailureKind constants.FailureKind   `json:"failure_kind,omitempty"`
	ErrorDetail *string                 `json:"error_detail,omitempty"`
	Code        string                  `json:"code"`
	StartedAt   time.Time               `json:"started_at"`
	ElapsedMS   int64                   `json:"elapsed_ms"`
}
