package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/statement-agent/constants"
)

// Run represents one agent invocation for a bank, for data transfer between layers.
type Run struct {
	ID          uuid.UUID           `json:"id"`
	Bank        string              `json:"bank"`
	Status      constants.RunStatus `json:"status"`
	Provider    string              `json:"provider"`
	Model       string              `json:"model"`
	MaxAttempts int                 `json:"max_attempts"`
	Attempts    int                 `json:"attempts"`
	ParserPath  string              `json:"parser_path"`
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  *time.Time          `json:"finished_at,omitempty"`
	LastError   *string             `json:"last_error,omitempty"`
}
