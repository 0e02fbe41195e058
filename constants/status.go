package constants

// RunStatus is the canonical status for rows in the runs table.
type RunStatus string

// Stable values (store these exact strings in DB).
const (
	RunStatusRunning   RunStatus = "RUNNING"   // loop in progress
	RunStatusSuccess   RunStatus = "SUCCESS"   // a generated parser matched the reference CSV
	RunStatusExhausted RunStatus = "EXHAUSTED" // attempt budget spent without a match
	RunStatusAborted   RunStatus = "ABORTED"   // infrastructure failure outside the retry budget
)

// AttemptStatus is the binary verdict for a single generate-write-evaluate cycle.
type AttemptStatus string

const (
	AttemptPass AttemptStatus = "PASS"
	AttemptFail AttemptStatus = "FAIL"
)

// FailureKind classifies why an attempt failed.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureGeneration FailureKind = "GENERATION_ERROR" // LLM call failed (network/auth/quota/empty)
	FailureLoad       FailureKind = "LOAD_ERROR"       // generated code does not parse or build
	FailureRuntime    FailureKind = "RUNTIME_ERROR"    // generated program failed while running
	FailureMismatch   FailureKind = "MISMATCH"         // output differs from the expected CSV
)

// DefaultMaxAttempts is the attempt budget when nothing else is configured.
const DefaultMaxAttempts = 3
