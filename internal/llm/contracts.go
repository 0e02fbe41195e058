package llm

import "context"

// GenerateRequest carries everything the prompt for one attempt is built from.
type GenerateRequest struct {
	Bank         string
	PDFSummary   string
	Columns      []string
	ColumnKinds  []string
	ExpectedRows int
	SampleRows   [][]string // first rows of the expected output

	Attempt int // 1-based

	// Set only from the immediately preceding failed attempt.
	PreviousCode  string
	PreviousError string
}

// CodeResponse is the structured answer requested from providers that support JSON output.
type CodeResponse struct {
	Code  string `json:"code"`
	Notes string `json:"notes,omitempty"`
}

// CodeGenerator is the interface the agent loop depends on. Implementations return
// Go source with any Markdown fences removed, or a *GenerationError.
type CodeGenerator interface {
	GenerateCode(ctx context.Context, prompt string) (string, error)
}
