package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func baseRequest() GenerateRequest {
	return GenerateRequest{
		Bank:         "icici",
		PDFSummary:   "- Pages: 2\n- First page text sample:\nDate Description Debit Amt",
		Columns:      []string{"Date", "Description", "Debit Amt", "Credit Amt", "Balance"},
		ColumnKinds:  []string{"date", "text", "number", "number", "number"},
		ExpectedRows: 100,
		SampleRows: [][]string{
			{"01-08-2024", "Salary Credit XYZ Pvt Ltd", "", "1935.3", "6864.58"},
			{"02-08-2024", "Card, Swipe", "1652.61", "", "5211.97"},
		},
		Attempt: 1,
	}
}

func TestBuildPrompt_FirstAttempt(t *testing.T) {
	p := BuildPrompt(baseRequest())

	assert.Contains(t, p, `"icici"`)
	assert.Contains(t, p, "PDF STRUCTURE:\n- Pages: 2")
	assert.Contains(t, p, `Columns: ["Date", "Description", "Debit Amt", "Credit Amt", "Balance"]`)
	assert.Contains(t, p, "Column kinds: Date=date, Description=text, Debit Amt=number, Credit Amt=number, Balance=number")
	assert.Contains(t, p, "Expected rows: 100 (EXACTLY this many rows, no more, no less)")
	assert.Contains(t, p, "Date,Description,Debit Amt,Credit Amt,Balance\n01-08-2024,Salary Credit XYZ Pvt Ltd,,1935.3,6864.58\n")
	assert.Contains(t, p, `02-08-2024,"Card, Swipe",1652.61,,5211.97`)
	assert.Contains(t, p, "github.com/ledongthuc/pdf")
	assert.Contains(t, p, "Start directly with 'package main'.")

	assert.NotContains(t, p, "PREVIOUS ATTEMPT")
	assert.NotContains(t, p, "PREVIOUS CODE")
}

func TestBuildPrompt_RetryCarriesPreviousAttempt(t *testing.T) {
	req := baseRequest()
	req.Attempt = 2
	req.PreviousCode = "package main\n\nfunc main() {}\n"
	req.PreviousError = "row count mismatch: expected 10, got 9"

	p := BuildPrompt(req)

	assert.Contains(t, p, "PREVIOUS ATTEMPT 1 FAILED WITH ERROR:\nrow count mismatch: expected 10, got 9\n")
	assert.Contains(t, p, "PREVIOUS CODE THAT FAILED:\n```go\npackage main\n\nfunc main() {}\n```")
	assert.Contains(t, p, "NOW WRITE THE CORRECTED CODE:")
	assert.True(t, strings.HasSuffix(p, "Start directly with 'package main'.\n"))
}

func TestBuildPrompt_RetryWithoutCode(t *testing.T) {
	req := baseRequest()
	req.Attempt = 3
	req.PreviousError = "gemini code generation failed: timeout"

	p := BuildPrompt(req)
	assert.Contains(t, p, "PREVIOUS ATTEMPT 2 FAILED WITH ERROR:\ngemini code generation failed: timeout")
	assert.NotContains(t, p, "PREVIOUS CODE THAT FAILED")
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	req := baseRequest()
	req.Attempt = 2
	req.PreviousCode = "package main"
	req.PreviousError = "boom"
	assert.Equal(t, BuildPrompt(req), BuildPrompt(req))
}

func TestBuildPrompt_MissingSummary(t *testing.T) {
	req := baseRequest()
	req.PDFSummary = "  "
	assert.Contains(t, BuildPrompt(req), "PDF STRUCTURE:\n(not available)\n")
}
