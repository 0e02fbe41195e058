package llm

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/statement-agent/constants"
)

// BuildPrompt renders the generation prompt for one attempt. It is a pure function of req:
// attempt 1 sees only the sample data and output schema; later attempts also see the
// previous attempt's code and error, verbatim.
func BuildPrompt(req GenerateRequest) string {
	var b strings.Builder

	b.WriteString("You are a Go coding expert. Write a complete, standalone Go program that parses a bank statement PDF.\n\n")
	fmt.Fprintf(&b, "TASK: Create a Go program (package main) that extracts the transaction table from a %q bank statement PDF and prints it as CSV.\n\n", req.Bank)

	b.WriteString("PDF STRUCTURE:\n")
	if s := strings.TrimSpace(req.PDFSummary); s != "" {
		b.WriteString(s)
	} else {
		b.WriteString("(not available)")
	}
	b.WriteString("\n\n")

	b.WriteString("IMPORTANT: The statement may have MULTIPLE PAGES with the table header REPEATED on each page.\n")
	b.WriteString("You MUST skip the header row on each page individually so it never appears as data.\n\n")

	cols := quoteList(req.Columns)
	b.WriteString("REQUIRED OUTPUT SCHEMA:\n")
	fmt.Fprintf(&b, "Columns: %s\n", cols)
	if len(req.ColumnKinds) == len(req.Columns) && len(req.Columns) > 0 {
		kinds := make([]string, len(req.Columns))
		for i, c := range req.Columns {
			kinds[i] = c + "=" + req.ColumnKinds[i]
		}
		fmt.Fprintf(&b, "Column kinds: %s\n", strings.Join(kinds, ", "))
	}
	fmt.Fprintf(&b, "Expected rows: %d (EXACTLY this many rows, no more, no less)\n\n", req.ExpectedRows)

	fmt.Fprintf(&b, "SAMPLE EXPECTED OUTPUT (first %d rows, CSV):\n", len(req.SampleRows))
	b.WriteString(csvLine(req.Columns))
	for _, row := range req.SampleRows {
		b.WriteString(csvLine(row))
	}
	b.WriteString("\n")

	b.WriteString("REQUIREMENTS:\n")
	b.WriteString("1. A single file: package main with func main()\n")
	b.WriteString("2. Read the PDF path from os.Args[1]\n")
	b.WriteString("3. Write CSV to stdout with encoding/csv: the header row first, then one record per transaction\n")
	fmt.Fprintf(&b, "4. Column names must match exactly: %s\n", cols)
	fmt.Fprintf(&b, "5. Import only the Go standard library and %s\n", constants.ParserPDFModule)
	b.WriteString("6. Write numbers as plain decimals with no currency symbols or thousands separators; leave a cell empty when the statement shows no value\n")
	b.WriteString("7. Keep dates and text exactly as they appear in the sample output\n")
	b.WriteString("8. On any failure print the error to stderr and exit with a non-zero status\n")
	b.WriteString("9. CRITICAL: Process each page separately and skip headers on each page to avoid duplicates\n\n")

	b.WriteString(recommendedApproach)
	b.WriteString(codeTemplate)

	if req.Attempt > 1 && strings.TrimSpace(req.PreviousError) != "" {
		fmt.Fprintf(&b, "\nPREVIOUS ATTEMPT %d FAILED WITH ERROR:\n%s\n", req.Attempt-1, strings.TrimSpace(req.PreviousError))
		if code := strings.TrimSpace(req.PreviousCode); code != "" {
			b.WriteString("\nPREVIOUS CODE THAT FAILED:\n```go\n")
			b.WriteString(code)
			b.WriteString("\n```\n")
		}
		b.WriteString(fixInstructions)
	}

	b.WriteString("\nCRITICAL: Return ONLY the Go source code, nothing else. No explanations, no markdown.\n")
	b.WriteString("Start directly with 'package main'.\n")
	return b.String()
}

const recommendedApproach = "RECOMMENDED APPROACH:\n```go\n" +
	`f, r, err := pdf.Open(os.Args[1])
if err != nil { /* report and exit 1 */ }
defer f.Close()
for i := 1; i <= r.NumPage(); i++ {
	rows, err := r.Page(i).GetTextByRow() // rows top to bottom, row.Content sorted by X
	if err != nil { /* report and exit 1 */ }
	for _, row := range rows {
		// skip the page's header row, group text runs into cells by X position
	}
}
` + "```\n\n"

const codeTemplate = "CODE TEMPLATE:\n```go\n" +
	`package main

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: parser <statement.pdf>")
		os.Exit(2)
	}
	// Your code here
}
` + "```\n"

const fixInstructions = `
INSTRUCTIONS FOR FIX:
- Analyze the error above carefully
- "row count mismatch" with more rows than expected usually means header rows from later pages were kept
- "value mismatch" means cell text differs: compare number formatting, empty cells and whitespace with the sample output
- "column mismatch" means the header row you print is wrong; print the columns exactly as listed
- Build errors: fix imports and types; only the standard library and the PDF module above are available
- Runtime errors: guard slice indexes and check every error
- Test your logic mentally before responding

NOW WRITE THE CORRECTED CODE:
`

func quoteList(items []string) string {
	q := make([]string, len(items))
	for i, s := range items {
		q[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(q, ", ") + "]"
}

func csvLine(cells []string) string {
	out := make([]string, len(cells))
	for i, c := range cells {
		if strings.ContainsAny(c, ",\"\n") {
			c = `"` + strings.ReplaceAll(c, `"`, `""`) + `"`
		}
		out[i] = c
	}
	return strings.Join(out, ",") + "\n"
}
