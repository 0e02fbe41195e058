package evaluator

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/statement-agent/internal/table"
)

// Load stages reported in LoadError.Stage.
const (
	StageRead    = "read"
	StageSyntax  = "syntax"
	StagePackage = "package"
	StageImports = "imports"
	StageBuild   = "build"
)

// LoadError means the generated source could not be turned into a runnable program.
type LoadError struct {
	Stage  string
	Detail string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load error (%s): %s", e.Stage, e.Detail)
}

// RuntimeError means the parser program ran but failed: non-zero exit, timeout, or
// output that is not CSV.
type RuntimeError struct {
	Detail   string
	Stderr   string
	TimedOut bool
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString("runtime error: ")
	b.WriteString(e.Detail)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		b.WriteString("\nstderr:\n")
		b.WriteString(s)
	}
	return b.String()
}

// MismatchError means the parser ran cleanly but its table differs from the expected one.
type MismatchError struct {
	Diff *table.Diff
}

func (e *MismatchError) Error() string {
	return "output mismatch: " + e.Diff.Summary
}
