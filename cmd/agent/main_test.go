package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/statement-agent/constants"
	"github.com/joseph-ayodele/statement-agent/internal/entity"
	"github.com/joseph-ayodele/statement-agent/internal/repository"
)

// workspace chdirs into a fresh directory holding data/icici and clears env overrides.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, k := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "LLM_PROVIDER", "HISTORY_DSN", "AGENT_DATA_DIR", "AGENT_PARSER_DIR", "AGENT_MAX_ATTEMPTS"} {
		t.Setenv(k, "")
	}
	t.Setenv("NO_COLOR", "1")

	bankDir := filepath.Join(dir, "data", "icici")
	require.NoError(t, os.MkdirAll(bankDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bankDir, "icici_sample.pdf"), []byte("%PDF-1.4\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(bankDir, "icici_sample.csv"),
		[]byte("Date,Description,Amount\n01-08-2024,Salary,1000.00\n"), 0o644))
	return dir
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestExecute_UsageErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		args    []string
		wantErr string
	}{
		{"root without target", nil, nil, "--target is required"},
		{"run without target", nil, []string{"run"}, "--target is required"},
		{"unknown flag", nil, []string{"run", "--bogus"}, "unknown flag"},
		{"stray argument", nil, []string{"icici"}, `unexpected argument "icici"`},
		{"missing api key", nil, []string{"--target", "icici"}, "llm.api_key"},
		{"unknown bank", map[string]string{"GEMINI_API_KEY": "k"}, []string{"run", "--target", "hdfc"}, "not found"},
		{"bad bank id", map[string]string{"GEMINI_API_KEY": "k"}, []string{"run", "-t", "../icici"}, "lowercase"},
		{"zero attempts", map[string]string{"GEMINI_API_KEY": "k"}, []string{"run", "-t", "icici", "--max-attempts", "0"}, "max_attempts"},
		{"missing config file", nil, []string{"verify", "-t", "icici", "--config", "absent.yaml"}, "absent.yaml"},
		{"non-positive limit", nil, []string{"history", "--limit", "0"}, "limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workspace(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			code, _, stderr := run(t, tt.args...)
			assert.Equal(t, exitUsage, code)
			assert.Contains(t, stderr, tt.wantErr)
		})
	}
}

func TestVerify_MissingParserFails(t *testing.T) {
	workspace(t)

	code, stdout, _ := run(t, "verify", "--target", "icici")
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stdout, "FAIL")
	assert.Contains(t, stdout, "LOAD_ERROR")
}

func TestVerify_InvalidParserFails(t *testing.T) {
	dir := workspace(t)
	parser := filepath.Join(dir, constants.DefaultParserDir, "icici_parser.go")
	require.NoError(t, os.MkdirAll(filepath.Dir(parser), 0o755))
	require.NoError(t, os.WriteFile(parser, []byte("package main\n\nimport \"net/http\"\n\nfunc main() { _ = http.Get }\n"), 0o644))

	code, stdout, _ := run(t, "verify", "-t", "icici")
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stdout, "net/http")
}

func TestHistory_ListsAndExports(t *testing.T) {
	dir := workspace(t)
	dsn := "file:" + filepath.Join(dir, "history.db")
	t.Setenv("HISTORY_DSN", dsn)

	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: dsn}, nil)
	require.NoError(t, err)
	runs := repository.NewRunRepository(db, nil)
	run1 := &entity.Run{
		ID: uuid.New(), Bank: "icici", Status: constants.RunStatusRunning, Provider: "gemini",
		Model: "gemini-2.0-flash", MaxAttempts: 3, ParserPath: "_custom_parser/icici_parser.go",
		StartedAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, runs.Start(ctx, run1))
	require.NoError(t, runs.RecordAttempt(ctx, &entity.Attempt{
		RunID: run1.ID, Number: 1, Status: constants.AttemptPass, Code: "package main\n", StartedAt: time.Now(),
	}))
	done := time.Now()
	run1.Status, run1.Attempts, run1.FinishedAt = constants.RunStatusSuccess, 1, &done
	require.NoError(t, runs.Finish(ctx, run1))
	db.Close(nil)

	out := filepath.Join(dir, "history.xlsx")
	code, stdout, stderr := run(t, "history", "--target", "ICICI", "--xlsx", out)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, run1.ID.String())
	assert.Contains(t, stdout, "SUCCESS")
	assert.Contains(t, stdout, "1/3")

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Attempts")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, run1.ID.String(), rows[1][0])
}

func TestHistory_Empty(t *testing.T) {
	dir := workspace(t)
	t.Setenv("HISTORY_DSN", "file:"+filepath.Join(dir, "empty.db"))

	code, stdout, _ := run(t, "history", "--check")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "history database OK (sqlite)")
	assert.Contains(t, stdout, "no runs recorded")
}
