package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/statement-agent/constants"
	"github.com/joseph-ayodele/statement-agent/internal/repository"
)

// geminiStub answers generateContent calls with handler and counts them.
func geminiStub(t *testing.T, handler http.HandlerFunc) *atomic.Int32 {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"), r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("LLM_BASE_URL", srv.URL)
	t.Setenv("GEMINI_API_KEY", "k")
	return &calls
}

func TestRun_ProviderDownExhaustsBudget(t *testing.T) {
	dir := workspace(t)
	dsn := "file:" + filepath.Join(dir, "history.db")
	t.Setenv("HISTORY_DSN", dsn)
	calls := geminiStub(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	})

	code, stdout, stderr := run(t, "run", "--target", "icici")
	assert.Equal(t, exitFailed, code, stderr)
	assert.Contains(t, stdout, "EXHAUSTED")
	assert.Contains(t, stdout, "after 3 attempt(s)")
	assert.EqualValues(t, 3, calls.Load())
	assert.NoFileExists(t, filepath.Join(dir, constants.DefaultParserDir, "icici_parser.go"))

	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: dsn}, nil)
	require.NoError(t, err)
	defer db.Close(nil)
	runs, err := repository.NewRunRepository(db, nil).ListRuns(ctx, "icici", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, constants.RunStatusExhausted, runs[0].Status)
	assert.Equal(t, 3, runs[0].Attempts)
	assert.Equal(t, 3, runs[0].MaxAttempts)
}

const matchingParser = `package main

import (
	"encoding/csv"
	"os"
)

func main() {
	w := csv.NewWriter(os.Stdout)
	_ = w.Write([]string{"Date", "Description", "Amount"})
	_ = w.Write([]string{"01-08-2024", "Salary", "1000.00"})
	w.Flush()
}
`

func TestRun_WritesMatchingParser(t *testing.T) {
	if testing.Short() {
		t.Skip("builds with the real go toolchain")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not on PATH")
	}
	dir := workspace(t)
	calls := geminiStub(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content":      map[string]any{"parts": []map[string]string{{"text": "```go\n" + matchingParser + "```"}}},
				"finishReason": "STOP",
			}},
		})
	})

	code, stdout, stderr := run(t, "run", "-t", "icici")
	require.Equal(t, exitOK, code, stdout+stderr)
	assert.Contains(t, stdout, "SUCCESS")
	assert.EqualValues(t, 1, calls.Load())

	got, err := os.ReadFile(filepath.Join(dir, constants.DefaultParserDir, "icici_parser.go"))
	require.NoError(t, err)
	assert.Equal(t, matchingParser, string(got))
}
