package export

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/statement-agent/constants"
	"github.com/joseph-ayodele/statement-agent/internal/entity"
	"github.com/joseph-ayodele/statement-agent/internal/repository"
)

func TestExportHistoryXLSX(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: "file:" + filepath.Join(t.TempDir(), "h.db")}, nil)
	require.NoError(t, err)
	defer db.Close(nil)
	repo := repository.NewRunRepository(db, nil)

	run := &entity.Run{Bank: "icici", Provider: "gemini", MaxAttempts: 3, ParserPath: "_custom_parser/icici_parser.go"}
	require.NoError(t, repo.Start(ctx, run))
	detail := "output mismatch: row count mismatch: expected 10, got 9"
	require.NoError(t, repo.RecordAttempt(ctx, &entity.Attempt{
		RunID: run.ID, Number: 1, Status: constants.AttemptFail, FailureKind: constants.FailureMismatch,
		ErrorDetail: &detail, Code: "package main\n",
	}))
	require.NoError(t, repo.RecordAttempt(ctx, &entity.Attempt{
		RunID: run.ID, Number: 2, Status: constants.AttemptPass, Code: "package main\n// fixed\n",
	}))
	run.Status, run.Attempts = constants.RunStatusSuccess, 2
	require.NoError(t, repo.Finish(ctx, run))

	other := &entity.Run{Bank: "sbi", MaxAttempts: 3, ParserPath: "x"}
	require.NoError(t, repo.Start(ctx, other))

	b, err := NewService(repo, nil).ExportHistoryXLSX(ctx, "icici", 10)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetRuns, SheetAttempts}, f.GetSheetList())

	runs, err := f.GetRows(SheetRuns)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "Run ID", runs[0][0])
	assert.Equal(t, run.ID.String(), runs[1][0])
	assert.Equal(t, "SUCCESS", runs[1][2])
	assert.Equal(t, "2", runs[1][5])

	attempts, err := f.GetRows(SheetAttempts)
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	assert.Equal(t, "MISMATCH", attempts[1][3])
	assert.Equal(t, detail, attempts[1][6])
	assert.Equal(t, "PASS", attempts[2][2])
	assert.Equal(t, "package main\n// fixed\n", attempts[2][7])
}

func TestCellText(t *testing.T) {
	assert.Equal(t, "short", cellText("short"))
	long := strings.Repeat("a", maxCellChars+10)
	assert.LessOrEqual(t, len(cellText(long)), maxCellChars)
	assert.True(t, strings.HasSuffix(cellText(long), "…"))
}
