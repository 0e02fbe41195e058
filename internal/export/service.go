package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/statement-agent/internal/entity"
	"github.com/joseph-ayodele/statement-agent/internal/repository"
)

// Sheet names in the history workbook.
const (
	SheetRuns     = "Runs"
	SheetAttempts = "Attempts"
)

// excel refuses cells longer than this
const maxCellChars = 32767

// Service is a tiny façade over the run repository that produces XLSX bytes for exports.
type Service struct {
	runs   repository.RunRepository
	logger *slog.Logger
}

func NewService(runs repository.RunRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{runs: runs, logger: logger}
}

// ExportHistoryXLSX returns a workbook with the most recent runs for bank (all banks when
// empty) on one sheet and every attempt of those runs, including generated code, on another.
func (s *Service) ExportHistoryXLSX(ctx context.Context, bank string, limit int) ([]byte, error) {
	start := time.Now()

	runs, err := s.runs.ListRuns(ctx, bank, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetRuns); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetAttempts); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	runHeaders := []any{"Run ID", "Bank", "Status", "Provider", "Model", "Attempts", "Max Attempts",
		"Started", "Finished", "Parser Path", "Last Error"}
	if err := writeHeader(f, SheetRuns, runHeaders, bold); err != nil {
		return nil, err
	}
	attemptHeaders := []any{"Run ID", "Attempt", "Status", "Failure Kind", "Started", "Elapsed (ms)", "Error", "Code"}
	if err := writeHeader(f, SheetAttempts, attemptHeaders, bold); err != nil {
		return nil, err
	}

	attemptRow := 2
	for i, r := range runs {
		row := []any{
			r.ID.String(), r.Bank, string(r.Status), r.Provider, r.Model, r.Attempts, r.MaxAttempts,
			r.StartedAt.UTC().Format(time.RFC3339), formatTime(r.FinishedAt), r.ParserPath, cellText(deref(r.LastError)),
		}
		if err := writeRow(f, SheetRuns, i+2, row); err != nil {
			return nil, err
		}

		attempts, err := s.runs.ListAttempts(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("query attempts for run %s: %w", r.ID, err)
		}
		for _, a := range attempts {
			if err := writeRow(f, SheetAttempts, attemptRow, attemptCells(a)); err != nil {
				return nil, err
			}
			attemptRow++
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(SheetRuns, "A", "A", 38) // id
	_ = f.SetColWidth(SheetRuns, "H", "I", 22) // timestamps
	_ = f.SetColWidth(SheetRuns, "J", "J", 36) // path
	_ = f.SetColWidth(SheetRuns, "K", "K", 60) // error
	_ = f.SetColWidth(SheetAttempts, "A", "A", 38)
	_ = f.SetColWidth(SheetAttempts, "G", "H", 80)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"bank", bank,
		"runs", len(runs),
		"attempts", attemptRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func attemptCells(a *entity.Attempt) []any {
	return []any{
		a.RunID.String(), a.Number, string(a.Status), string(a.FailureKind),
		a.StartedAt.UTC().Format(time.RFC3339), a.ElapsedMS, cellText(deref(a.ErrorDetail)), cellText(a.Code),
	}
}

func writeHeader(f *excelize.File, sheet string, headers []any, style int) error {
	if err := writeRow(f, sheet, 1, headers); err != nil {
		return err
	}
	return f.SetRowStyle(sheet, 1, 1, style)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cellText(s string) string {
	if len(s) <= maxCellChars {
		return s
	}
	return strings.ToValidUTF8(s[:maxCellChars-len("…")], "") + "…"
}
