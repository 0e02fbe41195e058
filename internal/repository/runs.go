package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/statement-agent/constants"
	"github.com/joseph-ayodele/statement-agent/internal/common"
	"github.com/joseph-ayodele/statement-agent/internal/entity"
)

type RunRepository interface {
	Start(ctx context.Context, run *entity.Run) error
	RecordAttempt(ctx context.Context, a *entity.Attempt) error
	Finish(ctx context.Context, run *entity.Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*entity.Run, error)
	ListRuns(ctx context.Context, bank string, limit int) ([]*entity.Run, error)
	ListAttempts(ctx context.Context, runID uuid.UUID) ([]*entity.Attempt, error)
}

type runRepo struct {
	db  *DB
	log *slog.Logger
}

func NewRunRepository(db *DB, log *slog.Logger) RunRepository {
	if log == nil {
		log = slog.Default()
	}
	return &runRepo{db: db, log: log}
}

func (r *runRepo) Start(ctx context.Context, run *entity.Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = constants.RunStatusRunning
	}
	_, err := r.db.SQL.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO runs (id, bank, status, provider, model, max_attempts, attempts, parser_path, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID.String(), run.Bank, string(run.Status), run.Provider, run.Model,
		run.MaxAttempts, run.Attempts, run.ParserPath, run.StartedAt.UnixMilli(),
	)
	if err != nil {
		r.log.Error("history.run.start_failed", "run_id", run.ID, "error", err)
		return fmt.Errorf("%w: insert run: %v", common.ErrDatabase, err)
	}
	r.log.Debug("history.run.started", "run_id", run.ID, "bank", run.Bank)
	return nil
}

func (r *runRepo) RecordAttempt(ctx context.Context, a *entity.Attempt) error {
	_, err := r.db.SQL.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO attempts (run_id, number, status, failure_kind, error_detail, code, started_at, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		a.RunID.String(), a.Number, string(a.Status), string(a.FailureKind), nullString(a.ErrorDetail),
		a.Code, a.StartedAt.UnixMilli(), a.ElapsedMS,
	)
	if err != nil {
		r.log.Error("history.attempt.record_failed", "run_id", a.RunID, "attempt", a.Number, "error", err)
		return fmt.Errorf("%w: insert attempt: %v", common.ErrDatabase, err)
	}
	_, err = r.db.SQL.ExecContext(ctx, r.db.Rebind(`UPDATE runs SET attempts = ? WHERE id = ? AND attempts < ?`),
		a.Number, a.RunID.String(), a.Number)
	if err != nil {
		return fmt.Errorf("%w: update run attempts: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *runRepo) Finish(ctx context.Context, run *entity.Run) error {
	if run.FinishedAt == nil {
		now := time.Now()
		run.FinishedAt = &now
	}
	res, err := r.db.SQL.ExecContext(ctx, r.db.Rebind(`
		UPDATE runs SET status = ?, attempts = ?, finished_at = ?, last_error = ?
		WHERE id = ?`),
		string(run.Status), run.Attempts, run.FinishedAt.UnixMilli(), nullString(run.LastError), run.ID.String(),
	)
	if err != nil {
		r.log.Error("history.run.finish_failed", "run_id", run.ID, "error", err)
		return fmt.Errorf("%w: update run: %v", common.ErrDatabase, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, common.ErrNotFound)
	}
	r.log.Debug("history.run.finished", "run_id", run.ID, "status", run.Status)
	return nil
}

const runColumns = `id, bank, status, provider, model, max_attempts, attempts, parser_path, started_at, finished_at, last_error`

func (r *runRepo) GetRun(ctx context.Context, id uuid.UUID) (*entity.Run, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.Rebind(`SELECT `+runColumns+` FROM runs WHERE id = ?`), id.String())
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, common.ErrNotFound)
	}
	return run, err
}

// ListRuns returns the most recent runs for bank, newest first. An empty bank lists all.
func (r *runRepo) ListRuns(ctx context.Context, bank string, limit int) ([]*entity.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT ` + runColumns + ` FROM runs`
	args := []any{}
	if bank != "" {
		q += ` WHERE bank = ?`
		args = append(args, bank)
	}
	q += ` ORDER BY started_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.SQL.QueryContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list runs: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *runRepo) ListAttempts(ctx context.Context, runID uuid.UUID) ([]*entity.Attempt, error) {
	rows, err := r.db.SQL.QueryContext(ctx, r.db.Rebind(`
		SELECT run_id, number, status, failure_kind, error_detail, code, started_at, elapsed_ms
		FROM attempts WHERE run_id = ? ORDER BY number`), runID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: list attempts: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.Attempt
	for rows.Next() {
		var (
			a             entity.Attempt
			id            string
			status, kind  string
			detail        sql.NullString
			startedMillis int64
		)
		if err := rows.Scan(&id, &a.Number, &status, &kind, &detail, &a.Code, &startedMillis, &a.ElapsedMS); err != nil {
			return nil, fmt.Errorf("%w: scan attempt: %v", common.ErrDatabase, err)
		}
		if a.RunID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("%w: bad run id %q", common.ErrDatabase, id)
		}
		a.Status = constants.AttemptStatus(status)
		a.FailureKind = constants.FailureKind(kind)
		a.ErrorDetail = stringPtr(detail)
		a.StartedAt = time.UnixMilli(startedMillis)
		out = append(out, &a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*entity.Run, error) {
	var (
		run           entity.Run
		id, status    string
		startedMillis int64
		finished      sql.NullInt64
		lastErr       sql.NullString
	)
	err := s.Scan(&id, &run.Bank, &status, &run.Provider, &run.Model, &run.MaxAttempts, &run.Attempts,
		&run.ParserPath, &startedMillis, &finished, &lastErr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scan run: %v", common.ErrDatabase, err)
	}
	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: bad run id %q", common.ErrDatabase, id)
	}
	run.Status = constants.RunStatus(status)
	run.StartedAt = time.UnixMilli(startedMillis)
	if finished.Valid {
		t := time.UnixMilli(finished.Int64)
		run.FinishedAt = &t
	}
	run.LastError = stringPtr(lastErr)
	return &run, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
