// Package ledger records pipeline runs and per-workbook outcomes in SQLite.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "nhstac/internal/errors"
	"nhstac/pkg/contracts/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	command TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	finished_at DATETIME,
	rows INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS workbook_outcomes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES runs(id),
	file TEXT NOT NULL,
	sector TEXT NOT NULL DEFAULT '',
	fy TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	sheet TEXT NOT NULL DEFAULT '',
	match_rule TEXT NOT NULL DEFAULT '',
	rows INTEGER NOT NULL DEFAULT 0,
	null_amounts INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_workbook_outcomes_run ON workbook_outcomes(run_id);
`

// Ledger is the run history store
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the ledger database at path
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, apperrors.NewStorageError("failed to create ledger directory", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open ledger", err).WithContext("path", path)
	}
	// a single writer keeps SQLite from returning SQLITE_BUSY inside one process
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError("failed to create ledger schema", err).WithContext("path", path)
	}

	return &Ledger{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the database
func (l *Ledger) Close() error {
	return l.db.Close()
}

// StartRun records a new running run
func (l *Ledger) StartRun(ctx context.Context, id, command string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, command, status, started_at) VALUES (?, ?, ?, ?)`,
		id, command, string(domain.RunRunning), l.now())
	if err != nil {
		return apperrors.NewStorageError("failed to record run start", err).WithContext("run_id", id)
	}
	return nil
}

// RecordWorkbook appends the outcome of one workbook to a run
func (l *Ledger) RecordWorkbook(ctx context.Context, runID string, o domain.WorkbookOutcome) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO workbook_outcomes
			(run_id, file, sector, fy, status, reason, error, sheet, match_rule, rows, null_amounts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, o.File, o.Sector, o.FY, string(o.Status), o.Reason, o.Error, o.Sheet, o.MatchRule, o.Rows, o.NullAmounts)
	if err != nil {
		return apperrors.NewStorageError("failed to record workbook outcome", err).
			WithContext("run_id", runID).WithContext("file", o.File)
	}
	return nil
}

// FinishRun marks a run completed, or failed when runErr is not nil
func (l *Ledger) FinishRun(ctx context.Context, id string, rows int64, runErr error) error {
	status := domain.RunCompleted
	message := ""
	if runErr != nil {
		status = domain.RunFailed
		message = runErr.Error()
	}

	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, rows = ?, error = ? WHERE id = ?`,
		string(status), l.now(), rows, message, id)
	if err != nil {
		return apperrors.NewStorageError("failed to record run finish", err).WithContext("run_id", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("run").WithContext("run_id", id)
	}
	return nil
}

// RecentRuns returns the latest n runs, newest first
func (l *Ledger) RecentRuns(ctx context.Context, n int) ([]domain.Run, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, command, status, started_at, finished_at, rows, error
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list runs", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		var r domain.Run
		var status string
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Command, &status, &r.StartedAt, &finished, &r.Rows, &r.Error); err != nil {
			return nil, apperrors.NewStorageError("failed to scan run", err)
		}
		r.Status = domain.RunStatus(status)
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Outcomes returns the workbook outcomes of a run in the order they were recorded
func (l *Ledger) Outcomes(ctx context.Context, runID string) ([]domain.WorkbookOutcome, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT file, sector, fy, status, reason, error, sheet, match_rule, rows, null_amounts
		FROM workbook_outcomes
		WHERE run_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list outcomes", err).WithContext("run_id", runID)
	}
	defer rows.Close()

	var out []domain.WorkbookOutcome
	for rows.Next() {
		var o domain.WorkbookOutcome
		var status string
		if err := rows.Scan(&o.File, &o.Sector, &o.FY, &status, &o.Reason, &o.Error, &o.Sheet, &o.MatchRule, &o.Rows, &o.NullAmounts); err != nil {
			return nil, apperrors.NewStorageError("failed to scan outcome", err)
		}
		o.Status = domain.WorkbookStatus(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

// Describe formats a run for one-line console output
func Describe(r domain.Run) string {
	finished := "-"
	if r.FinishedAt != nil {
		finished = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
	}
	return fmt.Sprintf("%s %s %s rows=%d duration=%s", r.ID, r.Command, r.Status, r.Rows, finished)
}
