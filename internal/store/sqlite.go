package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/case-extractor/internal/db"
	"github.com/sells-group/case-extractor/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var sqliteOutcomeUpsert = mustOutcomeUpsert(db.Question)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: conn}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	court      TEXT NOT NULL DEFAULT '',
	source     TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'running',
	attempted  INTEGER NOT NULL DEFAULT 0,
	succeeded  INTEGER NOT NULL DEFAULT 0,
	failed     INTEGER NOT NULL DEFAULT 0,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS case_outcomes (
	run_id          TEXT NOT NULL REFERENCES runs(id),
	idx             INTEGER NOT NULL,
	case_number     TEXT NOT NULL,
	url             TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL,
	stage           TEXT NOT NULL DEFAULT '',
	error           TEXT NOT NULL DEFAULT '',
	error_type      TEXT NOT NULL DEFAULT '',
	attempts        INTEGER NOT NULL DEFAULT 0,
	screenshot_path TEXT NOT NULL DEFAULT '',
	degraded        INTEGER NOT NULL DEFAULT 0,
	record          TEXT,
	started_at      DATETIME NOT NULL,
	finished_at     DATETIME NOT NULL,
	PRIMARY KEY (run_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_court ON runs(court);
CREATE INDEX IF NOT EXISTS idx_case_outcomes_state ON case_outcomes(run_id, state);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, court, source string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, court, source, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, court, source, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Court:     court,
		Source:    source,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, attempted = ?, succeeded = ?, failed = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), summary.Attempted, summary.Succeeded, summary.Failed, errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

const runSelect = `SELECT id, court, source, status, attempted, succeeded, failed, error, created_at, updated_at FROM runs`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, runSelect+` WHERE id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get run")
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	query := runSelect + ` WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Court != "" {
		query += ` AND court = ?`
		args = append(args, filter.Court)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveOutcome(ctx context.Context, runID string, outcome model.CaseOutcome) error {
	args, err := outcomeArgs(runID, outcome)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, sqliteOutcomeUpsert, args...)
	return eris.Wrapf(err, "sqlite: save outcome %s/%d", runID, outcome.Index)
}

const outcomeSelect = `SELECT run_id, idx, case_number, url, state, stage, error, error_type, attempts,
	screenshot_path, degraded, record, started_at, finished_at FROM case_outcomes`

func (s *SQLiteStore) ListCases(ctx context.Context, runID string, filter model.CaseFilter) ([]model.CaseOutcome, error) {
	query := outcomeSelect + ` WHERE run_id = ?`
	args := []any{runID}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}
	query += ` ORDER BY idx LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list cases")
	}
	defer rows.Close()

	var out []model.CaseOutcome
	for rows.Next() {
		var (
			o      model.CaseOutcome
			record sql.NullString
		)
		err := rows.Scan(&o.RunID, &o.Index, &o.Case.CaseNumber, &o.Case.URL, &o.State, &o.Stage,
			&o.Error, &o.ErrorType, &o.Attempts, &o.ScreenshotPath, &o.Degraded, &record,
			&o.StartedAt, &o.FinishedAt)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan case")
		}
		if record.Valid {
			if err := decodeRecord(&o, []byte(record.String)); err != nil {
				return nil, err
			}
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list cases iterate")
}

// helpers

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	err := row.Scan(&r.ID, &r.Court, &r.Source, &r.Status,
		&r.Summary.Attempted, &r.Summary.Succeeded, &r.Summary.Failed,
		&r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
