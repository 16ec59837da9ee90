package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/case-extractor/internal/db"
	"github.com/sells-group/case-extractor/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var postgresOutcomeUpsert = mustOutcomeUpsert(db.Dollar)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	court      TEXT NOT NULL DEFAULT '',
	source     TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'running',
	attempted  INTEGER NOT NULL DEFAULT 0,
	succeeded  INTEGER NOT NULL DEFAULT 0,
	failed     INTEGER NOT NULL DEFAULT 0,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
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
	degraded        BOOLEAN NOT NULL DEFAULT false,
	record          JSONB,
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_court ON runs(court);
CREATE INDEX IF NOT EXISTS idx_case_outcomes_state ON case_outcomes(run_id, state);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, court, source string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, court, source, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, court, source, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
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

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, attempted = $2, succeeded = $3, failed = $4, error = $5, updated_at = $6 WHERE id = $7`,
		string(status), summary.Attempted, summary.Succeeded, summary.Failed, errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx, runSelect+` WHERE id = $1`, runID)
	r, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get run")
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	query := runSelect + ` WHERE 1=1`
	var args []any
	argN := 1

	if filter.Status != "" {
		query += ` AND status = ` + db.Dollar(argN)
		args = append(args, string(filter.Status))
		argN++
	}
	if filter.Court != "" {
		query += ` AND court = ` + db.Dollar(argN)
		args = append(args, filter.Court)
		argN++
	}
	query += ` ORDER BY created_at DESC LIMIT ` + db.Dollar(argN)
	args = append(args, listLimit(filter.Limit))
	argN++

	if filter.Offset > 0 {
		query += ` OFFSET ` + db.Dollar(argN)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveOutcome(ctx context.Context, runID string, outcome model.CaseOutcome) error {
	args, err := outcomeArgs(runID, outcome)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, postgresOutcomeUpsert, args...)
	return eris.Wrapf(err, "postgres: save outcome %s/%d", runID, outcome.Index)
}

func (s *PostgresStore) ListCases(ctx context.Context, runID string, filter model.CaseFilter) ([]model.CaseOutcome, error) {
	query := outcomeSelect + ` WHERE run_id = $1`
	args := []any{runID}
	if filter.State != "" {
		query += ` AND state = $2`
		args = append(args, string(filter.State))
	}
	query += ` ORDER BY idx LIMIT ` + db.Dollar(len(args)+1)
	args = append(args, listLimit(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list cases")
	}
	defer rows.Close()

	var out []model.CaseOutcome
	for rows.Next() {
		var (
			o      model.CaseOutcome
			record []byte
		)
		err := rows.Scan(&o.RunID, &o.Index, &o.Case.CaseNumber, &o.Case.URL, &o.State, &o.Stage,
			&o.Error, &o.ErrorType, &o.Attempts, &o.ScreenshotPath, &o.Degraded, &record,
			&o.StartedAt, &o.FinishedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan case")
		}
		if err := decodeRecord(&o, record); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list cases iterate")
}
