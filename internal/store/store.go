// Package store persists batch runs and their per-case outcomes.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/case-extractor/internal/db"
	"github.com/sells-group/case-extractor/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for batch runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, court, source string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)

	// Case outcomes
	SaveOutcome(ctx context.Context, runID string, outcome model.CaseOutcome) error
	ListCases(ctx context.Context, runID string, filter model.CaseFilter) ([]model.CaseOutcome, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

var outcomeColumns = []string{
	"run_id", "idx", "case_number", "url", "state", "stage", "error", "error_type",
	"attempts", "screenshot_path", "degraded", "record", "started_at", "finished_at",
}

// mustOutcomeUpsert builds the outcome upsert for a placeholder style. It
// panics on a malformed column list.
func mustOutcomeUpsert(ph db.Placeholder) string {
	q, err := db.UpsertSQL(db.UpsertConfig{
		Table:        "case_outcomes",
		Columns:      outcomeColumns,
		ConflictKeys: []string{"run_id", "idx"},
	}, ph)
	if err != nil {
		panic(err)
	}
	return q
}

// outcomeArgs returns the bind values for outcomeColumns.
func outcomeArgs(runID string, o model.CaseOutcome) ([]any, error) {
	var record any
	if o.Record != nil {
		b, err := json.Marshal(o.Record)
		if err != nil {
			return nil, eris.Wrap(err, "store: marshal record")
		}
		record = string(b)
	}
	return []any{
		runID, o.Index, o.Case.CaseNumber, o.Case.URL, string(o.State), string(o.Stage), o.Error, o.ErrorType,
		o.Attempts, o.ScreenshotPath, o.Degraded, record, o.StartedAt.UTC(), o.FinishedAt.UTC(),
	}, nil
}

func decodeRecord(o *model.CaseOutcome, record []byte) error {
	if len(record) == 0 {
		return nil
	}
	o.Record = &model.CaseRecord{}
	return eris.Wrap(json.Unmarshal(record, o.Record), "store: unmarshal record")
}

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}
