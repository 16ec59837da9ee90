package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/case-extractor/internal/model"
)

func newMockSQLiteStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() }) //nolint:errcheck
	return &SQLiteStore{db: sqlDB}, mock
}

func TestSQLiteMock_CreateRun_ExecError(t *testing.T) {
	s, mock := newMockSQLiteStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(sqlmock.AnyArg(), "cook-county", "cases.csv", "running", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("disk I/O error"))

	_, err := s.CreateRun(context.Background(), "cook-county", "cases.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteMock_CompleteRun_NoRows(t *testing.T) {
	s, mock := newMockSQLiteStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \?`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.CompleteRun(context.Background(), "gone", model.RunStatusComplete, model.RunSummary{}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteMock_CompleteRun_RowsAffectedError(t *testing.T) {
	s, mock := newMockSQLiteStore(t)

	mock.ExpectExec(`UPDATE runs`).
		WillReturnResult(sqlmock.NewErrorResult(errors.New("driver does not support")))

	err := s.CompleteRun(context.Background(), "r1", model.RunStatusComplete, model.RunSummary{}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rows affected")
}

func TestSQLiteMock_ListRuns_QueryError(t *testing.T) {
	s, mock := newMockSQLiteStore(t)

	mock.ExpectQuery(`SELECT id, court, source, status, .* FROM runs WHERE 1=1 AND status = \? ORDER BY created_at DESC LIMIT \?`).
		WithArgs("aborted", 100).
		WillReturnError(errors.New("database is locked"))

	_, err := s.ListRuns(context.Background(), model.RunFilter{Status: model.RunStatusAborted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list runs")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteMock_SaveOutcome_Upsert(t *testing.T) {
	s, mock := newMockSQLiteStore(t)

	mock.ExpectExec(`INSERT INTO "case_outcomes" .* ON CONFLICT \("run_id", "idx"\) DO UPDATE`).
		WithArgs("r1", 2, "CR-1", "https://c.example/1", "failed", "render", "timeout", "", 1, "", false,
			nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	o := model.CaseOutcome{
		Index:    2,
		Case:     model.BatchCase{CaseNumber: "CR-1", URL: "https://c.example/1"},
		State:    model.CaseStateFailed,
		Stage:    model.StageRender,
		Error:    "timeout",
		Attempts: 1,
	}
	require.NoError(t, s.SaveOutcome(context.Background(), "r1", o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteMock_ListCases_ScanError(t *testing.T) {
	s, mock := newMockSQLiteStore(t)

	rows := sqlmock.NewRows([]string{"run_id"}).AddRow("r1")
	mock.ExpectQuery(`FROM case_outcomes WHERE run_id = \?`).WillReturnRows(rows)

	_, err := s.ListCases(context.Background(), "r1", model.CaseFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan case")
}
