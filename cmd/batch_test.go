package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/case-extractor/internal/config"
	"github.com/sells-group/case-extractor/internal/model"
	"github.com/sells-group/case-extractor/internal/monitoring"
	"github.com/sells-group/case-extractor/internal/pipeline"
	"github.com/sells-group/case-extractor/internal/render"
	"github.com/sells-group/case-extractor/internal/store"
)

// stubRunner extracts a record for every case except those listed in fail.
type stubRunner struct {
	fail map[string]error
}

func (s *stubRunner) Run(_ context.Context, url, caseNumber, _ string) (*model.Extraction, error) {
	if err := s.fail[caseNumber]; err != nil {
		return nil, err
	}
	name := "Client " + caseNumber
	return &model.Extraction{
		Record: &model.CaseRecord{CaseNumber: caseNumber, PageURL: url, ClientName: &name},
	}, nil
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testCases() []model.BatchCase {
	return []model.BatchCase{
		{CaseNumber: "2024-CF-001", URL: "https://court.example/1"},
		{CaseNumber: "2024-CF-002", URL: "https://court.example/2"},
		{CaseNumber: "2024-CF-003", URL: "https://court.example/3"},
	}
}

func renderFailure(caseNumber string, err error) error {
	return &pipeline.Failure{Stage: model.StageRender, CaseNumber: caseNumber, Err: err}
}

func onlyRun(t *testing.T, st store.Store) model.Run {
	t.Helper()
	runs, err := st.ListRuns(context.Background(), model.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	return runs[0]
}

func TestRunBatch_SkipsFailedCase(t *testing.T) {
	c := testConfig(t)
	withConfig(t, c)
	st := newTestStore(t)
	ctx := context.Background()

	var out bytes.Buffer
	err := runBatch(ctx, batchJob{
		Store:  st,
		Runner: &stubRunner{fail: map[string]error{"2024-CF-002": renderFailure("2024-CF-002", errors.New("timeout"))}},
		Cases:  testCases(),
		Source: "cases.csv",
		Out:    &out,
	})
	require.NoError(t, err)

	run := onlyRun(t, st)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, "cases.csv", run.Source)
	assert.Equal(t, model.RunSummary{Attempted: 3, Succeeded: 2, Failed: 1}, run.Summary)
	assert.Empty(t, run.Error)

	outcomes, err := st.ListCases(ctx, run.ID, model.CaseFilter{})
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, model.CaseStateSucceeded, outcomes[0].State)
	require.NotNil(t, outcomes[0].Record)
	assert.Equal(t, "2024-CF-001", outcomes[0].Record.CaseNumber)
	assert.Equal(t, model.CaseStateFailed, outcomes[1].State)
	assert.Equal(t, model.StageRender, outcomes[1].Stage)
	assert.Contains(t, outcomes[1].Error, "timeout")

	entries, err := os.ReadDir(c.Output.Dir)
	require.NoError(t, err)
	var files []string
	for _, e := range entries {
		files = append(files, filepath.Ext(e.Name()))
	}
	assert.ElementsMatch(t, []string{".csv", ".json"}, files)

	assert.Contains(t, out.String(), "Run ID: "+run.ID)
	assert.Contains(t, out.String(), "Succeeded")
}

func TestRunBatch_AbortStillRecordsAndExports(t *testing.T) {
	c := testConfig(t)
	withConfig(t, c)
	st := newTestStore(t)

	fatal := renderFailure("2024-CF-002", &render.AcquireError{Err: errors.New("browser gone")})
	runner := &stubRunner{fail: map[string]error{"2024-CF-002": fatal}}

	err := runBatch(context.Background(), batchJob{Store: st, Runner: runner, Cases: testCases()})
	require.Error(t, err)
	assert.True(t, render.IsFatal(err))

	run := onlyRun(t, st)
	assert.Equal(t, model.RunStatusAborted, run.Status)
	assert.Equal(t, model.RunSummary{Attempted: 2, Succeeded: 1, Failed: 1}, run.Summary)
	assert.Contains(t, run.Error, "browser gone")

	entries, err := os.ReadDir(c.Output.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRunBatch_NoRecordsWritesNothing(t *testing.T) {
	c := testConfig(t)
	withConfig(t, c)
	st := newTestStore(t)

	cases := testCases()[:1]
	runner := &stubRunner{fail: map[string]error{cases[0].CaseNumber: renderFailure(cases[0].CaseNumber, errors.New("404"))}}

	require.NoError(t, runBatch(context.Background(), batchJob{Store: st, Runner: runner, Cases: cases}))

	entries, err := os.ReadDir(c.Output.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, model.RunSummary{Attempted: 1, Failed: 1}, onlyRun(t, st).Summary)
}

func TestRunBatch_CourtProfileLabelsRun(t *testing.T) {
	c := testConfig(t)
	withConfig(t, c)
	st := newTestStore(t)

	court := &config.CourtProfile{Key: "test_court", OutputDir: filepath.Join(t.TempDir(), "court")}
	cases := testCases()[:1]

	require.NoError(t, runBatch(context.Background(), batchJob{
		Store: st, Runner: &stubRunner{}, Cases: cases, Court: court, Formats: []string{"json"},
	}))

	assert.Equal(t, "test_court", onlyRun(t, st).Court)
	entries, err := os.ReadDir(court.OutputDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".json", filepath.Ext(entries[0].Name()))
}

func TestRunBatch_AlertsOnAbort(t *testing.T) {
	c := testConfig(t)
	withConfig(t, c)
	st := newTestStore(t)

	var (
		mu     sync.Mutex
		alerts []monitoring.Alert
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var a monitoring.Alert
		if err := json.NewDecoder(r.Body).Decode(&a); err == nil {
			mu.Lock()
			alerts = append(alerts, a)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	alerter := monitoring.NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL, FailureRateThreshold: 0.9, MinCases: 5})
	fatal := renderFailure("2024-CF-001", &render.AcquireError{Err: errors.New("browser gone")})

	err := runBatch(context.Background(), batchJob{
		Store:   st,
		Runner:  &stubRunner{fail: map[string]error{"2024-CF-001": fatal}},
		Cases:   testCases(),
		Alerter: alerter,
	})
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, alerts, 1)
	assert.Equal(t, monitoring.AlertRunAborted, alerts[0].Type)
}

func TestFailedCases(t *testing.T) {
	c := testConfig(t)
	withConfig(t, c)
	st := newTestStore(t)
	ctx := context.Background()

	runner := &stubRunner{fail: map[string]error{"2024-CF-003": renderFailure("2024-CF-003", errors.New("timeout"))}}
	require.NoError(t, runBatch(ctx, batchJob{Store: st, Runner: runner, Cases: testCases()}))

	cases, err := failedCases(ctx, st, onlyRun(t, st).ID)
	require.NoError(t, err)
	assert.Equal(t, []model.BatchCase{{CaseNumber: "2024-CF-003", URL: "https://court.example/3"}}, cases)

	_, err = failedCases(ctx, st, "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
