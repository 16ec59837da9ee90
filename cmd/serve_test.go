package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/case-extractor/internal/config"
	"github.com/sells-group/case-extractor/internal/model"
	"github.com/sells-group/case-extractor/internal/store"
)

// seedRun stores a completed run with one succeeded and one failed case.
func seedRun(t *testing.T, st store.Store) *model.Run {
	t.Helper()
	ctx := context.Background()
	run, err := st.CreateRun(ctx, "broward", "cases.csv")
	require.NoError(t, err)

	now := time.Now().UTC()
	name := "Jane Doe"
	require.NoError(t, st.SaveOutcome(ctx, run.ID, model.CaseOutcome{
		Index: 0, Case: model.BatchCase{CaseNumber: "2024-CF-001", URL: "https://court.example/1"},
		State: model.CaseStateSucceeded, Attempts: 1, StartedAt: now, FinishedAt: now,
		Record: &model.CaseRecord{CaseNumber: "2024-CF-001", ClientName: &name},
	}))
	require.NoError(t, st.SaveOutcome(ctx, run.ID, model.CaseOutcome{
		Index: 1, Case: model.BatchCase{CaseNumber: "2024-CF-002", URL: "https://court.example/2"},
		State: model.CaseStateFailed, Stage: model.StageRender, Error: "timeout", Attempts: 1,
		StartedAt: now, FinishedAt: now,
	}))
	require.NoError(t, st.CompleteRun(ctx, run.ID, model.RunStatusComplete,
		model.RunSummary{Attempted: 2, Succeeded: 1, Failed: 1}, ""))
	return run
}

func doGet(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	st := newTestStore(t)
	h := newRouter(st, config.DefaultCourts(), nil)

	rec := doGet(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestRouter_HealthStoreDown(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "down.db"))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	rec := doGet(t, newRouter(st, config.DefaultCourts(), nil), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_Courts(t *testing.T) {
	h := newRouter(newTestStore(t), config.DefaultCourts(), nil)

	rec := doGet(t, h, "/courts")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []config.CourtProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	keys := make([]string, len(got))
	for i, p := range got {
		keys[i] = p.Key
	}
	assert.Equal(t, []string{"broward", "my_court", "palm_beach"}, keys)
}

func TestRouter_Runs(t *testing.T) {
	st := newTestStore(t)
	run := seedRun(t, st)
	h := newRouter(st, config.DefaultCourts(), nil)

	rec := doGet(t, h, "/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	rec = doGet(t, h, "/runs?status=aborted")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = doGet(t, h, "/runs?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doGet(t, h, "/runs?offset=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_GetRun(t *testing.T) {
	st := newTestStore(t)
	run := seedRun(t, st)
	h := newRouter(st, config.DefaultCourts(), nil)

	rec := doGet(t, h, "/runs/"+run.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, model.RunSummary{Attempted: 2, Succeeded: 1, Failed: 1}, got.Summary)

	rec = doGet(t, h, "/runs/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"run not found"}`, rec.Body.String())
}

func TestRouter_ListCases(t *testing.T) {
	st := newTestStore(t)
	run := seedRun(t, st)
	h := newRouter(st, config.DefaultCourts(), nil)

	rec := doGet(t, h, "/runs/"+run.ID+"/cases")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []model.CaseOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 2)
	require.NotNil(t, all[0].Record)
	require.NotNil(t, all[0].Record.ClientName)
	assert.Equal(t, "Jane Doe", *all[0].Record.ClientName)

	rec = doGet(t, h, "/runs/"+run.ID+"/cases?state=failed")
	require.Equal(t, http.StatusOK, rec.Code)
	var failed []model.CaseOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failed))
	require.Len(t, failed, 1)
	assert.Equal(t, "2024-CF-002", failed[0].Case.CaseNumber)
	assert.Equal(t, model.StageRender, failed[0].Stage)

	rec = doGet(t, h, "/runs/"+run.ID+"/cases?limit=x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doGet(t, h, "/runs/missing/cases")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_CORS(t *testing.T) {
	h := newRouter(newTestStore(t), config.DefaultCourts(), []string{"https://dash.example"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://dash.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://dash.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://other.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestQueryInt(t *testing.T) {
	n, err := queryInt("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = queryInt("25")
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	_, err = queryInt("-3")
	assert.Error(t, err)
	_, err = queryInt("ten")
	assert.Error(t, err)
}
