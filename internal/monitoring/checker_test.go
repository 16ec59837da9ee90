package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/sells-group/case-extractor/internal/config"
	"github.com/sells-group/case-extractor/internal/model"
)

func TestChecker_RunStopsOnCancel(t *testing.T) {
	runs := &mockRuns{}
	runs.On("ListRuns", mock.Anything, mock.Anything).Return([]model.Run{}, nil).Maybe()
	cfg := config.MonitoringConfig{
		CheckIntervalSecs:    1,
		LookbackWindowHours:  24,
		FailureRateThreshold: 0.10,
	}
	checker := NewChecker(NewCollector(runs), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_DefaultInterval(t *testing.T) {
	checker := NewChecker(NewCollector(&mockRuns{}), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
}

func TestChecker_Check_SendsAlerts(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	runs := &mockRuns{}
	runs.On("ListRuns", mock.Anything, mock.Anything).
		Return([]model.Run{runWith(model.RunStatusAborted, 6, 0, 6, "browser crashed")}, nil)

	cfg := config.MonitoringConfig{WebhookURL: ts.URL, FailureRateThreshold: 0.5, LookbackWindowHours: 24}
	checker := NewChecker(NewCollector(runs), NewAlerter(cfg), cfg)

	sent := checker.check(context.Background(), zap.NewNop())
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestChecker_Check_SuppressesRepeats(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	runs := &mockRuns{}
	runs.On("ListRuns", mock.Anything, mock.Anything).
		Return([]model.Run{runWith(model.RunStatusAborted, 2, 1, 1, "browser crashed")}, nil).Twice()
	runs.On("ListRuns", mock.Anything, mock.Anything).
		Return([]model.Run{runWith(model.RunStatusComplete, 2, 2, 0, "")}, nil).Once()
	runs.On("ListRuns", mock.Anything, mock.Anything).
		Return([]model.Run{runWith(model.RunStatusAborted, 2, 1, 1, "browser crashed")}, nil).Once()

	cfg := config.MonitoringConfig{WebhookURL: ts.URL, FailureRateThreshold: 0.5, LookbackWindowHours: 24}
	checker := NewChecker(NewCollector(runs), NewAlerter(cfg), cfg)
	log := zap.NewNop()

	assert.Equal(t, 1, checker.check(context.Background(), log))
	assert.Equal(t, 0, checker.check(context.Background(), log), "unchanged abort is not re-sent")
	assert.Equal(t, 0, checker.check(context.Background(), log))
	assert.Equal(t, 1, checker.check(context.Background(), log), "abort after recovery alerts again")
	assert.Equal(t, int32(2), received.Load())
}

func TestChecker_Check_RetriesUndelivered(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusInternalServerError)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer ts.Close()

	runs := &mockRuns{}
	runs.On("ListRuns", mock.Anything, mock.Anything).
		Return([]model.Run{runWith(model.RunStatusAborted, 1, 0, 1, "gone")}, nil)

	cfg := config.MonitoringConfig{WebhookURL: ts.URL, LookbackWindowHours: 24}
	checker := NewChecker(NewCollector(runs), NewAlerter(cfg), cfg)

	assert.Equal(t, 0, checker.check(context.Background(), zap.NewNop()))
	status.Store(http.StatusOK)
	assert.Equal(t, 1, checker.check(context.Background(), zap.NewNop()))
}

func TestChecker_Check_CollectError(t *testing.T) {
	runs := &mockRuns{}
	runs.On("ListRuns", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	cfg := config.MonitoringConfig{WebhookURL: "http://unused.example"}
	checker := NewChecker(NewCollector(runs), NewAlerter(cfg), cfg)

	assert.Equal(t, 0, checker.check(context.Background(), zap.NewNop()))
}
