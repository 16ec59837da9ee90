// Package monitoring raises webhook alerts when batch runs go wrong.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/case-extractor/internal/model"
)

// Snapshot aggregates run and case counts over a set of runs.
type Snapshot struct {
	Runs         int `json:"runs"`
	RunsComplete int `json:"runs_complete"`
	RunsAborted  int `json:"runs_aborted"`
	RunsRunning  int `json:"runs_running"`

	CasesAttempted int     `json:"cases_attempted"`
	CasesSucceeded int     `json:"cases_succeeded"`
	CasesFailed    int     `json:"cases_failed"`
	CaseFailRate   float64 `json:"case_fail_rate"`

	LastAbortError string `json:"last_abort_error,omitempty"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the store method the collector reads from.
type RunLister interface {
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)
}

// Collector gathers snapshots from the run store.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new snapshot collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect summarizes the runs created within the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.now().UTC()
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.runs.ListRuns(ctx, model.RunFilter{Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	var window []model.Run
	for _, r := range runs {
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		window = append(window, r)
	}

	snap := Summarize(window...)
	snap.LookbackHours = lookbackHours
	snap.CollectedAt = now
	return snap, nil
}

// Summarize builds a snapshot from the given runs. Passing one finished
// run evaluates that batch alone.
func Summarize(runs ...model.Run) *Snapshot {
	snap := &Snapshot{CollectedAt: time.Now().UTC()}
	for _, r := range runs {
		snap.Runs++
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusAborted:
			snap.RunsAborted++
			snap.LastAbortError = r.Error
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
		snap.CasesAttempted += r.Summary.Attempted
		snap.CasesSucceeded += r.Summary.Succeeded
		snap.CasesFailed += r.Summary.Failed
	}
	if snap.CasesAttempted > 0 {
		snap.CaseFailRate = float64(snap.CasesFailed) / float64(snap.CasesAttempted)
	}
	return snap
}
