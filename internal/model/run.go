package model

import "time"

// RunStatus represents the current state of a batch run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusAborted  RunStatus = "aborted"
)

// Stage names the pipeline step a case failed in.
type Stage string

const (
	StageRender    Stage = "render"
	StagePersist   Stage = "persist"
	StageInference Stage = "inference"
)

// CaseState is the lifecycle state of one batch slot.
type CaseState string

const (
	CaseStatePending   CaseState = "pending"
	CaseStateRunning   CaseState = "running"
	CaseStateSucceeded CaseState = "succeeded"
	CaseStateFailed    CaseState = "failed"
)

// Run is one batch execution.
type Run struct {
	ID        string     `json:"id"`
	Court     string     `json:"court"`
	Source    string     `json:"source"`
	Status    RunStatus  `json:"status"`
	Summary   RunSummary `json:"summary"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunSummary holds the counts reported at the end of a batch.
type RunSummary struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// CaseOutcome records what happened to one case in a batch.
type CaseOutcome struct {
	RunID          string      `json:"run_id,omitempty"`
	Index          int         `json:"index"`
	Case           BatchCase   `json:"case"`
	State          CaseState   `json:"state"`
	Stage          Stage       `json:"stage,omitempty"`
	Error          string      `json:"error,omitempty"`
	ErrorType      string      `json:"error_type,omitempty"`
	Attempts       int         `json:"attempts"`
	ScreenshotPath string      `json:"screenshot_path,omitempty"`
	Degraded       bool        `json:"degraded,omitempty"`
	Record         *CaseRecord `json:"record,omitempty"`
	StartedAt      time.Time   `json:"started_at"`
	FinishedAt     time.Time   `json:"finished_at"`

	Err error `json:"-"`
}

// RunFilter narrows ListRuns results.
type RunFilter struct {
	Status RunStatus
	Court  string
	Limit  int
	Offset int
}

// CaseFilter narrows ListCases results.
type CaseFilter struct {
	State CaseState
	Limit int
}
