package merge

import "time"

// ── Jobs ───────────────────────────────────────────────────
// A Job is a stored, re-runnable merge: new Kaggle snapshot lands, the same
// source/destination pair gets reconciled again. Jobs can run manually, on a
// cron schedule, or when the source snapshot file changes.

// Trigger types for stored jobs.
const (
	TriggerManual    = "manual"
	TriggerSchedule  = "schedule"   // TriggerConfig holds a cron expression
	TriggerFileWatch = "file_watch" // TriggerConfig holds a path to watch
)

// Job is a persisted merge configuration.
type Job struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Config        Config    `json:"config"`
	TriggerType   string    `json:"triggerType"`
	TriggerConfig string    `json:"triggerConfig"`
	Enabled       bool      `json:"enabled"`
	LastRunAt     time.Time `json:"lastRunAt"`
	LastStatus    string    `json:"lastStatus"` // "success" | "error" | "running" | ""
	LastError     string    `json:"lastError"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// RunLog is a historical record of one merge run.
type RunLog struct {
	ID           string    `json:"id"`
	JobID        string    `json:"jobId"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
	Status       string    `json:"status"`
	RowsScanned  int       `json:"rowsScanned"`
	RowsInserted int       `json:"rowsInserted"`
	Error        string    `json:"error,omitempty"`
}
