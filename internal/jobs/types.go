package jobs

import "time"

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Sources recorded on a job.
const (
	SourceCron   = "cron"
	SourceManual = "manual"
	SourceCLI    = "cli"
)

type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Payload   Payload
}

// Payload selects what a sync run works on.
type Payload struct {
	Kind        string `json:"kind"`
	CatalogPath string `json:"catalog_path,omitempty"`
}

// Summary is the outcome of a finished sync run.
type Summary struct {
	RunID    string `json:"run_id"`
	Examined int    `json:"examined"`
	Updated  int    `json:"updated"`
	Skipped  int    `json:"skipped"`
	Partial  int    `json:"partial"`
}

type SyncJob struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	DedupeKey string    `json:"dedupe_key"`
	Payload   Payload   `json:"payload"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Summary   *Summary  `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the job is still waiting or running.
func (j *SyncJob) Active() bool {
	return j.Status == StatusPending || j.Status == StatusRunning
}
