package models

import "time"

const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusError     = "error"
)

const (
	JobTypeScan     = "scan"
	JobTypeScrape   = "scrape"
	JobTypeDownload = "download"
	JobTypeGenerate = "generate"
)

// Job is one server-side unit of work as observed by the console. The
// server owns the lifecycle; the console only reads and acknowledges.
// Status transitions are monotonic: queued -> running -> completed|error.
// A stopped job is a completed job carrying the Stopped flag, since it may
// still have persisted partial results.
type Job struct {
	ID            string        `json:"id"`
	Type          string        `json:"type"`
	Status        string        `json:"status"`
	Stopped       bool          `json:"stopped"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	CurrentStep   int           `json:"current_step"`
	TotalSteps    int           `json:"total_steps"`
	Progress      float64       `json:"progress"`
	Platform      string        `json:"platform"`
	Username      string        `json:"username"`
	RefreshNeeded bool          `json:"refresh_needed"`
}

// Terminal reports whether the job has left the running state for good.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusError
}

// Active reports whether the job still occupies its resource.
func (j *Job) Active() bool {
	return j.Status == JobStatusQueued || j.Status == JobStatusRunning
}

// Succeeded reports whether the job completed without error. Stopped jobs
// count as succeeded; partial results are results.
func (j *Job) Succeeded() bool {
	return j.Status == JobStatusCompleted
}

// JobQueueView is a read-only snapshot of the server's queue. Never
// mutated locally.
type JobQueueView struct {
	Length  int    `json:"length"`
	Queued  []*Job `json:"queued"`
	Current *Job   `json:"current,omitempty"`
}
