package history

import "time"

// Status tracks a run's lifecycle.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one persisted pipeline execution.
type Run struct {
	ID             int64
	SessionHash    string
	Prompt         string
	NegativePrompt string
	Source         string
	Status         Status
	FinalPath      string
	ErrorKind      string
	ErrorMessage   string
	// FailedStage is nil unless Status is StatusFailed.
	FailedStage *int
	Stages      []StageRecord
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StageRecord is the service path returned by one completed stage.
type StageRecord struct {
	Stage       int
	Path        string
	URL         string
	CompletedAt time.Time
}

// BeginParams describes a new run.
type BeginParams struct {
	SessionHash    string
	Prompt         string
	NegativePrompt string
	Source         string
}

// Duration reports how long the run has taken so far.
func (r Run) Duration() time.Duration {
	if r.CreatedAt.IsZero() || r.UpdatedAt.Before(r.CreatedAt) {
		return 0
	}
	return r.UpdatedAt.Sub(r.CreatedAt)
}
