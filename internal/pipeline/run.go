package pipeline

import (
	"time"

	"sketchforge/internal/imageio"
)

// Request is one generation job.
type Request struct {
	Image          imageio.Texture
	Prompt         string
	NegativePrompt string
	// Source labels where the sketch came from (usually its file path).
	Source string
}

// Run aggregates everything one pipeline execution produced. Stages holds the
// completed stage results in order; on failure it stops at the last success.
type Run struct {
	SessionHash    string
	Prompt         string
	NegativePrompt string
	Source         string
	Upload         StageResult
	Stages         []StageResult
	FinalPath      string
	FinalURL       string
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Completed reports whether all stages finished.
func (r *Run) Completed() bool {
	return r != nil && r.FinalPath != ""
}

// Duration is the wall time of the run.
func (r *Run) Duration() time.Duration {
	if r == nil || r.StartedAt.IsZero() || r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
