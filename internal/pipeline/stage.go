package pipeline

import (
	"fmt"
	"time"

	"sketchforge/internal/payload"
	"sketchforge/internal/services"
)

// StageUpload tags failures that happen before stage 0 runs.
const StageUpload = -1

// State is a stage's position in the queue lifecycle.
type State string

const (
	StateJoining   State = "JOINING"
	StateSubmitted State = "SUBMITTED"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

// StageName returns the human label for a stage index.
func StageName(stage int) string {
	switch stage {
	case StageUpload:
		return "upload"
	case payload.StageSketch:
		return "sketch"
	case payload.StageImage:
		return "image"
	case payload.StageRefine:
		return "refine"
	default:
		return fmt.Sprintf("stage-%d", stage)
	}
}

// StageResult is the server-side asset a stage (or the upload) produced.
type StageResult struct {
	Stage    int
	Path     string
	URL      string
	Duration time.Duration
}

// Asset converts the result into the reference the next stage consumes.
func (r StageResult) Asset() payload.Asset {
	return payload.Asset{Path: r.Path, URL: r.URL}
}

// StageError tags a terminal run failure with the stage it occurred in.
type StageError struct {
	Stage int
	Err   error
}

func (e *StageError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (stage %d): %v", StageName(e.Stage), e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Kind returns the error classification label.
func (e *StageError) Kind() string {
	if e == nil {
		return ""
	}
	return services.Kind(e.Err)
}
