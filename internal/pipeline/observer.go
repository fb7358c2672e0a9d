package pipeline

import (
	"context"

	"sketchforge/internal/services/gradio"
)

// Observer receives progress at every stage boundary. Implementations must
// be safe for concurrent use when shared across batch runs.
type Observer interface {
	RunStarted(ctx context.Context, run *Run)
	StageStarted(ctx context.Context, sessionHash string, stage int)
	StageSubmitted(ctx context.Context, sessionHash string, stage int, eventID string)
	QueueEvent(ctx context.Context, sessionHash string, stage int, ev gradio.Event)
	StageCompleted(ctx context.Context, sessionHash string, result StageResult)
	StageFailed(ctx context.Context, sessionHash string, stage int, err error)
	RunFinished(ctx context.Context, run *Run, err error)
}

// NopObserver ignores every event. Embed it to implement only some callbacks.
type NopObserver struct{}

func (NopObserver) RunStarted(context.Context, *Run)                      {}
func (NopObserver) StageStarted(context.Context, string, int)             {}
func (NopObserver) StageSubmitted(context.Context, string, int, string)   {}
func (NopObserver) QueueEvent(context.Context, string, int, gradio.Event) {}
func (NopObserver) StageCompleted(context.Context, string, StageResult)   {}
func (NopObserver) StageFailed(context.Context, string, int, error)       {}
func (NopObserver) RunFinished(context.Context, *Run, error)              {}

// Observers fans every event out to each member in order.
type Observers []Observer

func (o Observers) RunStarted(ctx context.Context, run *Run) {
	for _, obs := range o {
		obs.RunStarted(ctx, run)
	}
}

func (o Observers) StageStarted(ctx context.Context, sessionHash string, stage int) {
	for _, obs := range o {
		obs.StageStarted(ctx, sessionHash, stage)
	}
}

func (o Observers) StageSubmitted(ctx context.Context, sessionHash string, stage int, eventID string) {
	for _, obs := range o {
		obs.StageSubmitted(ctx, sessionHash, stage, eventID)
	}
}

func (o Observers) QueueEvent(ctx context.Context, sessionHash string, stage int, ev gradio.Event) {
	for _, obs := range o {
		obs.QueueEvent(ctx, sessionHash, stage, ev)
	}
}

func (o Observers) StageCompleted(ctx context.Context, sessionHash string, result StageResult) {
	for _, obs := range o {
		obs.StageCompleted(ctx, sessionHash, result)
	}
}

func (o Observers) StageFailed(ctx context.Context, sessionHash string, stage int, err error) {
	for _, obs := range o {
		obs.StageFailed(ctx, sessionHash, stage, err)
	}
}

func (o Observers) RunFinished(ctx context.Context, run *Run, err error) {
	for _, obs := range o {
		obs.RunFinished(ctx, run, err)
	}
}

func observerOrNop(obs Observer) Observer {
	if obs == nil {
		return NopObserver{}
	}
	return obs
}
