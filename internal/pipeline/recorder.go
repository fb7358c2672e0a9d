package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"sketchforge/internal/history"
	"sketchforge/internal/logging"
	"sketchforge/internal/notifications"
	"sketchforge/internal/services"
)

// RunStore is the persistence surface the recorder writes through.
// *history.Store implements it.
type RunStore interface {
	Begin(ctx context.Context, params history.BeginParams) (*history.Run, error)
	RecordStage(ctx context.Context, sessionHash string, stage int, path, url string) error
	Complete(ctx context.Context, sessionHash, finalPath string) error
	Fail(ctx context.Context, sessionHash string, stage int, kind, message string) error
}

// HistoryRecorder persists runs as they progress. Store errors are logged and
// never abort the run.
type HistoryRecorder struct {
	NopObserver
	store  RunStore
	logger *slog.Logger
}

// NewHistoryRecorder adapts a run store to the Observer interface.
func NewHistoryRecorder(store RunStore, logger *slog.Logger) *HistoryRecorder {
	return &HistoryRecorder{store: store, logger: logging.NewComponentLogger(logger, "history")}
}

func (r *HistoryRecorder) RunStarted(ctx context.Context, run *Run) {
	ctx = context.WithoutCancel(ctx)
	_, err := r.store.Begin(ctx, history.BeginParams{
		SessionHash:    run.SessionHash,
		Prompt:         run.Prompt,
		NegativePrompt: run.NegativePrompt,
		Source:         run.Source,
	})
	r.warn(ctx, "record run start", err)
}

func (r *HistoryRecorder) StageCompleted(ctx context.Context, sessionHash string, result StageResult) {
	ctx = context.WithoutCancel(ctx)
	r.warn(ctx, "record stage result", r.store.RecordStage(ctx, sessionHash, result.Stage, result.Path, result.URL))
}

// RunFinished writes the terminal state even when the run's context was canceled.
func (r *HistoryRecorder) RunFinished(ctx context.Context, run *Run, err error) {
	ctx = context.WithoutCancel(ctx)
	if err == nil {
		r.warn(ctx, "record run completion", r.store.Complete(ctx, run.SessionHash, run.FinalPath))
		return
	}
	stage := StageUpload
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		stage = stageErr.Stage
	}
	r.warn(ctx, "record run failure", r.store.Fail(ctx, run.SessionHash, stage, services.Kind(err), err.Error()))
}

func (r *HistoryRecorder) warn(ctx context.Context, msg string, err error) {
	if err == nil {
		return
	}
	logging.WithContext(ctx, r.logger).Warn(
		msg,
		logging.String(logging.FieldEventType, "history_write_failed"),
		logging.String(logging.FieldErrorHint, "run history may be incomplete"),
		logging.Error(err),
	)
}

// Notifier publishes terminal run outcomes.
type Notifier struct {
	NopObserver
	service notifications.Service
	logger  *slog.Logger
}

// NewNotifier adapts a notification service to the Observer interface.
func NewNotifier(service notifications.Service, logger *slog.Logger) *Notifier {
	return &Notifier{service: service, logger: logging.NewComponentLogger(logger, "notifications")}
}

func (n *Notifier) RunFinished(ctx context.Context, run *Run, err error) {
	if n.service == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	var notifyErr error
	if err == nil {
		notifyErr = n.service.NotifyRunCompleted(ctx, run.Prompt, run.FinalURL, run.Duration())
	} else {
		stage := ""
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			stage = StageName(stageErr.Stage)
			err = stageErr.Err
		}
		notifyErr = n.service.NotifyRunFailed(ctx, run.Prompt, stage, err)
	}
	if notifyErr != nil {
		logging.WithContext(ctx, n.logger).Debug("run notification failed", logging.Error(notifyErr))
	}
}
