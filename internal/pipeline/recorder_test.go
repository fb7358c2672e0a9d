package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sketchforge/internal/history"
	"sketchforge/internal/logging"
	"sketchforge/internal/payload"
	"sketchforge/internal/pipeline"
	"sketchforge/internal/testsupport"
)

func TestHistoryRecorderPersistsRuns(t *testing.T) {
	fake := testsupport.NewFakeService(t)
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	recorder := pipeline.NewHistoryRecorder(store, logging.NewNop())

	ctrl := newController(t, fake, pipeline.DefaultSettings(),
		pipeline.WithObserver(recorder),
		pipeline.WithSessionIDs(func() string { return fixedHash }))
	if _, err := ctrl.Generate(context.Background(), castleRequest(t)); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	run, err := store.Get(context.Background(), fixedHash)
	if err != nil || run == nil {
		t.Fatalf("expected stored run, got %v (err=%v)", run, err)
	}
	if run.Status != history.StatusCompleted || run.FinalPath != testsupport.StagePath(fixedHash, 2) {
		t.Fatalf("unexpected stored run: %+v", run)
	}
	if run.Prompt != "a castle" || run.NegativePrompt != "blurry" || run.Source != "castle.png" {
		t.Fatalf("unexpected stored prompts: %+v", run)
	}
	if len(run.Stages) != 4 || run.Stages[0].Stage != pipeline.StageUpload {
		t.Fatalf("expected upload plus 3 stage records, got %+v", run.Stages)
	}
}

func TestHistoryRecorderPersistsFailure(t *testing.T) {
	fake := testsupport.NewFakeService(t)
	fake.SetFailure(payload.StageRefine, testsupport.FailRemote)
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	ctrl := newController(t, fake, pipeline.DefaultSettings(),
		pipeline.WithObserver(pipeline.NewHistoryRecorder(store, nil)),
		pipeline.WithSessionIDs(func() string { return fixedHash }))
	_, _ = ctrl.Generate(context.Background(), castleRequest(t))

	run, err := store.Get(context.Background(), fixedHash)
	if err != nil || run == nil {
		t.Fatalf("expected stored run, got %v (err=%v)", run, err)
	}
	if run.Status != history.StatusFailed || run.ErrorKind != "malformed_response" {
		t.Fatalf("unexpected failure record: %+v", run)
	}
	if run.FailedStage == nil || *run.FailedStage != payload.StageRefine {
		t.Fatalf("expected failed stage 2, got %v", run.FailedStage)
	}
}

type recordedNotification struct {
	kind  string
	stage string
	err   error
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []recordedNotification
}

func (f *fakeNotifier) NotifyRunCompleted(context.Context, string, string, time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedNotification{kind: "completed"})
	return nil
}

func (f *fakeNotifier) NotifyRunFailed(_ context.Context, _ string, stage string, err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedNotification{kind: "failed", stage: stage, err: err})
	return nil
}

func (f *fakeNotifier) NotifyBatchCompleted(context.Context, int, int, time.Duration) error {
	return nil
}

func (f *fakeNotifier) TestNotification(context.Context) error { return nil }

func TestNotifierReportsOutcome(t *testing.T) {
	notifier := &fakeNotifier{}
	obs := pipeline.NewNotifier(notifier, nil)

	obs.RunFinished(context.Background(), &pipeline.Run{FinalPath: "/p2"}, nil)
	inner := errors.New("queue full")
	obs.RunFinished(context.Background(), &pipeline.Run{}, &pipeline.StageError{Stage: payload.StageImage, Err: inner})

	if len(notifier.calls) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(notifier.calls))
	}
	if notifier.calls[0].kind != "completed" {
		t.Fatalf("unexpected first notification: %+v", notifier.calls[0])
	}
	failed := notifier.calls[1]
	if failed.kind != "failed" || failed.stage != "image" || !errors.Is(failed.err, inner) {
		t.Fatalf("unexpected failure notification: %+v", failed)
	}
}
