package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"sketchforge/internal/payload"
	"sketchforge/internal/services"
	"sketchforge/internal/services/gradio"
)

type stubTransport struct {
	joinErr   error
	submitErr error
	path      string
	block     bool
	eta       *float64
	joined    []int
}

func (s *stubTransport) Join(_ context.Context, stage int, hash string) (*gradio.Channel, error) {
	s.joined = append(s.joined, stage)
	if s.joinErr != nil {
		return nil, s.joinErr
	}
	return &gradio.Channel{Stage: stage, SessionHash: hash, EventID: "ev"}, nil
}

func (s *stubTransport) Submit(ctx context.Context, _ *gradio.Channel, _ payload.Payload, onEvent gradio.EventHandler) (string, error) {
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if s.submitErr != nil {
		return "", s.submitErr
	}
	if s.eta != nil {
		onEvent(gradio.Event{Msg: gradio.MsgEstimation, RankETA: s.eta})
	}
	onEvent(gradio.Event{Msg: gradio.MsgProcessStarts})
	return s.path, nil
}

func (s *stubTransport) FileURL(path string) string { return "http://svc/file=" + path }

func refine(t *testing.T) payload.Payload {
	t.Helper()
	p, err := payload.BuildRefine(
		payload.Asset{Path: "/p1.png", URL: "http://svc/file=/p1.png"},
		payload.DefaultRefineParams(),
		payload.Meta{SessionHash: "abcdefabcd", TriggerID: payload.DefaultTriggerID},
	)
	if err != nil {
		t.Fatalf("BuildRefine: %v", err)
	}
	return p
}

type stateLog struct {
	NopObserver
	states []State
	events int
}

func (l *stateLog) StageStarted(context.Context, string, int)           { l.states = append(l.states, StateJoining) }
func (l *stateLog) StageSubmitted(context.Context, string, int, string) { l.states = append(l.states, StateSubmitted) }
func (l *stateLog) StageCompleted(context.Context, string, StageResult) { l.states = append(l.states, StateCompleted) }
func (l *stateLog) StageFailed(context.Context, string, int, error)     { l.states = append(l.states, StateFailed) }
func (l *stateLog) QueueEvent(context.Context, string, int, gradio.Event) {
	l.events++
}

func TestRunStageTransitions(t *testing.T) {
	transport := &stubTransport{path: "/p2.png"}
	orch := NewOrchestrator(transport, time.Second, nil)
	log := &stateLog{}

	result, err := orch.RunStage(context.Background(), refine(t), log)
	if err != nil {
		t.Fatalf("RunStage: %v", err)
	}
	if result.Stage != payload.StageRefine || result.Path != "/p2.png" || result.URL != "http://svc/file=/p2.png" {
		t.Fatalf("unexpected result: %+v", result)
	}
	want := []State{StateJoining, StateSubmitted, StateCompleted}
	if len(log.states) != len(want) {
		t.Fatalf("states = %v, want %v", log.states, want)
	}
	for i := range want {
		if log.states[i] != want[i] {
			t.Fatalf("states = %v, want %v", log.states, want)
		}
	}
	if log.events != 1 {
		t.Fatalf("expected queue event to reach observer, got %d", log.events)
	}
}

func TestRunStageFailures(t *testing.T) {
	joinErr := services.Wrap(services.ErrMalformedResponse, "gradio", "join", "no event id", nil)
	cases := []struct {
		name      string
		transport *stubTransport
		timeout   time.Duration
		marker    error
		states    int
	}{
		{"join", &stubTransport{joinErr: joinErr}, time.Second, services.ErrMalformedResponse, 2},
		{"submit", &stubTransport{submitErr: services.Wrap(services.ErrTransport, "gradio", "submit", "reset", nil)}, time.Second, services.ErrTransport, 3},
		{"timeout", &stubTransport{block: true}, 50 * time.Millisecond, services.ErrTimeout, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			log := &stateLog{}
			_, err := NewOrchestrator(tc.transport, tc.timeout, nil).RunStage(context.Background(), refine(t), log)
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
			if len(log.states) != tc.states || log.states[len(log.states)-1] != StateFailed {
				t.Fatalf("unexpected states %v", log.states)
			}
		})
	}
}

func TestRunStageParentDeadlineNotReportedAsStageTimeout(t *testing.T) {
	for _, timeout := range []time.Duration{0, time.Minute} {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_, err := NewOrchestrator(&stubTransport{block: true}, timeout, nil).RunStage(ctx, refine(t), nil)
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) || services.Kind(err) != "timeout" {
			t.Fatalf("timeout %s: expected deadline exceeded, got %v", timeout, err)
		}
		if strings.Contains(err.Error(), "no completion within") {
			t.Fatalf("timeout %s: parent deadline reported as stage timeout: %v", timeout, err)
		}
	}
}

func TestRunStageLogsQueueEstimate(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	eta := 4.5
	orch := NewOrchestrator(&stubTransport{path: "/p2.png", eta: &eta}, time.Second, logger)

	if _, err := orch.RunStage(context.Background(), refine(t), nil); err != nil {
		t.Fatalf("RunStage: %v", err)
	}
	if !strings.Contains(buf.String(), `"rank_eta":4.5`) {
		t.Fatalf("expected rank_eta in queue event log, got %s", buf.String())
	}
}

func TestRunStageRejectsNilPayload(t *testing.T) {
	_, err := NewOrchestrator(&stubTransport{}, 0, nil).RunStage(context.Background(), nil, nil)
	if !errors.Is(err, services.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestStageErrorFormatting(t *testing.T) {
	err := &StageError{Stage: StageUpload, Err: services.Wrap(services.ErrTransport, "gradio", "upload", "status 502", nil)}
	if err.Kind() != "transport" {
		t.Fatalf("kind = %q", err.Kind())
	}
	if got := err.Error(); got == "" || got[:6] != "upload" {
		t.Fatalf("unexpected message %q", got)
	}
}
