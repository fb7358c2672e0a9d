package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sketchforge/internal/logging"
	"sketchforge/internal/payload"
	"sketchforge/internal/services"
	"sketchforge/internal/services/gradio"
)

const component = "pipeline"

// Transport is the queue surface of the remote service. *gradio.Client implements it.
type Transport interface {
	Join(ctx context.Context, stage int, sessionHash string) (*gradio.Channel, error)
	Submit(ctx context.Context, ch *gradio.Channel, p payload.Payload, onEvent gradio.EventHandler) (string, error)
	FileURL(path string) string
}

// Orchestrator runs one stage at a time through join, submit, and completion.
type Orchestrator struct {
	transport    Transport
	logger       *slog.Logger
	stageTimeout time.Duration
}

// NewOrchestrator builds an orchestrator. A zero stageTimeout leaves the wait
// bounded only by ctx.
func NewOrchestrator(transport Transport, stageTimeout time.Duration, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		transport:    transport,
		logger:       logging.NewComponentLogger(logger, component),
		stageTimeout: stageTimeout,
	}
}

// RunStage joins the stage's queue, submits p, and waits for the output path.
// Failures are returned to the caller without being logged as terminal.
func (o *Orchestrator) RunStage(ctx context.Context, p payload.Payload, obs Observer) (StageResult, error) {
	const op = "run stage"
	obs = observerOrNop(obs)
	if p == nil {
		return StageResult{}, services.Wrap(services.ErrInvalidArgument, component, op, "payload required", nil)
	}
	if o.transport == nil {
		return StageResult{}, services.Wrap(services.ErrConfiguration, component, op, "transport required", nil)
	}

	stage, hash := p.Stage(), p.SessionHash()
	ctx = services.WithStage(services.WithSessionHash(ctx, hash), StageName(stage))
	logger := logging.WithContext(ctx, o.logger)

	stageCtx := ctx
	if o.stageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, o.stageTimeout)
		defer cancel()
	}

	started := time.Now()
	logger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("state", string(StateJoining)),
		logging.Int("fn_index", stage),
		logging.String("source_path", p.Asset().Path),
	)
	obs.StageStarted(ctx, hash, stage)

	ch, err := o.transport.Join(stageCtx, stage, hash)
	if err != nil {
		return StageResult{}, o.failed(ctx, stageCtx, logger, obs, hash, stage, StateJoining, err)
	}
	defer ch.Close()

	logger.Debug(
		"stage submitted",
		logging.String("state", string(StateSubmitted)),
		logging.String("event_id", ch.EventID),
		logging.Bool("streaming", ch.Streaming()),
	)
	obs.StageSubmitted(ctx, hash, stage, ch.EventID)

	path, err := o.transport.Submit(stageCtx, ch, p, func(ev gradio.Event) {
		attrs := []logging.Attr{logging.String("msg", ev.Msg)}
		if ev.Rank != nil {
			attrs = append(attrs, logging.Int("rank", *ev.Rank))
		}
		if ev.QueueSize != nil {
			attrs = append(attrs, logging.Int("queue_size", *ev.QueueSize))
		}
		if ev.RankETA != nil {
			attrs = append(attrs, logging.Float64("rank_eta", *ev.RankETA))
		}
		logger.Debug("queue event", logging.Args(attrs...)...)
		obs.QueueEvent(ctx, hash, stage, ev)
	})
	if err != nil {
		return StageResult{}, o.failed(ctx, stageCtx, logger, obs, hash, stage, StateSubmitted, err)
	}

	result := StageResult{
		Stage:    stage,
		Path:     path,
		URL:      o.transport.FileURL(path),
		Duration: time.Since(started),
	}
	logger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("state", string(StateCompleted)),
		logging.String("output_path", result.Path),
		logging.Duration("duration", result.Duration),
	)
	obs.StageCompleted(ctx, hash, result)
	return result, nil
}

// failed promotes an expired stage deadline to ErrTimeout and reports FAILED.
// A deadline inherited from ctx is left as the caller's own error.
func (o *Orchestrator) failed(ctx, stageCtx context.Context, logger *slog.Logger, obs Observer, hash string, stage int, from State, err error) error {
	stageExpired := o.stageTimeout > 0 && ctx.Err() == nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded)
	if stageExpired && !errors.Is(err, services.ErrTimeout) {
		err = services.Wrap(services.ErrTimeout, component, StageName(stage), "no completion within "+o.stageTimeout.String(), err)
	}
	logger.Debug(
		"stage transition",
		logging.String("state", string(StateFailed)),
		logging.String("from_state", string(from)),
		logging.String("error_kind", services.Kind(err)),
	)
	obs.StageFailed(ctx, hash, stage, err)
	return err
}
