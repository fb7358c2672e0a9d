package pipeline

import (
	"context"
	"log/slog"
	"time"

	"sketchforge/internal/imageio"
	"sketchforge/internal/logging"
	"sketchforge/internal/payload"
	"sketchforge/internal/services"
	"sketchforge/internal/session"
)

// Client is the full remote surface a run needs. *gradio.Client implements it.
type Client interface {
	Transport
	Upload(ctx context.Context, data []byte, filename string) (string, error)
}

// Settings are the per-stage parameters applied to every run.
type Settings struct {
	Sketch       payload.SketchParams
	Image        payload.ImageParams
	Refine       payload.RefineParams
	TriggerID    int
	StageTimeout time.Duration
}

// DefaultSettings mirrors the payload defaults.
func DefaultSettings() Settings {
	return Settings{
		Sketch:       payload.DefaultSketchParams(),
		Image:        payload.DefaultImageParams(),
		Refine:       payload.DefaultRefineParams(),
		TriggerID:    payload.DefaultTriggerID,
		StageTimeout: 10 * time.Minute,
	}
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, component)
		}
	}
}

// WithObserver attaches progress observers.
func WithObserver(obs ...Observer) Option {
	return func(c *Controller) {
		for _, o := range obs {
			if o != nil {
				c.observers = append(c.observers, o)
			}
		}
	}
}

// WithSessionIDs overrides the session hash source.
func WithSessionIDs(next func() string) Option {
	return func(c *Controller) {
		if next != nil {
			c.newID = next
		}
	}
}

// Controller sequences upload and the three stages for each run.
type Controller struct {
	client       Client
	orchestrator *Orchestrator
	settings     Settings
	logger       *slog.Logger
	observers    Observers
	newID        func() string
}

// NewController wires a controller around the remote client. A zero
// settings.StageTimeout falls back to the client's own stage timeout.
func NewController(client Client, settings Settings, opts ...Option) *Controller {
	c := &Controller{
		client:   client,
		settings: settings,
		logger:   logging.NewComponentLogger(nil, component),
		newID:    session.NewID,
	}
	for _, opt := range opts {
		opt(c)
	}
	stageTimeout := settings.StageTimeout
	if stageTimeout <= 0 {
		if bounded, ok := client.(interface{ StageTimeout() time.Duration }); ok {
			stageTimeout = bounded.StageTimeout()
		}
	}
	c.orchestrator = &Orchestrator{transport: client, logger: c.logger, stageTimeout: stageTimeout}
	return c
}

type stageStep struct {
	stage int
	build func(prior StageResult) (payload.Payload, error)
}

// Generate runs one sketch through upload and every stage. The returned Run
// is non-nil even on failure and holds the stages that completed; the error
// is a *StageError naming where the run stopped.
func (c *Controller) Generate(ctx context.Context, req Request) (*Run, error) {
	run := &Run{
		SessionHash:    c.newID(),
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Source:         req.Source,
		StartedAt:      time.Now(),
	}
	ctx = services.WithSessionHash(ctx, run.SessionHash)
	logger := logging.WithContext(ctx, c.logger)

	logger.Info(
		"run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("source", req.Source),
		logging.Int("width", req.Image.Width),
		logging.Int("height", req.Image.Height),
	)
	c.observers.RunStarted(ctx, run)

	if err := ctx.Err(); err != nil {
		return c.fail(ctx, logger, run, StageUpload, canceled(StageUpload, err), true)
	}
	upload, err := c.upload(ctx, run.SessionHash, req.Image)
	if err != nil {
		return c.fail(ctx, logger, run, StageUpload, err, true)
	}
	run.Upload = upload

	meta := payload.Meta{SessionHash: run.SessionHash, TriggerID: c.settings.TriggerID}
	dims := payload.Dimensions{Width: req.Image.Width, Height: req.Image.Height}
	steps := []stageStep{
		{payload.StageSketch, func(prior StageResult) (payload.Payload, error) {
			return payload.BuildSketch(prior.Asset(), dims, c.settings.Sketch, meta)
		}},
		{payload.StageImage, func(prior StageResult) (payload.Payload, error) {
			return payload.BuildImage(prior.Asset(), c.settings.Image, run.Prompt, run.NegativePrompt, meta)
		}},
		{payload.StageRefine, func(prior StageResult) (payload.Payload, error) {
			return payload.BuildRefine(prior.Asset(), c.settings.Refine, meta)
		}},
	}

	prior := upload
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return c.fail(ctx, logger, run, step.stage, canceled(step.stage, err), true)
		}
		p, err := step.build(prior)
		if err != nil {
			return c.fail(ctx, logger, run, step.stage, err, true)
		}
		result, err := c.orchestrator.RunStage(ctx, p, c.observers)
		if err != nil {
			return c.fail(ctx, logger, run, step.stage, err, false)
		}
		run.Stages = append(run.Stages, result)
		prior = result
	}

	run.FinalPath = prior.Path
	run.FinalURL = prior.URL
	run.FinishedAt = time.Now()
	logger.Info(
		"run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("final_path", run.FinalPath),
		logging.Duration("duration", run.Duration()),
	)
	c.observers.RunFinished(ctx, run, nil)
	return run, nil
}

func (c *Controller) upload(ctx context.Context, hash string, tex imageio.Texture) (StageResult, error) {
	if len(tex.PNG) == 0 || tex.Width <= 0 || tex.Height <= 0 {
		return StageResult{}, services.Wrap(services.ErrInvalidArgument, component, StageName(StageUpload), "sketch image required", nil)
	}
	ctx = services.WithStage(ctx, StageName(StageUpload))
	c.observers.StageStarted(ctx, hash, StageUpload)
	started := time.Now()

	path, err := c.client.Upload(ctx, tex.PNG, tex.Name)
	if err != nil {
		return StageResult{}, err
	}
	result := StageResult{
		Stage:    StageUpload,
		Path:     path,
		URL:      c.client.FileURL(path),
		Duration: time.Since(started),
	}
	logging.WithContext(ctx, c.logger).Info(
		"sketch uploaded",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("output_path", path),
		logging.Int("bytes", len(tex.PNG)),
	)
	c.observers.StageCompleted(ctx, hash, result)
	return result, nil
}

// fail is the single place a terminal run failure is logged. report is true
// when no observer has seen the stage fail yet.
func (c *Controller) fail(ctx context.Context, logger *slog.Logger, run *Run, stage int, err error, report bool) (*Run, error) {
	stageErr := &StageError{Stage: stage, Err: err}
	run.FinishedAt = time.Now()
	if report {
		c.observers.StageFailed(ctx, run.SessionHash, stage, err)
	}
	logging.ErrorWithContext(
		logger,
		"run failed",
		"run_failure",
		logging.String(logging.FieldStage, StageName(stage)),
		logging.Int("failed_stage", stage),
		logging.String("error_kind", stageErr.Kind()),
		logging.String(logging.FieldErrorHint, errorHint(stageErr.Kind())),
		logging.Int("completed_stages", len(run.Stages)),
		logging.Error(err),
	)
	c.observers.RunFinished(ctx, run, stageErr)
	return run, stageErr
}

func canceled(stage int, err error) error {
	return services.Wrap(services.ErrTransport, component, StageName(stage), "canceled before start", err)
}

func errorHint(kind string) string {
	switch kind {
	case "transport":
		return "check api.base_url and that the service is running"
	case "timeout":
		return "raise api.stage_timeout_seconds or check service load"
	case "malformed_response":
		return "service response did not match the expected queue schema; rerun with --log-level debug"
	case "invalid_argument":
		return "check the sketch file, prompt, and stage settings"
	case "configuration":
		return "run sketchforge config validate"
	case "canceled":
		return "run was canceled"
	default:
		return "check logs for details"
	}
}
