package config

import "sketchforge/internal/payload"

const (
	defaultRequestTimeoutSeconds = 60
	defaultStageTimeoutSeconds   = 600
	defaultOutputDir             = "~/Pictures/sketchforge"
	defaultStateDir              = "~/.local/share/sketchforge"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultNotifyRequestTimeout  = 10
	defaultBatchConcurrency      = 2
	historyFileName              = "history.db"
	logFileName                  = "sketchforge.log"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	sketch := payload.DefaultSketchParams()
	image := payload.DefaultImageParams()
	refine := payload.DefaultRefineParams()

	return Config{
		API: API{
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			StageTimeoutSeconds:   defaultStageTimeoutSeconds,
			TriggerID:             payload.DefaultTriggerID,
		},
		Sketch: Sketch{
			BackgroundName: sketch.BackgroundName,
			CompositeName:  sketch.CompositeName,
		},
		Image: Image{
			Model:         image.Model,
			ControlModel:  image.ControlModel,
			Width:         image.Width,
			Height:        image.Height,
			Flag:          image.Flag,
			Count:         image.Count,
			Strength:      image.Strength,
			GuidanceScale: image.GuidanceScale,
			Steps:         image.Steps,
			Sampler:       image.Sampler,
			Seed:          image.Seed,
			Style:         image.Style,
		},
		Refine: Refine{
			Flag:     refine.Flag,
			Strength: refine.Strength,
		},
		Paths: Paths{
			OutputDir: defaultOutputDir,
			StateDir:  defaultStateDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			RunCompleted:   true,
			RunFailed:      true,
		},
		Batch: Batch{
			Concurrency: defaultBatchConcurrency,
		},
	}
}
