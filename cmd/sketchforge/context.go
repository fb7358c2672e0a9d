package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sketchforge/internal/config"
	"sketchforge/internal/history"
	"sketchforge/internal/logging"
	"sketchforge/internal/notifications"
	"sketchforge/internal/pipeline"
	"sketchforge/internal/services/gradio"
)

type commandContext struct {
	configFlag    *string
	logLevelFlag  *string
	logFormatFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag, logFormatFlag *string) *commandContext {
	return &commandContext{
		configFlag:    configFlag,
		logLevelFlag:  logLevelFlag,
		logFormatFlag: logFormatFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(flagValue(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if level := flagValue(c.logLevelFlag); level != "" {
			cfg.Logging.Level = strings.ToLower(level)
		}
		if format := flagValue(c.logFormatFlag); format != "" {
			cfg.Logging.Format = strings.ToLower(format)
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureLogger builds the process logger once. Every line carries a
// correlation id so the log file can be split per invocation.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg, uuid.NewString())
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

// app is everything a generation command needs.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	client     *gradio.Client
	store      *history.Store
	notifier   notifications.Service
	controller *pipeline.Controller
}

func (c *commandContext) openApp(cmd *cobra.Command, quiet bool) (*app, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	store, err := history.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	client := gradio.NewClient(cfg.GradioConfig())
	notifier := notifications.NewService(cfg)
	observers := []pipeline.Observer{
		pipeline.NewHistoryRecorder(store, logger),
		pipeline.NewNotifier(notifier, logger),
	}
	if !quiet {
		observers = append(observers, newProgressObserver(cmd.ErrOrStderr(), shouldColorize(cmd.ErrOrStderr())))
	}
	settings := pipeline.Settings{
		Sketch:       cfg.SketchParams(),
		Image:        cfg.ImageParams(),
		Refine:       cfg.RefineParams(),
		TriggerID:    cfg.API.TriggerID,
		StageTimeout: cfg.StageTimeout(),
	}
	controller := pipeline.NewController(client, settings,
		pipeline.WithLogger(logger),
		pipeline.WithObserver(observers...),
	)

	return &app{
		cfg:        cfg,
		logger:     logger,
		client:     client,
		store:      store,
		notifier:   notifier,
		controller: controller,
	}, nil
}

func (a *app) Close() error {
	if a == nil || a.store == nil {
		return nil
	}
	return a.store.Close()
}

func (c *commandContext) withStore(fn func(*history.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
