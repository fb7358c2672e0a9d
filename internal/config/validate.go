package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateImage(); err != nil {
		return err
	}
	if err := c.validateRefine(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Batch.Concurrency < 1 {
		return errors.New("batch.concurrency must be >= 1")
	}
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be >= 0")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/sketchforge/config.toml"
		}
		return fmt.Errorf("api.base_url is required. Set %s env var or edit %s (create with 'sketchforge config init')", apiURLEnv, defaultPath)
	}
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("api.base_url must use http or https, got %q", c.API.BaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("api.base_url must include a host, got %q", c.API.BaseURL)
	}
	if c.API.TriggerID < 0 {
		return errors.New("api.trigger_id must be >= 0")
	}
	return nil
}

func (c *Config) validateImage() error {
	if err := ensurePositiveMap(map[string]int{
		"image.width":  c.Image.Width,
		"image.height": c.Image.Height,
		"image.steps":  c.Image.Steps,
		"image.count":  c.Image.Count,
	}); err != nil {
		return err
	}
	if c.Image.GuidanceScale < 0 {
		return errors.New("image.guidance_scale must be >= 0")
	}
	if c.Image.Strength < 0 || c.Image.Strength > 1 {
		return errors.New("image.strength must be between 0 and 1")
	}
	if c.Image.Model == "" {
		return errors.New("image.model must be set")
	}
	return nil
}

func (c *Config) validateRefine() error {
	if c.Refine.Strength < 0 || c.Refine.Strength > 1 {
		return errors.New("refine.strength must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" && strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir or paths.state_dir must be set")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
