package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"sketchforge/internal/payload"
	"sketchforge/internal/services/gradio"
)

//go:embed sample_config.toml
var sampleConfig string

// API describes the remote generation service.
type API struct {
	BaseURL               string `toml:"base_url"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	StageTimeoutSeconds   int    `toml:"stage_timeout_seconds"`
	TriggerID             int    `toml:"trigger_id"`
}

// Sketch names the files reported for the sketch pad layers.
type Sketch struct {
	BackgroundName string `toml:"background_name"`
	CompositeName  string `toml:"composite_name"`
}

// Image contains the generation settings sent with stage 1.
type Image struct {
	Model         string  `toml:"model"`
	ControlModel  string  `toml:"control_model"`
	Width         int     `toml:"width"`
	Height        int     `toml:"height"`
	Flag          bool    `toml:"flag"`
	Count         int     `toml:"count"`
	Strength      float64 `toml:"strength"`
	GuidanceScale float64 `toml:"guidance_scale"`
	Steps         int     `toml:"steps"`
	Sampler       string  `toml:"sampler"`
	Seed          int64   `toml:"seed"`
	Style         string  `toml:"style"`
}

// Refine contains the refinement settings sent with stage 2.
type Refine struct {
	Flag     bool    `toml:"flag"`
	Strength float64 `toml:"strength"`
}

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	StateDir  string `toml:"state_dir"`
}

// Logging configures log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunCompleted   bool   `toml:"run_completed"`
	RunFailed      bool   `toml:"run_failed"`
}

// Batch bounds concurrent pipeline runs.
type Batch struct {
	Concurrency int `toml:"concurrency"`
}

// Config encapsulates all configuration values for sketchforge.
type Config struct {
	API           API           `toml:"api"`
	Sketch        Sketch        `toml:"sketch"`
	Image         Image         `toml:"image"`
	Refine        Refine        `toml:"refine"`
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
	Batch         Batch         `toml:"batch"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/sketchforge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("sketchforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the sqlite database location, or "" without a state dir.
func (c *Config) HistoryPath() string {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.StateDir, historyFileName)
}

// LogPath returns the log file location, or "" without a state dir.
func (c *Config) LogPath() string {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.StateDir, logFileName)
}

// GradioConfig returns the client settings for the remote service.
func (c *Config) GradioConfig() gradio.Config {
	return gradio.Config{
		BaseURL:               c.API.BaseURL,
		RequestTimeoutSeconds: c.API.RequestTimeoutSeconds,
		StageTimeoutSeconds:   c.API.StageTimeoutSeconds,
	}
}

// StageTimeout returns the bound for a single stage's completion wait.
func (c *Config) StageTimeout() time.Duration {
	return time.Duration(c.API.StageTimeoutSeconds) * time.Second
}

// SketchParams returns the stage 0 settings.
func (c *Config) SketchParams() payload.SketchParams {
	return payload.SketchParams{
		BackgroundName: c.Sketch.BackgroundName,
		CompositeName:  c.Sketch.CompositeName,
	}
}

// ImageParams returns the stage 1 settings.
func (c *Config) ImageParams() payload.ImageParams {
	return payload.ImageParams{
		Model:         c.Image.Model,
		ControlModel:  c.Image.ControlModel,
		Width:         c.Image.Width,
		Height:        c.Image.Height,
		Flag:          c.Image.Flag,
		Count:         c.Image.Count,
		Strength:      c.Image.Strength,
		GuidanceScale: c.Image.GuidanceScale,
		Steps:         c.Image.Steps,
		Sampler:       c.Image.Sampler,
		Seed:          c.Image.Seed,
		Style:         c.Image.Style,
	}
}

// RefineParams returns the stage 2 settings.
func (c *Config) RefineParams() payload.RefineParams {
	return payload.RefineParams{
		Flag:     c.Refine.Flag,
		Strength: c.Refine.Strength,
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
