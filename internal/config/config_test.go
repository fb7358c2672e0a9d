package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"sketchforge/internal/config"
	"sketchforge/internal/payload"
)

func TestLoadDefaultConfigUsesEnvAPIURLAndExpandsPaths(t *testing.T) {
	t.Setenv("SKETCHFORGE_API_URL", "http://gpu.local:7860/")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if cfg.API.BaseURL != "http://gpu.local:7860" {
		t.Fatalf("expected trimmed base url from env, got %q", cfg.API.BaseURL)
	}
	wantState := filepath.Join(tempHome, ".local", "share", "sketchforge")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.HistoryPath() != filepath.Join(wantState, "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.HistoryPath())
	}
	if cfg.API.TriggerID != payload.DefaultTriggerID {
		t.Fatalf("unexpected trigger id: %d", cfg.API.TriggerID)
	}
	if cfg.StageTimeout() != 10*time.Minute {
		t.Fatalf("unexpected stage timeout: %s", cfg.StageTimeout())
	}
	if cfg.Batch.Concurrency != 2 {
		t.Fatalf("unexpected batch concurrency: %d", cfg.Batch.Concurrency)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("SKETCHFORGE_API_URL", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	body := `
[api]
base_url = "https://forge.example.com"
stage_timeout_seconds = 30

[image]
steps = 12
sampler = " Euler a "

[refine]
strength = 0.5

[paths]
output_dir = "` + filepath.Join(dir, "out") + `"
state_dir = "` + filepath.Join(dir, "state") + `"

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.API.BaseURL != "https://forge.example.com" {
		t.Fatalf("unexpected base url: %q", cfg.API.BaseURL)
	}
	if cfg.API.RequestTimeoutSeconds != 60 {
		t.Fatalf("expected default request timeout, got %d", cfg.API.RequestTimeoutSeconds)
	}
	gc := cfg.GradioConfig()
	if gc.StageTimeoutSeconds != 30 || gc.BaseURL != cfg.API.BaseURL {
		t.Fatalf("unexpected gradio config: %+v", gc)
	}
	params := cfg.ImageParams()
	if params.Steps != 12 || params.Sampler != "Euler a" {
		t.Fatalf("unexpected image params: %+v", params)
	}
	if params.Model != payload.DefaultImageParams().Model {
		t.Fatalf("expected default model to survive partial override, got %q", params.Model)
	}
	if cfg.RefineParams().Strength != 0.5 {
		t.Fatalf("unexpected refine strength: %v", cfg.RefineParams().Strength)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercased log format, got %q", cfg.Logging.Format)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	body := "[api]\nbase_url = \"http://x\"\nbase_uri = \"typo\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown key to fail parsing")
	}
}

func TestLoadRequiresBaseURL(t *testing.T) {
	t.Setenv("SKETCHFORGE_API_URL", "")
	t.Setenv("HOME", t.TempDir())

	_, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil {
		t.Fatal("expected error without base url")
	}
	if !strings.Contains(err.Error(), "SKETCHFORGE_API_URL") {
		t.Fatalf("expected env var hint, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.API.BaseURL == "" {
		t.Fatal("expected sample to carry a base url")
	}
	if cfg.Refine.Strength != payload.DefaultRefineParams().Strength {
		t.Fatalf("sample refine strength drifted from defaults: %v", cfg.Refine.Strength)
	}
	if !strings.Contains(cfg.Paths.StateDir, "sketchforge") {
		t.Fatalf("expected state dir to contain sketchforge, got %q", cfg.Paths.StateDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	valid := func() config.Config {
		cfg := config.Default()
		cfg.API.BaseURL = "http://127.0.0.1:7860"
		return cfg
	}

	base := valid()
	if err := base.Validate(); err != nil {
		t.Fatalf("expected defaults with base url to validate: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"ftp scheme", func(c *config.Config) { c.API.BaseURL = "ftp://host" }},
		{"missing host", func(c *config.Config) { c.API.BaseURL = "http://" }},
		{"zero width", func(c *config.Config) { c.Image.Width = 0 }},
		{"zero steps", func(c *config.Config) { c.Image.Steps = 0 }},
		{"negative guidance", func(c *config.Config) { c.Image.GuidanceScale = -1 }},
		{"refine strength", func(c *config.Config) { c.Refine.Strength = 1.5 }},
		{"image strength", func(c *config.Config) { c.Image.Strength = -0.1 }},
		{"concurrency", func(c *config.Config) { c.Batch.Concurrency = 0 }},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}
