package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sketchforge/internal/payload"
	"sketchforge/internal/session"
	"sketchforge/internal/testsupport"
)

func TestGenerateDownloadsAndRecordsRun(t *testing.T) {
	env := setupCLITestEnv(t)
	sketch := testsupport.WriteSketch(t, filepath.Join(env.baseDir, "in", "castle.png"), 32, 32)

	out, stderr, err := runCLI(t, []string{"generate", sketch, "--prompt", "a castle", "--negative-prompt", "blurry"}, env.configPath)
	if err != nil {
		t.Fatalf("generate: %v\n%s", err, stderr)
	}
	hash := sessionFrom(t, out)
	if !session.Valid(hash) {
		t.Fatalf("invalid session hash %q", hash)
	}
	requireContains(t, stderr, hash+" refine")
	requireContains(t, stderr, "[OK]")

	saved := filepath.Join(env.cfg.Paths.OutputDir, "castle-"+hash+".png")
	requireContains(t, out, "Saved:   "+saved)
	data, err := os.ReadFile(saved)
	if err != nil {
		t.Fatalf("read saved result: %v", err)
	}
	if want := "image:" + testsupport.StagePath(hash, payload.StageRefine); string(data) != want {
		t.Fatalf("saved content = %q, want %q", data, want)
	}

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, hash)
	requireContains(t, out, "completed")

	out, _, err = runCLI(t, []string{"history", "show", hash}, env.configPath)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, out, "Prompt:   a castle")
	requireContains(t, out, "Negative: blurry")
	for _, stage := range []string{"upload", "sketch", "image", "refine"} {
		requireContains(t, out, stage)
	}
}

func TestGenerateNoDownloadQuiet(t *testing.T) {
	env := setupCLITestEnv(t)
	sketch := testsupport.WriteSketch(t, filepath.Join(env.baseDir, "in", "tower.png"), 16, 16)

	out, stderr, err := runCLI(t, []string{"generate", sketch, "-p", "a tower", "--no-download", "--quiet"}, env.configPath)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if strings.Contains(out, "Saved:") {
		t.Fatalf("unexpected download with --no-download:\n%s", out)
	}
	requireContains(t, out, "/file=")
	if strings.Contains(stderr, "[OK]") {
		t.Fatalf("expected no progress lines with --quiet, got:\n%s", stderr)
	}
	entries, _ := os.ReadDir(env.cfg.Paths.OutputDir)
	if len(entries) != 0 {
		t.Fatalf("expected empty output dir, found %d entries", len(entries))
	}
}

func TestGenerateFailureIsRecorded(t *testing.T) {
	env := setupCLITestEnv(t)
	env.fake.SetFailure(payload.StageImage, testsupport.FailStatus)
	sketch := testsupport.WriteSketch(t, filepath.Join(env.baseDir, "in", "castle.png"), 16, 16)

	_, stderr, err := runCLI(t, []string{"generate", sketch, "-p", "a castle"}, env.configPath)
	if err == nil {
		t.Fatal("expected generate to fail")
	}
	requireContains(t, err.Error(), "image (stage 1)")
	requireContains(t, stderr, "[ERROR]")

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "failed")
	requireContains(t, out, "transport at image")
}

func TestGenerateRejectsUnreadableSketch(t *testing.T) {
	env := setupCLITestEnv(t)
	bad := filepath.Join(env.baseDir, "notes.txt")
	if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, _, err := runCLI(t, []string{"generate", bad}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "load sketch") {
		t.Fatalf("expected load error, got %v", err)
	}
	if got := len(env.fake.Requests()); got != 0 {
		t.Fatalf("expected no service requests, got %d", got)
	}
}

func TestBatchRunsEverySketch(t *testing.T) {
	env := setupCLITestEnv(t)
	a := testsupport.WriteSketch(t, filepath.Join(env.baseDir, "in", "a.png"), 16, 16)
	b := testsupport.WriteSketch(t, filepath.Join(env.baseDir, "in", "b.png"), 24, 24)
	c := testsupport.WriteSketch(t, filepath.Join(env.baseDir, "in", "c.png"), 8, 8)

	out, _, err := runCLI(t, []string{"batch", a, b, c, "-p", "a castle", "--concurrency", "2", "-q"}, env.configPath)
	if err != nil {
		t.Fatalf("batch: %v\n%s", err, out)
	}
	requireContains(t, out, "3 succeeded, 0 failed")
	entries, err := os.ReadDir(env.cfg.Paths.OutputDir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 saved results, got %d", len(entries))
	}
}

func TestBatchReportsFailures(t *testing.T) {
	env := setupCLITestEnv(t)
	env.fake.SetFailure(payload.StageRefine, testsupport.FailRemote)
	a := testsupport.WriteSketch(t, filepath.Join(env.baseDir, "in", "a.png"), 16, 16)
	b := testsupport.WriteSketch(t, filepath.Join(env.baseDir, "in", "b.png"), 16, 16)

	out, _, err := runCLI(t, []string{"batch", a, b, "--no-download", "-q"}, env.configPath)
	if err == nil {
		t.Fatal("expected batch to report failures")
	}
	requireContains(t, out, "0 succeeded, 2 failed")
	requireContains(t, out, "failed: malformed_response")
}

func TestCheckCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "Preflight")
	requireContains(t, out, "Generation service:")
	requireContains(t, out, "Output directory:")
	if strings.Contains(out, "[ERROR]") {
		t.Fatalf("unexpected failing check:\n%s", out)
	}
}

func TestHistoryShowUnknownSession(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No runs recorded")

	_, _, err = runCLI(t, []string{"history", "show", "ffffffffff"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "no run with session") {
		t.Fatalf("expected missing run error, got %v", err)
	}
}

func TestNotifyTestWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"notify", "test"}, env.configPath)
	if err != nil {
		t.Fatalf("notify test: %v", err)
	}
	requireContains(t, out, "Notification not sent")
}

func TestLogFlagsAreValidated(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"--log-format", "xml", "history"}, env.configPath)
	if err == nil {
		t.Fatal("expected invalid log format to be rejected")
	}
}
