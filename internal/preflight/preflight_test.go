package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sketchforge/internal/config"
	"sketchforge/internal/services/gradio"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckService_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/config" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"version":"3.50.2"}`))
	}))
	defer srv.Close()

	result := CheckService(context.Background(), gradio.NewClient(gradio.Config{BaseURL: srv.URL}))
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckService_NotGradio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>hello</html>"))
	}))
	defer srv.Close()

	result := CheckService(context.Background(), gradio.NewClient(gradio.Config{BaseURL: srv.URL}))
	if result.Passed {
		t.Fatal("expected failure for HTML response")
	}
	if !strings.Contains(result.Detail, "Gradio") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckService_MissingURL(t *testing.T) {
	result := CheckService(context.Background(), gradio.NewClient(gradio.Config{}))
	if result.Passed || !strings.Contains(result.Detail, "base_url") {
		t.Fatalf("expected missing url failure, got %+v", result)
	}
}

func TestCheckNtfyTopic(t *testing.T) {
	if !CheckNtfyTopic("https://ntfy.sh/forge").Passed {
		t.Fatal("expected https topic to pass")
	}
	if CheckNtfyTopic("forge").Passed {
		t.Fatal("expected bare topic name to fail")
	}
}

func TestRunAllCoversDirectoriesAndService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	base := t.TempDir()
	cfg := config.Default()
	cfg.API.BaseURL = srv.URL
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), &cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d: %+v", len(results), results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("expected all checks to pass, got %+v", failed)
	}

	if RunAll(context.Background(), nil) != nil {
		t.Fatal("expected nil results for nil config")
	}
}
