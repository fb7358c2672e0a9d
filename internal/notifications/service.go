package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sketchforge/internal/config"
)

const userAgent = "sketchforge/0.1.0"

// Service defines the notification surface exposed to the pipeline and CLI.
type Service interface {
	NotifyRunCompleted(ctx context.Context, prompt, finalPath string, duration time.Duration) error
	NotifyRunFailed(ctx context.Context, prompt, stage string, err error) error
	NotifyBatchCompleted(ctx context.Context, succeeded, failed int, duration time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		runCompleted: cfg.Notifications.RunCompleted,
		runFailed:    cfg.Notifications.RunFailed,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	runCompleted bool
	runFailed    bool
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, prompt, finalPath string, duration time.Duration) error {
	if !n.runCompleted {
		return nil
	}
	body := fmt.Sprintf("Generated: %s (%s)", summarizePrompt(prompt), formatDuration(duration))
	if finalPath = strings.TrimSpace(finalPath); finalPath != "" {
		body = fmt.Sprintf("%s\nFile: %s", body, finalPath)
	}
	return n.send(ctx, message{
		title: "sketchforge - Run Complete",
		body:  body,
		tags:  []string{"sketchforge", "run", "completed"},
	})
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, prompt, stage string, err error) error {
	if !n.runFailed {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Run failed")
	if stage = strings.TrimSpace(stage); stage != "" {
		builder.WriteString(" at ")
		builder.WriteString(stage)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	if p := summarizePrompt(prompt); p != "" {
		builder.WriteString("\nPrompt: ")
		builder.WriteString(p)
	}
	return n.send(ctx, message{
		title:    "sketchforge - Run Failed",
		body:     builder.String(),
		tags:     []string{"sketchforge", "run", "error"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, succeeded, failed int, duration time.Duration) error {
	title := "sketchforge - Batch Complete"
	body := fmt.Sprintf("Batch complete: %d runs in %s", succeeded, formatDuration(duration))
	if failed > 0 {
		title = "sketchforge - Batch Complete (with errors)"
		body = fmt.Sprintf("Batch complete: %d succeeded, %d failed in %s", succeeded, failed, formatDuration(duration))
	}
	return n.send(ctx, message{
		title: title,
		body:  body,
		tags:  []string{"sketchforge", "batch", "completed"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, message{
		title:    "sketchforge - Test",
		body:     "Notification system test",
		tags:     []string{"sketchforge", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

const maxPromptRunes = 80

func summarizePrompt(prompt string) string {
	prompt = strings.Join(strings.Fields(prompt), " ")
	runes := []rune(prompt)
	if len(runes) <= maxPromptRunes {
		return prompt
	}
	return string(runes[:maxPromptRunes]) + "..."
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

type noopService struct{}

func (noopService) NotifyRunCompleted(context.Context, string, string, time.Duration) error { return nil }
func (noopService) NotifyRunFailed(context.Context, string, string, error) error            { return nil }
func (noopService) NotifyBatchCompleted(context.Context, int, int, time.Duration) error     { return nil }
func (noopService) TestNotification(context.Context) error                                  { return nil }
