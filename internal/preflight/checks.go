package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"sketchforge/internal/services"
)

const serviceCheckTimeout = 10 * time.Second

// HealthChecker is implemented by *gradio.Client.
type HealthChecker interface {
	BaseURL() string
	HealthCheck(ctx context.Context) error
}

// CheckService verifies that the generation service answers its config endpoint.
// It uses a 10-second timeout and a single attempt.
func CheckService(ctx context.Context, client HealthChecker) Result {
	const name = "Generation service"
	if client == nil || client.BaseURL() == "" {
		return Result{Name: name, Detail: "missing api.base_url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, serviceCheckTimeout)
	defer cancel()

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%s)", client.BaseURL(), summarizeServiceError(err))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", client.BaseURL())}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckNtfyTopic verifies that the configured topic is an absolute http(s) URL.
func CheckNtfyTopic(topic string) Result {
	const name = "ntfy topic"
	parsed, err := url.Parse(topic)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not an http(s) URL)", topic)}
	}
	return Result{Name: name, Passed: true, Detail: topic}
}

func summarizeServiceError(err error) string {
	if errors.Is(err, services.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out"
	}
	if errors.Is(err, services.ErrMalformedResponse) {
		return "unexpected response; is this a Gradio app?"
	}
	return err.Error()
}
