package gradio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"sketchforge/internal/services"
)

const (
	component             = "gradio"
	defaultRequestTimeout = 60 * time.Second
	defaultStageTimeout   = 10 * time.Minute
	defaultUploadName     = "sketch.png"
	maxJSONBody           = 4 << 20
)

// Config captures the runtime settings required to talk to the remote app.
type Config struct {
	BaseURL               string
	RequestTimeoutSeconds int
	StageTimeoutSeconds   int
}

// Client wraps the remote app's upload, queue, and file endpoints.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	parser         ResponseParser
	requestTimeout time.Duration
	stageTimeout   time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client. Its Timeout should be zero
// because event streams stay open for the whole stage; deadlines come from
// the request and stage timeouts instead.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithParser swaps the response parser.
func WithParser(parser ResponseParser) Option {
	return func(c *Client) {
		if parser != nil {
			c.parser = parser
		}
	}
}

// WithRequestTimeout bounds single request/response exchanges.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.requestTimeout = timeout
		}
	}
}

// WithStageTimeout bounds the wait for a stage's completion event.
func WithStageTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.stageTimeout = timeout
		}
	}
}

// NewClient constructs a client for the app rooted at cfg.BaseURL.
func NewClient(cfg Config, opts ...Option) *Client {
	client := &Client{
		baseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient:     &http.Client{},
		parser:         GradioParser{},
		requestTimeout: defaultRequestTimeout,
		stageTimeout:   defaultStageTimeout,
	}
	if cfg.RequestTimeoutSeconds > 0 {
		client.requestTimeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	}
	if cfg.StageTimeoutSeconds > 0 {
		client.stageTimeout = time.Duration(cfg.StageTimeoutSeconds) * time.Second
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// StageTimeout returns the bound applied to one stage's event wait.
func (c *Client) StageTimeout() time.Duration {
	return c.stageTimeout
}

// FileURL derives the retrieval URL of a stored asset.
func (c *Client) FileURL(path string) string {
	return c.baseURL + "/file=" + path
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, summarizeSnippet(e.Body))
}

// Upload posts an encoded PNG and returns the server-side storage path.
func (c *Client) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	const op = "upload"
	if len(data) == 0 {
		return "", services.Wrap(services.ErrInvalidArgument, component, op, "image data required", nil)
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		filename = defaultUploadName
	}

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, filename))
	header.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("gradio upload: create form part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("gradio upload: write form part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("gradio upload: close form: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	endpoint, err := c.endpoint("upload")
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, &form)
	if err != nil {
		return "", fmt.Errorf("gradio upload: new request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	body, err := c.doJSON(reqCtx, req, op)
	if err != nil {
		return "", err
	}
	path, err := c.parser.UploadPath(body)
	if err != nil {
		return "", services.Wrap(services.ErrMalformedResponse, component, op, "locate stored path", err)
	}
	return path, nil
}

// Download streams a stored asset into w.
func (c *Client) Download(ctx context.Context, path string, w io.Writer) (int64, error) {
	const op = "download"
	if strings.TrimSpace(path) == "" {
		return 0, services.Wrap(services.ErrInvalidArgument, component, op, "asset path required", nil)
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.FileURL(path), nil)
	if err != nil {
		return 0, fmt.Errorf("gradio download: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, c.failure(reqCtx, op, "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return 0, statusFailure(resp, op)
	}
	written, err := io.Copy(w, resp.Body)
	if err != nil {
		return written, c.failure(reqCtx, op, "read body", err)
	}
	return written, nil
}

// HealthCheck verifies that the app answers its config endpoint with JSON.
func (c *Client) HealthCheck(ctx context.Context) error {
	const op = "health"
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	endpoint, err := c.endpoint("config")
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("gradio health: new request: %w", err)
	}
	body, err := c.doJSON(reqCtx, req, op)
	if err != nil {
		return err
	}
	if !json.Valid(body) {
		return services.Wrap(services.ErrMalformedResponse, component, op, "config is not JSON: "+summarizeSnippet(string(body)), nil)
	}
	return nil
}

func (c *Client) endpoint(elem ...string) (string, error) {
	if c.baseURL == "" {
		return "", services.Wrap(services.ErrConfiguration, component, "build url", "base url required", nil)
	}
	endpoint, err := url.JoinPath(c.baseURL, elem...)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, component, "build url", c.baseURL, err)
	}
	return endpoint, nil
}

func (c *Client) doJSON(ctx context.Context, req *http.Request, op string) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.failure(ctx, op, "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, statusFailure(resp, op)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONBody))
	if err != nil {
		return nil, c.failure(ctx, op, "read body", err)
	}
	return body, nil
}

// failure classifies a transport error, promoting expired deadlines to ErrTimeout.
func (c *Client) failure(ctx context.Context, op, message string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, component, op, message, ctxErr)
		}
		return services.Wrap(services.ErrTransport, component, op, "canceled", ctxErr)
	}
	return services.Wrap(services.ErrTransport, component, op, message, err)
}

func statusFailure(resp *http.Response, op string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return services.Wrap(services.ErrTransport, component, op, "", &httpStatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	})
}

func summarizeSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
