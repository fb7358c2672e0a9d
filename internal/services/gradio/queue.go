package gradio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sketchforge/internal/payload"
	"sketchforge/internal/services"
)

// EventHandler observes queue events while a stage waits for completion.
type EventHandler func(Event)

// Channel is an open queue session for one stage.
type Channel struct {
	Stage       int
	SessionHash string
	EventID     string

	stream   io.ReadCloser
	events   *eventReader
	deadline time.Time
	cancel   context.CancelFunc
}

// Streaming reports whether the join stream is still held open.
func (ch *Channel) Streaming() bool {
	return ch != nil && ch.events != nil
}

// Close releases the join stream, if any.
func (ch *Channel) Close() error {
	if ch == nil {
		return nil
	}
	if ch.cancel != nil {
		defer ch.cancel()
	}
	if ch.stream == nil {
		return nil
	}
	err := ch.stream.Close()
	ch.stream = nil
	ch.events = nil
	return err
}

func (ch *Channel) expired() bool {
	return !ch.deadline.IsZero() && !time.Now().Before(ch.deadline)
}

// Join opens the queue channel for a stage. The client's stage timeout starts
// here and covers the matching Submit. ctx must stay live until Submit returns
// because the join stream is read again while awaiting completion.
func (c *Client) Join(ctx context.Context, stage int, sessionHash string) (*Channel, error) {
	const op = "join"
	sessionHash = strings.TrimSpace(sessionHash)
	if stage < 0 {
		return nil, services.Wrap(services.ErrInvalidArgument, component, op, fmt.Sprintf("stage must not be negative (got %d)", stage), nil)
	}
	if sessionHash == "" {
		return nil, services.Wrap(services.ErrInvalidArgument, component, op, "session hash required", nil)
	}
	endpoint, err := c.endpoint("queue", "join")
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("fn_index", strconv.Itoa(stage))
	query.Set("session_hash", sessionHash)

	ctx, cancel := context.WithTimeout(ctx, c.stageTimeout)
	deadline, _ := ctx.Deadline()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("gradio join: new request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream, application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		defer cancel()
		return nil, c.failure(ctx, op, "request failed", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		defer cancel()
		defer resp.Body.Close()
		return nil, statusFailure(resp, op)
	}

	ch := &Channel{Stage: stage, SessionHash: sessionHash, stream: resp.Body, deadline: deadline, cancel: cancel}
	events := newEventReader(resp.Body)
	for {
		raw, err := events.Next()
		if err != nil {
			failure := c.readFailure(ctx, op, "read join response", err)
			_ = ch.Close()
			if errors.Is(err, io.EOF) {
				return nil, services.Wrap(services.ErrMalformedResponse, component, op, "join response carried no event id", nil)
			}
			return nil, failure
		}
		if !events.streaming() {
			_ = ch.Close()
			id, err := c.parser.EventID(raw)
			if err != nil {
				return nil, services.Wrap(services.ErrMalformedResponse, component, op, "locate event id", err)
			}
			ch.EventID = id
			return ch, nil
		}
		ev, err := c.parser.ParseEvent(raw)
		if err != nil {
			_ = ch.Close()
			return nil, services.Wrap(services.ErrMalformedResponse, component, op, "decode join event", err)
		}
		if ev.Msg == MsgQueueFull {
			_ = ch.Close()
			return nil, services.Wrap(services.ErrTransport, component, op, "queue full", nil)
		}
		if ev.EventID != "" {
			ch.EventID = ev.EventID
			ch.events = events
			return ch, nil
		}
	}
}

// Submit posts the stage payload and waits for the completion event,
// returning the produced asset path.
func (c *Client) Submit(ctx context.Context, ch *Channel, p payload.Payload, onEvent EventHandler) (string, error) {
	const op = "submit"
	if ch == nil {
		return "", services.Wrap(services.ErrInvalidArgument, component, op, "queue channel required", nil)
	}
	if p == nil {
		return "", services.Wrap(services.ErrInvalidArgument, component, op, "payload required", nil)
	}
	if p.Stage() != ch.Stage || p.SessionHash() != ch.SessionHash {
		return "", services.Wrap(services.ErrInvalidArgument, component, op,
			fmt.Sprintf("payload stage %d/%s does not match channel %d/%s", p.Stage(), p.SessionHash(), ch.Stage, ch.SessionHash), nil)
	}
	encoded, err := payload.Encode(p, ch.EventID)
	if err != nil {
		return "", err
	}
	endpoint, err := c.endpoint("queue", "data")
	if err != nil {
		return "", err
	}
	var cancel context.CancelFunc
	if ch.deadline.IsZero() {
		ctx, cancel = context.WithTimeout(ctx, c.stageTimeout)
	} else {
		ctx, cancel = context.WithDeadline(ctx, ch.deadline)
	}
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("gradio submit: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream, application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.failure(ctx, op, "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", statusFailure(resp, op)
	}

	path, done, err := c.await(ctx, newEventReader(resp.Body), onEvent, "await data response")
	if err != nil || done {
		return path, err
	}
	if !ch.Streaming() {
		return "", services.Wrap(services.ErrMalformedResponse, component, op, "data response ended without a completion event", nil)
	}
	path, done, err = c.await(ctx, ch.events, onEvent, "await join stream")
	if err != nil {
		if ch.expired() && !errors.Is(err, services.ErrTimeout) {
			err = services.Wrap(services.ErrTimeout, component, op, "no completion within "+c.stageTimeout.String(), err)
		}
		return "", err
	}
	if !done {
		if ch.expired() {
			return "", services.Wrap(services.ErrTimeout, component, op, "no completion within "+c.stageTimeout.String(), nil)
		}
		return "", services.Wrap(services.ErrMalformedResponse, component, op, "event stream closed before completion", nil)
	}
	return path, nil
}

// await consumes events until completion. done is false when the stream
// ended (or was closed by the server) without a completion event.
func (c *Client) await(ctx context.Context, events *eventReader, onEvent EventHandler, op string) (string, bool, error) {
	for {
		raw, err := events.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", false, nil
			}
			return "", false, c.readFailure(ctx, op, "read event stream", err)
		}
		ev, err := c.parser.ParseEvent(raw)
		if err != nil {
			return "", false, services.Wrap(services.ErrMalformedResponse, component, op, "decode event", err)
		}
		if onEvent != nil {
			onEvent(ev)
		}
		switch {
		case ev.Msg == MsgQueueFull:
			return "", false, services.Wrap(services.ErrTransport, component, op, "queue full", nil)
		case ev.Msg == MsgUnexpectedError:
			return "", false, services.Wrap(services.ErrMalformedResponse, component, op, "remote error: "+ev.ErrorText(), nil)
		case ev.Msg == MsgCloseStream:
			return "", false, nil
		case ev.Completed():
			if ev.Failed() {
				return "", false, services.Wrap(services.ErrMalformedResponse, component, op, "remote stage failed: "+ev.ErrorText(), nil)
			}
			path, err := c.parser.OutputPath(ev)
			if err != nil {
				return "", false, services.Wrap(services.ErrMalformedResponse, component, op, "locate output path", err)
			}
			return path, true, nil
		}
	}
}

// readFailure classifies a failed event read. Undecodable JSON is a malformed
// response unless ctx ended first; everything else goes through failure.
func (c *Client) readFailure(ctx context.Context, op, message string, err error) error {
	if ctx.Err() == nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
			return services.Wrap(services.ErrMalformedResponse, component, op, message, err)
		}
	}
	return c.failure(ctx, op, message, err)
}
