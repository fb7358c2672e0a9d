package gradio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ResponseParser owns the upstream response schema.
type ResponseParser interface {
	// UploadPath extracts the stored path from an upload response body.
	UploadPath(body []byte) (string, error)
	// EventID extracts the queue token from a plain JSON join response.
	EventID(body []byte) (string, error)
	// ParseEvent decodes one queue event payload.
	ParseEvent(data []byte) (Event, error)
	// OutputPath extracts the produced asset path from a completion event.
	OutputPath(ev Event) (string, error)
}

var errPathNotFound = errors.New("no path in response")

// GradioParser understands the upload and queue shapes of Gradio 3.x/4.x apps.
type GradioParser struct{}

// UploadPath accepts ["path"], [{"path": ...}], {"path": ...}, or
// {"files"|"paths"|"data": [...]}.
func (GradioParser) UploadPath(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", errors.New("empty body")
	}
	if !json.Valid(trimmed) {
		return "", fmt.Errorf("invalid JSON: %s", summarizeSnippet(string(trimmed)))
	}
	if trimmed[0] == '"' {
		return "", fmt.Errorf("%w: bare string %s", errPathNotFound, summarizeSnippet(string(trimmed)))
	}
	if path, ok := findPath(trimmed); ok {
		return path, nil
	}
	return "", fmt.Errorf("%w: %s", errPathNotFound, summarizeSnippet(string(trimmed)))
}

func (GradioParser) EventID(body []byte) (string, error) {
	var parsed struct {
		EventID string `json:"event_id"`
		Hash    string `json:"hash"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(body), &parsed); err != nil {
		return "", fmt.Errorf("decode join response: %w", err)
	}
	if id := strings.TrimSpace(parsed.EventID); id != "" {
		return id, nil
	}
	if id := strings.TrimSpace(parsed.Hash); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("event_id missing: %s", summarizeSnippet(string(body)))
}

func (GradioParser) ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(bytes.TrimSpace(data), &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w (payload snippet: %s)", err, summarizeSnippet(string(data)))
	}
	ev.Msg = strings.TrimSpace(ev.Msg)
	ev.EventID = strings.TrimSpace(ev.EventID)
	ev.Raw = append(json.RawMessage(nil), data...)
	return ev, nil
}

func (GradioParser) OutputPath(ev Event) (string, error) {
	data := ev.OutputData()
	if len(data) == 0 {
		return "", fmt.Errorf("%w: completion carried no output data", errPathNotFound)
	}
	if path, ok := findPath(data[0]); ok {
		return path, nil
	}
	return "", fmt.Errorf("%w: %s", errPathNotFound, summarizeSnippet(string(data[0])))
}

var pathKeys = []string{"path", "name"}
var listKeys = []string{"files", "paths", "data", "value", "image"}

// findPath walks a JSON value depth-first and returns the first file path:
// a bare string, a path/name field of an object, or the first match inside a
// list.
func findPath(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return "", false
		}
		for _, item := range items {
			if path, ok := findPath(item); ok {
				return path, true
			}
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", false
		}
		for _, key := range pathKeys {
			if value, ok := obj[key]; ok && len(value) > 0 && value[0] == '"' {
				if path, ok := findPath(value); ok {
					return path, true
				}
			}
		}
		for _, key := range listKeys {
			if value, ok := obj[key]; ok {
				if path, ok := findPath(value); ok {
					return path, true
				}
			}
		}
	}
	return "", false
}
