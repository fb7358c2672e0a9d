package payload

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Stage indexes on the remote app.
const (
	StageSketch = 0
	StageImage  = 1
	StageRefine = 2
)

// DefaultTriggerID is the trigger identifier the remote app expects on every submission.
const DefaultTriggerID = 30

// Asset references a file stored on the remote service.
type Asset struct {
	Path string
	URL  string
}

// FileData is the remote app's file reference object. Nil pointers encode as null.
type FileData struct {
	MimeType *string `json:"mime_type"`
	OrigName string  `json:"orig_name"`
	Path     string  `json:"path"`
	Size     *int64  `json:"size"`
	URL      string  `json:"url"`
}

// Envelope is the document posted to the queue data endpoint.
type Envelope struct {
	Data        []any  `json:"data"`
	EventData   any    `json:"event_data"`
	FnIndex     int    `json:"fn_index"`
	SessionHash string `json:"session_hash"`
	TriggerID   int    `json:"trigger_id"`
	EventID     string `json:"event_id,omitempty"`
}

// Payload is implemented by the three stage variants.
type Payload interface {
	Stage() int
	SessionHash() string
	Asset() Asset
	Envelope() Envelope
}

// Meta carries the envelope fields shared by every stage of a run.
type Meta struct {
	SessionHash string
	TriggerID   int
}

// Encode serializes p, stamping the queue event token when one is known.
func Encode(p Payload, eventID string) ([]byte, error) {
	if p == nil {
		return nil, invalid("encode", "payload is nil")
	}
	env := p.Envelope()
	env.EventID = strings.TrimSpace(eventID)
	encoded, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode stage %d payload: %w", p.Stage(), err)
	}
	return encoded, nil
}

func (m Meta) envelope(stage int, data []any) Envelope {
	return Envelope{
		Data:        data,
		EventData:   nil,
		FnIndex:     stage,
		SessionHash: m.SessionHash,
		TriggerID:   m.TriggerID,
	}
}

func (m Meta) validate(op string) error {
	if strings.TrimSpace(m.SessionHash) == "" {
		return invalid(op, "session hash required")
	}
	if m.TriggerID < 0 {
		return invalid(op, fmt.Sprintf("trigger id must not be negative (got %d)", m.TriggerID))
	}
	return nil
}

func validateAsset(op string, asset Asset) error {
	if strings.TrimSpace(asset.Path) == "" {
		return invalid(op, "prior asset path required")
	}
	if strings.TrimSpace(asset.URL) == "" {
		return invalid(op, "prior asset url required")
	}
	return nil
}

func normalizePrompt(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}

func stringPtr(value string) *string {
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}
