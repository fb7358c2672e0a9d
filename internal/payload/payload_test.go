package payload_test

import (
	"encoding/json"
	"errors"
	"testing"

	"sketchforge/internal/payload"
	"sketchforge/internal/services"
)

var testMeta = payload.Meta{SessionHash: "a1b2c3d4e5", TriggerID: payload.DefaultTriggerID}

func decodeEnvelope(t *testing.T, p payload.Payload, eventID string) map[string]any {
	t.Helper()
	raw, err := payload.Encode(p, eventID)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return doc
}

func assertEnvelope(t *testing.T, doc map[string]any, stage int) {
	t.Helper()
	if got := doc["fn_index"]; got != float64(stage) {
		t.Fatalf("fn_index = %v, want %d", got, stage)
	}
	if got := doc["session_hash"]; got != testMeta.SessionHash {
		t.Fatalf("session_hash = %v, want %s", got, testMeta.SessionHash)
	}
	if got := doc["trigger_id"]; got != float64(payload.DefaultTriggerID) {
		t.Fatalf("trigger_id = %v", got)
	}
	value, ok := doc["event_data"]
	if !ok || value != nil {
		t.Fatalf("expected event_data to be present and null, got %v (present=%v)", value, ok)
	}
}

func TestSketchPayloadReferencesUploadTwice(t *testing.T) {
	src := payload.Asset{Path: "/tmp/u1.png", URL: "http://svc/file=/tmp/u1.png"}
	p, err := payload.BuildSketch(src, payload.Dimensions{Width: 64, Height: 64}, payload.SketchParams{}, testMeta)
	if err != nil {
		t.Fatalf("BuildSketch returned error: %v", err)
	}
	doc := decodeEnvelope(t, p, "")
	assertEnvelope(t, doc, payload.StageSketch)
	if _, ok := doc["event_id"]; ok {
		t.Fatal("expected event_id to be omitted when empty")
	}

	data := doc["data"].([]any)
	if len(data) != 1 {
		t.Fatalf("expected one data element, got %d", len(data))
	}
	layers := data[0].(map[string]any)
	for role, name := range map[string]string{"background": "background.png", "composite": "composite.png"} {
		layer, ok := layers[role].(map[string]any)
		if !ok {
			t.Fatalf("missing %s layer", role)
		}
		if layer["path"] != src.Path || layer["url"] != src.URL {
			t.Fatalf("%s layer references %v/%v", role, layer["path"], layer["url"])
		}
		if layer["mime_type"] != "" {
			t.Fatalf("%s mime_type = %v, want empty string", role, layer["mime_type"])
		}
		if layer["size"] != float64(64*64*4) {
			t.Fatalf("%s size = %v", role, layer["size"])
		}
		if layer["orig_name"] != name {
			t.Fatalf("%s orig_name = %v", role, layer["orig_name"])
		}
	}
}

func TestImagePayloadPositionalOrder(t *testing.T) {
	src := payload.Asset{Path: "p0", URL: "http://svc/file=p0"}
	params := payload.DefaultImageParams()
	params.Seed = 42
	p, err := payload.BuildImage(src, params, "  a castle ", "blurry", testMeta)
	if err != nil {
		t.Fatalf("BuildImage returned error: %v", err)
	}
	doc := decodeEnvelope(t, p, "evt-1")
	assertEnvelope(t, doc, payload.StageImage)
	if doc["event_id"] != "evt-1" {
		t.Fatalf("event_id = %v", doc["event_id"])
	}

	data := doc["data"].([]any)
	if len(data) != 15 {
		t.Fatalf("expected 15 data elements, got %d", len(data))
	}
	file := data[0].(map[string]any)
	if file["path"] != "p0" || file["url"] != "http://svc/file=p0" || file["orig_name"] != "image.png" {
		t.Fatalf("unexpected file reference %v", file)
	}
	if file["mime_type"] != nil || file["size"] != nil {
		t.Fatalf("expected null mime_type and size, got %v", file)
	}
	want := []any{
		"stablediffusionapi/rev-animated-v122-eol",
		"lllyasviel/control_v11p_sd15_lineart",
		float64(512), float64(512), true, float64(1),
		"a castle", "blurry",
		float64(1), 7.5, float64(30), "DDIM", float64(42), "Lineart",
	}
	for i, value := range want {
		if data[i+1] != value {
			t.Fatalf("data[%d] = %v (%T), want %v", i+1, data[i+1], data[i+1], value)
		}
	}
}

func TestImagePayloadNormalizesPromptToNFC(t *testing.T) {
	src := payload.Asset{Path: "p0", URL: "u"}
	decomposed := "cafe\u0301"
	p, err := payload.BuildImage(src, payload.DefaultImageParams(), decomposed, "", testMeta)
	if err != nil {
		t.Fatalf("BuildImage returned error: %v", err)
	}
	if p.Prompt != "caf\u00e9" {
		t.Fatalf("expected composed prompt, got %q", p.Prompt)
	}
}

func TestRefinePayload(t *testing.T) {
	src := payload.Asset{Path: "p1", URL: "http://svc/file=p1"}
	p, err := payload.BuildRefine(src, payload.DefaultRefineParams(), testMeta)
	if err != nil {
		t.Fatalf("BuildRefine returned error: %v", err)
	}
	doc := decodeEnvelope(t, p, "")
	assertEnvelope(t, doc, payload.StageRefine)
	data := doc["data"].([]any)
	if len(data) != 3 {
		t.Fatalf("expected 3 data elements, got %d", len(data))
	}
	if data[0].(map[string]any)["path"] != "p1" {
		t.Fatalf("unexpected file reference %v", data[0])
	}
	if data[1] != true || data[2] != 0.85 {
		t.Fatalf("unexpected refine params %v %v", data[1], data[2])
	}
	if p.Asset() != src {
		t.Fatalf("Asset() = %+v", p.Asset())
	}
}

func TestBuildersRejectInvalidInput(t *testing.T) {
	src := payload.Asset{Path: "p", URL: "u"}
	badImage := payload.DefaultImageParams()
	badImage.Width = -512
	badSteps := payload.DefaultImageParams()
	badSteps.Steps = 0

	tests := []struct {
		name string
		run  func() error
	}{
		{"negative sketch dims", func() error {
			_, err := payload.BuildSketch(src, payload.Dimensions{Width: -1, Height: 4}, payload.SketchParams{}, testMeta)
			return err
		}},
		{"empty sketch path", func() error {
			_, err := payload.BuildSketch(payload.Asset{URL: "u"}, payload.Dimensions{Width: 1, Height: 1}, payload.SketchParams{}, testMeta)
			return err
		}},
		{"missing session", func() error {
			_, err := payload.BuildRefine(src, payload.DefaultRefineParams(), payload.Meta{TriggerID: 30})
			return err
		}},
		{"negative image width", func() error {
			_, err := payload.BuildImage(src, badImage, "p", "n", testMeta)
			return err
		}},
		{"zero steps", func() error {
			_, err := payload.BuildImage(src, badSteps, "p", "n", testMeta)
			return err
		}},
		{"strength out of range", func() error {
			_, err := payload.BuildRefine(src, payload.RefineParams{Strength: 1.5}, testMeta)
			return err
		}},
		{"nil payload", func() error {
			_, err := payload.Encode(nil, "")
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if !errors.Is(err, services.ErrInvalidArgument) {
				t.Fatalf("expected invalid argument, got %v", err)
			}
		})
	}
}
