package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// FailureMode selects how the fake service answers a stage's data request.
type FailureMode int

const (
	// Succeed completes the stage normally.
	Succeed FailureMode = iota
	// FailStatus answers with HTTP 500.
	FailStatus
	// FailEmptyOutput completes the stage without output data.
	FailEmptyOutput
	// FailRemote completes the stage with success=false.
	FailRemote
	// Hang never completes; the request blocks until the client gives up.
	Hang
)

// Request is one call the fake service received.
type Request struct {
	Kind        string // upload, join, data, file, config
	Stage       int
	SessionHash string
	EventID     string
	Data        []json.RawMessage
}

// FakeService is an httptest server speaking the upload and queue protocol
// with deterministic output paths: uploads become /tmp/gradio/u<n>/<name>, and
// stage N of session S produces /tmp/gradio/S/p<N>.png.
type FakeService struct {
	Server *httptest.Server

	mu           sync.Mutex
	requests     []Request
	uploads      int
	failures     map[int]FailureMode
	uploadStatus int
}

// NewFakeService starts a fake service and registers cleanup.
func NewFakeService(t testing.TB) *FakeService {
	t.Helper()

	fs := &FakeService{failures: map[int]FailureMode{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", fs.handleUpload)
	mux.HandleFunc("/queue/join", fs.handleJoin)
	mux.HandleFunc("/queue/data", fs.handleData)
	mux.HandleFunc("/config", func(w http.ResponseWriter, _ *http.Request) {
		fs.record(Request{Kind: "config", Stage: -1})
		_, _ = w.Write([]byte(`{"version":"3.50.2","mode":"blocks"}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if path, ok := strings.CutPrefix(r.URL.Path, "/file="); ok {
			fs.record(Request{Kind: "file", Stage: -1})
			_, _ = w.Write([]byte("image:" + path))
			return
		}
		http.NotFound(w, r)
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Server.Close)
	return fs
}

// URL returns the base URL of the fake service.
func (fs *FakeService) URL() string {
	return fs.Server.URL
}

// SetFailure configures how the given stage's data request is answered.
func (fs *FakeService) SetFailure(stage int, mode FailureMode) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.failures[stage] = mode
}

// FailUploads makes every upload answer with the given HTTP status.
func (fs *FakeService) FailUploads(status int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.uploadStatus = status
}

// Requests returns a snapshot of the calls received so far.
func (fs *FakeService) Requests() []Request {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]Request, len(fs.requests))
	copy(out, fs.requests)
	return out
}

// DataRequests returns the submitted stage payloads for one session.
func (fs *FakeService) DataRequests(sessionHash string) []Request {
	var out []Request
	for _, req := range fs.Requests() {
		if req.Kind == "data" && req.SessionHash == sessionHash {
			out = append(out, req)
		}
	}
	return out
}

// StagePath is the path the fake service reports for a completed stage.
func StagePath(sessionHash string, stage int) string {
	return fmt.Sprintf("/tmp/gradio/%s/p%d.png", sessionHash, stage)
}

func (fs *FakeService) record(req Request) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.requests = append(fs.requests, req)
}

func (fs *FakeService) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_, header, err := r.FormFile("files")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fs.mu.Lock()
	fs.uploads++
	n := fs.uploads
	status := fs.uploadStatus
	fs.requests = append(fs.requests, Request{Kind: "upload", Stage: -1})
	fs.mu.Unlock()

	if status != 0 {
		http.Error(w, "upload rejected", status)
		return
	}
	_ = json.NewEncoder(w).Encode([]string{fmt.Sprintf("/tmp/gradio/u%d/%s", n, header.Filename)})
}

func (fs *FakeService) handleJoin(w http.ResponseWriter, r *http.Request) {
	stage, _ := strconv.Atoi(r.URL.Query().Get("fn_index"))
	hash := r.URL.Query().Get("session_hash")
	fs.record(Request{Kind: "join", Stage: stage, SessionHash: hash})

	w.Header().Set("Content-Type", "text/event-stream")
	writeEvents(w,
		map[string]any{"msg": "estimation", "rank": 0, "queue_size": 1},
		map[string]any{"msg": "send_data", "event_id": eventID(hash, stage)},
	)
}

func (fs *FakeService) handleData(w http.ResponseWriter, r *http.Request) {
	var envelope struct {
		Data        []json.RawMessage `json:"data"`
		FnIndex     int               `json:"fn_index"`
		SessionHash string            `json:"session_hash"`
		EventID     string            `json:"event_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fs.record(Request{
		Kind:        "data",
		Stage:       envelope.FnIndex,
		SessionHash: envelope.SessionHash,
		EventID:     envelope.EventID,
		Data:        envelope.Data,
	})
	if envelope.EventID != eventID(envelope.SessionHash, envelope.FnIndex) {
		http.Error(w, "unknown event id", http.StatusBadRequest)
		return
	}

	fs.mu.Lock()
	mode := fs.failures[envelope.FnIndex]
	fs.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	switch mode {
	case FailStatus:
		http.Error(w, "worker crashed", http.StatusInternalServerError)
	case FailEmptyOutput:
		writeEvents(w, map[string]any{"msg": "process_completed", "success": true, "output": map[string]any{"data": []any{}}})
	case FailRemote:
		writeEvents(w, map[string]any{"msg": "process_completed", "success": false, "output": map[string]any{"error": "CUDA out of memory"}})
	case Hang:
		writeEvents(w, map[string]any{"msg": "process_starts"})
		<-r.Context().Done()
	default:
		writeEvents(w,
			map[string]any{"msg": "process_starts"},
			map[string]any{
				"msg":     "process_completed",
				"success": true,
				"output": map[string]any{"data": []any{
					map[string]any{"name": StagePath(envelope.SessionHash, envelope.FnIndex), "is_file": true},
				}},
			},
		)
	}
}

func eventID(hash string, stage int) string {
	return fmt.Sprintf("ev-%s-%d", hash, stage)
}

func writeEvents(w http.ResponseWriter, events ...map[string]any) {
	flusher, _ := w.(http.Flusher)
	for _, ev := range events {
		encoded, err := json.Marshal(ev)
		if err != nil {
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", encoded); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
