package gradio

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// Queue message kinds emitted by the app.
const (
	MsgSendHash          = "send_hash"
	MsgSendData          = "send_data"
	MsgEstimation        = "estimation"
	MsgProcessStarts     = "process_starts"
	MsgProgress          = "progress"
	MsgProcessGenerating = "process_generating"
	MsgProcessCompleted  = "process_completed"
	MsgHeartbeat         = "heartbeat"
	MsgQueueFull         = "queue_full"
	MsgCloseStream       = "close_stream"
	MsgUnexpectedError   = "unexpected_error"
)

// Event is one decoded queue message.
type Event struct {
	Msg       string            `json:"msg"`
	EventID   string            `json:"event_id"`
	Rank      *int              `json:"rank"`
	QueueSize *int              `json:"queue_size"`
	RankETA   *float64          `json:"rank_eta"`
	Success   *bool             `json:"success"`
	Message   string            `json:"message"`
	Output    *EventOutput      `json:"output"`
	Data      []json.RawMessage `json:"data"`
	Raw       json.RawMessage   `json:"-"`
}

// EventOutput is the result block of a generating or completed event.
type EventOutput struct {
	Data  []json.RawMessage `json:"data"`
	Error json.RawMessage   `json:"error"`
}

// Completed reports whether the event ends the stage. A body with no msg but
// a top-level data list is a synchronous predict response and counts too.
func (e Event) Completed() bool {
	if e.Msg == MsgProcessCompleted {
		return true
	}
	return e.Msg == "" && len(e.Data) > 0
}

// Failed reports whether a completion event carries a server-side error.
func (e Event) Failed() bool {
	if e.Success != nil && !*e.Success {
		return true
	}
	return e.ErrorText() != ""
}

// ErrorText returns the server-reported error message, if any.
func (e Event) ErrorText() string {
	if e.Output != nil && len(e.Output.Error) > 0 {
		raw := bytes.TrimSpace(e.Output.Error)
		if !bytes.Equal(raw, []byte("null")) {
			var text string
			if err := json.Unmarshal(raw, &text); err == nil {
				return strings.TrimSpace(text)
			}
			return string(raw)
		}
	}
	if e.Msg == MsgUnexpectedError || (e.Success != nil && !*e.Success) {
		return strings.TrimSpace(e.Message)
	}
	return ""
}

// OutputData returns the result values of the event.
func (e Event) OutputData() []json.RawMessage {
	if e.Output != nil && len(e.Output.Data) > 0 {
		return e.Output.Data
	}
	return e.Data
}

// eventReader yields raw event payloads from either a server-sent event stream
// or a body of one or more concatenated JSON documents.
type eventReader struct {
	r       *bufio.Reader
	decoder *json.Decoder
	sniffed bool
}

func newEventReader(body io.Reader) *eventReader {
	return &eventReader{r: bufio.NewReader(body)}
}

// Next returns the next event payload or io.EOF once the body is exhausted.
func (er *eventReader) Next() ([]byte, error) {
	if !er.sniffed {
		er.sniffed = true
		first, err := er.peekNonSpace()
		if err != nil {
			return nil, err
		}
		if first == '{' || first == '[' {
			er.decoder = json.NewDecoder(er.r)
		}
	}
	if er.decoder != nil {
		var raw json.RawMessage
		if err := er.decoder.Decode(&raw); err != nil {
			return nil, err
		}
		return raw, nil
	}
	return er.nextSSE()
}

// streaming reports whether the body is a server-sent event stream. Only
// meaningful after the first Next call.
func (er *eventReader) streaming() bool {
	return er.sniffed && er.decoder == nil
}

func (er *eventReader) peekNonSpace() (byte, error) {
	for {
		b, err := er.r.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		if err := er.r.UnreadByte(); err != nil {
			return 0, err
		}
		return b, nil
	}
}

// nextSSE accumulates data lines up to the blank line that terminates an
// event. Comment, id, event, and retry lines are skipped.
func (er *eventReader) nextSSE() ([]byte, error) {
	var data []string
	for {
		line, err := er.r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			if len(data) > 0 {
				return []byte(strings.Join(data, "\n")), nil
			}
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			continue
		}
		if value, ok := strings.CutPrefix(trimmed, "data:"); ok {
			data = append(data, strings.TrimPrefix(value, " "))
		}
		if errors.Is(err, io.EOF) {
			if len(data) > 0 {
				return []byte(strings.Join(data, "\n")), nil
			}
			return nil, io.EOF
		}
	}
}
