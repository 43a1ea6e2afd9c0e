package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// doneSentinel is the payload value that marks the end of a stream.
const doneSentinel = "[DONE]"

// doneEventType is the event label that marks the end of a stream.
const doneEventType = "done"

// Decoder consumes a server-push event stream and delivers decoded events
// to a Handler. Frames are separated by a blank line and carry an event
// label plus one or more data lines. A Decoder is single-use; Decode may
// be called exactly once.
type Decoder struct {
	handler   Handler
	text      strings.Builder
	completed []any
	finished  bool
	used      bool
}

// NewDecoder creates a Decoder delivering events to the given handler.
func NewDecoder(handler Handler) *Decoder {
	return &Decoder{handler: handler}
}

// Decode reads frames from r until a completion sentinel, EOF, error, or
// context cancellation. Cancellation is a clean stop: no further events
// are delivered but the completion callback still runs with the items
// accumulated so far.
func (d *Decoder) Decode(ctx context.Context, r io.Reader) error {
	if d.used {
		return errors.New("decoder already consumed")
	}
	d.used = true

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 2*1024*1024)
	scanner.Split(scanFrames)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return d.finish()
		}
		if err := d.processFrame(scanner.Text()); err != nil {
			return err
		}
		if d.finished {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			// An aborted stream surfaces as a closed-body read error;
			// treat it as cancellation, not failure.
			return d.finish()
		}
		return d.fail(&TransportError{Err: err})
	}

	// Stream ended without an explicit done frame.
	return d.finish()
}

// scanFrames is a bufio.SplitFunc yielding one frame per blank-line
// boundary. Incomplete frames are held until more data arrives; a
// trailing unterminated frame is yielded at EOF.
func scanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.Index(data, []byte("\n\n")); i >= 0 {
		return i + 2, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// processFrame interprets a single complete frame.
func (d *Decoder) processFrame(frame string) error {
	eventType, data := parseFrame(frame)

	// Completion is signaled by the event label or the payload value.
	if eventType == doneEventType || data == doneSentinel {
		return d.finish()
	}

	if data == "" {
		// Comment or heartbeat frame.
		return nil
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		// Non-JSON payloads are plain text fragments.
		return d.chunk(data)
	}

	// Delta-style text fragments accumulate into the current message.
	if content, ok := deltaContent(payload); ok {
		return d.chunk(content)
	}

	// Tool and function call fragments close out any in-flight text.
	if deltaToolCalls(payload) {
		d.finalizeText()
		return d.object(payload)
	}

	// Payloads carrying their own type discriminator are first-class
	// structured events.
	if _, ok := payload["type"].(string); ok {
		d.finalizeText()
		return d.object(payload)
	}

	// Direct-content payloads are text fragments without the delta
	// envelope.
	if content, ok := payload["content"].(string); ok {
		return d.chunk(content)
	}

	if usage, ok := payload["usage"].(map[string]any); ok {
		return d.metadata(usage)
	}

	if _, ok := payload["choices"]; ok {
		// Delta envelopes with nothing actionable (role announcements,
		// finish frames) carry no event.
		return nil
	}

	return d.object(payload)
}

// parseFrame splits a frame into its event-type label and data payload.
// Multiple data lines are joined with a newline.
func parseFrame(frame string) (eventType string, data string) {
	var dataLines []string
	for _, line := range strings.Split(frame, "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case strings.HasPrefix(line, ":"):
			// Comment line; ignored.
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			value := strings.TrimPrefix(line, "data:")
			dataLines = append(dataLines, strings.TrimPrefix(value, " "))
		}
	}
	return eventType, strings.Join(dataLines, "\n")
}

func (d *Decoder) chunk(content string) error {
	d.text.WriteString(content)
	return d.handler.OnEvent(Chunk(content))
}

func (d *Decoder) object(payload map[string]any) error {
	d.completed = append(d.completed, payload)
	return d.handler.OnEvent(Object(payload))
}

func (d *Decoder) metadata(meta map[string]any) error {
	return d.handler.OnEvent(Metadata(meta))
}

// finalizeText pushes the in-flight text accumulator onto the completed
// items list.
func (d *Decoder) finalizeText() {
	if d.text.Len() == 0 {
		return
	}
	d.completed = append(d.completed, d.text.String())
	d.text.Reset()
}

func (d *Decoder) finish() error {
	if d.finished {
		return nil
	}
	d.finished = true
	d.finalizeText()
	if err := d.handler.OnEvent(Done(d.completed)); err != nil {
		return err
	}
	return d.handler.OnComplete(d.completed)
}

func (d *Decoder) fail(terr *TransportError) error {
	if d.finished {
		return terr
	}
	d.finished = true
	return Fail(d.handler, terr)
}

// Fail delivers a transport failure through the handler's error surface
// (the error event plus OnError) and returns the error for the caller to
// propagate.
func Fail(handler Handler, terr *TransportError) error {
	_ = handler.OnEvent(Failure(terr))
	handler.OnError(terr)
	return terr
}

// deltaContent extracts choices[0].delta.content from a delta-style
// payload.
func deltaContent(payload map[string]any) (string, bool) {
	delta, ok := firstDelta(payload)
	if !ok {
		return "", false
	}
	content, ok := delta["content"].(string)
	return content, ok
}

// deltaToolCalls reports whether choices[0].delta carries a tool or
// function call fragment.
func deltaToolCalls(payload map[string]any) bool {
	delta, ok := firstDelta(payload)
	if !ok {
		return false
	}
	if _, ok := delta["tool_calls"]; ok {
		return true
	}
	if _, ok := delta["function_call"]; ok {
		return true
	}
	return false
}

func firstDelta(payload map[string]any) (map[string]any, bool) {
	choices, ok := payload["choices"].([]any)
	if !ok || len(choices) == 0 {
		return nil, false
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return nil, false
	}
	delta, ok := first["delta"].(map[string]any)
	return delta, ok
}

// DecodeResponse validates the transport outcome of an HTTP exchange and
// decodes the body as an event stream. A non-success status or missing
// body produces a TransportError before any event is delivered.
func DecodeResponse(ctx context.Context, resp *http.Response, handler Handler) error {
	if resp == nil || resp.Body == nil {
		terr := &TransportError{Message: "missing response body"}
		return Fail(handler, terr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		terr := &TransportError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
		return Fail(handler, terr)
	}
	defer resp.Body.Close()
	return NewDecoder(handler).Decode(ctx, resp.Body)
}
