package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/spindleworks/spindle/pkg/stream"
)

// VoiceParams describes an interactive voice session. Audio carries
// outgoing audio frames; closing it ends the utterance. A nil channel
// opens a listen-only session.
type VoiceParams struct {
	Audio      <-chan []byte
	SampleRate int
	Encoding   string
	Language   string
}

// voiceFrame is the JSON control frame exchanged over the voice
// socket. Outgoing audio itself travels as binary messages.
type voiceFrame struct {
	Type       string `json:"type"`
	Model      string `json:"model,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
	Language   string `json:"language,omitempty"`
}

// voiceSession dials the configured websocket endpoint, announces the
// session with a start frame, forwards outgoing audio, and maps
// incoming JSON frames onto stream events: transcript.delta frames
// become chunks, done closes the session, any other typed frame is a
// structured event. Abort closes the socket.
func voiceSession(ctx context.Context, p VoiceParams, cfg Config, handler stream.Handler) (*Handle, error) {
	if cfg.VoiceURL == "" {
		return nil, errors.New("voice endpoint not configured")
	}

	header := http.Header{}
	if cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, cfg.VoiceURL, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("voice dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("voice dial failed: %w", err)
	}

	start := voiceFrame{
		Type:       "start",
		Model:      cfg.Model,
		SampleRate: p.SampleRate,
		Encoding:   p.Encoding,
		Language:   p.Language,
	}
	if err := conn.WriteJSON(start); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send start frame: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	handle := newHandle(cancel, func() { _ = conn.Close() })

	if p.Audio != nil {
		go writeVoiceAudio(ctx, conn, p.Audio)
	}

	go func() {
		defer conn.Close()
		handle.finish(readVoiceFrames(ctx, conn, handler))
	}()

	return handle, nil
}

// writeVoiceAudio forwards audio frames until the channel closes, then
// signals the end of the utterance with a stop frame.
func writeVoiceAudio(ctx context.Context, conn *websocket.Conn, audio <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-audio:
			if !ok {
				_ = conn.WriteJSON(voiceFrame{Type: "stop"})
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		}
	}
}

// readVoiceFrames consumes incoming frames until the session ends.
// Cancellation and a normal socket close both finish cleanly with the
// transcript accumulated so far.
func readVoiceFrames(ctx context.Context, conn *websocket.Conn, handler stream.Handler) error {
	var text strings.Builder
	var completed []any

	finalizeText := func() {
		if text.Len() == 0 {
			return
		}
		completed = append(completed, text.String())
		text.Reset()
	}

	finish := func() error {
		finalizeText()
		if err := handler.OnEvent(stream.Done(completed)); err != nil {
			return err
		}
		return handler.OnComplete(completed)
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return finish()
			}
			return stream.Fail(handler, &stream.TransportError{Err: err})
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var payload map[string]any
		if err := json.Unmarshal(data, &payload); err != nil {
			log.Warn("discarding unparseable voice frame: %v", err)
			continue
		}

		frameType, _ := payload["type"].(string)
		switch frameType {
		case "transcript.delta":
			delta, _ := payload["text"].(string)
			if delta == "" {
				continue
			}
			text.WriteString(delta)
			if err := handler.OnEvent(stream.Chunk(delta)); err != nil {
				return err
			}
		case "done":
			return finish()
		case "error":
			message, _ := payload["message"].(string)
			if message == "" {
				message = "voice session failed"
			}
			return stream.Fail(handler, &stream.TransportError{Message: message})
		case "":
			// Frames without a type carry nothing actionable.
		default:
			finalizeText()
			completed = append(completed, payload)
			if err := handler.OnEvent(stream.Object(payload)); err != nil {
				return err
			}
		}
	}
}
