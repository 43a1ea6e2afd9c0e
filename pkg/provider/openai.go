package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spindleworks/spindle/pkg/chat"
	"github.com/spindleworks/spindle/pkg/stream"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model          string          `json:"model"`
	Messages       []openaiMessage `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string          `json:"type"`
	JSONSchema *responseSchema `json:"json_schema,omitempty"`
}

type responseSchema struct {
	Name   string `json:"name"`
	Strict bool   `json:"strict"`
	Schema any    `json:"schema"`
}

type openaiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

// openaiCall runs a non-streaming chat completion against an
// OpenAI-compatible endpoint.
func openaiCall(ctx context.Context, p Params, cfg Config, structured bool, schema any) (*Response, error) {
	reqBody := openaiRequest{
		Model:       cfg.Model,
		Messages:    openaiMessages(p),
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}
	if structured {
		reqBody.ResponseFormat = responseFormatFor(schema)
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", openaiEndpoint(cfg), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	setOpenAIHeaders(req, cfg)

	resp, err := openaiClient(cfg).Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(errorBody)))
	}

	var decoded openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, errors.New("no response choices available")
	}

	choice := decoded.Choices[0]
	metadata := map[string]any{}
	if decoded.Model != "" {
		metadata["model"] = decoded.Model
	}
	if choice.FinishReason != "" {
		metadata["finish_reason"] = choice.FinishReason
	}
	if len(metadata) == 0 {
		metadata = nil
	}

	log.Debug("completion finished: model=%s structured=%t", cfg.Model, structured)
	return handleResponse(choice.Message.Content, decoded.Usage, metadata, structured)
}

// openaiStream runs a streaming chat completion, decoding the event
// stream through the shared decoder. Transport failures reach the
// handler and the handle, never the caller directly; an abort before
// or during the exchange finishes cleanly.
func openaiStream(ctx context.Context, p Params, cfg Config, handler stream.Handler) (*Handle, error) {
	reqBody := openaiRequest{
		Model:       cfg.Model,
		Messages:    openaiMessages(p),
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
		Stream:      true,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, "POST", openaiEndpoint(cfg), bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	setOpenAIHeaders(req, cfg)
	req.Header.Set("Accept", "text/event-stream")

	handle := newHandle(cancel, nil)
	client := openaiClient(cfg)

	go func() {
		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				finishClean(handler, nil)
				handle.finish(nil)
				return
			}
			handle.finish(stream.Fail(handler, &stream.TransportError{Err: err}))
			return
		}
		handle.finish(stream.DecodeResponse(ctx, resp, handler))
	}()

	return handle, nil
}

// openaiMessages flattens Params into the wire message list: system
// prompt first, then the plain-text conversation, then the prompt as
// the final user turn.
func openaiMessages(p Params) []openaiMessage {
	msgs := make([]openaiMessage, 0, len(p.Messages)+2)
	if p.System != "" {
		msgs = append(msgs, openaiMessage{Role: chat.RoleSystem, Content: p.System})
	}
	for _, m := range p.Messages {
		if !m.IsPlainText() || m.Content == "" {
			continue
		}
		switch m.Role {
		case chat.RoleUser, chat.RoleAssistant, chat.RoleSystem:
			msgs = append(msgs, openaiMessage{Role: m.Role, Content: m.Content})
		}
	}
	if p.Prompt != "" {
		msgs = append(msgs, openaiMessage{Role: chat.RoleUser, Content: p.Prompt})
	}
	return msgs
}

// responseFormatFor builds the response_format payload: a reflected
// JSON schema constraint when one is supplied, plain JSON mode
// otherwise.
func responseFormatFor(schema any) *responseFormat {
	doc := schemaDocument(schema)
	if doc == nil {
		return &responseFormat{Type: "json_object"}
	}
	return &responseFormat{
		Type: "json_schema",
		JSONSchema: &responseSchema{
			Name:   "response",
			Strict: true,
			Schema: doc,
		},
	}
}

func openaiEndpoint(cfg Config) string {
	base := cfg.BaseURL
	if base == "" {
		base = defaultOpenAIBaseURL
	}
	return strings.TrimSuffix(base, "/") + "/chat/completions"
}

func openaiClient(cfg Config) *http.Client {
	return &http.Client{Timeout: cfg.Timeout}
}

func setOpenAIHeaders(req *http.Request, cfg Config) {
	req.Header.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
}
