// Package provider exposes a uniform call surface over interchangeable
// LLM backends. Exactly one provider kind is active per Config; plain,
// structured, streaming, and voice calls all dispatch on it. Streaming
// and voice calls deliver events through a stream.Handler and return a
// Handle for cancellation.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/spindleworks/spindle/pkg/chat"
	"github.com/spindleworks/spindle/pkg/config"
	"github.com/spindleworks/spindle/pkg/logger"
	"github.com/spindleworks/spindle/pkg/stream"
)

var log = logger.WithComponent("provider")

// Kind selects the active provider backend.
type Kind string

const (
	// KindOpenAI talks to an OpenAI-compatible chat completions API.
	KindOpenAI Kind = "openai"
	// KindLangchain drives a langchaingo model (ollama or openai).
	KindLangchain Kind = "langchain"
	// KindCustom delegates to externally supplied handler functions.
	KindCustom Kind = "custom"
)

// Config selects and parameterizes the active provider. Exactly one
// kind is active at a time; the remaining fields configure how to
// reach it.
type Config struct {
	Kind     Kind
	BaseURL  string
	Model    string
	APIKey   string
	VoiceURL string
	Timeout  time.Duration
	Custom   *CustomHandlers
}

// FromSettings builds a provider Config from the application
// configuration. Custom handlers cannot come from file config and are
// wired by the host separately.
func FromSettings(pc config.ProviderConfig) Config {
	return Config{
		Kind:     Kind(pc.Kind),
		BaseURL:  pc.BaseURL,
		Model:    pc.Model,
		APIKey:   pc.APIKey,
		VoiceURL: pc.VoiceURL,
		Timeout:  pc.Timeout,
	}
}

// Params carries the request payload for a single call. Messages hold
// the conversation so far; Prompt, when set, is appended as the final
// user turn.
type Params struct {
	System      string
	Prompt      string
	Messages    []chat.Message
	Temperature float64
	MaxTokens   int
}

// Usage reports token accounting when the backend provides it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the normalized result of a non-streaming call,
// regardless of which provider kind produced it.
type Response struct {
	Content  string
	Object   map[string]any
	Usage    *Usage
	Metadata map[string]any
}

// Call runs a plain completion against the configured provider.
func Call(ctx context.Context, p Params, cfg Config) (*Response, error) {
	switch cfg.Kind {
	case KindOpenAI:
		return openaiCall(ctx, p, cfg, false, nil)
	case KindLangchain:
		return langchainCall(ctx, p, cfg, false, nil)
	case KindCustom:
		return customCall(ctx, p, cfg)
	default:
		return nil, fmt.Errorf("unknown provider kind: %q", cfg.Kind)
	}
}

// CallStructured runs a completion whose reply must be a JSON object,
// optionally constrained by a schema (a struct value, a
// *jsonschema.Schema, or a raw schema document). The decoded object is
// returned in Response.Object.
func CallStructured(ctx context.Context, p Params, schema any, cfg Config) (*Response, error) {
	switch cfg.Kind {
	case KindOpenAI:
		return openaiCall(ctx, p, cfg, true, schema)
	case KindLangchain:
		return langchainCall(ctx, p, cfg, true, schema)
	case KindCustom:
		return customCallStructured(ctx, p, schema, cfg)
	default:
		return nil, fmt.Errorf("unknown provider kind: %q", cfg.Kind)
	}
}

// Stream runs a streaming completion, delivering decoded events to the
// handler. The returned Handle cancels the stream; transport failures
// are surfaced through the handler and Handle.Err, never as a
// synchronous return. The error return covers configuration problems
// only.
func Stream(ctx context.Context, p Params, cfg Config, handler stream.Handler) (*Handle, error) {
	switch cfg.Kind {
	case KindOpenAI:
		return openaiStream(ctx, p, cfg, handler)
	case KindLangchain:
		return langchainStream(ctx, p, cfg, handler)
	case KindCustom:
		return customStream(ctx, p, cfg, handler)
	default:
		return nil, fmt.Errorf("unknown provider kind: %q", cfg.Kind)
	}
}

// Voice opens an interactive voice session, forwarding outgoing audio
// and delivering transcript and event frames to the handler.
func Voice(ctx context.Context, p VoiceParams, cfg Config, handler stream.Handler) (*Handle, error) {
	switch cfg.Kind {
	case KindOpenAI, KindLangchain:
		return voiceSession(ctx, p, cfg, handler)
	case KindCustom:
		return customVoice(ctx, p, cfg, handler)
	default:
		return nil, fmt.Errorf("unknown provider kind: %q", cfg.Kind)
	}
}

// handleResponse normalizes a raw provider reply. When structured is
// set the content is parsed as a JSON object (stripping any markdown
// code fences first) into the Object field.
func handleResponse(content string, usage *Usage, metadata map[string]any, structured bool) (*Response, error) {
	resp := &Response{
		Content:  content,
		Usage:    usage,
		Metadata: metadata,
	}

	if structured {
		var object map[string]any
		if err := json.Unmarshal([]byte(stripFences(content)), &object); err != nil {
			return nil, fmt.Errorf("failed to parse structured response: %w", err)
		}
		resp.Object = object
	}

	return resp, nil
}

// stripFences removes a surrounding markdown code fence, which some
// models wrap JSON replies in even when asked not to.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// schemaDocument resolves a caller-supplied schema into a JSON schema
// document. Raw documents pass through; anything else is reflected
// from its Go type.
func schemaDocument(schema any) any {
	switch s := schema.(type) {
	case nil:
		return nil
	case *jsonschema.Schema:
		return s
	case json.RawMessage:
		return s
	case map[string]any:
		return s
	default:
		reflector := &jsonschema.Reflector{
			DoNotReference: true,
			ExpandedStruct: true,
		}
		return reflector.Reflect(schema)
	}
}

// schemaJSON renders the resolved schema document as JSON text for
// prompt embedding.
func schemaJSON(schema any) (string, error) {
	doc := schemaDocument(schema)
	if doc == nil {
		return "", nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema: %w", err)
	}
	return string(data), nil
}

// structuredParams appends the JSON-reply instruction to the system
// prompt, for backends without a native structured-output switch.
func structuredParams(p Params, schema any) (Params, error) {
	doc, err := schemaJSON(schema)
	if err != nil {
		return p, err
	}
	instruction := "Respond with a single JSON object."
	if doc != "" {
		instruction = "Respond with a single JSON object conforming to this JSON Schema:\n" + doc
	}
	if p.System != "" {
		p.System += "\n\n" + instruction
	} else {
		p.System = instruction
	}
	return p, nil
}

// finishClean delivers the normal-completion callbacks after a clean
// cancellation, carrying whatever items had accumulated.
func finishClean(handler stream.Handler, completed []any) {
	_ = handler.OnEvent(stream.Done(completed))
	_ = handler.OnComplete(completed)
}
