package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/spindleworks/spindle/pkg/chat"
	"github.com/spindleworks/spindle/pkg/stream"
)

// buildModel constructs the langchaingo model for the config: an
// OpenAI client when an API key is configured, an Ollama client
// otherwise.
func buildModel(cfg Config) (llms.Model, error) {
	if cfg.APIKey != "" {
		opts := []openai.Option{openai.WithToken(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI LLM: %w", err)
		}
		return llm, nil
	}

	var opts []ollama.Option
	if cfg.Model != "" {
		opts = append(opts, ollama.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama LLM: %w", err)
	}
	return llm, nil
}

func langchainCall(ctx context.Context, p Params, cfg Config, structured bool, schema any) (*Response, error) {
	model, err := buildModel(cfg)
	if err != nil {
		return nil, err
	}
	return langchainGenerate(ctx, p, model, structured, schema)
}

// langchainGenerate runs a non-streaming call against an already
// constructed model.
func langchainGenerate(ctx context.Context, p Params, model llms.Model, structured bool, schema any) (*Response, error) {
	messages, err := langchainMessages(p, structured, schema)
	if err != nil {
		return nil, err
	}

	opts := langchainOpts(p)
	if structured {
		opts = append(opts, llms.WithJSONMode())
	}

	response, err := model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("content generation failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, errors.New("no response choices available")
	}

	choice := response.Choices[0]
	metadata := map[string]any{}
	if choice.StopReason != "" {
		metadata["stop_reason"] = choice.StopReason
	}
	if len(metadata) == 0 {
		metadata = nil
	}

	return handleResponse(choice.Content, usageFromInfo(choice.GenerationInfo), metadata, structured)
}

func langchainStream(ctx context.Context, p Params, cfg Config, handler stream.Handler) (*Handle, error) {
	model, err := buildModel(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	handle := newHandle(cancel, nil)

	go func() {
		handle.finish(langchainStreamModel(ctx, p, model, handler))
	}()

	return handle, nil
}

// langchainStreamModel runs a streaming call, bridging model chunks
// onto the handler's event surface. Cancellation finishes cleanly
// with the text accumulated so far.
func langchainStreamModel(ctx context.Context, p Params, model llms.Model, handler stream.Handler) error {
	messages, _ := langchainMessages(p, false, nil)

	var streamed strings.Builder
	forward := stream.ToStreamingFunc(handler)
	opts := append(langchainOpts(p), llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		streamed.Write(chunk)
		return forward(ctx, chunk)
	}))

	response, err := model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			finishClean(handler, completedItems(streamed.String()))
			return nil
		}
		return stream.Fail(handler, &stream.TransportError{Err: err})
	}

	content := streamed.String()
	if content == "" && len(response.Choices) > 0 {
		// No streaming occurred; deliver the whole reply as one chunk.
		content = response.Choices[0].Content
		if content != "" {
			if err := handler.OnEvent(stream.Chunk(content)); err != nil {
				return err
			}
		}
	}

	completed := completedItems(content)
	if err := handler.OnEvent(stream.Done(completed)); err != nil {
		return err
	}
	return handler.OnComplete(completed)
}

func completedItems(content string) []any {
	if content == "" {
		return nil
	}
	return []any{content}
}

// langchainMessages converts Params into langchaingo message content,
// appending the structured-output instruction to the system prompt
// when a schema is in play.
func langchainMessages(p Params, structured bool, schema any) ([]llms.MessageContent, error) {
	if structured {
		var err error
		p, err = structuredParams(p, schema)
		if err != nil {
			return nil, err
		}
	}

	messages := make([]llms.MessageContent, 0, len(p.Messages)+2)
	if p.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, p.System))
	}
	for _, m := range p.Messages {
		if !m.IsPlainText() || m.Content == "" {
			continue
		}
		var messageType llms.ChatMessageType
		switch m.Role {
		case chat.RoleSystem:
			messageType = llms.ChatMessageTypeSystem
		case chat.RoleAssistant:
			messageType = llms.ChatMessageTypeAI
		case chat.RoleUser:
			messageType = llms.ChatMessageTypeHuman
		case chat.RoleTool:
			messageType = llms.ChatMessageTypeTool
		default:
			continue
		}
		messages = append(messages, llms.TextParts(messageType, m.Content))
	}
	if p.Prompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, p.Prompt))
	}
	return messages, nil
}

func langchainOpts(p Params) []llms.CallOption {
	var opts []llms.CallOption
	if p.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(p.Temperature))
	}
	if p.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(p.MaxTokens))
	}
	return opts
}

// usageFromInfo extracts token counts from langchaingo generation
// info, which reports them under provider-dependent numeric types.
func usageFromInfo(info map[string]any) *Usage {
	if len(info) == 0 {
		return nil
	}
	prompt, okP := intFromInfo(info, "PromptTokens")
	completion, okC := intFromInfo(info, "CompletionTokens")
	total, okT := intFromInfo(info, "TotalTokens")
	if !okP && !okC && !okT {
		return nil
	}
	if total == 0 {
		total = prompt + completion
	}
	return &Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: total}
}

func intFromInfo(info map[string]any, key string) (int, bool) {
	switch v := info[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
