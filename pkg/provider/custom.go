package provider

import (
	"context"
	"errors"

	"github.com/spindleworks/spindle/pkg/stream"
)

// CustomHandlers supplies externally provided implementations for the
// custom provider kind. Any subset may be set: a structured call falls
// back to the plain call with its content parsed as JSON, and a stream
// falls back to the plain call delivered as a single chunk. Voice has
// no fallback.
type CustomHandlers struct {
	Call           func(ctx context.Context, p Params) (*Response, error)
	CallStructured func(ctx context.Context, p Params, schema any) (*Response, error)
	Stream         func(ctx context.Context, p Params, handler stream.Handler) error
	Voice          func(ctx context.Context, p VoiceParams, handler stream.Handler) error
}

func customCall(ctx context.Context, p Params, cfg Config) (*Response, error) {
	if cfg.Custom == nil || cfg.Custom.Call == nil {
		return nil, errors.New("custom provider has no call handler")
	}
	return cfg.Custom.Call(ctx, p)
}

// customCallStructured resolves the structured call in fallback order:
// the structured handler, then the plain handler with a JSON
// instruction added and its content parsed, then an error.
func customCallStructured(ctx context.Context, p Params, schema any, cfg Config) (*Response, error) {
	if cfg.Custom == nil {
		return nil, errors.New("custom provider has no handlers")
	}
	if cfg.Custom.CallStructured != nil {
		return cfg.Custom.CallStructured(ctx, p, schema)
	}
	if cfg.Custom.Call != nil {
		p, err := structuredParams(p, schema)
		if err != nil {
			return nil, err
		}
		resp, err := cfg.Custom.Call(ctx, p)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, errors.New("custom call returned no response")
		}
		return handleResponse(resp.Content, resp.Usage, resp.Metadata, true)
	}
	return nil, errors.New("custom provider has no structured call handler")
}

func customStream(ctx context.Context, p Params, cfg Config, handler stream.Handler) (*Handle, error) {
	if cfg.Custom == nil || (cfg.Custom.Stream == nil && cfg.Custom.Call == nil) {
		return nil, errors.New("custom provider has no stream or call handler")
	}

	ctx, cancel := context.WithCancel(ctx)
	handle := newHandle(cancel, nil)

	if cfg.Custom.Stream != nil {
		go func() {
			// The custom function drives the handler itself; its
			// return value becomes the handle error.
			handle.finish(cfg.Custom.Stream(ctx, p, handler))
		}()
		return handle, nil
	}

	go func() {
		resp, err := cfg.Custom.Call(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				finishClean(handler, nil)
				handle.finish(nil)
				return
			}
			handle.finish(stream.Fail(handler, &stream.TransportError{Err: err}))
			return
		}

		var content string
		if resp != nil {
			content = resp.Content
		}
		// Deliver the whole reply as a single synthetic chunk.
		if content != "" {
			if err := handler.OnEvent(stream.Chunk(content)); err != nil {
				handle.finish(err)
				return
			}
		}
		completed := completedItems(content)
		if err := handler.OnEvent(stream.Done(completed)); err != nil {
			handle.finish(err)
			return
		}
		handle.finish(handler.OnComplete(completed))
	}()

	return handle, nil
}

func customVoice(ctx context.Context, p VoiceParams, cfg Config, handler stream.Handler) (*Handle, error) {
	if cfg.Custom == nil || cfg.Custom.Voice == nil {
		return nil, errors.New("custom provider has no voice handler")
	}

	ctx, cancel := context.WithCancel(ctx)
	handle := newHandle(cancel, nil)

	go func() {
		handle.finish(cfg.Custom.Voice(ctx, p, handler))
	}()

	return handle, nil
}
