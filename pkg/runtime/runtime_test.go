package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindleworks/spindle/pkg/chat"
	"github.com/spindleworks/spindle/pkg/config"
	"github.com/spindleworks/spindle/pkg/provider"
	"github.com/spindleworks/spindle/pkg/storage"
	"github.com/spindleworks/spindle/pkg/stream"
)

func TestNewFillsDefaults(t *testing.T) {
	rt := New(Options{})

	require.NotNil(t, rt.Registry)
	require.NotNil(t, rt.Diff)
	require.NotNil(t, rt.Store)
	assert.ElementsMatch(t,
		[]string{"chunk", "done", "error", "metadata", TypeStatePatch},
		rt.Registry.Types())
}

func TestAdapterFromConfig(t *testing.T) {
	assert.IsType(t, &storage.Local{},
		AdapterFromConfig(config.StorageConfig{Adapter: "local", Directory: t.TempDir()}))
	assert.IsType(t, &storage.Remote{},
		AdapterFromConfig(config.StorageConfig{Adapter: "remote", BaseURL: "http://example.test"}))
	assert.IsType(t, &storage.Noop{},
		AdapterFromConfig(config.StorageConfig{Adapter: "none"}))
	assert.IsType(t, &storage.Noop{},
		AdapterFromConfig(config.StorageConfig{}))
	assert.IsType(t, &storage.Noop{},
		AdapterFromConfig(config.StorageConfig{Adapter: "martian"}))
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{
		Provider: config.ProviderConfig{
			Kind:         "openai",
			BaseURL:      "http://example.test/v1",
			Model:        "m-test",
			SystemPrompt: "be kind",
		},
		Storage:  config.StorageConfig{Adapter: "none", UserID: "u1"},
		Defaults: config.DefaultsConfig{ThreadTitle: "Fresh", AutoTitle: true},
	}

	rt := FromConfig(cfg)

	assert.Equal(t, provider.KindOpenAI, rt.Provider().Kind)
	assert.Equal(t, "m-test", rt.Provider().Model)
	assert.Equal(t, chat.DefaultThreadID, rt.Store.CurrentThreadID())
	metas := rt.Store.GetThreadMetas()
	require.Len(t, metas, 1)
	assert.Equal(t, "Fresh", metas[0].Title)
}

func customStreamConfig(captured *provider.Params, chunks ...string) provider.Config {
	return provider.Config{
		Kind: provider.KindCustom,
		Custom: &provider.CustomHandlers{
			Stream: func(ctx context.Context, p provider.Params, h stream.Handler) error {
				if captured != nil {
					*captured = p
				}
				var whole string
				for _, c := range chunks {
					if err := h.OnEvent(stream.Chunk(c)); err != nil {
						return err
					}
					whole += c
				}
				completed := []any{whole}
				if err := h.OnEvent(stream.Done(completed)); err != nil {
					return err
				}
				return h.OnComplete(completed)
			},
		},
	}
}

func TestSend(t *testing.T) {
	var params provider.Params
	rt := New(Options{
		Provider:     customStreamConfig(&params, "Hel", "lo"),
		SystemPrompt: "be helpful",
	})

	handle, err := rt.Send(context.Background(), "", "hi there")
	require.NoError(t, err)
	<-handle.Done()
	require.NoError(t, handle.Err())

	msgs := rt.Store.Messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].IsUser())
	assert.Equal(t, "hi there", msgs[0].Content)
	assert.True(t, msgs[1].IsAssistant())
	assert.Equal(t, "Hello", msgs[1].Content)

	assert.Equal(t, "be helpful", params.System)
	assert.Equal(t, "hi there", params.Prompt)
	assert.Empty(t, params.Messages)
}

func TestSendCarriesHistory(t *testing.T) {
	var params provider.Params
	rt := New(Options{Provider: customStreamConfig(&params, "sure")})
	rt.Store.AddMessage(chat.NewUserMessage("first question"), false, "")
	rt.Store.AddMessage(chat.NewAssistantMessage("first answer"), false, "")

	handle, err := rt.Send(context.Background(), "", "follow-up")
	require.NoError(t, err)
	<-handle.Done()

	require.Len(t, params.Messages, 2)
	assert.Equal(t, "first question", params.Messages[0].Content)
	assert.Equal(t, "first answer", params.Messages[1].Content)
	assert.Equal(t, "follow-up", params.Prompt)
	assert.Len(t, rt.Store.Messages(), 4)
}

func TestSendNotifiesObservers(t *testing.T) {
	rt := New(Options{Provider: customStreamConfig(nil, "Hel", "lo")})

	var kinds []string
	observer := stream.HandlerFunc{
		EventFunc: func(event stream.Event) error {
			kinds = append(kinds, event.Kind.String())
			return nil
		},
	}

	handle, err := rt.Send(context.Background(), "", "hi", observer)
	require.NoError(t, err)
	<-handle.Done()

	assert.Equal(t, []string{"chunk", "chunk", "done"}, kinds)
	assert.Equal(t, "Hello", rt.Store.Messages()[1].Content)
}

func TestSendRejectsUnknownProviderKind(t *testing.T) {
	rt := New(Options{Provider: provider.Config{Kind: "martian"}})

	_, err := rt.Send(context.Background(), "", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider kind")
}

func TestFanoutStopsOnHandlerError(t *testing.T) {
	boom := errors.New("boom")
	var secondCalled bool
	f := fanout{
		stream.HandlerFunc{EventFunc: func(stream.Event) error { return boom }},
		stream.HandlerFunc{EventFunc: func(stream.Event) error {
			secondCalled = true
			return nil
		}},
	}

	assert.ErrorIs(t, f.OnEvent(stream.Chunk("x")), boom)
	assert.False(t, secondCalled)
}
