// Package runtime wires the client pipeline together: provider streams
// feed the frame decoder, decoded events flow through the dispatch
// registry, and processors apply their effects to the chat store and
// the diff engine. The Runtime struct is the single container a host
// passes around instead of reaching for globals.
package runtime

import (
	"context"

	"github.com/spindleworks/spindle/pkg/chat"
	"github.com/spindleworks/spindle/pkg/config"
	"github.com/spindleworks/spindle/pkg/diffstate"
	"github.com/spindleworks/spindle/pkg/dispatch"
	"github.com/spindleworks/spindle/pkg/logger"
	"github.com/spindleworks/spindle/pkg/provider"
	"github.com/spindleworks/spindle/pkg/storage"
	"github.com/spindleworks/spindle/pkg/stream"
)

// Runtime holds the collaborators of one client session. Registry,
// Diff, and Store are exported so hosts can register processors,
// subscribe to state keys, and read threads directly.
type Runtime struct {
	Registry *dispatch.Registry
	Diff     *diffstate.Engine
	Store    *chat.Store

	provider provider.Config
	system   string
	log      *logger.ComponentLogger
}

// Options injects pre-built collaborators into New. Nil fields get
// fresh instances.
type Options struct {
	Registry *dispatch.Registry
	Diff     *diffstate.Engine
	Store    *chat.Store

	Provider     provider.Config
	SystemPrompt string
}

// New builds a runtime and installs the core processors. Hosts layer
// their own processors on top through Registry.
func New(opts Options) *Runtime {
	rt := &Runtime{
		Registry: opts.Registry,
		Diff:     opts.Diff,
		Store:    opts.Store,
		provider: opts.Provider,
		system:   opts.SystemPrompt,
		log:      logger.WithComponent("runtime"),
	}
	if rt.Registry == nil {
		rt.Registry = dispatch.NewRegistry()
	}
	if rt.Diff == nil {
		rt.Diff = diffstate.NewEngine()
	}
	if rt.Store == nil {
		rt.Store = chat.NewStore(chat.Options{})
	}
	rt.RegisterCoreProcessors()
	return rt
}

// FromConfig builds a runtime from loaded settings: store options from
// the defaults section, persistence backend per storage.adapter,
// provider per provider.kind.
func FromConfig(cfg *config.Config) *Runtime {
	store := chat.NewStore(chat.Options{
		UserID:       cfg.Storage.UserID,
		DefaultTitle: cfg.Defaults.ThreadTitle,
		AutoTitle:    cfg.Defaults.AutoTitle,
	})
	rt := New(Options{
		Store:        store,
		Provider:     provider.FromSettings(cfg.Provider),
		SystemPrompt: cfg.Provider.SystemPrompt,
	})
	rt.Store.SetAdapter(AdapterFromConfig(cfg.Storage))
	return rt
}

// AdapterFromConfig selects the persistence backend named by the
// settings. Unknown adapter names degrade to no persistence with a
// warning rather than failing startup.
func AdapterFromConfig(sc config.StorageConfig) chat.Adapter {
	switch sc.Adapter {
	case "local":
		return storage.NewLocal(sc.Directory, sc.Prefix)
	case "remote":
		return storage.NewRemote(storage.RemoteOptions{
			BaseURL: sc.BaseURL,
			Timeout: sc.Timeout,
		})
	case "", "none", "noop":
		return storage.NewNoop()
	default:
		logger.Warn("unknown storage adapter %q, running without persistence", sc.Adapter)
		return storage.NewNoop()
	}
}

// Provider returns the active provider configuration.
func (r *Runtime) Provider() provider.Config {
	return r.provider
}

// Send appends prompt as a user message to a thread and streams the
// reply back into it through the core processors. An empty threadID
// targets the current thread. Extra observers see every event the
// bridge sees, before it is dispatched; the returned handle aborts or
// awaits the stream.
func (r *Runtime) Send(ctx context.Context, threadID, prompt string, observers ...stream.Handler) (*provider.Handle, error) {
	history := r.Store.GetThreadMessages(threadID)
	r.Store.AddMessage(chat.NewUserMessage(prompt), true, threadID)

	params := provider.Params{
		System:   r.system,
		Prompt:   prompt,
		Messages: history,
	}
	handlers := append(observers, r.HandlerFor(threadID))
	r.log.Debug("sending prompt to thread %q (%d prior messages)", threadID, len(history))
	return provider.Stream(ctx, params, r.provider, fanout(handlers))
}

// fanout delivers each callback to every handler in order. A handler
// error stops delivery for that event and propagates to the decoder.
type fanout []stream.Handler

func (f fanout) OnEvent(event stream.Event) error {
	for _, h := range f {
		if err := h.OnEvent(event); err != nil {
			return err
		}
	}
	return nil
}

func (f fanout) OnComplete(completed []any) error {
	for _, h := range f {
		if err := h.OnComplete(completed); err != nil {
			return err
		}
	}
	return nil
}

func (f fanout) OnError(err error) {
	for _, h := range f {
		h.OnError(err)
	}
}
