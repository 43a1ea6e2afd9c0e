package runtime

import (
	"github.com/spindleworks/spindle/pkg/dispatch"
	"github.com/spindleworks/spindle/pkg/stream"
)

// HandlerFor returns a stream handler that feeds decoded events for one
// thread into the dispatch registry. Chunk, metadata, done, and error
// events dispatch under their kind names; object events dispatch under
// the payload's own type discriminator when it carries one.
func (r *Runtime) HandlerFor(threadID string) stream.Handler {
	return &eventBridge{
		rt:  r,
		ctx: dispatch.NewContext(r.Store, r.Diff).WithThread(threadID),
	}
}

// eventBridge adapts the stream.Handler callbacks onto Dispatch. All
// routing happens in OnEvent; the terminal done and error events arrive
// there too, so OnComplete and OnError carry nothing new.
type eventBridge struct {
	rt  *Runtime
	ctx *dispatch.Context
}

func (b *eventBridge) OnEvent(event stream.Event) error {
	switch event.Kind {
	case stream.EventChunk:
		b.rt.Registry.Dispatch("chunk", event.Content, b.ctx)
	case stream.EventObject:
		b.rt.Registry.Dispatch(eventTypeOf(event.Payload), event.Payload, b.ctx)
	case stream.EventMetadata:
		b.rt.Registry.Dispatch("metadata", event.Meta, b.ctx)
	case stream.EventDone:
		b.rt.Registry.Dispatch("done", event.Completed, b.ctx)
	case stream.EventError:
		b.rt.Registry.Dispatch("error", event.Err, b.ctx)
	}
	return nil
}

func (b *eventBridge) OnComplete(completed []any) error {
	return nil
}

func (b *eventBridge) OnError(err error) {}

// eventTypeOf picks the dispatch type for a structured payload: its own
// type discriminator when present, the generic object type otherwise.
func eventTypeOf(payload map[string]any) string {
	if t, ok := payload["type"].(string); ok && t != "" {
		return t
	}
	return "object"
}
