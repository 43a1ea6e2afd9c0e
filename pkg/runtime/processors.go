package runtime

import (
	"fmt"

	"github.com/spindleworks/spindle/pkg/chat"
	"github.com/spindleworks/spindle/pkg/dispatch"
)

// CoreNamespace identifies the built-in processors. Hosts extend or
// override them by registering under their own namespaces.
const CoreNamespace = "core"

// TypeStatePatch is the discriminator of structured events that write
// into the diff engine.
const TypeStatePatch = "state.patch"

// RegisterCoreProcessors installs the built-in event behavior: chunks
// accumulate into the latest assistant message, completion persists the
// coalesced message, stream errors become visible error messages, and
// state patches route into the diff engine. Safe to call repeatedly;
// re-registration replaces in place.
func (r *Runtime) RegisterCoreProcessors() {
	r.Registry.RegisterMany(
		dispatch.Processor{
			Type:      "chunk",
			Namespace: CoreNamespace,
			Validate: func(payload any) bool {
				s, ok := payload.(string)
				return ok && s != ""
			},
			Execute: appendChunk,
		},
		dispatch.Processor{
			Type:      "done",
			Namespace: CoreNamespace,
			Execute:   finalizeStream,
		},
		dispatch.Processor{
			Type:      "error",
			Namespace: CoreNamespace,
			Validate: func(payload any) bool {
				err, ok := payload.(error)
				return ok && err != nil
			},
			Execute: recordStreamError,
		},
		dispatch.Processor{
			Type:      "metadata",
			Namespace: CoreNamespace,
			Execute: func(ctx *dispatch.Context, payload any) error {
				ctx.Log.Debug("stream metadata: %v", payload)
				return nil
			},
		},
		dispatch.Processor{
			Type:      TypeStatePatch,
			Namespace: CoreNamespace,
			Validate:  validStatePatch,
			Execute:   applyStatePatch,
		},
	)
}

// appendChunk grows the in-flight assistant message. Chunks stay
// in-memory; finalizeStream persists the coalesced result once the
// stream completes.
func appendChunk(ctx *dispatch.Context, payload any) error {
	ctx.Store.AppendToLatest(payload.(string), false, ctx.ThreadID)
	return nil
}

// finalizeStream writes the accumulated thread state through the
// persistence adapter now that no more chunks will arrive.
func finalizeStream(ctx *dispatch.Context, payload any) error {
	completed, _ := payload.([]any)
	ctx.Store.PersistThread(ctx.ThreadID)
	ctx.Log.Debug("stream finished with %d completed items", len(completed))
	return nil
}

// recordStreamError surfaces a stream failure as an error-role message
// in the thread so the host UI can show it inline.
func recordStreamError(ctx *dispatch.Context, payload any) error {
	err := payload.(error)
	ctx.Store.AddMessage(chat.NewErrorMessage(err.Error()), true, ctx.ThreadID)
	return nil
}

// validStatePatch requires a non-empty state key.
func validStatePatch(payload any) bool {
	obj, ok := payload.(map[string]any)
	if !ok {
		return false
	}
	key, _ := obj["key"].(string)
	return key != ""
}

// applyStatePatch writes a structured state event into the diff engine.
// The patch chooses its write path with an explicit diff flag: true
// opens (or extends) a reviewable diff, false applies cleanly. A patch
// naming a setter invokes that registered setter instead of writing the
// value directly.
func applyStatePatch(ctx *dispatch.Context, payload any) error {
	obj := payload.(map[string]any)
	key := obj["key"].(string)
	diffMode, _ := obj["diff"].(bool)

	if name, ok := obj["setter"].(string); ok && name != "" {
		args, _ := obj["args"].([]any)
		if !ctx.Diff.InvokeSetter(key, name, diffMode, args...) {
			return fmt.Errorf("no setter %q registered for state key %q", name, key)
		}
		return nil
	}

	value, ok := obj["value"]
	if !ok {
		return fmt.Errorf("state patch for %q carries no value", key)
	}
	if diffMode {
		ctx.Diff.NewDiffState(key, value)
	} else {
		ctx.Diff.SetState(key, value)
	}
	return nil
}
