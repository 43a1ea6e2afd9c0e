package stream

// EventKind discriminates the events produced while decoding a response
// stream.
type EventKind int

const (
	// EventChunk carries an incremental text fragment.
	EventChunk EventKind = iota
	// EventObject carries a structured JSON payload (tool calls, typed
	// events, or any other non-text frame).
	EventObject
	// EventMetadata carries stream-level metadata such as usage counts.
	EventMetadata
	// EventDone signals normal completion and carries the ordered list of
	// completed items.
	EventDone
	// EventError signals a failure that terminated the stream.
	EventError
)

// String returns the string representation of the event kind
func (k EventKind) String() string {
	switch k {
	case EventChunk:
		return "chunk"
	case EventObject:
		return "object"
	case EventMetadata:
		return "metadata"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single decoded stream event. Only the fields relevant to the
// Kind are populated.
type Event struct {
	Kind      EventKind
	Content   string         // EventChunk: the text fragment
	Payload   map[string]any // EventObject: the decoded JSON payload
	Meta      map[string]any // EventMetadata: stream-level metadata
	Completed []any          // EventDone: completed items in emission order
	Err       error          // EventError: the terminating error
}

// Chunk builds a text fragment event.
func Chunk(content string) Event {
	return Event{Kind: EventChunk, Content: content}
}

// Object builds a structured payload event.
func Object(payload map[string]any) Event {
	return Event{Kind: EventObject, Payload: payload}
}

// Metadata builds a stream metadata event.
func Metadata(meta map[string]any) Event {
	return Event{Kind: EventMetadata, Meta: meta}
}

// Done builds a completion event carrying the completed items.
func Done(completed []any) Event {
	return Event{Kind: EventDone, Completed: completed}
}

// Failure builds an error event.
func Failure(err error) Event {
	return Event{Kind: EventError, Err: err}
}
