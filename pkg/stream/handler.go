package stream

import "context"

// Handler is the unified interface for consuming a decoded event stream.
// Events are delivered in order on the decoding goroutine; OnComplete or
// OnError is always the final call for a given stream.
type Handler interface {
	// OnEvent is called for every decoded event, including the terminal
	// done and error events. Returning an error stops the decode loop.
	OnEvent(event Event) error

	// OnComplete is called once when the stream finishes, with the ordered
	// list of completed items (strings and/or objects).
	OnComplete(completed []any) error

	// OnError is called when an error terminates the stream.
	OnError(err error)
}

// HandlerFunc is a function adapter for Handler interface
type HandlerFunc struct {
	EventFunc    func(event Event) error
	CompleteFunc func(completed []any) error
	ErrorFunc    func(err error)
}

// OnEvent implements Handler
func (h HandlerFunc) OnEvent(event Event) error {
	if h.EventFunc != nil {
		return h.EventFunc(event)
	}
	return nil
}

// OnComplete implements Handler
func (h HandlerFunc) OnComplete(completed []any) error {
	if h.CompleteFunc != nil {
		return h.CompleteFunc(completed)
	}
	return nil
}

// OnError implements Handler
func (h HandlerFunc) OnError(err error) {
	if h.ErrorFunc != nil {
		h.ErrorFunc(err)
	}
}

// ToStreamingFunc converts a Handler to LangChain's streaming function
// signature. Each raw chunk is forwarded as a chunk event, which enables
// integration with llms.WithStreamingFunc.
func ToStreamingFunc(handler Handler) func(context.Context, []byte) error {
	return func(ctx context.Context, chunk []byte) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return handler.OnEvent(Chunk(string(chunk)))
		}
	}
}

// Ensure implementations satisfy the interface
var _ Handler = HandlerFunc{}
