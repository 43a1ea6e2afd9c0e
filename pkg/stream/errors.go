package stream

import "fmt"

// TransportError reports a failed response before or during stream
// consumption: a non-success status, a missing body, or a read failure.
type TransportError struct {
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("transport error: status %d: %s", e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("transport error: status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("transport error: %v", e.Err)
	default:
		return fmt.Sprintf("transport error: %s", e.Message)
	}
}

// Unwrap returns the underlying error, if any
func (e *TransportError) Unwrap() error {
	return e.Err
}
