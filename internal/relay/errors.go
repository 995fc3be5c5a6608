package relay

import "fmt"

// TransportError reports a failed request: a non-success status code or a
// response body that does not match the expected shape.
type TransportError struct {
	Op     string // operation name, e.g. "start-session"
	Status int    // HTTP status, 0 when the request never completed
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StreamError wraps an error signal delivered on the push channel.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return "stream error: " + e.Message
}
