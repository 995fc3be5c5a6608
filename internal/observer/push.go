// Package observer resolves one in-flight assistant turn to a final response
// string or a terminal error, under either delivery mode the relay supports:
// server-push incremental streaming, or polling with stability detection.
// Whichever variant runs, a turn resolves exactly once.
package observer

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"relaychat/internal/relay"
)

// DefaultStreamTimeout bounds a push observation, measured from stream open.
const DefaultStreamTimeout = 30 * time.Second

// ErrNoResponse is returned when a turn resolves without any assistant text:
// the deadline passed with an empty accumulator.
var ErrNoResponse = errors.New("no response received")

// PushObserver consumes a push stream until a done event, an error event, or
// its deadline, accumulating text fragments in arrival order.
type PushObserver struct {
	// Timeout overrides DefaultStreamTimeout when positive.
	Timeout time.Duration
	// OnDelta, when set, is called with the growing accumulated text after
	// each fragment.
	OnDelta func(accumulated string)
}

type recvResult struct {
	event relay.Event
	err   error
}

// Observe drives the stream to resolution. On timeout, a non-empty
// accumulator is treated as the final result (partial success); an empty one
// resolves to ErrNoResponse. The stream is closed before returning.
func (o *PushObserver) Observe(ctx context.Context, stream relay.EventStream) (string, error) {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultStreamTimeout
	}

	defer stream.Close()

	done := make(chan struct{})
	defer close(done)

	results := make(chan recvResult)
	go func() {
		for {
			event, err := stream.Recv()
			select {
			case results <- recvResult{event: event, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var acc strings.Builder
	for {
		select {
		case r := <-results:
			if text, err, resolved := o.apply(&acc, r); resolved {
				return text, err
			}
		case <-ctx.Done():
			if acc.Len() > 0 {
				return acc.String(), nil
			}
			return "", ctx.Err()
		case <-deadline.C:
			// A completion racing the deadline wins: drain any event
			// that already arrived before declaring a timeout.
			select {
			case r := <-results:
				if text, err, resolved := o.apply(&acc, r); resolved {
					return text, err
				}
			default:
			}
			if acc.Len() > 0 {
				return acc.String(), nil
			}
			return "", ErrNoResponse
		}
	}
}

// apply folds one receive result into the accumulator and reports whether the
// turn resolved.
func (o *PushObserver) apply(acc *strings.Builder, r recvResult) (string, error, bool) {
	if r.err != nil {
		if r.err == io.EOF && acc.Len() > 0 {
			// Relay closed the channel after sending text but without an
			// explicit done: same partial-success policy as the timeout.
			return acc.String(), nil, true
		}
		if r.err == io.EOF {
			return "", &relay.StreamError{Message: "channel closed before completion"}, true
		}
		return "", r.err, true
	}

	event := r.event
	switch {
	case event.Error != "":
		return "", &relay.StreamError{Message: event.Error}, true
	case event.Done:
		return acc.String(), nil, true
	case event.Content != "":
		acc.WriteString(event.Content)
		if o.OnDelta != nil {
			o.OnDelta(acc.String())
		}
	}
	return "", nil, false
}
