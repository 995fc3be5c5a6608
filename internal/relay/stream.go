package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// EventStream is a cancellable subscription to the push channel. It yields a
// lazy, finite sequence of events ending with a done or error event (or EOF
// if the relay closes the connection first). It is not restartable: after
// Close or a terminal event, Recv keeps returning an error.
type EventStream interface {
	// Recv returns the next event. It returns io.EOF once the stream is
	// exhausted and the context error once the stream is cancelled.
	Recv() (Event, error)
	// Close cancels the subscription and closes the underlying channel.
	Close() error
}

// OpenStream opens the incremental event source for an established session.
// The returned stream must be closed; the caller enforces at most one open
// stream per session.
func (c *Client) OpenStream(ctx context.Context, h SessionHandle) (EventStream, error) {
	query := url.Values{}
	query.Set("session_id", h.SessionID)
	query.Set("key", h.Key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stream-session?"+query.Encode(), nil)
	if err != nil {
		return nil, &TransportError{Op: "stream-session", Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)

	resp, err := c.streamHTTP.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "stream-session", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return nil, &TransportError{Op: "stream-session", Status: resp.StatusCode}
	}

	return newEventStream(ctx, resp.Body), nil
}

type eventStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	body   io.ReadCloser
	events <-chan Event
}

func newEventStream(ctx context.Context, body io.ReadCloser) *eventStream {
	streamCtx, cancel := context.WithCancel(ctx)
	ch := make(chan Event, 16)
	s := &eventStream{ctx: streamCtx, cancel: cancel, body: body, events: ch}
	go s.run(ch)
	return s
}

// run scans the SSE body and forwards decoded events until a terminal event
// or read failure. A mid-stream read failure becomes an error event so the
// consumer sees exactly one terminal signal.
func (s *eventStream) run(ch chan<- Event) {
	defer close(ch)
	defer s.body.Close()

	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		payload := strings.TrimSpace(scanner.Text())
		if payload == "" || strings.HasPrefix(payload, ":") {
			continue
		}
		payload = strings.TrimSpace(strings.TrimPrefix(payload, "data:"))

		var event Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			// Tolerate non-JSON frames (retry hints etc) rather than
			// aborting a stream that may still complete.
			continue
		}

		select {
		case ch <- event:
		case <-s.ctx.Done():
			return
		}
		if event.Done || event.Error != "" {
			return
		}
	}

	if err := scanner.Err(); err != nil && s.ctx.Err() == nil {
		select {
		case ch <- Event{Error: err.Error()}:
		case <-s.ctx.Done():
		}
	}
}

func (s *eventStream) Recv() (Event, error) {
	// Non-blocking drain: consume any buffered event before checking
	// ctx.Done() so a final done/error frame is not dropped when both are
	// ready.
	select {
	case event, ok := <-s.events:
		if !ok {
			return Event{}, io.EOF
		}
		return event, nil
	default:
	}

	select {
	case <-s.ctx.Done():
		return Event{}, s.ctx.Err()
	case event, ok := <-s.events:
		if !ok {
			return Event{}, io.EOF
		}
		return event, nil
	}
}

// Close cancels the subscription and closes the response body, which
// unblocks a reader stuck in Scan so the goroutine and connection are
// released immediately rather than when the relay hangs up.
func (s *eventStream) Close() error {
	s.cancel()
	return s.body.Close()
}
