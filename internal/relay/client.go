package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultRequestTimeout = 30 * time.Second
	endSessionTimeout     = 5 * time.Second
)

// Options configures a Client beyond its base URL.
type Options struct {
	// Token, when set, is sent as a bearer token on every request.
	Token string
	// ModelsMethod is the HTTP method for list-models; deployments use
	// either GET or POST. Defaults to GET.
	ModelsMethod string
	// Timeout bounds each request/response exchange. Zero means the
	// default. The push stream is exempt: it is bounded by its caller.
	Timeout time.Duration
}

// Client is the thin request layer for the relay's HTTP JSON endpoints.
type Client struct {
	baseURL      string
	token        string
	modelsMethod string
	http         *http.Client
	streamHTTP   *http.Client
}

// NewClient creates a client for the relay at baseURL.
func NewClient(baseURL string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}
	method := strings.ToUpper(strings.TrimSpace(opts.ModelsMethod))
	if method != http.MethodPost {
		method = http.MethodGet
	}
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		token:        strings.TrimSpace(opts.Token),
		modelsMethod: method,
		http:         &http.Client{Timeout: timeout},
		// No client-side timeout on the stream connection: the observer
		// owns the deadline for an in-flight turn.
		streamHTTP: &http.Client{},
	}
}

// ListModels fetches the model names the relay offers.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	var models []string
	if err := c.roundTrip(ctx, "list-models", c.modelsMethod, "/list-models", nil, &models); err != nil {
		return nil, err
	}
	return models, nil
}

// StartSession creates a remote session for model seeded with the full local
// history, and returns its handle. The history is sent untruncated.
func (c *Client) StartSession(ctx context.Context, model string, history []Message) (SessionHandle, error) {
	if history == nil {
		history = []Message{}
	}
	body := map[string]any{"model": model, "history": history}
	var handle SessionHandle
	if err := c.roundTrip(ctx, "start-session", http.MethodPost, "/start-session", body, &handle); err != nil {
		return SessionHandle{}, err
	}
	if !handle.Established() {
		return SessionHandle{}, &TransportError{Op: "start-session", Err: fmt.Errorf("response missing key or session_id")}
	}
	return handle, nil
}

// ContinueSession appends one user message to an established session.
// Push-mode only; poll deployments re-send history via StartSession instead.
func (c *Client) ContinueSession(ctx context.Context, h SessionHandle, message string) error {
	body := map[string]any{"session_id": h.SessionID, "key": h.Key, "message": message}
	return c.roundTrip(ctx, "continue-session", http.MethodPost, "/continue-session", body, nil)
}

// FetchSnapshot pulls the relay's current transcript view for a session.
func (c *Client) FetchSnapshot(ctx context.Context, h SessionHandle) (Snapshot, error) {
	body := map[string]any{"key": h.Key, "session_id": h.SessionID}
	var resp struct {
		Chat Snapshot `json:"chat"`
	}
	if err := c.roundTrip(ctx, "get-session", http.MethodPost, "/get-session", body, &resp); err != nil {
		return Snapshot{}, err
	}
	return resp.Chat, nil
}

// EndSession tells the relay the session is finished. This is a cleanup
// courtesy call: it uses its own short deadline, is never retried, and any
// failure is swallowed.
func (c *Client) EndSession(h SessionHandle) {
	ctx, cancel := context.WithTimeout(context.Background(), endSessionTimeout)
	defer cancel()
	body := map[string]any{"session_id": h.SessionID, "key": h.Key}
	_ = c.roundTrip(ctx, "end-session", http.MethodPost, "/end-session", body, nil)
}

// roundTrip performs one request/response exchange and decodes the JSON body
// into out when out is non-nil. All failures surface as *TransportError.
func (c *Client) roundTrip(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Op: op, Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &TransportError{Op: op, Status: resp.StatusCode}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
