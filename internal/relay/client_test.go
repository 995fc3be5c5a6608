package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/list-models" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		_ = json.NewEncoder(w).Encode([]string{"gpt-a", "gpt-b"})
	}))
	defer server.Close()

	client := NewClient(server.URL, Options{})
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 || models[0] != "gpt-a" || models[1] != "gpt-b" {
		t.Errorf("unexpected models: %v", models)
	}
}

func TestListModelsPostMethod(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		_ = json.NewEncoder(w).Encode([]string{"gpt-a"})
	}))
	defer server.Close()

	client := NewClient(server.URL, Options{ModelsMethod: "POST"})
	if _, err := client.ListModels(context.Background()); err != nil {
		t.Fatalf("ListModels: %v", err)
	}
}

func TestListModelsErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			"non-success status",
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			"malformed body",
			func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"not":"an array"}`))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewClient(server.URL, Options{})
			_, err := client.ListModels(context.Background())
			var terr *TransportError
			if !errors.As(err, &terr) {
				t.Fatalf("expected TransportError, got %v", err)
			}
			if terr.Op != "list-models" {
				t.Errorf("expected op list-models, got %s", terr.Op)
			}
		})
	}
}

func TestStartSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/start-session" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Model   string    `json:"model"`
			History []Message `json:"history"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Model != "gpt-b" {
			t.Errorf("expected model gpt-b, got %s", body.Model)
		}
		if len(body.History) != 1 || body.History[0].Content != "hi" {
			t.Errorf("unexpected history: %v", body.History)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"key": "k1", "session_id": "s1"})
	}))
	defer server.Close()

	client := NewClient(server.URL, Options{})
	handle, err := client.StartSession(context.Background(), "gpt-b", []Message{NewUserMessage("hi")})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if handle.Key != "k1" || handle.SessionID != "s1" {
		t.Errorf("unexpected handle: %+v", handle)
	}
}

func TestStartSessionMissingFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"key": "k1"})
	}))
	defer server.Close()

	client := NewClient(server.URL, Options{})
	_, err := client.StartSession(context.Background(), "gpt-b", nil)
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError when session_id is missing, got %v", err)
	}
}

func TestContinueSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["session_id"] != "s1" || body["key"] != "k1" || body["message"] != "more" {
			t.Errorf("unexpected body: %v", body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, Options{})
	handle := SessionHandle{Key: "k1", SessionID: "s1"}
	if err := client.ContinueSession(context.Background(), handle, "more"); err != nil {
		t.Fatalf("ContinueSession: %v", err)
	}
}

func TestContinueSessionStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, Options{})
	err := client.ContinueSession(context.Background(), SessionHandle{Key: "k", SessionID: "s"}, "x")
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if terr.Status != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", terr.Status)
	}
}

func TestFetchSnapshotBothShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"fragments", `{"chat":["A","B","C"]}`, "ABC"},
		{"messages", `{"chat":[{"role":"assistant","content":"ABC"}]}`, "ABC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL, Options{})
			snap, err := client.FetchSnapshot(context.Background(), SessionHandle{Key: "k", SessionID: "s"})
			if err != nil {
				t.Fatalf("FetchSnapshot: %v", err)
			}
			if got := snap.LatestAssistant(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestEndSessionSwallowsFailure(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, Options{})
	// Must neither panic nor report the failure.
	client.EndSession(SessionHandle{Key: "k", SessionID: "s"})
	if hits.Load() != 1 {
		t.Errorf("expected exactly one request (no retry), got %d", hits.Load())
	}
}

func TestBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("expected bearer token, got %q", got)
		}
		_ = json.NewEncoder(w).Encode([]string{})
	}))
	defer server.Close()

	client := NewClient(server.URL, Options{Token: "secret"})
	if _, err := client.ListModels(context.Background()); err != nil {
		t.Fatalf("ListModels: %v", err)
	}
}

func TestRequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(server.URL, Options{Timeout: 20 * time.Millisecond})
	_, err := client.ListModels(context.Background())
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError on timeout, got %v", err)
	}
}
