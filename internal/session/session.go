// Package session holds the conversation state and its persisted snapshot.
package session

import (
	"relaychat/internal/relay"
)

// Session is the single source of truth for conversation state. Key and
// SessionID are both set or both empty; a session is never half-established.
// History is append-only for the session's lifetime; only Reset clears it.
type Session struct {
	Key       string          `json:"key"`
	SessionID string          `json:"session_id"`
	Model     string          `json:"model"`
	History   []relay.Message `json:"history"`
}

// Established reports whether the session is live on the relay.
func (s *Session) Established() bool {
	return s.Handle().Established()
}

// Handle returns the remote handle for transport calls.
func (s *Session) Handle() relay.SessionHandle {
	return relay.SessionHandle{Key: s.Key, SessionID: s.SessionID}
}

// Adopt records a freshly established remote handle. Both fields move
// atomically.
func (s *Session) Adopt(h relay.SessionHandle) {
	s.Key = h.Key
	s.SessionID = h.SessionID
}

// Append adds one message to the history.
func (s *Session) Append(msg relay.Message) {
	s.History = append(s.History, msg)
}

// Reset drops the remote handle and the history. The selected model is kept:
// it is restored independently of session state.
func (s *Session) Reset() {
	s.Key = ""
	s.SessionID = ""
	s.History = nil
}
