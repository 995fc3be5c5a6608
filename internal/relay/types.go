package relay

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a conversation history. Ordering is fixed at
// append time and significant on the wire.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// SessionHandle identifies an established remote session. The key and the
// session id always travel together: a handle is either fully populated or
// zero, never half-established.
type SessionHandle struct {
	Key       string `json:"key"`
	SessionID string `json:"session_id"`
}

// Established reports whether the handle refers to a live remote session.
func (h SessionHandle) Established() bool {
	return h.Key != "" && h.SessionID != ""
}

// Event is one frame from the push stream. Exactly one of the three fields is
// meaningful per event: a text fragment, a completion marker, or an error.
type Event struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Snapshot is the relay's current view of a conversation, as returned by
// get-session. Deployments disagree on the element type of the chat array:
// some send plain text fragments to be joined, others full {role,content}
// messages. The shape is decoded here, at the transport boundary, so callers
// never branch on it.
type Snapshot struct {
	Fragments []string
	Messages  []Message
}

// UnmarshalJSON decodes the chat array in either of its two wire shapes.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var fragments []string
	if err := json.Unmarshal(data, &fragments); err == nil {
		s.Fragments = fragments
		s.Messages = nil
		return nil
	}

	var messages []Message
	if err := json.Unmarshal(data, &messages); err == nil {
		s.Fragments = nil
		s.Messages = messages
		return nil
	}

	return fmt.Errorf("chat array is neither strings nor messages")
}

// LatestAssistant extracts the most recent assistant-authored content: the
// joined fragments in fragment form, or the content of the last message with
// role=assistant in message form. Returns "" when nothing assistant-authored
// is present yet.
func (s Snapshot) LatestAssistant() string {
	if s.Fragments != nil {
		return strings.Join(s.Fragments, "")
	}
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i].Content
		}
	}
	return ""
}
