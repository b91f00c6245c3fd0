package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartType identifies the kind of content a message part carries.
type PartType string

const (
	PartText           PartType = "text"
	PartToolInvocation PartType = "tool-invocation"
)

// ToolState tracks the lifecycle of a tool invocation within a part.
// Only "result" is a terminal state; anything else means the call never resolved.
type ToolState string

const (
	ToolStatePartialCall ToolState = "partial-call"
	ToolStateCall        ToolState = "call"
	ToolStateResult      ToolState = "result"
)

// ConversationMetadata holds the free-form domain tags a conversation was
// started with (e.g. disease or tissue filters). Set once at creation.
type ConversationMetadata struct {
	Diseases []string `json:"diseases,omitempty"`
	Samples  []string `json:"samples,omitempty"`
}

// Conversation stores metadata about one chat. Title and metadata are written
// once at creation and not mutated afterwards.
type Conversation struct {
	ID        string                `json:"id"`
	OwnerID   string                `json:"owner_id"`
	Title     string                `json:"title"`
	CreatedAt time.Time             `json:"created_at"`
	Metadata  *ConversationMetadata `json:"metadata,omitempty"`
}

// ToolInvocation is the tool-call payload of a part. Args and Result are
// opaque to the core; only the state and the error flag are interpreted.
type ToolInvocation struct {
	ToolName string          `json:"tool_name"`
	State    ToolState       `json:"state"`
	Args     json.RawMessage `json:"args,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
	IsError  bool            `json:"is_error,omitempty"`
}

// Part is one unit of message content: plain text or a tool invocation.
// Parts are append-only within a message; once persisted they are only
// ever annotated, never rewritten.
type Part struct {
	Type           PartType        `json:"type"`
	Text           string          `json:"text,omitempty"`
	ToolInvocation *ToolInvocation `json:"tool_invocation,omitempty"`
}

// Resolved reports whether the part is valid to persist. Text parts always
// are; tool parts only once they carry a terminal result.
func (p Part) Resolved() bool {
	if p.Type != PartToolInvocation {
		return true
	}
	return p.ToolInvocation != nil && p.ToolInvocation.State == ToolStateResult
}

// Message is one element of a conversation's history. Its identity is
// generated once and stays stable across the insert and every later
// annotation update; the store's idempotency is keyed on it.
type Message struct {
	ID         string      `json:"id"`
	Role       Role        `json:"role"`
	Parts      []Part      `json:"parts"`
	CreatedAt  time.Time   `json:"created_at"`
	Annotation *Annotation `json:"annotation,omitempty"`
}

// StripUnresolved returns a copy of the message without tool-invocation parts
// that never reached a terminal result (e.g. a call cut off by truncation).
// A partially-specified invocation is not valid to store or replay.
func (m Message) StripUnresolved() Message {
	kept := make([]Part, 0, len(m.Parts))
	for _, p := range m.Parts {
		if p.Resolved() {
			kept = append(kept, p)
		}
	}
	m.Parts = kept
	return m
}

const messageIDPrefix = "MESSAGE#"

// messageTimeLayout is RFC3339 with fixed-width nanoseconds. RFC3339Nano
// drops trailing zeros, and "53Z" sorts after "53.001Z"; the fixed width
// keeps lexical order equal to chronological order.
const messageTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// NewMessageID generates a message identity that sorts lexically by creation
// time, so an ordered range scan over ids returns creation order without a
// secondary sort.
func NewMessageID(t time.Time) string {
	return fmt.Sprintf("%s%s#%s", messageIDPrefix, t.UTC().Format(messageTimeLayout), uuid.NewString())
}

// MessageTime recovers the creation timestamp embedded in a message id.
// Returns the zero time if the id does not carry one.
func MessageTime(id string) time.Time {
	segments := strings.SplitN(id, "#", 3)
	if len(segments) < 2 {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, segments[1])
	if err != nil {
		return time.Time{}
	}
	return t
}

// FullConversation includes the conversation metadata and all its messages.
type FullConversation struct {
	Conversation
	Messages []Message `json:"messages"`
}
