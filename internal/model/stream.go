package model

import "encoding/json"

// EventType discriminates the chunks pushed down a turn's stream.
type EventType string

const (
	// EventTextDelta carries an incremental slice of assistant text.
	EventTextDelta EventType = "text-delta"
	// EventToolCall announces a tool invocation the model has started.
	EventToolCall EventType = "tool-call"
	// EventToolResult resolves a previously announced invocation.
	EventToolResult EventType = "tool-result"
	// EventReconcile is the single out-of-band payload sent once per turn
	// after server-side finalization succeeds.
	EventReconcile EventType = "reconcile"
	// EventDone terminates a successful stream.
	EventDone EventType = "done"
	// EventError terminates a failed stream.
	EventError EventType = "error"
)

// StreamEvent is the structure for a single chunk in a streaming response.
type StreamEvent struct {
	Type      EventType          `json:"type"`
	Content   string             `json:"content,omitempty"`
	ToolName  string             `json:"tool_name,omitempty"`
	Args      json.RawMessage    `json:"args,omitempty"`
	Result    json.RawMessage    `json:"result,omitempty"`
	IsError   bool               `json:"is_error,omitempty"`
	Error     string             `json:"error,omitempty"`
	// Upstream indicates the error originated in the agent runtime, which
	// guarantees the server never reached its own persistence step. Clients
	// use this to decide whether compensating persistence is needed.
	Upstream bool `json:"upstream,omitempty"`
	// RetryAfterSeconds is set on rate-limit errors so the client can
	// disable retry until it elapses.
	RetryAfterSeconds int               `json:"retry_after_seconds,omitempty"`
	Reconcile         *ReconcilePayload `json:"reconcile,omitempty"`
}

// ReconcilePayload syncs server-confirmed state into client state after a
// turn completes. Consumed exactly once and then cleared by the client.
type ReconcilePayload struct {
	// ConfirmedUserMessage is the persisted form of the turn's user message,
	// carrying the durable identity and any annotation the optimistic client
	// copy did not have.
	ConfirmedUserMessage Message `json:"confirmed_user_message"`
	// FirstExchange tells the client this was the conversation's first turn,
	// so conversation-level chrome (sidebar title) needs a refresh.
	FirstExchange bool `json:"first_exchange"`
}
