// Package reconcile implements the client side of the streaming protocol:
// a local message list that is the single source of truth for rendering,
// synchronized from the incremental event stream and from the out-of-band
// reconciliation payload the server pushes once per successful turn. When a
// stream dies before server-side finalization, the reconciler detects the gap
// and persists the trailing message itself.
//
// The reconciler is event-loop driven like the UI it backs: callers invoke it
// from a single goroutine, and every network call is an explicit suspension
// point taking a context.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	app_errors "eva-chat/backend/internal/errors"
	"eva-chat/backend/internal/model"
)

// StoreClient is the slice of the server API the reconciler needs. It is
// satisfied by the HTTP client in this package and by direct store adapters
// in tests.
type StoreClient interface {
	ListMessageKeys(ctx context.Context, conversationID string) ([]model.Message, error)
	AppendMessage(ctx context.Context, conversationID string, msg *model.Message) (*model.Message, error)
	UpdateAnnotation(ctx context.Context, conversationID, messageID string, partIdx int, updates model.PartMetadata) error
}

// Reconciler maintains the local message list for one conversation. Exactly
// one turn may be in flight at a time; the submit path is rejected while one
// is active, which is the concurrency bound that avoids interleaved-turn
// races.
type Reconciler struct {
	conversationID string
	client         StoreClient

	messages  []model.Message
	inFlight  bool
	reconcile *model.ReconcilePayload
}

func New(conversationID string, client StoreClient, initial []model.Message) *Reconciler {
	messages := make([]model.Message, len(initial))
	copy(messages, initial)
	return &Reconciler{conversationID: conversationID, client: client, messages: messages}
}

// Messages returns the current local message list for rendering.
func (r *Reconciler) Messages() []model.Message {
	return r.messages
}

// InFlight reports whether a turn is currently active.
func (r *Reconciler) InFlight() bool {
	return r.inFlight
}

// BeginTurn appends the optimistic user message and marks the turn active.
// The identity generated here is the one the server persists under, so the
// later confirmed copy swaps in cleanly.
func (r *Reconciler) BeginTurn(text string) (*model.Message, error) {
	if r.inFlight {
		return nil, app_errors.ErrTurnInFlight
	}
	now := time.Now()
	msg := model.Message{
		ID:        model.NewMessageID(now),
		Role:      model.RoleUser,
		Parts:     []model.Part{{Type: model.PartText, Text: text}},
		CreatedAt: now.UTC(),
	}
	r.messages = append(r.messages, msg)
	r.inFlight = true
	return &msg, nil
}

// ApplyEvent folds one stream chunk into local state. Terminal chunks
// (done/error) end the turn; the error path additionally needs
// HandleStreamFailure for the compensating write.
func (r *Reconciler) ApplyEvent(event model.StreamEvent) {
	switch event.Type {
	case model.EventTextDelta:
		tail := r.streamingTail()
		if n := len(tail.Parts); n > 0 && tail.Parts[n-1].Type == model.PartText {
			tail.Parts[n-1].Text += event.Content
		} else {
			tail.Parts = append(tail.Parts, model.Part{Type: model.PartText, Text: event.Content})
		}

	case model.EventToolCall:
		tail := r.streamingTail()
		tail.Parts = append(tail.Parts, model.Part{
			Type: model.PartToolInvocation,
			ToolInvocation: &model.ToolInvocation{
				ToolName: event.ToolName,
				State:    model.ToolStateCall,
				Args:     event.Args,
			},
		})

	case model.EventToolResult:
		tail := r.streamingTail()
		for i := len(tail.Parts) - 1; i >= 0; i-- {
			inv := tail.Parts[i].ToolInvocation
			if tail.Parts[i].Type == model.PartToolInvocation && inv != nil &&
				inv.ToolName == event.ToolName && inv.State != model.ToolStateResult {
				inv.State = model.ToolStateResult
				inv.Result = event.Result
				inv.IsError = event.IsError
				break
			}
		}

	case model.EventReconcile:
		if event.Reconcile != nil {
			r.applyReconciliation(*event.Reconcile)
		}

	case model.EventDone:
		r.inFlight = false
	}
}

// TakeReconcile returns the pending reconciliation payload, if any, and
// clears it. Consumed exactly once per turn.
func (r *Reconciler) TakeReconcile() *model.ReconcilePayload {
	payload := r.reconcile
	r.reconcile = nil
	return payload
}

// applyReconciliation replaces the optimistic copy of the just-sent user
// message with the server-confirmed one. The match is by role and recency,
// not array index, because intervening stream events may have extended the
// list.
func (r *Reconciler) applyReconciliation(payload model.ReconcilePayload) {
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].Role == model.RoleUser {
			r.messages[i] = payload.ConfirmedUserMessage
			break
		}
	}
	r.reconcile = &payload
}

// HandleStreamFailure is the compensating action for a stream that died
// before server-side finalization. It compares the persisted message count
// (keys only) with the local one and, only when the local list is ahead,
// persists the trailing message after stripping unresolved tool parts.
//
// The comparison and the write are not atomic against a server-side finalize
// that is still in flight; the append's idempotency is what makes the
// occasional redundant attempt harmless.
func (r *Reconciler) HandleStreamFailure(ctx context.Context, event model.StreamEvent) error {
	wasInFlight := r.inFlight
	r.inFlight = false

	if !event.Upstream {
		// A generic transport error does not guarantee the server failed to
		// persist, but the gap check below is safe either way: it only writes
		// when the store is actually behind.
		slog.Debug("Stream ended with a transport error, running gap detection anyway")
	}

	// A turn that died before its first stream event never grew an assistant
	// tail; local and persisted counts would match even though the server
	// holds no assistant record. Create the empty tail so the comparison can
	// see the gap.
	if n := len(r.messages); wasInFlight && n > 0 && r.messages[n-1].Role == model.RoleUser {
		r.messages = append(r.messages, model.Message{
			Role:      model.RoleAssistant,
			CreatedAt: time.Now().UTC(),
		})
	}

	persisted, err := r.client.ListMessageKeys(ctx, r.conversationID)
	if err != nil {
		return err
	}
	if len(r.messages) <= len(persisted) {
		return nil
	}

	tail := r.messages[len(r.messages)-1].StripUnresolved()
	saved, err := r.client.AppendMessage(ctx, r.conversationID, &tail)
	if err != nil {
		return err
	}
	r.messages[len(r.messages)-1] = *saved
	return nil
}

// ToggleReport flips a part's report membership. The local patch mirrors the
// shape the server produces, and is applied only after the server confirms,
// so a rejected update never leaves half-applied local state.
func (r *Reconciler) ToggleReport(ctx context.Context, messageID string, partIdx int, inReport bool) error {
	updates := model.PartMetadata{IsInReport: &inReport}
	if err := r.client.UpdateAnnotation(ctx, r.conversationID, messageID, partIdx, updates); err != nil {
		return err
	}
	r.patchLocal(messageID, partIdx, updates)
	return nil
}

// SetThreshold sets a part's numeric filter threshold, with the same
// confirm-then-patch discipline as ToggleReport.
func (r *Reconciler) SetThreshold(ctx context.Context, messageID string, partIdx int, threshold float64) error {
	updates := model.PartMetadata{Threshold: &threshold}
	if err := r.client.UpdateAnnotation(ctx, r.conversationID, messageID, partIdx, updates); err != nil {
		return err
	}
	r.patchLocal(messageID, partIdx, updates)
	return nil
}

func (r *Reconciler) patchLocal(messageID string, partIdx int, updates model.PartMetadata) {
	for i := range r.messages {
		if r.messages[i].ID == messageID {
			r.messages[i].Annotation = model.MergePartField(r.messages[i].Annotation, partIdx, updates)
			return
		}
	}
}

// streamingTail returns the assistant message stream events fold into,
// creating the optimistic placeholder on the first event of a turn.
func (r *Reconciler) streamingTail() *model.Message {
	if n := len(r.messages); n > 0 && r.messages[n-1].Role == model.RoleAssistant && r.inFlight {
		return &r.messages[n-1]
	}
	r.messages = append(r.messages, model.Message{
		Role:      model.RoleAssistant,
		CreatedAt: time.Now().UTC(),
	})
	return &r.messages[len(r.messages)-1]
}
