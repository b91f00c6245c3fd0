package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"eva-chat/backend/internal/agent"
	app_errors "eva-chat/backend/internal/errors"
	"eva-chat/backend/internal/model"
	"eva-chat/backend/internal/objectstore"
	"eva-chat/backend/internal/repository"
)

// Options carries the per-deployment knobs of the conversation service.
type Options struct {
	MainModel    string
	SupportModel string
	SystemPrompt string
	// TurnTimeout bounds one agent invocation; exceeding it cancels the call
	// and surfaces as a retryable error, never a crash.
	TurnTimeout time.Duration
}

// ConversationService orchestrates chat turns: it persists the incoming user
// message, invokes the agent runtime with the full history, and persists the
// finalized assistant message with its annotation sidecar. All cross-turn
// state lives in the store; the service itself holds none.
type ConversationService struct {
	store   repository.Store
	runtime agent.Runtime
	objects *objectstore.Store
	opts    Options
}

// TurnRequest is one turn's input from the client: the full message history
// with the new user message as its last element.
type TurnRequest struct {
	OwnerID        string                      `json:"owner_id"`
	ConversationID string                      `json:"conversation_id" validate:"required"`
	Messages       []model.Message             `json:"messages" validate:"required,min=1"`
	Metadata       *model.ConversationMetadata `json:"metadata,omitempty"`
}

func NewConversationService(store repository.Store, runtime agent.Runtime, objects *objectstore.Store, opts Options) *ConversationService {
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = 2 * time.Minute
	}
	return &ConversationService{store: store, runtime: runtime, objects: objects, opts: opts}
}

// ListConversations retrieves all conversations for a specific owner.
func (s *ConversationService) ListConversations(ctx context.Context, ownerID string) ([]*model.Conversation, error) {
	return s.store.ListConversations(ctx, ownerID)
}

// GetFullConversation retrieves a conversation's metadata and all its messages.
func (s *ConversationService) GetFullConversation(ctx context.Context, ownerID, conversationID string) (*model.FullConversation, error) {
	conv, err := s.store.GetConversation(ctx, ownerID, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, app_errors.ErrNotFound
		}
		return nil, fmt.Errorf("could not get conversation: %w", err)
	}
	messages, err := s.store.ListMessages(ctx, conversationID, repository.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("could not get messages: %w", err)
	}
	return &model.FullConversation{Conversation: *conv, Messages: messages}, nil
}

// ListMessages exposes the store's ordered listing, including the keys-only
// variant the client's gap detection relies on.
func (s *ConversationService) ListMessages(ctx context.Context, conversationID string, keysOnly bool) ([]model.Message, error) {
	return s.store.ListMessages(ctx, conversationID, repository.ListOptions{KeysOnly: keysOnly})
}

// DeleteConversation removes the conversation, its messages (in bounded
// batches) and, best-effort, everything under its object-store namespace.
func (s *ConversationService) DeleteConversation(ctx context.Context, ownerID, conversationID string) error {
	slog.Info("Deleting conversation", "conversation_id", conversationID)
	if s.objects != nil {
		if err := s.objects.DeletePrefix(conversationID); err != nil {
			// Orphaned blobs are an acceptable leak; the store records are not.
			slog.Warn("Failed to delete conversation objects", "conversation_id", conversationID, "error", err)
		}
	}
	return s.store.DeleteConversation(ctx, ownerID, conversationID)
}

// UpdateAnnotation performs the targeted merge-update of one part's metadata.
// A missing message is a contract violation surfaced as not-found, never
// silently ignored.
func (s *ConversationService) UpdateAnnotation(ctx context.Context, conversationID, messageID string, partIdx int, updates model.PartMetadata) error {
	err := s.store.UpdateAnnotationField(ctx, conversationID, messageID, partIdx, updates)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: message %s has not been persisted", app_errors.ErrNotFound, messageID)
	}
	return err
}

// AppendClientMessage is the compensating persistence path: when a stream
// died before server-side finalization, the client persists its last-known
// message here. Unresolved tool parts are stripped and the append is
// idempotent, so a race with a still-in-flight server write is harmless.
func (s *ConversationService) AppendClientMessage(ctx context.Context, conversationID string, msg *model.Message) (*model.Message, error) {
	stripped := msg.StripUnresolved()
	if stripped.ID == "" {
		stripped.ID = model.NewMessageID(time.Now())
	}
	return s.store.AppendMessage(ctx, conversationID, &stripped)
}

// send delivers one event to the client stream, giving up when the request
// context ends. The consumer stops receiving once the client disconnects, so
// an unconditional send here would block the turn goroutine forever.
func send(ctx context.Context, stream chan<- model.StreamEvent, event model.StreamEvent) bool {
	select {
	case stream <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

// HandleTurn is the core function that processes one chat turn, streams the
// agent's output, and persists all data. Events go to the stream channel,
// which is closed when the turn ends on any path.
func (s *ConversationService) HandleTurn(ctx context.Context, req *TurnRequest, stream chan<- model.StreamEvent) {
	defer close(stream)

	userMessage := req.Messages[len(req.Messages)-1]
	if userMessage.Role != model.RoleUser {
		send(ctx, stream, model.StreamEvent{Type: model.EventError, Error: "last message of a turn must be a user message"})
		return
	}

	// Step 1: Create the conversation on its first message. Guarded by the
	// message count, not a persisted flag; a duplicate submission may run
	// title generation twice, but the create itself is idempotent.
	firstExchange := len(req.Messages) == 1
	if firstExchange {
		title := s.generateTitle(ctx, &userMessage)
		conv := &model.Conversation{
			ID:        req.ConversationID,
			OwnerID:   req.OwnerID,
			Title:     title,
			CreatedAt: time.Now().UTC(),
			Metadata:  req.Metadata,
		}
		if _, err := s.store.CreateConversation(ctx, conv); err != nil {
			slog.Error("Failed to create conversation", "conversation_id", req.ConversationID, "error", err)
			send(ctx, stream, model.StreamEvent{Type: model.EventError, Error: "Could not create conversation"})
			return
		}
	}

	// Step 2: Persist the user message before anything slow or paid runs.
	// A persistence failure aborts the turn here, never after the agent call.
	if userMessage.ID == "" {
		userMessage.ID = model.NewMessageID(time.Now())
	}
	persistedUser, err := s.store.AppendMessage(ctx, req.ConversationID, &userMessage)
	if err != nil {
		slog.Error("Failed to persist user message", "conversation_id", req.ConversationID, "error", err)
		send(ctx, stream, model.StreamEvent{Type: model.EventError, Error: "Could not save your message"})
		return
	}

	// The history handed to the agent carries the persisted form of the user
	// message, so its identity matches later annotation updates.
	history := make([]model.Message, len(req.Messages))
	copy(history, req.Messages)
	history[len(history)-1] = *persistedUser

	// Step 3: Run the agent under the turn deadline, with a session scoped to
	// this turn and released on every exit path.
	turnCtx, cancel := context.WithTimeout(ctx, s.opts.TurnTimeout)
	defer cancel()

	assistantParts, runErr := s.runAgent(turnCtx, history, stream)
	if runErr != nil {
		// No assistant message is persisted on this path; the client's
		// compensating persistence fills the gap.
		slog.Warn("Agent run failed, assistant message not persisted",
			"conversation_id", req.ConversationID, "error", runErr)
		send(ctx, stream, streamErrorEvent(runErr))
		return
	}

	// Step 4: Finalize. A dangling tool call is stripped before the idempotent
	// append; suggestions are best-effort and derived from the stripped parts.
	now := time.Now()
	assistantMessage := model.Message{
		ID:         model.NewMessageID(now),
		Role:       model.RoleAssistant,
		Parts:      assistantParts,
		CreatedAt:  now.UTC(),
		Annotation: model.NewAnnotation(now, nil),
	}
	assistantMessage = assistantMessage.StripUnresolved()
	if suggestions := s.generateSuggestions(ctx, assistantMessage.Parts); len(suggestions) > 0 {
		assistantMessage.Annotation = model.WithSuggestions(assistantMessage.Annotation, suggestions)
	}

	if _, err := s.store.AppendMessage(ctx, req.ConversationID, &assistantMessage); err != nil {
		slog.Error("CRITICAL: failed to save assistant message",
			"conversation_id", req.ConversationID, "message_id", assistantMessage.ID, "error", err)
		send(ctx, stream, model.StreamEvent{Type: model.EventError, Error: "Could not save the assistant response"})
		return
	}

	// Step 5: Push the reconciliation payload so the client can replace its
	// optimistic user-message copy with the server-confirmed one.
	if !send(ctx, stream, model.StreamEvent{
		Type: model.EventReconcile,
		Reconcile: &model.ReconcilePayload{
			ConfirmedUserMessage: *persistedUser,
			FirstExchange:        firstExchange,
		},
	}) {
		return
	}
	send(ctx, stream, model.StreamEvent{Type: model.EventDone})
}

// runAgent drives one agent invocation: acquires a per-turn session, streams
// events to the client while folding them into assistant parts, and reports
// how the stream ended. Tool-result errors are content, not failures; only a
// stream-level error or timeout fails the run.
func (s *ConversationService) runAgent(ctx context.Context, history []model.Message, stream chan<- model.StreamEvent) ([]model.Part, error) {
	session, err := s.runtime.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not acquire agent session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("Failed to close agent session", "error", err)
		}
	}()

	tools, err := session.Tools(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list agent tools: %w", err)
	}

	agentReq := &agent.TurnRequest{
		Model:    s.opts.MainModel,
		System:   s.opts.SystemPrompt,
		Messages: history,
		Tools:    tools,
	}

	events := make(chan agent.Event)
	errCh := make(chan error, 1)
	go func() {
		errCh <- session.StreamTurn(ctx, agentReq, events)
	}()

	var parts []model.Part
	var streamErr error
	for event := range events {
		switch event.Type {
		case model.EventTextDelta:
			if n := len(parts); n > 0 && parts[n-1].Type == model.PartText {
				parts[n-1].Text += event.Content
			} else {
				parts = append(parts, model.Part{Type: model.PartText, Text: event.Content})
			}
			send(ctx, stream, model.StreamEvent{Type: model.EventTextDelta, Content: event.Content})

		case model.EventToolCall:
			parts = append(parts, model.Part{
				Type: model.PartToolInvocation,
				ToolInvocation: &model.ToolInvocation{
					ToolName: event.ToolName,
					State:    model.ToolStateCall,
					Args:     event.Args,
				},
			})
			send(ctx, stream, model.StreamEvent{Type: model.EventToolCall, ToolName: event.ToolName, Args: event.Args})

		case model.EventToolResult:
			resolveToolPart(parts, event)
			send(ctx, stream, model.StreamEvent{
				Type:     model.EventToolResult,
				ToolName: event.ToolName,
				Result:   event.Result,
				IsError:  event.IsError,
			})

		case model.EventError:
			streamErr = &agent.UpstreamError{StatusCode: 500, Message: event.Error}

		case model.EventDone:
			// Terminal chunk; the goroutine will return shortly.
		}
	}

	if err := <-errCh; err != nil {
		return nil, err
	}
	if streamErr != nil {
		return nil, streamErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return parts, nil
}

// resolveToolPart attaches a result to the most recent unresolved invocation
// of the named tool.
func resolveToolPart(parts []model.Part, event agent.Event) {
	for i := len(parts) - 1; i >= 0; i-- {
		inv := parts[i].ToolInvocation
		if parts[i].Type == model.PartToolInvocation && inv != nil &&
			inv.ToolName == event.ToolName && inv.State != model.ToolStateResult {
			inv.State = model.ToolStateResult
			inv.Result = event.Result
			inv.IsError = event.IsError
			return
		}
	}
}

// streamErrorEvent maps a run failure to the structured error chunk the
// client's failure classification depends on.
func streamErrorEvent(err error) model.StreamEvent {
	event := model.StreamEvent{Type: model.EventError}
	if ue, ok := agent.AsUpstream(err); ok {
		event.Upstream = true
		event.Error = "The assistant could not process this request. Please try again."
		if ue.RateLimited() {
			event.Error = "The assistant is receiving too many requests."
			event.RetryAfterSeconds = int(ue.RetryAfter / time.Second)
		}
		return event
	}
	if errors.Is(err, context.DeadlineExceeded) {
		event.Upstream = true
		event.Error = "The assistant took too long to respond. Please try again."
		return event
	}
	event.Error = "Something went wrong while streaming the response."
	return event
}

// generateTitle derives a short conversation title from the first user
// message via the support model, falling back to a truncated copy of the
// message when the call fails.
func (s *ConversationService) generateTitle(ctx context.Context, userMessage *model.Message) string {
	fallback := truncate(firstText(userMessage), 80)
	if fallback == "" {
		fallback = "Untitled conversation"
	}

	raw, err := json.Marshal(userMessage)
	if err != nil {
		return fallback
	}
	resp, err := s.runtime.Generate(ctx, &agent.GenerateRequest{
		Model: s.opts.SupportModel,
		System: "- you will generate a short title based on the first message a user begins a conversation with\n" +
			"- ensure it is not more than 80 characters long\n" +
			"- the title should be a summary of the user's message\n" +
			"- If the user message is a question, don't answer the question, keep focusing on generating a good title\n" +
			"- do not use quotes or colons",
		Prompt:    string(raw),
		MaxTokens: 80,
	})
	if err != nil {
		slog.Warn("Failed to generate conversation title, using fallback", "error", err)
		return fallback
	}

	title := strings.TrimSpace(resp.Text)
	title = strings.Trim(title, `"'`)
	if title == "" {
		return fallback
	}
	return truncate(title, 80)
}

// generateSuggestions derives follow-up suggestions from the finished
// assistant turn. Fully best-effort: any failure is logged and swallowed, and
// the turn proceeds with an empty suggestion list.
func (s *ConversationService) generateSuggestions(ctx context.Context, parts []model.Part) []model.Suggestion {
	var usedTools []string
	var text strings.Builder
	for _, p := range parts {
		switch p.Type {
		case model.PartText:
			text.WriteString(p.Text)
			text.WriteString("\n")
		case model.PartToolInvocation:
			if p.ToolInvocation != nil {
				usedTools = append(usedTools, p.ToolInvocation.ToolName)
			}
		}
	}

	prompt := fmt.Sprintf(
		"The assistant just answered with the following content:\n---\n%s\n---\nTools already used: %s\n"+
			"Suggest up to 3 follow-up analyses as a JSON array of objects with keys \"tool_name\" and \"content\". Respond with JSON only.",
		truncate(text.String(), 1500), strings.Join(usedTools, ", "),
	)
	resp, err := s.runtime.Generate(ctx, &agent.GenerateRequest{
		Model:     s.opts.SupportModel,
		Prompt:    prompt,
		MaxTokens: 300,
	})
	if err != nil {
		slog.Warn("Failed to generate suggestions, proceeding without", "error", err)
		return nil
	}

	var suggestions []model.Suggestion
	if err := json.Unmarshal([]byte(extractJSONArray(resp.Text)), &suggestions); err != nil {
		slog.Warn("Failed to parse suggestions, proceeding without", "error", err)
		return nil
	}
	if len(suggestions) > 3 {
		suggestions = suggestions[:3]
	}
	return suggestions
}

// extractJSONArray trims any prose around the first top-level JSON array in
// the model's reply.
func extractJSONArray(text string) string {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}

func firstText(msg *model.Message) string {
	for _, p := range msg.Parts {
		if p.Type == model.PartText && p.Text != "" {
			return p.Text
		}
	}
	return ""
}

// truncate shortens a string to a specified number of runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// NewConversationID generates a conversation identity when the client did not
// supply one.
func NewConversationID() string {
	return uuid.NewString()
}
