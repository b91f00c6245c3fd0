package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"eva-chat/backend/internal/interfaces"
	"eva-chat/backend/internal/model"
	"eva-chat/backend/internal/service"
)

// defaultOwnerID identifies requests that carry no X-User-ID header.
// Session verification is an external collaborator; the API only needs a
// stable owner key for the two-level storage partition.
const defaultOwnerID = "default-user"

// ConversationHandler handles HTTP requests for conversations, messages and
// annotations.
type ConversationHandler struct {
	service interfaces.ConversationService
}

func NewConversationHandler(svc interfaces.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: svc}
}

func ownerID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return defaultOwnerID
}

// GetConversations godoc
// @Summary      List conversations
// @Description  Gets all conversations owned by the requesting user, newest first.
// @Tags         Conversations
// @Produce      json
// @Success      200  {array}   model.Conversation
// @Failure      500  {object}  ErrorResponse
// @Router       /v1/conversations [get]
func (h *ConversationHandler) GetConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.service.ListConversations(r.Context(), ownerID(r))
	if err != nil {
		respondWithError(w, err)
		return
	}
	if conversations == nil {
		conversations = []*model.Conversation{}
	}
	respondWithJSON(w, http.StatusOK, conversations)
}

// GetConversation godoc
// @Summary      Get one conversation
// @Description  Gets a conversation's metadata together with all its messages in creation order.
// @Tags         Conversations
// @Produce      json
// @Param        conversationID  path  string  true  "Conversation ID"
// @Success      200  {object}  model.FullConversation
// @Failure      404  {object}  ErrorResponse
// @Router       /v1/conversations/{conversationID} [get]
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	full, err := h.service.GetFullConversation(r.Context(), ownerID(r), conversationID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, full)
}

// HandleDeleteConversation godoc
// @Summary      Delete a conversation
// @Description  Deletes a conversation, its messages (in bounded batches) and its stored objects.
// @Tags         Conversations
// @Produce      json
// @Param        conversationID  path  string  true  "Conversation ID"
// @Success      200  {object}  StatusResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /v1/conversations/{conversationID} [delete]
func (h *ConversationHandler) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if err := h.service.DeleteConversation(r.Context(), ownerID(r), conversationID); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// GetMessages godoc
// @Summary      List a conversation's messages
// @Description  Returns messages in creation order. With keys_only=true only identity fields are returned.
// @Tags         Messages
// @Produce      json
// @Param        conversationID  path   string  true   "Conversation ID"
// @Param        keys_only       query  bool    false  "Return only message identities"
// @Success      200  {array}   model.Message
// @Failure      500  {object}  ErrorResponse
// @Router       /v1/conversations/{conversationID}/messages [get]
func (h *ConversationHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	keysOnly := r.URL.Query().Get("keys_only") == "true"
	messages, err := h.service.ListMessages(r.Context(), conversationID, keysOnly)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if messages == nil {
		messages = []model.Message{}
	}
	respondWithJSON(w, http.StatusOK, messages)
}

// HandleAppendMessage godoc
// @Summary      Persist a message directly
// @Description  Idempotently appends a message. This is the compensating path used by clients after a broken stream; a duplicate identity returns the already-stored record.
// @Tags         Messages
// @Accept       json
// @Produce      json
// @Param        conversationID  path  string         true  "Conversation ID"
// @Param        message         body  model.Message  true  "Message to persist"
// @Success      200  {object}  model.Message
// @Failure      400  {object}  ErrorResponse
// @Router       /v1/conversations/{conversationID}/messages [post]
func (h *ConversationHandler) HandleAppendMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	var msg model.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		respondWithJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload"})
		return
	}
	if msg.Role != model.RoleUser && msg.Role != model.RoleAssistant {
		respondWithJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Message role must be user or assistant"})
		return
	}

	saved, err := h.service.AppendClientMessage(r.Context(), conversationID, &msg)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, saved)
}

// HandleUpdateAnnotation godoc
// @Summary      Update a part's annotation
// @Description  Merges the given fields into one part's metadata, leaving every other part and field untouched.
// @Tags         Messages
// @Accept       json
// @Produce      json
// @Param        conversationID  path  string                   true  "Conversation ID"
// @Param        messageID       path  string                   true  "Message ID"
// @Param        update          body  UpdateAnnotationRequest  true  "Fields to merge"
// @Success      200  {object}  StatusResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /v1/conversations/{conversationID}/messages/{messageID}/annotation [patch]
func (h *ConversationHandler) HandleUpdateAnnotation(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	messageID := chi.URLParam(r, "messageID")

	var req UpdateAnnotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload"})
		return
	}
	if err := validateRequest(req); err != nil {
		respondWithError(w, err)
		return
	}

	updates := model.PartMetadata{IsInReport: req.IsInReport, Threshold: req.Threshold}
	if err := h.service.UpdateAnnotation(r.Context(), conversationID, messageID, req.PartIndex, updates); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// HandleStreamTurn godoc
// @Summary      Run one chat turn
// @Description  Persists the user message, invokes the agent runtime and streams events back over SSE, ending with a reconciliation payload on success.
// @Tags         Turns
// @Accept       json
// @Produce      text/event-stream
// @Param        turn  body  service.TurnRequest  true  "Turn input"
// @Router       /v1/turns [post]
func (h *ConversationHandler) HandleStreamTurn(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var req service.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendStreamError(w, "Invalid request body")
		return
	}
	if err := validateRequest(req); err != nil {
		sendStreamError(w, err.Error())
		return
	}
	if req.OwnerID == "" {
		req.OwnerID = ownerID(r)
	}

	stream := make(chan model.StreamEvent)
	go h.service.HandleTurn(r.Context(), &req, stream)

	for event := range stream {
		if r.Context().Err() != nil {
			// Abandoned stream consumption cannot corrupt store state: every
			// persistence step is idempotent and keyed by stable identity.
			slog.Info("Client disconnected mid-turn", "conversation_id", req.ConversationID)
			break
		}
		if err := writeStreamEvent(w, event); err != nil {
			slog.Warn("Failed to write stream event", "error", err)
			break
		}
	}
}
