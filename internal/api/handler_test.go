// The `_test` suffix creates a "black box" test package: the tests exercise
// only the handlers' exported surface, the way the router does.
package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"eva-chat/backend/internal/api"
	app_errors "eva-chat/backend/internal/errors"
	"eva-chat/backend/internal/interfaces/mocks"
	"eva-chat/backend/internal/model"
	"eva-chat/backend/internal/service"
)

func setupConversationHandler(t *testing.T) (*api.ConversationHandler, *mocks.MockConversationService) {
	mockSvc := mocks.NewMockConversationService(t)
	handler := api.NewConversationHandler(mockSvc)
	return handler, mockSvc
}

// addChiURLParams simulates how the chi router injects URL parameters
// (e.g. `{conversationID}`) into the request's context, so handlers relying
// on chi.URLParam see the values they would in production.
func addChiURLParams(req *http.Request, params map[string]string) *http.Request {
	chiCtx := chi.NewRouteContext()
	for key, value := range params {
		chiCtx.URLParams.Add(key, value)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, chiCtx))
}

func TestConversationHandler_GetConversations(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, mockSvc := setupConversationHandler(t)
		expected := []*model.Conversation{{ID: "conv-1", OwnerID: "alice", Title: "TP53"}}
		mockSvc.On("ListConversations", mock.Anything, "alice").Return(expected, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
		req.Header.Set("X-User-ID", "alice")
		rr := httptest.NewRecorder()
		handler.GetConversations(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var got []*model.Conversation
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "conv-1", got[0].ID)
	})

	t.Run("Missing user header falls back to the default owner", func(t *testing.T) {
		handler, mockSvc := setupConversationHandler(t)
		mockSvc.On("ListConversations", mock.Anything, "default-user").Return(nil, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
		rr := httptest.NewRecorder()
		handler.GetConversations(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, "[]", rr.Body.String(), "nil list serializes as an empty array")
	})

	t.Run("Service error maps to 500", func(t *testing.T) {
		handler, mockSvc := setupConversationHandler(t)
		mockSvc.On("ListConversations", mock.Anything, "default-user").
			Return(nil, errors.New("store down")).Once()

		req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
		rr := httptest.NewRecorder()
		handler.GetConversations(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestConversationHandler_GetConversation(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, mockSvc := setupConversationHandler(t)
		expected := &model.FullConversation{
			Conversation: model.Conversation{ID: "conv-1", Title: "TP53"},
			Messages:     []model.Message{{ID: "m1", Role: model.RoleUser}},
		}
		mockSvc.On("GetFullConversation", mock.Anything, "default-user", "conv-1").
			Return(expected, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/v1/conversations/conv-1", nil)
		req = addChiURLParams(req, map[string]string{"conversationID": "conv-1"})
		rr := httptest.NewRecorder()
		handler.GetConversation(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Not found maps to 404", func(t *testing.T) {
		handler, mockSvc := setupConversationHandler(t)
		mockSvc.On("GetFullConversation", mock.Anything, "default-user", "ghost").
			Return(nil, app_errors.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/v1/conversations/ghost", nil)
		req = addChiURLParams(req, map[string]string{"conversationID": "ghost"})
		rr := httptest.NewRecorder()
		handler.GetConversation(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestConversationHandler_DeleteConversation(t *testing.T) {
	handler, mockSvc := setupConversationHandler(t)
	mockSvc.On("DeleteConversation", mock.Anything, "default-user", "conv-1").Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/v1/conversations/conv-1", nil)
	req = addChiURLParams(req, map[string]string{"conversationID": "conv-1"})
	rr := httptest.NewRecorder()
	handler.HandleDeleteConversation(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestConversationHandler_GetMessages(t *testing.T) {
	t.Run("keys_only query is forwarded", func(t *testing.T) {
		handler, mockSvc := setupConversationHandler(t)
		mockSvc.On("ListMessages", mock.Anything, "conv-1", true).
			Return([]model.Message{{ID: "m1"}, {ID: "m2"}}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/v1/conversations/conv-1/messages?keys_only=true", nil)
		req = addChiURLParams(req, map[string]string{"conversationID": "conv-1"})
		rr := httptest.NewRecorder()
		handler.GetMessages(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var got []model.Message
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Len(t, got, 2)
	})

	t.Run("defaults to full payloads", func(t *testing.T) {
		handler, mockSvc := setupConversationHandler(t)
		mockSvc.On("ListMessages", mock.Anything, "conv-1", false).
			Return(nil, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/v1/conversations/conv-1/messages", nil)
		req = addChiURLParams(req, map[string]string{"conversationID": "conv-1"})
		rr := httptest.NewRecorder()
		handler.GetMessages(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, "[]", rr.Body.String())
	})
}

func TestConversationHandler_AppendMessage(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, mockSvc := setupConversationHandler(t)
		saved := &model.Message{ID: "m1", Role: model.RoleAssistant}
		mockSvc.On("AppendClientMessage", mock.Anything, "conv-1", mock.AnythingOfType("*model.Message")).
			Return(saved, nil).Once()

		body := `{"role":"assistant","parts":[{"type":"text","text":"partial"}]}`
		req := httptest.NewRequest(http.MethodPost, "/v1/conversations/conv-1/messages", strings.NewReader(body))
		req = addChiURLParams(req, map[string]string{"conversationID": "conv-1"})
		rr := httptest.NewRecorder()
		handler.HandleAppendMessage(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var got model.Message
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, "m1", got.ID)
	})

	t.Run("Invalid JSON is a 400", func(t *testing.T) {
		handler, _ := setupConversationHandler(t)

		req := httptest.NewRequest(http.MethodPost, "/v1/conversations/conv-1/messages", strings.NewReader("{broken"))
		req = addChiURLParams(req, map[string]string{"conversationID": "conv-1"})
		rr := httptest.NewRecorder()
		handler.HandleAppendMessage(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Unknown role is a 400", func(t *testing.T) {
		handler, _ := setupConversationHandler(t)

		body := `{"role":"system","parts":[]}`
		req := httptest.NewRequest(http.MethodPost, "/v1/conversations/conv-1/messages", strings.NewReader(body))
		req = addChiURLParams(req, map[string]string{"conversationID": "conv-1"})
		rr := httptest.NewRecorder()
		handler.HandleAppendMessage(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestConversationHandler_UpdateAnnotation(t *testing.T) {
	urlParams := map[string]string{"conversationID": "conv-1", "messageID": "msg-1"}

	t.Run("Success", func(t *testing.T) {
		handler, mockSvc := setupConversationHandler(t)
		mockSvc.On("UpdateAnnotation", mock.Anything, "conv-1", "msg-1", 1,
			mock.MatchedBy(func(u model.PartMetadata) bool {
				return u.IsInReport != nil && *u.IsInReport && u.Threshold == nil
			})).Return(nil).Once()

		body := `{"part_index":1,"is_in_report":true}`
		req := httptest.NewRequest(http.MethodPatch, "/v1/conversations/conv-1/messages/msg-1/annotation", strings.NewReader(body))
		req = addChiURLParams(req, urlParams)
		rr := httptest.NewRecorder()
		handler.HandleUpdateAnnotation(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Out-of-range threshold is a 400", func(t *testing.T) {
		handler, _ := setupConversationHandler(t)

		body := `{"part_index":0,"threshold":1.5}`
		req := httptest.NewRequest(http.MethodPatch, "/v1/conversations/conv-1/messages/msg-1/annotation", strings.NewReader(body))
		req = addChiURLParams(req, urlParams)
		rr := httptest.NewRecorder()
		handler.HandleUpdateAnnotation(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Unpersisted message is a 404", func(t *testing.T) {
		handler, mockSvc := setupConversationHandler(t)
		mockSvc.On("UpdateAnnotation", mock.Anything, "conv-1", "msg-1", 0, mock.Anything).
			Return(app_errors.ErrNotFound).Once()

		body := `{"part_index":0,"is_in_report":true}`
		req := httptest.NewRequest(http.MethodPatch, "/v1/conversations/conv-1/messages/msg-1/annotation", strings.NewReader(body))
		req = addChiURLParams(req, urlParams)
		rr := httptest.NewRecorder()
		handler.HandleUpdateAnnotation(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestConversationHandler_StreamTurn(t *testing.T) {
	t.Run("forwards events as SSE data frames", func(t *testing.T) {
		handler, mockSvc := setupConversationHandler(t)

		mockSvc.On("HandleTurn", mock.Anything, mock.AnythingOfType("*service.TurnRequest"), mock.Anything).
			Run(func(args mock.Arguments) {
				req := args.Get(1).(*service.TurnRequest)
				assert.Equal(t, "default-user", req.OwnerID, "owner filled from the request header fallback")

				stream := args.Get(2).(chan<- model.StreamEvent)
				stream <- model.StreamEvent{Type: model.EventTextDelta, Content: "Hel"}
				stream <- model.StreamEvent{Type: model.EventTextDelta, Content: "lo"}
				stream <- model.StreamEvent{Type: model.EventDone}
				close(stream)
			}).Once()

		body := `{"conversation_id":"conv-1","messages":[{"role":"user","parts":[{"type":"text","text":"hi"}]}]}`
		req := httptest.NewRequest(http.MethodPost, "/v1/turns", strings.NewReader(body))
		rr := httptest.NewRecorder()
		handler.HandleStreamTurn(rr, req)

		assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
		output := rr.Body.String()
		assert.Contains(t, output, `data: {"type":"text-delta","content":"Hel"}`)
		assert.Contains(t, output, `data: {"type":"done"}`)
	})

	t.Run("validation failure is streamed as an error event", func(t *testing.T) {
		handler, _ := setupConversationHandler(t)

		// Missing conversation_id and messages.
		req := httptest.NewRequest(http.MethodPost, "/v1/turns", strings.NewReader(`{}`))
		rr := httptest.NewRecorder()
		handler.HandleStreamTurn(rr, req)

		assert.Contains(t, rr.Body.String(), "event: error")
	})

	t.Run("invalid JSON is streamed as an error event", func(t *testing.T) {
		handler, _ := setupConversationHandler(t)

		req := httptest.NewRequest(http.MethodPost, "/v1/turns", strings.NewReader("{broken"))
		rr := httptest.NewRecorder()
		handler.HandleStreamTurn(rr, req)

		assert.Contains(t, rr.Body.String(), "event: error")
	})

	t.Run("stops writing once the client disconnects", func(t *testing.T) {
		handler, mockSvc := setupConversationHandler(t)

		ctx, cancel := context.WithCancel(context.Background())
		released := make(chan struct{})
		mockSvc.On("HandleTurn", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				stream := args.Get(2).(chan<- model.StreamEvent)
				stream <- model.StreamEvent{Type: model.EventTextDelta, Content: "first"}
				cancel()
				// The handler may have stopped consuming already; don't block on it.
				select {
				case stream <- model.StreamEvent{Type: model.EventTextDelta, Content: "second"}:
				case <-time.After(100 * time.Millisecond):
				}
				close(stream)
				close(released)
			}).Once()

		body := `{"conversation_id":"conv-1","messages":[{"role":"user","parts":[{"type":"text","text":"hi"}]}]}`
		req := httptest.NewRequest(http.MethodPost, "/v1/turns", strings.NewReader(body)).WithContext(ctx)
		rr := httptest.NewRecorder()
		handler.HandleStreamTurn(rr, req)

		select {
		case <-released:
		case <-time.After(time.Second):
			t.Fatal("turn goroutine was not drained after disconnect")
		}
		assert.NotContains(t, rr.Body.String(), "second")
	})
}
