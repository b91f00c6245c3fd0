package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"eva-chat/backend/internal/objectstore"
)

// ObjectHandler serves the object-store bridge: uploads of binary tool
// outputs under a conversation's namespace and downloads through
// time-limited signed URLs.
type ObjectHandler struct {
	objects *objectstore.Store
}

func NewObjectHandler(objects *objectstore.Store) *ObjectHandler {
	return &ObjectHandler{objects: objects}
}

// UploadResponse carries the stored object's id and a signed fetch URL.
type UploadResponse struct {
	ObjectID  string `json:"object_id"`
	SignedURL string `json:"signed_url"`
}

// HandleUpload godoc
// @Summary      Upload a binary object
// @Description  Stores the request body under the conversation's namespace and returns a time-limited signed URL.
// @Tags         Objects
// @Produce      json
// @Param        conversationID  path  string  true  "Conversation ID"
// @Success      201  {object}  UploadResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /v1/conversations/{conversationID}/objects [post]
func (h *ObjectHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	objectID, err := h.objects.Put(conversationID, r.Body)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, UploadResponse{
		ObjectID:  objectID,
		SignedURL: h.objects.SignedURL(conversationID, objectID, time.Now()),
	})
}

// HandleFetch serves an object if the request carries a valid, unexpired
// token. Mounted outside the API prefix so signed URLs stay short.
func (h *ObjectHandler) HandleFetch(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	objectID := chi.URLParam(r, "objectID")

	expires, err := strconv.ParseInt(r.URL.Query().Get("expires"), 10, 64)
	if err != nil {
		respondWithJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Missing or invalid expiry"})
		return
	}
	token := r.URL.Query().Get("token")

	if err := h.objects.Verify(conversationID, objectID, expires, token, time.Now()); err != nil {
		respondWithJSON(w, http.StatusForbidden, ErrorResponse{Error: "Invalid or expired token"})
		return
	}

	content, err := h.objects.Open(conversationID, objectID)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			respondWithJSON(w, http.StatusNotFound, ErrorResponse{Error: "Object not found"})
			return
		}
		respondWithError(w, err)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, content); err != nil {
		slog.Warn("Failed to stream object to client", "error", err)
	}
}
