package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eva-chat/backend/internal/api"
	"eva-chat/backend/internal/objectstore"
)

func setupObjectHandler(t *testing.T) (*api.ObjectHandler, *objectstore.Store) {
	store, err := objectstore.New(t.TempDir(), "test-secret", time.Hour)
	require.NoError(t, err)
	return api.NewObjectHandler(store), store
}

func TestObjectHandler_UploadThenFetch(t *testing.T) {
	handler, _ := setupObjectHandler(t)

	// Upload under the conversation's namespace.
	req := httptest.NewRequest(http.MethodPost, "/v1/conversations/conv-1/objects", strings.NewReader("figure bytes"))
	req = addChiURLParams(req, map[string]string{"conversationID": "conv-1"})
	rr := httptest.NewRecorder()
	handler.HandleUpload(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	var upload api.UploadResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &upload))
	require.NotEmpty(t, upload.ObjectID)
	require.NotEmpty(t, upload.SignedURL)

	// Fetch through the signed URL the upload handed back.
	signed, err := url.Parse(upload.SignedURL)
	require.NoError(t, err)
	fetchReq := httptest.NewRequest(http.MethodGet, upload.SignedURL, nil)
	fetchReq = addChiURLParams(fetchReq, map[string]string{
		"conversationID": "conv-1",
		"objectID":       upload.ObjectID,
	})
	fetchRR := httptest.NewRecorder()
	handler.HandleFetch(fetchRR, fetchReq)

	assert.Equal(t, http.StatusOK, fetchRR.Code)
	assert.Equal(t, "figure bytes", fetchRR.Body.String())
	assert.NotEmpty(t, signed.Query().Get("token"))
}

func TestObjectHandler_FetchRejectsBadToken(t *testing.T) {
	handler, store := setupObjectHandler(t)

	objectID, err := store.Put("conv-1", strings.NewReader("secret figure"))
	require.NoError(t, err)

	t.Run("tampered token", func(t *testing.T) {
		target := "/objects/conv-1/" + objectID + "?expires=9999999999&token=deadbeef"
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req = addChiURLParams(req, map[string]string{"conversationID": "conv-1", "objectID": objectID})
		rr := httptest.NewRecorder()
		handler.HandleFetch(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("missing expiry", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/objects/conv-1/"+objectID, nil)
		req = addChiURLParams(req, map[string]string{"conversationID": "conv-1", "objectID": objectID})
		rr := httptest.NewRecorder()
		handler.HandleFetch(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestObjectHandler_FetchMissingObject(t *testing.T) {
	handler, store := setupObjectHandler(t)

	// A valid token for an object that was deleted underneath it.
	objectID, err := store.Put("conv-1", strings.NewReader("x"))
	require.NoError(t, err)
	signed := store.SignedURL("conv-1", objectID, time.Now())
	require.NoError(t, store.DeletePrefix("conv-1"))

	req := httptest.NewRequest(http.MethodGet, signed, nil)
	req = addChiURLParams(req, map[string]string{"conversationID": "conv-1", "objectID": objectID})
	rr := httptest.NewRecorder()
	handler.HandleFetch(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
