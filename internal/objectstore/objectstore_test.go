package objectstore_test

import (
	"io"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eva-chat/backend/internal/objectstore"
)

func setupObjectStore(t *testing.T) *objectstore.Store {
	t.Helper()
	store, err := objectstore.New(t.TempDir(), "test-secret", time.Hour)
	require.NoError(t, err)
	return store
}

// parseSignedURL extracts the expiry and token from a signed fetch path.
func parseSignedURL(t *testing.T, signed string) (int64, string) {
	t.Helper()
	u, err := url.Parse(signed)
	require.NoError(t, err)
	expires, err := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	require.NoError(t, err)
	return expires, u.Query().Get("token")
}

func TestStore_RoundTrip(t *testing.T) {
	store := setupObjectStore(t)

	objectID, err := store.Put("conv-1", strings.NewReader("png bytes"))
	require.NoError(t, err)
	require.NotEmpty(t, objectID)

	rc, err := store.Open("conv-1", objectID)
	require.NoError(t, err)
	defer rc.Close()

	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(content))
}

func TestStore_OpenMissingObject(t *testing.T) {
	store := setupObjectStore(t)

	_, err := store.Open("conv-1", "no-such-object")
	assert.ErrorIs(t, err, objectstore.ErrNotFound)
}

func TestStore_SignedURL(t *testing.T) {
	store := setupObjectStore(t)
	now := time.Now()

	objectID, err := store.Put("conv-1", strings.NewReader("data"))
	require.NoError(t, err)

	signed := store.SignedURL("conv-1", objectID, now)
	assert.True(t, strings.HasPrefix(signed, "/objects/conv-1/"))
	expires, token := parseSignedURL(t, signed)

	t.Run("valid token verifies", func(t *testing.T) {
		assert.NoError(t, store.Verify("conv-1", objectID, expires, token, now))
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		afterExpiry := time.Unix(expires, 0).Add(time.Second)
		assert.ErrorIs(t, store.Verify("conv-1", objectID, expires, token, afterExpiry), objectstore.ErrInvalidToken)
	})

	t.Run("tampered token is rejected", func(t *testing.T) {
		err := store.Verify("conv-1", objectID, expires, "deadbeef", now)
		assert.ErrorIs(t, err, objectstore.ErrInvalidToken)
	})

	t.Run("token is bound to the object key", func(t *testing.T) {
		err := store.Verify("conv-2", objectID, expires, token, now)
		assert.ErrorIs(t, err, objectstore.ErrInvalidToken)
	})

	t.Run("extending the expiry invalidates the token", func(t *testing.T) {
		err := store.Verify("conv-1", objectID, expires+3600, token, now)
		assert.ErrorIs(t, err, objectstore.ErrInvalidToken)
	})
}

func TestStore_DeletePrefix(t *testing.T) {
	store := setupObjectStore(t)

	keepID, err := store.Put("conv-keep", strings.NewReader("keep"))
	require.NoError(t, err)
	dropID, err := store.Put("conv-drop", strings.NewReader("drop"))
	require.NoError(t, err)

	require.NoError(t, store.DeletePrefix("conv-drop"))

	_, err = store.Open("conv-drop", dropID)
	assert.ErrorIs(t, err, objectstore.ErrNotFound)

	rc, err := store.Open("conv-keep", keepID)
	require.NoError(t, err)
	rc.Close()

	t.Run("deleting a missing namespace is not an error", func(t *testing.T) {
		assert.NoError(t, store.DeletePrefix("conv-never-existed"))
	})
}

func TestStore_PathTraversalIsNeutralized(t *testing.T) {
	store := setupObjectStore(t)

	objectID, err := store.Put("../escape", strings.NewReader("x"))
	require.NoError(t, err)

	// The hostile segment lands inside the store root under a sanitized name.
	rc, err := store.Open("../escape", objectID)
	require.NoError(t, err)
	rc.Close()
}
