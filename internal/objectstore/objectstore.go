// Package objectstore holds binary tool outputs (figures, images) outside the
// message store, keyed under a per-conversation namespace. Retrieval goes
// through time-limited signed URLs requested per render; deleting a
// conversation best-effort removes everything under its prefix.
package objectstore

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidToken is returned when a signed URL's token does not verify or
// its validity window has elapsed.
var ErrInvalidToken = fmt.Errorf("objectstore: invalid or expired token")

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = fmt.Errorf("objectstore: object not found")

type Store struct {
	dir    string
	secret []byte
	ttl    time.Duration
}

// New opens a filesystem-backed store rooted at dir. The secret signs fetch
// tokens; ttl bounds how long a signed URL stays valid.
func New(dir, secret string, ttl time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create object directory: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{dir: dir, secret: []byte(secret), ttl: ttl}, nil
}

// Put stores the content under the conversation's namespace and returns the
// generated object id.
func (s *Store) Put(conversationID string, content io.Reader) (string, error) {
	objectID := uuid.NewString()
	dir := filepath.Join(s.dir, sanitize(conversationID))
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create conversation namespace: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, objectID))
	if err != nil {
		return "", fmt.Errorf("failed to create object file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	return objectID, nil
}

// Open returns the object's content for streaming to the client.
func (s *Store) Open(conversationID, objectID string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.dir, sanitize(conversationID), sanitize(objectID)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// SignedURL produces the fetch path plus an expiry and an HMAC token bound to
// the object key and the expiry instant.
func (s *Store) SignedURL(conversationID, objectID string, now time.Time) string {
	expires := now.Add(s.ttl).Unix()
	token := s.sign(conversationID, objectID, expires)
	return fmt.Sprintf("/objects/%s/%s?expires=%d&token=%s",
		url.PathEscape(conversationID), url.PathEscape(objectID), expires, token)
}

// Verify checks a fetch token against the object key and expiry.
func (s *Store) Verify(conversationID, objectID string, expires int64, token string, now time.Time) error {
	if now.Unix() > expires {
		return ErrInvalidToken
	}
	expected := s.sign(conversationID, objectID, expires)
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return ErrInvalidToken
	}
	return nil
}

// DeletePrefix removes every object under the conversation's namespace.
// Best-effort: a missing namespace is not an error.
func (s *Store) DeletePrefix(conversationID string) error {
	err := os.RemoveAll(filepath.Join(s.dir, sanitize(conversationID)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object namespace: %w", err)
	}
	return nil
}

func (s *Store) sign(conversationID, objectID string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s/%s/%s", conversationID, objectID, strconv.FormatInt(expires, 10))
	return hex.EncodeToString(mac.Sum(nil))
}

// sanitize strips path separators so a key segment can never escape the store
// root.
func sanitize(segment string) string {
	segment = strings.ReplaceAll(segment, "/", "_")
	segment = strings.ReplaceAll(segment, "\\", "_")
	segment = strings.ReplaceAll(segment, "..", "_")
	return segment
}
