package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"eva-chat/backend/internal/model"
)

type sqliteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) Store {
	return &sqliteStore{db: db}
}

// CreateConversation inserts a new conversation record. An identity collision
// is treated as an idempotent no-op: the stored record is returned unchanged.
// Duplicate title generation on a retried first turn is cosmetic, so absorbing
// the conflict here is safe.
func (s *sqliteStore) CreateConversation(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	var metadata sql.NullString
	if conv.Metadata != nil {
		raw, err := json.Marshal(conv.Metadata)
		if err != nil {
			return nil, fmt.Errorf("could not marshal conversation metadata: %w", err)
		}
		metadata = sql.NullString{String: string(raw), Valid: true}
	}

	query := "INSERT OR IGNORE INTO conversations (id, owner_id, title, metadata, created_at) VALUES (?, ?, ?, ?, ?)"
	if _, err := s.db.ExecContext(ctx, query, conv.ID, conv.OwnerID, conv.Title, metadata, conv.CreatedAt.UTC()); err != nil {
		return nil, fmt.Errorf("could not insert conversation: %w", err)
	}

	return s.GetConversation(ctx, conv.OwnerID, conv.ID)
}

func (s *sqliteStore) GetConversation(ctx context.Context, ownerID, conversationID string) (*model.Conversation, error) {
	query := "SELECT id, owner_id, title, metadata, created_at FROM conversations WHERE owner_id = ? AND id = ?"
	row := s.db.QueryRowContext(ctx, query, ownerID, conversationID)
	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return conv, nil
}

func (s *sqliteStore) ListConversations(ctx context.Context, ownerID string) ([]*model.Conversation, error) {
	query := "SELECT id, owner_id, title, metadata, created_at FROM conversations WHERE owner_id = ? ORDER BY created_at DESC"
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []*model.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// AppendMessage inserts a message keyed by (conversation id, message id).
// Retrying the same identity succeeds as a no-op and returns the existing
// record rather than erroring; any other failure propagates.
func (s *sqliteStore) AppendMessage(ctx context.Context, conversationID string, msg *model.Message) (*model.Message, error) {
	parts, err := json.Marshal(msg.Parts)
	if err != nil {
		return nil, fmt.Errorf("could not marshal message parts: %w", err)
	}

	// Every persisted message carries a sidecar, even if empty, so later
	// annotation updates always have an envelope to merge into.
	annotation := msg.Annotation
	if annotation == nil {
		annotation = model.NewAnnotation(time.Now(), nil)
	}
	annotationRaw, err := json.Marshal(annotation)
	if err != nil {
		return nil, fmt.Errorf("could not marshal message annotation: %w", err)
	}

	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = model.MessageTime(msg.ID)
	}

	query := `
		INSERT OR IGNORE INTO messages (conversation_id, id, role, parts, annotation, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query, conversationID, msg.ID, string(msg.Role), string(parts), string(annotationRaw), createdAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("could not insert message: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		// Duplicate identity: the record is already there, return it as-is.
		return s.getMessage(ctx, conversationID, msg.ID)
	}

	stored := *msg
	stored.Annotation = annotation
	stored.CreatedAt = createdAt.UTC()
	return &stored, nil
}

// UpdateAnnotationField merges one part's metadata fields into the message's
// sidecar inside a transaction. All other parts and fields are untouched;
// concurrent updates to the same field are last-writer-wins.
func (s *sqliteStore) UpdateAnnotationField(ctx context.Context, conversationID, messageID string, partIdx int, updates model.PartMetadata) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	var raw sql.NullString
	row := tx.QueryRowContext(ctx, "SELECT annotation FROM messages WHERE conversation_id = ? AND id = ?", conversationID, messageID)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if !raw.Valid {
		// A message without its sidecar cannot be annotated; the caller broke
		// the persist-before-annotate contract.
		return ErrNotFound
	}

	var annotation model.Annotation
	if err := json.Unmarshal([]byte(raw.String), &annotation); err != nil {
		return fmt.Errorf("could not unmarshal annotation: %w", err)
	}

	merged := model.MergePartField(&annotation, partIdx, updates)
	mergedRaw, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("could not marshal merged annotation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE messages SET annotation = ? WHERE conversation_id = ? AND id = ?", string(mergedRaw), conversationID, messageID); err != nil {
		return fmt.Errorf("could not update annotation: %w", err)
	}

	return tx.Commit()
}

// ListMessages returns the conversation's messages in creation order. The
// id embeds the creation timestamp, so ordering by id lexically is ordering
// by time without a secondary sort.
func (s *sqliteStore) ListMessages(ctx context.Context, conversationID string, opts ListOptions) ([]model.Message, error) {
	if opts.KeysOnly {
		rows, err := s.db.QueryContext(ctx, "SELECT id FROM messages WHERE conversation_id = ? ORDER BY id ASC", conversationID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var messages []model.Message
		for rows.Next() {
			var msg model.Message
			if err := rows.Scan(&msg.ID); err != nil {
				return nil, err
			}
			messages = append(messages, msg)
		}
		return messages, rows.Err()
	}

	query := `
		SELECT id, role, parts, annotation, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

// DeleteConversation removes all of a conversation's messages in bounded
// batches, then the conversation record itself. A failed batch does not stop
// the remaining ones; every failure is collected and surfaced to the caller.
func (s *sqliteStore) DeleteConversation(ctx context.Context, ownerID, conversationID string) error {
	keys, err := s.ListMessages(ctx, conversationID, ListOptions{KeysOnly: true})
	if err != nil {
		return fmt.Errorf("could not list messages for deletion: %w", err)
	}
	ids := make([]string, len(keys))
	for i, msg := range keys {
		ids[i] = msg.ID
	}

	var failures []error
	for _, batch := range chunkKeys(ids) {
		placeholders := strings.Repeat("?,", len(batch))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]interface{}, 0, len(batch)+1)
		args = append(args, conversationID)
		for _, id := range batch {
			args = append(args, id)
		}
		query := fmt.Sprintf("DELETE FROM messages WHERE conversation_id = ? AND id IN (%s)", placeholders)
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			failures = append(failures, fmt.Errorf("delete batch of %d messages: %w", len(batch), err))
		}
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE owner_id = ? AND id = ?", ownerID, conversationID); err != nil {
		failures = append(failures, fmt.Errorf("delete conversation record: %w", err))
	}

	return errors.Join(failures...)
}

func (s *sqliteStore) getMessage(ctx context.Context, conversationID, messageID string) (*model.Message, error) {
	query := "SELECT id, role, parts, annotation, created_at FROM messages WHERE conversation_id = ? AND id = ?"
	row := s.db.QueryRowContext(ctx, query, conversationID, messageID)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return msg, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row scanner) (*model.Conversation, error) {
	var conv model.Conversation
	var metadata sql.NullString
	if err := row.Scan(&conv.ID, &conv.OwnerID, &conv.Title, &metadata, &conv.CreatedAt); err != nil {
		return nil, err
	}
	if metadata.Valid {
		var meta model.ConversationMetadata
		if err := json.Unmarshal([]byte(metadata.String), &meta); err != nil {
			return nil, fmt.Errorf("could not unmarshal conversation metadata: %w", err)
		}
		conv.Metadata = &meta
	}
	return &conv, nil
}

func scanMessage(row scanner) (*model.Message, error) {
	var msg model.Message
	var role string
	var parts string
	var annotation sql.NullString
	if err := row.Scan(&msg.ID, &role, &parts, &annotation, &msg.CreatedAt); err != nil {
		return nil, err
	}
	msg.Role = model.Role(role)
	if err := json.Unmarshal([]byte(parts), &msg.Parts); err != nil {
		return nil, fmt.Errorf("could not unmarshal message parts: %w", err)
	}
	if annotation.Valid {
		var ann model.Annotation
		if err := json.Unmarshal([]byte(annotation.String), &ann); err != nil {
			return nil, fmt.Errorf("could not unmarshal message annotation: %w", err)
		}
		msg.Annotation = &ann
	}
	return &msg, nil
}
