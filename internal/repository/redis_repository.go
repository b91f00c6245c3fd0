package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"eva-chat/backend/internal/model"
)

type redisStore struct {
	rdb *redis.Client
}

// NewRedisStore returns a Store backed by Redis. Conversations live in plain
// keys under the owner's sorted set; messages live in per-message keys plus a
// per-conversation sorted set whose members are the creation-ordered message
// ids, so a ZRANGE returns creation order (all scores are zero, ties sort
// lexically).
func NewRedisStore(rdb *redis.Client) Store {
	return &redisStore{rdb: rdb}
}

// Key generation helpers.
func (s *redisStore) conversationKey(ownerID, conversationID string) string {
	return fmt.Sprintf("user:%s:conversation:%s", ownerID, conversationID)
}
func (s *redisStore) ownerConversationsKey(ownerID string) string {
	return fmt.Sprintf("user:%s:conversations", ownerID)
}
func (s *redisStore) messagesKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:messages", conversationID)
}
func (s *redisStore) messageKey(conversationID, messageID string) string {
	return fmt.Sprintf("conversation:%s:message:%s", conversationID, messageID)
}

func (s *redisStore) CreateConversation(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	raw, err := json.Marshal(conv)
	if err != nil {
		return nil, fmt.Errorf("could not marshal conversation: %w", err)
	}

	// SetNX makes the insert idempotent: a second create with the same
	// identity leaves the stored record untouched.
	created, err := s.rdb.SetNX(ctx, s.conversationKey(conv.OwnerID, conv.ID), raw, 0).Result()
	if err != nil {
		return nil, err
	}
	if !created {
		return s.GetConversation(ctx, conv.OwnerID, conv.ID)
	}

	err = s.rdb.ZAdd(ctx, s.ownerConversationsKey(conv.OwnerID), redis.Z{
		Score:  float64(-conv.CreatedAt.UnixNano()),
		Member: conv.ID,
	}).Err()
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *redisStore) GetConversation(ctx context.Context, ownerID, conversationID string) (*model.Conversation, error) {
	raw, err := s.rdb.Get(ctx, s.conversationKey(ownerID, conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var conv model.Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, fmt.Errorf("could not unmarshal conversation: %w", err)
	}
	return &conv, nil
}

func (s *redisStore) ListConversations(ctx context.Context, ownerID string) ([]*model.Conversation, error) {
	ids, err := s.rdb.ZRange(ctx, s.ownerConversationsKey(ownerID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	conversations := make([]*model.Conversation, 0, len(ids))
	for _, id := range ids {
		conv, err := s.GetConversation(ctx, ownerID, id)
		if err == nil && conv != nil {
			conversations = append(conversations, conv)
		}
	}
	return conversations, nil
}

func (s *redisStore) AppendMessage(ctx context.Context, conversationID string, msg *model.Message) (*model.Message, error) {
	stored := *msg
	if stored.Annotation == nil {
		stored.Annotation = model.NewAnnotation(time.Now(), nil)
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = model.MessageTime(stored.ID)
	}

	raw, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("could not marshal message: %w", err)
	}

	created, err := s.rdb.SetNX(ctx, s.messageKey(conversationID, msg.ID), raw, 0).Result()
	if err != nil {
		return nil, err
	}
	if !created {
		// Duplicate identity: return the record that won the race.
		return s.getMessage(ctx, conversationID, msg.ID)
	}

	err = s.rdb.ZAdd(ctx, s.messagesKey(conversationID), redis.Z{Score: 0, Member: msg.ID}).Err()
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// annotationUpdateRetries bounds the optimistic-transaction retry loop in
// UpdateAnnotationField.
const annotationUpdateRetries = 5

func (s *redisStore) UpdateAnnotationField(ctx context.Context, conversationID, messageID string, partIdx int, updates model.PartMetadata) error {
	key := s.messageKey(conversationID, messageID)

	// The read-merge-write runs under WATCH so concurrent updates to
	// different parts of the same message both land; a conflicting write
	// aborts the EXEC and the merge is retried against the fresh document.
	// Only a same-field race remains last-writer-wins, an accepted limitation.
	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}
		var msg model.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return fmt.Errorf("could not unmarshal message: %w", err)
		}
		if msg.Annotation == nil {
			return ErrNotFound
		}

		msg.Annotation = model.MergePartField(msg.Annotation, partIdx, updates)
		merged, err := json.Marshal(&msg)
		if err != nil {
			return fmt.Errorf("could not marshal message: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, merged, 0)
			return nil
		})
		return err
	}

	for i := 0; i < annotationUpdateRetries; i++ {
		err := s.rdb.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("annotation update for message %s kept conflicting: %w", messageID, redis.TxFailedErr)
}

func (s *redisStore) ListMessages(ctx context.Context, conversationID string, opts ListOptions) ([]model.Message, error) {
	ids, err := s.rdb.ZRange(ctx, s.messagesKey(conversationID), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []model.Message{}, nil
		}
		return nil, err
	}

	if opts.KeysOnly {
		messages := make([]model.Message, 0, len(ids))
		for _, id := range ids {
			messages = append(messages, model.Message{ID: id})
		}
		return messages, nil
	}

	messages := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		msg, err := s.getMessage(ctx, conversationID, id)
		if err != nil {
			continue
		}
		messages = append(messages, *msg)
	}
	return messages, nil
}

func (s *redisStore) DeleteConversation(ctx context.Context, ownerID, conversationID string) error {
	ids, err := s.rdb.ZRange(ctx, s.messagesKey(conversationID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("could not list message ids for deletion: %w", err)
	}

	var failures []error
	for _, batch := range chunkKeys(ids) {
		keys := make([]string, len(batch))
		for i, id := range batch {
			keys[i] = s.messageKey(conversationID, id)
		}
		if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
			failures = append(failures, fmt.Errorf("delete batch of %d messages: %w", len(batch), err))
		}
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, s.messagesKey(conversationID))
	pipe.Del(ctx, s.conversationKey(ownerID, conversationID))
	pipe.ZRem(ctx, s.ownerConversationsKey(ownerID), conversationID)
	if _, err := pipe.Exec(ctx); err != nil {
		failures = append(failures, fmt.Errorf("delete conversation record: %w", err))
	}

	return errors.Join(failures...)
}

func (s *redisStore) getMessage(ctx context.Context, conversationID, messageID string) (*model.Message, error) {
	raw, err := s.rdb.Get(ctx, s.messageKey(conversationID, messageID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var msg model.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("could not unmarshal message: %w", err)
	}
	return &msg, nil
}
