package repository

import (
	"context"

	"eva-chat/backend/internal/model"
)

// ListOptions tunes a message listing. KeysOnly returns only identity fields,
// which deletion planning uses to avoid transferring full payloads.
type ListOptions struct {
	KeysOnly bool
}

// deleteBatchSize caps how many message records one deletion batch may touch.
// The underlying store may cap batch writes (25 items for DynamoDB-style
// stores); deletion proceeds batch-by-batch until exhausted.
const deleteBatchSize = 25

// Store defines the interface for conversation and message persistence.
// This interface makes it easy to switch database implementations.
//
// Write semantics every implementation must honor:
//   - CreateConversation and AppendMessage are idempotent: a duplicate
//     identity is a no-op that returns the already-stored record, not an
//     error. The same logical message can be submitted twice under
//     client-retry or duplicate-save races.
//   - UpdateAnnotationField performs a targeted merge of one part's metadata
//     fields, leaving all other parts and fields untouched, and returns
//     ErrNotFound when the message has not been persisted.
//   - ListMessages returns messages in creation order, ascending.
type Store interface {
	CreateConversation(ctx context.Context, conv *model.Conversation) (*model.Conversation, error)
	GetConversation(ctx context.Context, ownerID, conversationID string) (*model.Conversation, error)
	ListConversations(ctx context.Context, ownerID string) ([]*model.Conversation, error)
	DeleteConversation(ctx context.Context, ownerID, conversationID string) error

	AppendMessage(ctx context.Context, conversationID string, msg *model.Message) (*model.Message, error)
	UpdateAnnotationField(ctx context.Context, conversationID, messageID string, partIdx int, updates model.PartMetadata) error
	ListMessages(ctx context.Context, conversationID string, opts ListOptions) ([]model.Message, error)
}

// chunkKeys splits message ids into deletion batches no larger than the
// store's batch cap.
func chunkKeys(ids []string) [][]string {
	if len(ids) == 0 {
		return nil
	}
	batches := make([][]string, 0, (len(ids)+deleteBatchSize-1)/deleteBatchSize)
	for len(ids) > 0 {
		n := deleteBatchSize
		if len(ids) < n {
			n = len(ids)
		}
		batches = append(batches, ids[:n])
		ids = ids[n:]
	}
	return batches
}
