package interfaces

import (
	"context"

	"eva-chat/backend/internal/model"
	"eva-chat/backend/internal/service"
)

// This file defines the interfaces for our core services.
// Depending on these interfaces, instead of concrete implementations, allows
// for decoupling (e.g. API layer from Service layer) and easier testing via
// mocking.

// ConversationService defines the contract for conversation business logic.
type ConversationService interface {
	ListConversations(ctx context.Context, ownerID string) ([]*model.Conversation, error)
	GetFullConversation(ctx context.Context, ownerID, conversationID string) (*model.FullConversation, error)
	DeleteConversation(ctx context.Context, ownerID, conversationID string) error
	ListMessages(ctx context.Context, conversationID string, keysOnly bool) ([]model.Message, error)
	AppendClientMessage(ctx context.Context, conversationID string, msg *model.Message) (*model.Message, error)
	UpdateAnnotation(ctx context.Context, conversationID, messageID string, partIdx int, updates model.PartMetadata) error
	HandleTurn(ctx context.Context, req *service.TurnRequest, stream chan<- model.StreamEvent)
}
