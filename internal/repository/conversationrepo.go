// Package repository declares storage interfaces implemented by postgres.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/forumhq/comms/internal/model"
)

// ConversationRepository provides durable conversation and message storage.
// Message bodies cross this boundary as ciphertext only.
type ConversationRepository interface {
	// Create persists a new conversation with its participant list.
	Create(ctx context.Context, conv *model.Conversation) error

	// Get returns a conversation with participants (messages not loaded).
	// Returns errs.ErrConversationNotFound for unknown ids.
	Get(ctx context.Context, id uuid.UUID) (*model.Conversation, error)

	// AppendMessage appends msg to the conversation's message sequence.
	// Appends to the same conversation are serialized; concurrent appends to
	// different conversations do not contend.
	AppendMessage(ctx context.Context, conversationID uuid.UUID, msg model.Message) error

	// ListMessages returns all messages in append order, bodies encrypted.
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]model.Message, error)
}
