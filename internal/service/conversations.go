// Package service contains application services for conversations and notifications.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/forumhq/comms/internal/crypto"
	"github.com/forumhq/comms/internal/errs"
	"github.com/forumhq/comms/internal/model"
	"github.com/forumhq/comms/internal/repository"
)

// MessageSink receives an event after a message has been durably appended.
// The sink must not block the appending caller for long; delivery side
// effects are the sink's concern and never roll back the persisted message.
type MessageSink interface {
	MessageAppended(ev model.MessageEvent)
}

// ConversationService defines operations over encrypted conversations.
type ConversationService interface {
	// Create persists a new conversation. The initiator is always the first
	// participant.
	Create(ctx context.Context, initiator model.Identity, others []model.Identity) (*model.Conversation, error)
	// Append encrypts and stores a message, then emits a message event. The
	// returned message carries the plaintext body for immediate use.
	Append(ctx context.Context, conversationID uuid.UUID, sender model.Identity, plaintext string) (model.Message, error)
	// ListMessages returns all message bodies decrypted, in append order.
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]string, error)
}

type ConversationServiceImpl struct {
	repo   repository.ConversationRepository
	cipher *crypto.Cipher
	sink   MessageSink
}

// NewConversationService constructs ConversationService with required dependencies.
func NewConversationService(repo repository.ConversationRepository, cipher *crypto.Cipher, sink MessageSink) *ConversationServiceImpl {
	return &ConversationServiceImpl{repo: repo, cipher: cipher, sink: sink}
}

// Create validates the participant set and persists the conversation.
func (s *ConversationServiceImpl) Create(ctx context.Context, initiator model.Identity, others []model.Identity) (*model.Conversation, error) {
	participants := make([]model.Identity, 0, 1+len(others))
	if initiator.ID != "" {
		participants = append(participants, initiator)
	}
	for i, p := range others {
		if p.ID == "" {
			return nil, fmt.Errorf("validation: participant[%d] empty id", i)
		}
		participants = append(participants, p)
	}
	if len(participants) == 0 {
		return nil, errs.ErrEmptyParticipants
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	conv := &model.Conversation{
		ID:           id,
		CreatedAt:    time.Now().UTC(),
		Participants: participants,
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Append encrypts plaintext, appends it under the conversation's row lock and
// emits a MessageEvent carrying the plaintext copy. The event is emitted only
// after the write committed; sink failures cannot undo it.
func (s *ConversationServiceImpl) Append(ctx context.Context, conversationID uuid.UUID, sender model.Identity, plaintext string) (model.Message, error) {
	if plaintext == "" {
		return model.Message{}, errors.New("validation: empty message")
	}
	if sender.ID == "" {
		return model.Message{}, errors.New("validation: empty sender")
	}

	conv, err := s.repo.Get(ctx, conversationID)
	if err != nil {
		return model.Message{}, err
	}

	ciphertext, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return model.Message{}, fmt.Errorf("encrypt message: %w", err)
	}

	now := time.Now().UTC()
	stored := model.Message{Sender: sender, Body: ciphertext, CreatedAt: now}
	if err := s.repo.AppendMessage(ctx, conversationID, stored); err != nil {
		return model.Message{}, err
	}

	msg := model.Message{Sender: sender, Body: plaintext, CreatedAt: now}
	if s.sink != nil {
		s.sink.MessageAppended(model.MessageEvent{
			ConversationID: conversationID,
			Participants:   append([]model.Identity(nil), conv.Participants...),
			Message:        msg,
		})
	}
	return msg, nil
}

// ListMessages decrypts every stored message in append order. One corrupt
// record fails the whole read; callers needing partial results retry
// per-message.
func (s *ConversationServiceImpl) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]string, error) {
	msgs, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(msgs))
	for i, m := range msgs {
		plain, err := s.cipher.Decrypt(m.Body)
		if err != nil {
			return nil, fmt.Errorf("message[%d]: %w", i, err)
		}
		out = append(out, plain)
	}
	return out, nil
}
