package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/forumhq/comms/internal/crypto"
	"github.com/forumhq/comms/internal/model"
	"github.com/forumhq/comms/internal/repository"
)

// NotificationService defines operations over per-recipient notifications.
type NotificationService interface {
	// Create stores an unread notification holding a snapshot of msg.
	Create(ctx context.Context, recipient model.Identity, msg model.Message) (*model.Notification, error)
	// MarkRead sets is_read=true. Idempotent; errs.ErrNotFound on unknown id.
	MarkRead(ctx context.Context, id uuid.UUID) error
	// ListForRecipient returns the recipient's notifications newest first,
	// snapshot bodies decrypted.
	ListForRecipient(ctx context.Context, recipientID string) ([]model.Notification, error)
}

type NotificationServiceImpl struct {
	repo   repository.NotificationRepository
	cipher *crypto.Cipher
}

// NewNotificationService constructs NotificationService.
func NewNotificationService(repo repository.NotificationRepository, cipher *crypto.Cipher) *NotificationServiceImpl {
	return &NotificationServiceImpl{repo: repo, cipher: cipher}
}

// Create snapshots msg by value, encrypts the body for storage and persists
// the notification. The returned copy keeps the plaintext body.
func (s *NotificationServiceImpl) Create(ctx context.Context, recipient model.Identity, msg model.Message) (*model.Notification, error) {
	if recipient.ID == "" {
		return nil, fmt.Errorf("validation: empty recipient")
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	ciphertext, err := s.cipher.Encrypt(msg.Body)
	if err != nil {
		return nil, fmt.Errorf("encrypt snapshot: %w", err)
	}

	n := &model.Notification{
		ID:        id,
		Recipient: recipient,
		Message:   model.Message{Sender: msg.Sender, Body: ciphertext, CreatedAt: msg.CreatedAt},
		IsRead:    false,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	out := *n
	out.Message.Body = msg.Body
	return &out, nil
}

// MarkRead delegates to the repository; repeating the call is a no-op.
func (s *NotificationServiceImpl) MarkRead(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, id)
}

// ListForRecipient returns notifications newest first with decrypted
// snapshots. As with conversation reads, one corrupt record fails the call.
func (s *NotificationServiceImpl) ListForRecipient(ctx context.Context, recipientID string) ([]model.Notification, error) {
	ns, err := s.repo.ListForRecipient(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	for i := range ns {
		plain, err := s.cipher.Decrypt(ns[i].Message.Body)
		if err != nil {
			return nil, fmt.Errorf("notification[%d]: %w", i, err)
		}
		ns[i].Message.Body = plain
	}
	return ns, nil
}
