package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/forumhq/comms/internal/model"
)

// NotificationRepository provides durable per-recipient notification storage.
type NotificationRepository interface {
	// Create persists a new unread notification.
	Create(ctx context.Context, n *model.Notification) error

	// MarkRead sets is_read=true. Idempotent; errs.ErrNotFound for unknown ids.
	MarkRead(ctx context.Context, id uuid.UUID) error

	// ListForRecipient returns the recipient's notifications, most recent first.
	ListForRecipient(ctx context.Context, recipientID string) ([]model.Notification, error)
}
