package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/forumhq/comms/internal/errs"
	"github.com/forumhq/comms/internal/model"
)

// NotificationRepo implements NotificationRepository using PostgreSQL.
type NotificationRepo struct{ db *DB }

// NewNotificationRepo constructs a notification repository.
func NewNotificationRepo(db *DB) *NotificationRepo { return &NotificationRepo{db: db} }

// Create inserts an unread notification row. The message snapshot body is
// already encrypted by the service layer.
func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	const q = `
INSERT INTO notifications
  (id, recipient_id, recipient_username, sender_id, sender_username, message_enc, message_created_at, is_read, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.Pool.Exec(ctx, q,
		n.ID,
		n.Recipient.ID, n.Recipient.Username,
		n.Message.Sender.ID, n.Message.Sender.Username,
		n.Message.Body, n.Message.CreatedAt,
		n.IsRead, n.CreatedAt,
	)
	return err
}

// MarkRead sets is_read. Marking an already-read notification is a no-op
// success; unknown ids fail with ErrNotFound.
func (r *NotificationRepo) MarkRead(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE notifications SET is_read=true WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ListForRecipient returns notifications newest first, stable on id.
func (r *NotificationRepo) ListForRecipient(ctx context.Context, recipientID string) ([]model.Notification, error) {
	const q = `
SELECT id, recipient_id, recipient_username, sender_id, sender_username, message_enc, message_created_at, is_read, created_at
FROM notifications
WHERE recipient_id=$1
ORDER BY created_at DESC, id DESC`
	rows, err := r.db.Pool.Query(ctx, q, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(
			&n.ID,
			&n.Recipient.ID, &n.Recipient.Username,
			&n.Message.Sender.ID, &n.Message.Sender.Username,
			&n.Message.Body, &n.Message.CreatedAt,
			&n.IsRead, &n.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
