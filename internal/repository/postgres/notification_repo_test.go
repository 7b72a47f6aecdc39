package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/forumhq/comms/internal/errs"
	"github.com/forumhq/comms/internal/model"
)

func TestNotificationRepo_Create_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewNotificationRepo(db)

	ctx := context.Background()
	now := time.Now()
	n := &model.Notification{
		ID:        uuid.Must(uuid.NewV4()),
		Recipient: model.Identity{ID: "2", Username: "bob"},
		Message: model.Message{
			Sender:    model.Identity{ID: "1", Username: "alice"},
			Body:      "ciphertext",
			CreatedAt: now,
		},
		IsRead:    false,
		CreatedAt: now,
	}

	mock.ExpectExec(`INSERT INTO notifications`).
		WithArgs(n.ID, "2", "bob", "1", "alice", "ciphertext", now, false, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, r.Create(ctx, n))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepo_MarkRead(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewNotificationRepo(db)

	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	// First and repeated mark both hit the row; the update is idempotent.
	mock.ExpectExec(`UPDATE notifications SET is_read=true WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.MarkRead(ctx, id))

	mock.ExpectExec(`UPDATE notifications SET is_read=true WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.MarkRead(ctx, id))

	// Unknown id
	mock.ExpectExec(`UPDATE notifications SET is_read=true WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.MarkRead(ctx, id), errs.ErrNotFound)
}

func TestNotificationRepo_ListForRecipient_NewestFirst(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewNotificationRepo(db)

	ctx := context.Background()
	newer := uuid.Must(uuid.NewV4())
	older := uuid.Must(uuid.NewV4())
	now := time.Now()

	mock.ExpectQuery(`SELECT id, recipient_id, recipient_username, sender_id, sender_username, message_enc, message_created_at, is_read, created_at FROM notifications WHERE recipient_id=\$1 ORDER BY created_at DESC, id DESC`).
		WithArgs("2").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "recipient_id", "recipient_username", "sender_id", "sender_username",
			"message_enc", "message_created_at", "is_read", "created_at",
		}).
			AddRow(newer, "2", "bob", "1", "alice", "ct-2", now, false, now).
			AddRow(older, "2", "bob", "1", "alice", "ct-1", now.Add(-time.Minute), true, now.Add(-time.Minute)))

	ns, err := r.ListForRecipient(ctx, "2")
	require.NoError(t, err)
	require.Len(t, ns, 2)
	require.Equal(t, newer, ns[0].ID)
	require.True(t, ns[1].IsRead)
}
