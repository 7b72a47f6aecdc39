package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/forumhq/comms/internal/errs"
	"github.com/forumhq/comms/internal/model"
)

// ConversationRepo implements ConversationRepository using PostgreSQL.
type ConversationRepo struct{ db *DB }

// NewConversationRepo constructs a conversation repository.
func NewConversationRepo(db *DB) *ConversationRepo { return &ConversationRepo{db: db} }

// Create inserts the conversation row and its participants in one transaction.
func (r *ConversationRepo) Create(ctx context.Context, conv *model.Conversation) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const ins = `INSERT INTO conversations (id, created_at) VALUES ($1, $2)`
	if _, err = tx.Exec(ctx, ins, conv.ID, conv.CreatedAt); err != nil {
		return err
	}

	const insPart = `
INSERT INTO participants (conversation_id, pos, user_id, username, role)
VALUES ($1, $2, $3, $4, $5)`
	for i, p := range conv.Participants {
		if _, err = tx.Exec(ctx, insPart, conv.ID, i, p.ID, p.Username, p.Role.String()); err != nil {
			return err
		}
	}
	return nil
}

// Get selects a conversation and its ordered participant list.
func (r *ConversationRepo) Get(ctx context.Context, id uuid.UUID) (*model.Conversation, error) {
	const sel = `SELECT id, created_at FROM conversations WHERE id=$1`
	var conv model.Conversation
	if err := r.db.Pool.QueryRow(ctx, sel, id).Scan(&conv.ID, &conv.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrConversationNotFound
		}
		return nil, err
	}

	const selPart = `
SELECT user_id, username, role
FROM participants
WHERE conversation_id=$1
ORDER BY pos ASC`
	rows, err := r.db.Pool.Query(ctx, selPart, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p    model.Identity
			role string
		)
		if err := rows.Scan(&p.ID, &p.Username, &role); err != nil {
			return nil, err
		}
		p.Role = roleFromString(role)
		conv.Participants = append(conv.Participants, p)
	}
	return &conv, rows.Err()
}

// AppendMessage inserts the next message of the conversation. The row lock on
// the conversation serializes appends to one conversation; different
// conversations do not contend.
func (r *ConversationRepo) AppendMessage(ctx context.Context, conversationID uuid.UUID, msg model.Message) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const lock = `SELECT id FROM conversations WHERE id=$1 FOR UPDATE`
	var locked uuid.UUID
	if err = tx.QueryRow(ctx, lock, conversationID).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrConversationNotFound
		}
		return err
	}

	const ins = `
INSERT INTO messages (conversation_id, seq, sender_id, sender_username, body_enc, created_at)
SELECT $1, COALESCE(MAX(seq),0)+1, $2, $3, $4, $5 FROM messages WHERE conversation_id=$1`
	_, err = tx.Exec(ctx, ins, conversationID, msg.Sender.ID, msg.Sender.Username, msg.Body, msg.CreatedAt)
	return err
}

// ListMessages returns all messages in append order with encrypted bodies.
func (r *ConversationRepo) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]model.Message, error) {
	const sel = `SELECT id FROM conversations WHERE id=$1`
	var id uuid.UUID
	if err := r.db.Pool.QueryRow(ctx, sel, conversationID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrConversationNotFound
		}
		return nil, err
	}

	const q = `
SELECT sender_id, sender_username, body_enc, created_at
FROM messages
WHERE conversation_id=$1
ORDER BY seq ASC`
	rows, err := r.db.Pool.Query(ctx, q, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.Sender.ID, &m.Sender.Username, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// roleFromString maps the stored role name back to the enum.
func roleFromString(s string) model.Role {
	switch s {
	case "investor":
		return model.RoleInvestor
	case "startup":
		return model.RoleStartup
	default:
		return model.RoleUnassigned
	}
}
