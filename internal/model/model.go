// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role classifies the actor behind an identity. Permission checks switch on
// it exhaustively instead of probing for profile attributes.
type Role int

const (
	RoleUnassigned Role = iota
	RoleInvestor
	RoleStartup
)

// String returns the lowercase wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleInvestor:
		return "investor"
	case RoleStartup:
		return "startup"
	default:
		return "unassigned"
	}
}

// Identity is the minimal authenticated actor reference carried across the
// core. It is a value snapshot: copies embedded in messages and participants
// keep the username as it was at write time.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"-"`
}

// Message is one entry of a conversation. Body holds plaintext on the way in
// and out of the service layer; the persisted copy is ciphertext.
type Message struct {
	Sender    Identity  `json:"sender"`
	Body      string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is a durable participant set with an append-only ordered
// message list. Participants is non-empty from creation on; the initiator is
// always first.
type Conversation struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	Participants []Identity
	Messages     []Message
}

// HasParticipant reports whether id belongs to the participant set.
func (c *Conversation) HasParticipant(id string) bool {
	for _, p := range c.Participants {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Notification is a per-recipient durable record derived from a message or a
// profile event. The embedded message is a plaintext snapshot taken at
// creation time, not a live reference into the conversation.
type Notification struct {
	ID        uuid.UUID
	Recipient Identity
	Message   Message
	IsRead    bool
	CreatedAt time.Time
}

// MessageEvent announces a durably appended message to the notification
// pipeline. It carries value copies only, so consumers never race the store.
type MessageEvent struct {
	ConversationID uuid.UUID
	Participants   []Identity
	Message        Message
}

// Recipients returns the participants other than the message sender.
func (e MessageEvent) Recipients() []Identity {
	out := make([]Identity, 0, len(e.Participants))
	for _, p := range e.Participants {
		if p.ID != e.Message.Sender.ID {
			out = append(out, p)
		}
	}
	return out
}
