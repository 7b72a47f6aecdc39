// Package bus provides named-group fan-out of events to live connections.
package bus

import "context"

// Member is one live connection handle registered in a group. Deliver must be
// safe to call concurrently with the member's own processing and should fail
// fast when the underlying connection is gone.
type Member interface {
	// ID uniquely identifies the connection within the process.
	ID() string
	// Deliver pushes one serialized event to the connection.
	Deliver(event []byte) error
}

// Registry decouples event producers from live connection sessions via named
// groups. Publish is best-effort, at-most-once per live member: delivery
// failures are logged and suppressed, never surfaced to the producer. Durable
// state stays in the stores; clients reconcile by pulling after reconnect.
type Registry interface {
	// Join adds the member to the group. Joining twice is a no-op.
	Join(ctx context.Context, group string, m Member)
	// Leave removes the member from the group. No-op if not a member.
	Leave(ctx context.Context, group string, m Member)
	// Publish delivers event to every member of group at time of call.
	Publish(ctx context.Context, group string, event []byte)
}

// ConversationGroup names the fan-out group of one conversation.
func ConversationGroup(conversationID string) string {
	return "conversation:" + conversationID
}

// IdentityGroup names the personal fan-out group of one identity.
func IdentityGroup(identityID string) string {
	return "identity:" + identityID
}
