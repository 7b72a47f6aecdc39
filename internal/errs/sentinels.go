// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConversationNotFound indicates the conversation id does not resolve.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrEmptyParticipants indicates a conversation was created with no participants.
	ErrEmptyParticipants = errors.New("empty participants")

	// ErrDecrypt indicates stored ciphertext is malformed or tampered.
	ErrDecrypt = errors.New("decryption failed")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")
)
