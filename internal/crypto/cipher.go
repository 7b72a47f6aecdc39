// Package crypto implements at-rest encryption of message bodies.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/forumhq/comms/internal/errs"
)

// KeyLen is the required symmetric key length in bytes.
const KeyLen = chacha20poly1305.KeySize

// Cipher encrypts and decrypts message text with a single process-wide key.
// Ciphertext layout: base64(nonce || AEAD seal). The transform is pure; the
// key is loaded once at startup and never rotated in-process.
type Cipher struct {
	key []byte
}

// New constructs a Cipher from a raw 32-byte key.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("cipher: key must be %d bytes, got %d", KeyLen, len(key))
	}
	return &Cipher{key: append([]byte(nil), key...)}, nil
}

// NewFromBase64 constructs a Cipher from a base64-encoded key, as supplied
// via configuration.
func NewFromBase64(encoded string) (*Cipher, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("cipher: bad key encoding: %w", err)
	}
	return New(key)
}

// Encrypt seals plaintext with XChaCha20-Poly1305 under a random nonce and
// returns base64 ciphertext.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, []byte(plaintext), nil)...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens base64 ciphertext produced by Encrypt. Malformed or tampered
// input fails with errs.ErrDecrypt; callers must not substitute empty text.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrDecrypt, err)
	}
	if len(raw) < chacha20poly1305.NonceSizeX {
		return "", fmt.Errorf("%w: ciphertext too short", errs.ErrDecrypt)
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := raw[:chacha20poly1305.NonceSizeX]
	ct := raw[chacha20poly1305.NonceSizeX:]
	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrDecrypt, err)
	}
	return string(plain), nil
}
