package crypto

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/forumhq/comms/internal/errs"
)

func newCipher(t *testing.T) *Cipher {
	t.Helper()
	key := make([]byte, KeyLen)
	for i := range key {
		key[i] = byte(i)
	}
	c, err := New(key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_BadKeyLength(t *testing.T) {
	if _, err := New([]byte("short")); err == nil {
		t.Fatalf("want error on short key")
	}
}

func TestCipher_RoundTrip(t *testing.T) {
	t.Parallel()
	c := newCipher(t)

	for _, s := range []string{"h", "Hello!", "привет", "a longer message with spaces and 🚀"} {
		ct, err := c.Encrypt(s)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", s, err)
		}
		if ct == s {
			t.Fatalf("ciphertext equals plaintext")
		}
		got, err := c.Decrypt(ct)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if got != s {
			t.Fatalf("round trip: want %q, got %q", s, got)
		}
	}
}

func TestCipher_NonDeterministicNonce(t *testing.T) {
	c := newCipher(t)
	a, err := c.Encrypt("same text")
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Encrypt("same text")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatalf("two encryptions produced identical ciphertext")
	}
}

func TestCipher_Decrypt_Tampered(t *testing.T) {
	c := newCipher(t)
	ct, err := c.Encrypt("Hello!")
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := base64.StdEncoding.DecodeString(ct)
	raw[len(raw)-1] ^= 0xff
	if _, err := c.Decrypt(base64.StdEncoding.EncodeToString(raw)); !errors.Is(err, errs.ErrDecrypt) {
		t.Fatalf("want ErrDecrypt, got %v", err)
	}
}

func TestCipher_Decrypt_Malformed(t *testing.T) {
	c := newCipher(t)
	for _, bad := range []string{"", "not-base64!!!", base64.StdEncoding.EncodeToString([]byte("tiny"))} {
		if _, err := c.Decrypt(bad); !errors.Is(err, errs.ErrDecrypt) {
			t.Fatalf("Decrypt(%q): want ErrDecrypt, got %v", bad, err)
		}
	}
}
