// Package auth verifies the opaque identity tokens issued by the user service.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/forumhq/comms/internal/errs"
	"github.com/forumhq/comms/internal/model"
)

// Claims is the token payload: registered claims plus the display name and
// role of the authenticated identity.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 identity tokens against a shared signing key.
type Verifier struct {
	signKey []byte
}

// NewVerifier constructs a Verifier.
func NewVerifier(signKey []byte) *Verifier {
	return &Verifier{signKey: signKey}
}

// Verify parses and validates a signed token, returning the authenticated
// identity. Any parse, signature or expiry problem maps to ErrUnauthorized;
// the caller never falls back to an anonymous identity.
func (v *Verifier) Verify(token string) (model.Identity, error) {
	if token == "" {
		return model.Identity{}, errs.ErrUnauthorized
	}
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.signKey, nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return model.Identity{}, errs.ErrUnauthorized
	}
	return model.Identity{
		ID:       claims.Subject,
		Username: claims.Username,
		Role:     roleFromClaim(claims.Role),
	}, nil
}

// Issue creates a signed HS256 token for the given identity. Used by the user
// service boundary and by tests.
func Issue(signKey []byte, id model.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: id.Username,
		Role:     id.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(signKey)
}

func roleFromClaim(s string) model.Role {
	switch s {
	case "investor":
		return model.RoleInvestor
	case "startup":
		return model.RoleStartup
	default:
		return model.RoleUnassigned
	}
}
