// Package limiter throttles repeated failed authentication attempts on the
// live connection endpoints.
package limiter

import (
	"context"
	"time"
)

// Limiter controls live-connect auth attempts and temporary lockouts keyed by
// (endpoint, client IP).
type Limiter interface {
	// Allow reports whether a connect attempt is currently allowed and an
	// optional retry-after.
	Allow(ctx context.Context, endpoint string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successfully authenticated connect.
	Success(ctx context.Context, endpoint string, ipHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, endpoint string, ipHash []byte) (bool, time.Duration, error)
}
