// Package limiter guards TAN retransmissions: once a TAN was sent for a
// challenge, another one may only be requested after the backend's
// earliest_retransmission.
package limiter

import (
	"context"
	"time"
)

// Limiter tracks the earliest retransmission time per challenge.
type Limiter interface {
	// Allow reports whether a TAN may be requested now and, if not, how long to wait.
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
	// Record stores the earliest time the next TAN may be requested.
	Record(ctx context.Context, key string, earliest time.Time) error
	// Reset forgets the key, e.g. after the challenge was confirmed.
	Reset(ctx context.Context, key string) error
}

// Key identifies a challenge of an instance.
func Key(instance, challengeID string) string {
	return instance + "/" + challengeID
}
