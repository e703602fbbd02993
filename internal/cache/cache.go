// Package cache is the pass-through response cache consulted by the transport.
// Entries are keyed by request identity and hold raw response bodies; decoding
// always happens after the lookup.
package cache

import (
	"context"
	"time"
)

// Store is a key/value cache with per-entry expiry.
type Store interface {
	// Get returns the cached value; ok is false on a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Nop never stores anything.
type Nop struct{}

// Get implements Store.
func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

// Set implements Store.
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
