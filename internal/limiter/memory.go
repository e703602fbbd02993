package limiter

import (
	"context"
	"time"

	"github.com/decred/dcrd/container/lru"
)

// Memory is an in-process Limiter bounded to a fixed number of challenges.
type Memory struct {
	until *lru.Map[string, time.Time]
	now   func() time.Time
}

// NewMemory returns a Memory limiter remembering up to limit challenges.
func NewMemory(limit uint32) *Memory {
	return &Memory{until: lru.NewMap[string, time.Time](limit), now: time.Now}
}

// WithClock replaces the time source. For tests.
func (l *Memory) WithClock(now func() time.Time) *Memory {
	l.now = now
	return l
}

// Allow implements Limiter.
func (l *Memory) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	until, ok := l.until.Peek(key)
	if !ok {
		return true, 0, nil
	}
	if wait := until.Sub(l.now()); wait > 0 {
		return false, wait, nil
	}
	l.until.Delete(key)
	return true, 0, nil
}

// Record implements Limiter.
func (l *Memory) Record(_ context.Context, key string, earliest time.Time) error {
	l.until.Put(key, earliest)
	return nil
}

// Reset implements Limiter.
func (l *Memory) Reset(_ context.Context, key string) error {
	l.until.Delete(key)
	return nil
}
