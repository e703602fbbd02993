package cache

import (
	"context"
	"time"

	"github.com/decred/dcrd/container/lru"
)

type entry struct {
	value   []byte
	expires time.Time
}

// Memory is an in-process LRU Store.
type Memory struct {
	m   *lru.Map[string, entry]
	now func() time.Time
}

// NewMemory returns a Memory holding at most limit entries.
func NewMemory(limit uint32) *Memory {
	return &Memory{m: lru.NewMap[string, entry](limit), now: time.Now}
}

// Get implements Store.
func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := c.m.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expires) {
		c.m.Delete(key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

// Set implements Store. A non-positive ttl removes the key.
func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		c.m.Delete(key)
		return nil
	}
	c.m.Put(key, entry{value: append([]byte(nil), value...), expires: c.now().Add(ttl)})
	return nil
}
