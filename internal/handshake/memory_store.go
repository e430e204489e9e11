package handshake

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore is the single-process fallback used when no Redis address is
// configured.
type MemoryStore struct {
	mu sync.Mutex
	c  *gocache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: gocache.New(DefaultTTL, time.Minute)}
}

func (m *MemoryStore) Save(_ context.Context, state string, entry Entry, ttl time.Duration) error {
	if state == "" || entry.Provider == "" {
		return fmt.Errorf("handshake: missing state or provider")
	}
	if ttl <= 0 {
		return fmt.Errorf("handshake: ttl must be positive")
	}

	m.c.Set(state, entry, ttl)
	return nil
}

func (m *MemoryStore) Take(_ context.Context, state string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.c.Get(state)
	if !ok {
		return nil, ErrNotFound
	}
	m.c.Delete(state)

	e := v.(Entry)
	return &e, nil
}
