package handshake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore creates a Redis-backed handshake store.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "oauth:state:",
	}
}

func (r *RedisStore) key(state string) string {
	return r.prefix + state
}

func (r *RedisStore) Save(ctx context.Context, state string, entry Entry, ttl time.Duration) error {
	if state == "" || entry.Provider == "" {
		return fmt.Errorf("handshake: missing state or provider")
	}
	if ttl <= 0 {
		return fmt.Errorf("handshake: ttl must be positive")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("handshake: failed to marshal: %w", err)
	}

	return r.client.Set(ctx, r.key(state), data, ttl).Err()
}

// Take uses GETDEL so two concurrent callbacks cannot both consume the state.
func (r *RedisStore) Take(ctx context.Context, state string) (*Entry, error) {
	if state == "" {
		return nil, ErrNotFound
	}

	val, err := r.client.GetDel(ctx, r.key(state)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("handshake: redis getdel: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(val, &e); err != nil {
		return nil, fmt.Errorf("handshake: failed to unmarshal: %w", err)
	}

	return &e, nil
}
