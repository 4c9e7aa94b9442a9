package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"blogapi/internal/cache"

	"github.com/redis/go-redis/v9"
)

// RedisRevocations stores revoked token ids under blacklist:<jti> with a TTL.
type RedisRevocations struct {
	client *redis.Client
}

// NewRedisRevocations wraps client.
func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client}
}

func (r *RedisRevocations) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	return r.client.Set(ctx, cache.BlacklistKey(jti), "1", ttl).Err()
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, cache.BlacklistKey(jti)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return n > 0, nil
}

// MemoryRevocations is the single-process store used when Redis is unavailable.
type MemoryRevocations struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{entries: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryRevocations) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, exp := range m.entries {
		if !exp.After(now) {
			delete(m.entries, k)
		}
	}
	m.entries[jti] = now.Add(ttl)
	return nil
}

func (m *MemoryRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.entries[jti]
	return ok && exp.After(m.now()), nil
}

// NewRevocationStore picks Redis when a client is available.
func NewRevocationStore(client *redis.Client) RevocationStore {
	if client != nil {
		return NewRedisRevocations(client)
	}
	return NewMemoryRevocations()
}
