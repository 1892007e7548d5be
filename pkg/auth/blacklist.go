package auth

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Blacklist remembers revoked tokens until they would have expired anyway.
type Blacklist interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// RedisBlacklist shares revocations across instances
type RedisBlacklist struct {
	rdb *redis.Client
}

func NewRedisBlacklist(rdb *redis.Client) *RedisBlacklist {
	return &RedisBlacklist{rdb: rdb}
}

func (b *RedisBlacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	return b.rdb.Set(ctx, "blacklist:"+token, "revoked", ttl).Err()
}

func (b *RedisBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	exists, err := b.rdb.Exists(ctx, "blacklist:"+token).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// MemoryBlacklist is the single-instance fallback when Redis is disabled.
// Each entry keeps its own deadline; the LRU bounds memory.
type MemoryBlacklist struct {
	mu      sync.Mutex
	entries *expirable.LRU[string, time.Time]
	now     func() time.Time
}

func NewMemoryBlacklist(size int, maxTTL time.Duration) *MemoryBlacklist {
	return &MemoryBlacklist{
		entries: expirable.NewLRU[string, time.Time](size, nil, maxTTL),
		now:     time.Now,
	}
}

func (b *MemoryBlacklist) Revoke(_ context.Context, token string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries.Add(token, b.now().Add(ttl))
	return nil
}

func (b *MemoryBlacklist) IsRevoked(_ context.Context, token string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	until, ok := b.entries.Get(token)
	if !ok {
		return false, nil
	}
	if !b.now().Before(until) {
		b.entries.Remove(token)
		return false, nil
	}
	return true, nil
}
