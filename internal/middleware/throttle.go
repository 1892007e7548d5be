package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cribnosh/verify-api/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CounterStore counts hits per key in fixed windows.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter shares counters across instances
type RedisCounter struct {
	rdb *redis.Client
}

func NewRedisCounter(rdb *redis.Client) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

func (r *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, "throttle:"+key)
		pipe.ExpireNX(ctx, "throttle:"+key, window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

type windowCount struct {
	start time.Time
	count int64
}

// MemoryCounter keeps counters in a bounded LRU for single-instance deployments
type MemoryCounter struct {
	mu      sync.Mutex
	entries *expirable.LRU[string, *windowCount]
	now     func() time.Time
}

func NewMemoryCounter(size int, maxWindow time.Duration) *MemoryCounter {
	return &MemoryCounter{
		entries: expirable.NewLRU[string, *windowCount](size, nil, maxWindow),
		now:     time.Now,
	}
}

func (m *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	wc, ok := m.entries.Get(key)
	if !ok || now.Sub(wc.start) >= window {
		wc = &windowCount{start: now}
		m.entries.Add(key, wc)
	}
	wc.count++
	return wc.count, nil
}

// Throttle limits requests per client IP for one route. Counter failures
// let the request through; the per-identifier limit still applies.
func Throttle(name string, limit int, window time.Duration, store CounterStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 || window <= 0 {
			c.Next()
			return
		}
		ip := c.ClientIP()
		count, err := store.Incr(c.Request.Context(), name+"|"+ip, window)
		if err != nil {
			zap.L().Warn("throttle counter unavailable", zap.String("route", name), zap.Error(err))
			c.Next()
			return
		}
		if count > int64(limit) {
			zap.L().Warn("rate limit hit", zap.String("ip", ip), zap.String("route", name), zap.Int64("count", count))
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, model.ErrorResponse{
				Error:   "rate_limited",
				Message: "Too many requests. Please try again later.",
			})
			return
		}
		c.Next()
	}
}
