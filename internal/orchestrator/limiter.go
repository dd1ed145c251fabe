package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"voiceai-platform/pkg/utils"
)

// ConcurrencyLimiter caps the number of simultaneously live calls per user.
type ConcurrencyLimiter interface {
	Acquire(ctx context.Context, userID string) (bool, error)
	Release(ctx context.Context, userID string) error
}

// RedisLimiter enforces the cap across processes with atomic Redis counters.
// The TTL covers crashed processes that never release.
type RedisLimiter struct {
	rdb   *redis.Client
	limit int
	ttl   time.Duration
}

func NewRedisLimiter(rdb *redis.Client, limit int, ttl time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = 5
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisLimiter{rdb: rdb, limit: limit, ttl: ttl}
}

func (l *RedisLimiter) Acquire(ctx context.Context, userID string) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, l.rdb, "calls:active:"+userID, l.limit, l.ttl)
}

func (l *RedisLimiter) Release(ctx context.Context, userID string) error {
	return utils.ReleaseConcurrencyCap(ctx, l.rdb, "calls:active:"+userID)
}

// MemoryLimiter is the single-process limiter used by tests.
type MemoryLimiter struct {
	limit  int
	mu     sync.Mutex
	counts map[string]int
}

func NewMemoryLimiter(limit int) *MemoryLimiter {
	if limit <= 0 {
		limit = 5
	}
	return &MemoryLimiter{limit: limit, counts: map[string]int{}}
}

func (l *MemoryLimiter) Acquire(_ context.Context, userID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts[userID] >= l.limit {
		return false, nil
	}
	l.counts[userID]++
	return true, nil
}

func (l *MemoryLimiter) Release(_ context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts[userID] > 0 {
		l.counts[userID]--
	}
	return nil
}
