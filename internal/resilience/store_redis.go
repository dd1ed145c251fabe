package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStateStore shares breaker state across processes through Redis.
//
// Key layout per breaker key k:
//
//	cb:{k}:state        breaker state string, TTL-bounded
//	cb:{k}:failures     windowed failure counter
//	cb:{k}:successes    windowed success counter
//	cb:{k}:last_failure unix milliseconds of the most recent failure
type RedisStateStore struct {
	rdb *redis.Client
}

func NewRedisStateStore(rdb *redis.Client) *RedisStateStore {
	return &RedisStateStore{rdb: rdb}
}

// incrWindowedScript increments a counter and attaches the monitoring-window
// TTL on first use, so a quiet period auto-heals the breaker. Returning the
// post-increment count makes increment-and-check race-free.
var incrWindowedScript = redis.NewScript(`
-- KEYS[1] = counter key
-- ARGV[1] = window ttl_ms (int)
local current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
else
  if redis.call('PTTL', KEYS[1]) < 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
  end
end
return current
`)

// transitionScript swaps state and resets both counters in one atomic step.
var transitionScript = redis.NewScript(`
-- KEYS[1] = state key
-- KEYS[2] = failures key
-- KEYS[3] = successes key
-- KEYS[4] = last_failure key
-- ARGV[1] = new state
-- ARGV[2] = state ttl_ms (int)
-- ARGV[3] = at unix_ms (int), recorded as last_failure when opening
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
redis.call('DEL', KEYS[2])
redis.call('DEL', KEYS[3])
if ARGV[1] == 'open' then
  redis.call('SET', KEYS[4], ARGV[3], 'PX', ARGV[2])
end
return 1
`)

func (s *RedisStateStore) keys(key string) (state, failures, successes, lastFailure string) {
	return "cb:" + key + ":state",
		"cb:" + key + ":failures",
		"cb:" + key + ":successes",
		"cb:" + key + ":last_failure"
}

func (s *RedisStateStore) Snapshot(ctx context.Context, key string) (Snapshot, error) {
	stateKey, failKey, succKey, lastKey := s.keys(key)

	vals, err := s.rdb.MGet(ctx, stateKey, failKey, succKey, lastKey).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("breaker snapshot: %w", err)
	}

	out := Snapshot{State: StateClosed}
	if v, ok := vals[0].(string); ok && v != "" {
		out.State = State(v)
	}
	out.Failures = parseRedisInt(vals[1])
	out.Successes = parseRedisInt(vals[2])
	if ms := parseRedisInt(vals[3]); ms > 0 {
		out.LastFailure = time.UnixMilli(ms).UTC()
	}
	return out, nil
}

func (s *RedisStateStore) Transition(ctx context.Context, key string, to State, at time.Time, ttl time.Duration) error {
	stateKey, failKey, succKey, lastKey := s.keys(key)
	return transitionScript.Run(ctx, s.rdb,
		[]string{stateKey, failKey, succKey, lastKey},
		string(to), ttl.Milliseconds(), at.UnixMilli(),
	).Err()
}

func (s *RedisStateStore) RecordFailure(ctx context.Context, key string, at time.Time, window time.Duration) (int64, error) {
	_, failKey, _, lastKey := s.keys(key)
	n, err := incrWindowedScript.Run(ctx, s.rdb, []string{failKey}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("breaker record failure: %w", err)
	}
	if err := s.rdb.Set(ctx, lastKey, at.UnixMilli(), window).Err(); err != nil {
		return n, fmt.Errorf("breaker record failure time: %w", err)
	}
	return n, nil
}

func (s *RedisStateStore) RecordSuccess(ctx context.Context, key string, window time.Duration) (int64, error) {
	_, _, succKey, _ := s.keys(key)
	n, err := incrWindowedScript.Run(ctx, s.rdb, []string{succKey}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("breaker record success: %w", err)
	}
	return n, nil
}

func (s *RedisStateStore) ResetFailures(ctx context.Context, key string) error {
	_, failKey, _, _ := s.keys(key)
	return s.rdb.Del(ctx, failKey).Err()
}

func parseRedisInt(v any) int64 {
	s, ok := v.(string)
	if !ok || s == "" {
		return 0
	}
	var n int64
	_, _ = fmt.Sscan(s, &n)
	return n
}
