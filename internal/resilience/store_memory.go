package resilience

import (
	"context"
	"sync"
	"time"
)

// MemoryStateStore is an in-process StateStore for tests and single-node
// deployments. Counter expiry mirrors the Redis implementation.
type MemoryStateStore struct {
	mu      sync.Mutex
	entries map[string]*memoryBreakerEntry
	clock   func() time.Time
}

type memoryBreakerEntry struct {
	state       State
	stateExp    time.Time
	failures    int64
	failuresExp time.Time
	successes   int64
	successExp  time.Time
	lastFailure time.Time
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{entries: map[string]*memoryBreakerEntry{}, clock: time.Now}
}

// SetClock injects a deterministic clock for tests.
func (m *MemoryStateStore) SetClock(clock func() time.Time) { m.clock = clock }

func (m *MemoryStateStore) get(key string) *memoryBreakerEntry {
	e, ok := m.entries[key]
	if !ok {
		e = &memoryBreakerEntry{state: StateClosed}
		m.entries[key] = e
	}
	return e
}

func (m *MemoryStateStore) expire(e *memoryBreakerEntry, now time.Time) {
	if !e.stateExp.IsZero() && now.After(e.stateExp) {
		e.state = StateClosed
		e.stateExp = time.Time{}
	}
	if !e.failuresExp.IsZero() && now.After(e.failuresExp) {
		e.failures = 0
		e.failuresExp = time.Time{}
	}
	if !e.successExp.IsZero() && now.After(e.successExp) {
		e.successes = 0
		e.successExp = time.Time{}
	}
}

func (m *MemoryStateStore) Snapshot(ctx context.Context, key string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(key)
	m.expire(e, m.clock().UTC())
	return Snapshot{
		State:       e.state,
		Failures:    e.failures,
		Successes:   e.successes,
		LastFailure: e.lastFailure,
	}, nil
}

func (m *MemoryStateStore) Transition(ctx context.Context, key string, to State, at time.Time, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(key)
	e.state = to
	e.stateExp = at.Add(ttl)
	e.failures = 0
	e.failuresExp = time.Time{}
	e.successes = 0
	e.successExp = time.Time{}
	if to == StateOpen {
		e.lastFailure = at
	}
	return nil
}

func (m *MemoryStateStore) RecordFailure(ctx context.Context, key string, at time.Time, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(key)
	m.expire(e, at)
	if e.failures == 0 {
		e.failuresExp = at.Add(window)
	}
	e.failures++
	e.lastFailure = at
	return e.failures, nil
}

func (m *MemoryStateStore) RecordSuccess(ctx context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock().UTC()
	e := m.get(key)
	m.expire(e, now)
	if e.successes == 0 {
		e.successExp = now.Add(window)
	}
	e.successes++
	return e.successes, nil
}

func (m *MemoryStateStore) ResetFailures(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(key)
	e.failures = 0
	e.failuresExp = time.Time{}
	return nil
}
