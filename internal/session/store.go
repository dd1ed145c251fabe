package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrSessionNotFound = errors.New("call session not found")
	ErrInvalidSession  = errors.New("invalid call session")
)

// Backend persists serialized call contexts.
type Backend interface {
	Put(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Fetch(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}

// RedisBackend stores sessions as JSON documents under a key prefix.
type RedisBackend struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisBackend(rdb *redis.Client) *RedisBackend {
	return &RedisBackend{rdb: rdb, prefix: "session:"}
}

func (b *RedisBackend) Put(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return b.rdb.Set(ctx, b.prefix+key, data, ttl).Err()
}

func (b *RedisBackend) Fetch(ctx context.Context, key string) ([]byte, error) {
	data, err := b.rdb.Get(ctx, b.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	return data, err
}

func (b *RedisBackend) Remove(ctx context.Context, key string) error {
	return b.rdb.Del(ctx, b.prefix+key).Err()
}

// MemoryBackend is the test/development stand-in for Redis.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   func() time.Time
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: map[string]memoryEntry{}, clock: time.Now}
}

// SetClock overrides time for TTL tests.
func (b *MemoryBackend) SetClock(clock func() time.Time) { b.clock = clock }

func (b *MemoryBackend) Put(_ context.Context, key string, data []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var expires time.Time
	if ttl > 0 {
		expires = b.clock().Add(ttl)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	b.entries[key] = memoryEntry{data: cp, expires: expires}
	return nil
}

func (b *MemoryBackend) Fetch(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[key]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !e.expires.IsZero() && !b.clock().Before(e.expires) {
		delete(b.entries, key)
		return nil, ErrSessionNotFound
	}
	cp := make([]byte, len(e.data))
	copy(cp, e.data)
	return cp, nil
}

func (b *MemoryBackend) Remove(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, key)
	return nil
}

// Registry is the session store used by the orchestrator. Live calls are kept
// in a hot in-process cache; every save is written through to the backend so a
// restarted process can resume from persisted state.
type Registry struct {
	backend Backend
	ttl     time.Duration

	mu  sync.RWMutex
	hot map[string]*CallContext
}

func NewRegistry(backend Backend, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Registry{
		backend: backend,
		ttl:     ttl,
		hot:     map[string]*CallContext{},
	}
}

// Create registers a new call session. The call ID must be unused.
func (r *Registry) Create(ctx context.Context, cc *CallContext) error {
	if cc == nil || cc.CallID == "" || cc.UserID == "" {
		return ErrInvalidSession
	}

	r.mu.Lock()
	if _, exists := r.hot[cc.CallID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: call %s already registered", ErrInvalidSession, cc.CallID)
	}
	r.hot[cc.CallID] = cc
	r.mu.Unlock()

	return r.persist(ctx, cc)
}

// Get returns the live session for callID, falling back to the backend when
// the hot cache misses (e.g. after a restart).
func (r *Registry) Get(ctx context.Context, callID string) (*CallContext, error) {
	if callID == "" {
		return nil, ErrInvalidSession
	}

	r.mu.RLock()
	cc, ok := r.hot[callID]
	r.mu.RUnlock()
	if ok {
		return cc, nil
	}

	data, err := r.backend.Fetch(ctx, callID)
	if err != nil {
		return nil, err
	}
	var restored CallContext
	if err := json.Unmarshal(data, &restored); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", callID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another goroutine may have restored it first; keep the existing pointer
	// so concurrent callers share one context.
	if existing, ok := r.hot[callID]; ok {
		return existing, nil
	}
	if !restored.Status.Terminal() {
		r.hot[callID] = &restored
	}
	return &restored, nil
}

// Save writes the session through to the backend.
func (r *Registry) Save(ctx context.Context, cc *CallContext) error {
	if cc == nil || cc.CallID == "" {
		return ErrInvalidSession
	}
	return r.persist(ctx, cc)
}

// Evict drops the hot-cache entry; the persisted record stays for later
// status lookups.
func (r *Registry) Evict(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.hot, callID)
}

// Remove deletes the session everywhere.
func (r *Registry) Remove(ctx context.Context, callID string) error {
	r.Evict(callID)
	return r.backend.Remove(ctx, callID)
}

// ActiveCount reports the number of hot (in-process) sessions.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hot)
}

func (r *Registry) persist(ctx context.Context, cc *CallContext) error {
	data, err := json.Marshal(cc)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", cc.CallID, err)
	}
	return r.backend.Put(ctx, cc.CallID, data, r.ttl)
}
