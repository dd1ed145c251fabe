package resilience

import (
	"context"
	"errors"
	"time"
)

// State is the circuit-breaker state for one (service, provider) pair.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// ErrCircuitOpen is the fast-fail signal: the guarded provider is known bad
// and the wrapped operation was not attempted.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Settings tunes breaker behavior. Shared by every breaker in a set.
type Settings struct {
	// FailureThreshold failures within MonitoringWindow trip the breaker.
	FailureThreshold int
	// SuccessThreshold consecutive half-open successes close it again.
	SuccessThreshold int
	// RecoveryTimeout is how long an open breaker rejects before probing.
	RecoveryTimeout time.Duration
	// MonitoringWindow is the counter expiry; a quiet period self-heals.
	MonitoringWindow time.Duration
	// CallTimeout is the hard per-attempt deadline. A timeout is a failure.
	CallTimeout time.Duration
}

func (s Settings) withDefaults() Settings {
	out := s
	if out.FailureThreshold <= 0 {
		out.FailureThreshold = 5
	}
	if out.SuccessThreshold <= 0 {
		out.SuccessThreshold = 3
	}
	if out.RecoveryTimeout <= 0 {
		out.RecoveryTimeout = 60 * time.Second
	}
	if out.MonitoringWindow <= 0 {
		out.MonitoringWindow = 5 * time.Minute
	}
	if out.CallTimeout <= 0 {
		out.CallTimeout = 30 * time.Second
	}
	return out
}

// Snapshot is the observable breaker state at one point in time.
type Snapshot struct {
	State       State
	Failures    int64
	Successes   int64
	LastFailure time.Time
}

// StateStore persists breaker state so that every process sharing a provider
// sees the same breaker. Counter mutations must be atomic against concurrent
// callers (increment-and-check must not race).
type StateStore interface {
	Snapshot(ctx context.Context, key string) (Snapshot, error)

	// Transition moves the breaker to a new state, resetting both counters.
	// For StateOpen, at is recorded as the last failure time. State rows
	// carry ttl so abandoned breakers expire on their own.
	Transition(ctx context.Context, key string, to State, at time.Time, ttl time.Duration) error

	// RecordFailure atomically increments the windowed failure counter and
	// stores the failure time, returning the post-increment count.
	RecordFailure(ctx context.Context, key string, at time.Time, window time.Duration) (int64, error)

	// RecordSuccess atomically increments the windowed success counter,
	// returning the post-increment count.
	RecordSuccess(ctx context.Context, key string, window time.Duration) (int64, error)

	// ResetFailures clears the failure counter (closed-state success path).
	ResetFailures(ctx context.Context, key string) error
}

// Breaker guards calls to one (service, provider) pair.
//
// Transitions:
//
//	CLOSED    -> OPEN       when windowed failures reach FailureThreshold
//	OPEN      -> HALF_OPEN  on the first call after RecoveryTimeout elapses
//	HALF_OPEN -> CLOSED     after SuccessThreshold consecutive successes
//	HALF_OPEN -> OPEN       on any failure
type Breaker struct {
	key      string
	store    StateStore
	settings Settings
	clock    func() time.Time
}

// NewBreaker builds a breaker over a shared state store.
func NewBreaker(key string, store StateStore, settings Settings) *Breaker {
	return &Breaker{
		key:      key,
		store:    store,
		settings: settings.withDefaults(),
		clock:    time.Now,
	}
}

// Key returns the breaker identity ("service:provider").
func (b *Breaker) Key() string { return b.key }

// Snapshot exposes current state for health scoring.
func (b *Breaker) Snapshot(ctx context.Context) (Snapshot, error) {
	return b.store.Snapshot(ctx, b.key)
}

// Execute runs op under breaker protection with a hard timeout.
// While OPEN and inside the recovery window it returns ErrCircuitOpen without
// invoking op. Any op error, including timeout, counts as a failure.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	now := b.clock().UTC()

	snap, err := b.store.Snapshot(ctx, b.key)
	if err != nil {
		// A store outage must not take providers down with it; proceed as
		// if closed and let the counters catch up when the store returns.
		snap = Snapshot{State: StateClosed}
	}

	state := snap.State
	if state == "" {
		state = StateClosed
	}

	if state == StateOpen {
		if now.Sub(snap.LastFailure) <= b.settings.RecoveryTimeout {
			return ErrCircuitOpen
		}
		// Recovery window elapsed: probe.
		state = StateHalfOpen
		if err := b.store.Transition(ctx, b.key, StateHalfOpen, now, b.stateTTL()); err != nil {
			return ErrCircuitOpen
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, b.settings.CallTimeout)
	defer cancel()

	if opErr := op(callCtx); opErr != nil {
		b.onFailure(ctx, state)
		return opErr
	}

	b.onSuccess(ctx, state)
	return nil
}

func (b *Breaker) onFailure(ctx context.Context, state State) {
	now := b.clock().UTC()

	if state == StateHalfOpen {
		_ = b.store.Transition(ctx, b.key, StateOpen, now, b.stateTTL())
		return
	}

	n, err := b.store.RecordFailure(ctx, b.key, now, b.settings.MonitoringWindow)
	if err != nil {
		return
	}
	if n >= int64(b.settings.FailureThreshold) {
		_ = b.store.Transition(ctx, b.key, StateOpen, now, b.stateTTL())
	}
}

func (b *Breaker) onSuccess(ctx context.Context, state State) {
	now := b.clock().UTC()

	n, err := b.store.RecordSuccess(ctx, b.key, b.settings.MonitoringWindow)
	if err != nil {
		return
	}
	if state == StateHalfOpen {
		if n >= int64(b.settings.SuccessThreshold) {
			_ = b.store.Transition(ctx, b.key, StateClosed, now, b.stateTTL())
		}
		return
	}
	_ = b.store.ResetFailures(ctx, b.key)
}

// stateTTL bounds how long an idle breaker row survives. It must outlive the
// recovery timeout, or an open breaker could silently expire back to closed.
func (b *Breaker) stateTTL() time.Duration {
	ttl := 2 * b.settings.MonitoringWindow
	if min := 2 * b.settings.RecoveryTimeout; ttl < min {
		ttl = min
	}
	return ttl
}
