package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voiceai-platform/internal/provider"
)

type recordingSink struct {
	mu         sync.Mutex
	failures   []provider.ID
	fallbacks  []provider.ID
	exhausted  int
	lastErrMsg string
}

func (r *recordingSink) ProviderFailure(_ context.Context, _ string, _ provider.ServiceType, id provider.ID, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, id)
	r.lastErrMsg = cause.Error()
}

func (r *recordingSink) FallbackUsed(_ context.Context, _ string, _ provider.ServiceType, _, used provider.ID, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append(r.fallbacks, used)
}

func (r *recordingSink) ChainExhausted(_ context.Context, _ string, _ provider.ServiceType, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exhausted++
}

func newTestExecutor(t *testing.T, sink EventSink) (*Executor, *MemoryStateStore, *fixedClock) {
	t.Helper()
	clock := newFixedClock()
	store := NewMemoryStateStore()
	store.SetClock(clock.Now)
	set := NewBreakerSet(store, testSettings())
	ex := NewExecutor(set, DefaultChains(), sink, nil)
	ex.clock = clock.Now
	return ex, store, clock
}

func TestExecutor_PrimarySucceedsNoFallbackEvent(t *testing.T) {
	sink := &recordingSink{}
	ex, _, _ := newTestExecutor(t, sink)

	var tried []provider.ID
	won, err := ex.Execute(context.Background(), "call-1", provider.ServiceLLM,
		Candidate{Provider: provider.OpenAI, Priority: 1},
		func(ctx context.Context, c Candidate) error {
			tried = append(tried, c.Provider)
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if won.Provider != provider.OpenAI {
		t.Fatalf("expected openai, got %q", won.Provider)
	}
	if len(tried) != 1 {
		t.Fatalf("expected a single attempt, got %v", tried)
	}
	if len(sink.fallbacks) != 0 {
		t.Fatalf("expected no fallback event, got %v", sink.fallbacks)
	}
}

func TestExecutor_EscalatesToNextCandidate(t *testing.T) {
	sink := &recordingSink{}
	ex, _, _ := newTestExecutor(t, sink)

	var tried []provider.ID
	won, err := ex.Execute(context.Background(), "call-2", provider.ServiceLLM,
		Candidate{Provider: provider.OpenAI, Priority: 1},
		func(ctx context.Context, c Candidate) error {
			tried = append(tried, c.Provider)
			if c.Provider == provider.OpenAI {
				return errProviderDown
			}
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if won.Provider != provider.Anthropic {
		t.Fatalf("expected anthropic, got %q", won.Provider)
	}
	if len(sink.failures) != 1 || sink.failures[0] != provider.OpenAI {
		t.Fatalf("expected one openai failure event, got %v", sink.failures)
	}
	if len(sink.fallbacks) != 1 || sink.fallbacks[0] != provider.Anthropic {
		t.Fatalf("expected fallback event for anthropic, got %v", sink.fallbacks)
	}
}

func TestExecutor_OpenPrimaryRanksBehindHealthyFallback(t *testing.T) {
	sink := &recordingSink{}
	ex, store, clock := newTestExecutor(t, sink)

	// Trip the primary's breaker: health 0.0 vs fallback's no-data 1.0.
	key := "llm:openai"
	for i := 0; i < 3; i++ {
		_, _ = store.RecordFailure(context.Background(), key, clock.Now(), time.Minute)
	}
	_ = store.Transition(context.Background(), key, StateOpen, clock.Now(), time.Hour)

	var tried []provider.ID
	won, err := ex.Execute(context.Background(), "call-3", provider.ServiceLLM,
		Candidate{Provider: provider.OpenAI, Priority: 1},
		func(ctx context.Context, c Candidate) error {
			tried = append(tried, c.Provider)
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if won.Provider != provider.Anthropic {
		t.Fatalf("expected healthy fallback first, got %q", won.Provider)
	}
	if len(tried) != 1 || tried[0] != provider.Anthropic {
		t.Fatalf("expected anthropic attempted first, got %v", tried)
	}
	// Substitution away from the configured primary is audited.
	if len(sink.fallbacks) != 1 || sink.fallbacks[0] != provider.Anthropic {
		t.Fatalf("expected fallback event, got %v", sink.fallbacks)
	}
}

func TestExecutor_TieBreaksByPriority(t *testing.T) {
	ex, _, _ := newTestExecutor(t, &recordingSink{})

	// All candidates have no data (score 1.0); order must follow priority.
	var tried []provider.ID
	_, err := ex.Execute(context.Background(), "call-4", provider.ServiceTTS,
		Candidate{Provider: provider.ElevenLabs, Priority: 1},
		func(ctx context.Context, c Candidate) error {
			tried = append(tried, c.Provider)
			return errProviderDown
		})
	if err == nil {
		t.Fatalf("expected chain exhaustion")
	}
	want := []provider.ID{provider.ElevenLabs, provider.OpenAI}
	if len(tried) != len(want) {
		t.Fatalf("expected %v attempts, got %v", want, tried)
	}
	for i := range want {
		if tried[i] != want[i] {
			t.Fatalf("attempt %d: expected %q, got %q", i, want[i], tried[i])
		}
	}
}

func TestExecutor_ChainExhaustedAggregatesLastError(t *testing.T) {
	sink := &recordingSink{}
	ex, _, _ := newTestExecutor(t, sink)

	_, err := ex.Execute(context.Background(), "call-5", provider.ServiceSTT,
		Candidate{Provider: provider.Deepgram, Priority: 1},
		func(ctx context.Context, c Candidate) error { return errProviderDown })
	if !errors.Is(err, ErrChainExhausted) {
		t.Fatalf("expected ErrChainExhausted, got %v", err)
	}
	if sink.exhausted != 1 {
		t.Fatalf("expected one exhausted event, got %d", sink.exhausted)
	}
}

func TestExecutor_CircuitOpenTreatedAsTransient(t *testing.T) {
	sink := &recordingSink{}
	ex, store, clock := newTestExecutor(t, sink)

	// Both LLM breakers open, but anthropic's recovery window has elapsed so
	// its probe is allowed; openai rejects with ErrCircuitOpen.
	_ = store.Transition(context.Background(), "llm:openai", StateOpen, clock.Now(), time.Hour)
	_ = store.Transition(context.Background(), "llm:anthropic", StateOpen, clock.Now().Add(-time.Minute), time.Hour)

	var tried []provider.ID
	won, err := ex.Execute(context.Background(), "call-6", provider.ServiceLLM,
		Candidate{Provider: provider.OpenAI, Priority: 1},
		func(ctx context.Context, c Candidate) error {
			tried = append(tried, c.Provider)
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if won.Provider != provider.Anthropic {
		t.Fatalf("expected anthropic probe to win, got %q", won.Provider)
	}
	// openai was never actually invoked: its breaker rejected fast.
	for _, id := range tried {
		if id == provider.OpenAI {
			t.Fatalf("expected openai operation to be skipped by its breaker")
		}
	}
}

func TestScoreFromSnapshot(t *testing.T) {
	if got := scoreFromSnapshot(Snapshot{State: StateOpen}); got != 0.0 {
		t.Fatalf("expected 0.0, got %v", got)
	}
	if got := scoreFromSnapshot(Snapshot{State: StateHalfOpen}); got != 0.3 {
		t.Fatalf("expected 0.3, got %v", got)
	}
	if got := scoreFromSnapshot(Snapshot{State: StateClosed}); got != 1.0 {
		t.Fatalf("expected 1.0 with no data, got %v", got)
	}
	if got := scoreFromSnapshot(Snapshot{State: StateClosed, Successes: 3, Failures: 1}); got != 0.75 {
		t.Fatalf("expected 0.75, got %v", got)
	}
}
