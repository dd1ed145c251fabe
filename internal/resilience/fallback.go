package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"voiceai-platform/internal/provider"
)

// ErrChainExhausted means every candidate in the fallback chain failed.
// The last candidate's error is attached to the message.
var ErrChainExhausted = errors.New("all fallback candidates failed")

// Candidate is one entry in a service type's fallback chain.
type Candidate struct {
	Provider provider.ID `json:"provider"`
	Model    string      `json:"model,omitempty"`
	Voice    string      `json:"voice,omitempty"`

	// Priority breaks health-score ties; lower tries first.
	Priority int `json:"priority"`
}

// Chains maps each service type to its ordered fallback candidates.
type Chains map[provider.ServiceType][]Candidate

// DefaultChains is the stock provider ordering used when no per-assistant
// configuration overrides it.
func DefaultChains() Chains {
	return Chains{
		provider.ServiceSTT: {
			{Provider: provider.Deepgram, Model: "nova-2", Priority: 1},
			{Provider: provider.OpenAI, Model: "whisper-1", Priority: 2},
		},
		provider.ServiceLLM: {
			{Provider: provider.OpenAI, Model: "gpt-4o-mini", Priority: 1},
			{Provider: provider.Anthropic, Model: "claude-3-5-haiku-latest", Priority: 2},
		},
		provider.ServiceTTS: {
			{Provider: provider.ElevenLabs, Model: "eleven_turbo_v2_5", Priority: 1},
			{Provider: provider.OpenAI, Model: "tts-1", Priority: 2},
		},
	}
}

// EventSink receives resilience observability events. Implementations must be
// best-effort: a sink failure never fails the guarded operation.
type EventSink interface {
	ProviderFailure(ctx context.Context, callID string, service provider.ServiceType, id provider.ID, cause error)
	FallbackUsed(ctx context.Context, callID string, service provider.ServiceType, primary, used provider.ID, position int)
	ChainExhausted(ctx context.Context, callID string, service provider.ServiceType, last error)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) ProviderFailure(context.Context, string, provider.ServiceType, provider.ID, error) {}
func (NopSink) FallbackUsed(context.Context, string, provider.ServiceType, provider.ID, provider.ID, int) {
}
func (NopSink) ChainExhausted(context.Context, string, provider.ServiceType, error) {}

// BreakerSet lazily creates one breaker per (service, provider) pair over a
// shared state store.
type BreakerSet struct {
	store    StateStore
	settings Settings

	mu       sync.Mutex
	breakers map[string]*Breaker
}

func NewBreakerSet(store StateStore, settings Settings) *BreakerSet {
	return &BreakerSet{
		store:    store,
		settings: settings.withDefaults(),
		breakers: map[string]*Breaker{},
	}
}

// For returns the breaker guarding (service, id), creating it on first use.
func (s *BreakerSet) For(service provider.ServiceType, id provider.ID) *Breaker {
	key := string(service) + ":" + string(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[key]
	if !ok {
		b = NewBreaker(key, s.store, s.settings)
		s.breakers[key] = b
	}
	return b
}

const defaultScoreCacheTTL = 5 * time.Second

// Executor tries fallback candidates in live-health order, each under
// circuit-breaker protection, until one succeeds.
type Executor struct {
	breakers *BreakerSet
	chains   Chains
	sink     EventSink
	log      *slog.Logger

	scoreTTL time.Duration
	mu       sync.Mutex
	scores   map[string]scoreEntry
	clock    func() time.Time
}

type scoreEntry struct {
	score   float64
	expires time.Time
}

// NewExecutor builds a fallback executor. A nil sink disables event capture.
func NewExecutor(breakers *BreakerSet, chains Chains, sink EventSink, log *slog.Logger) *Executor {
	if sink == nil {
		sink = NopSink{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		breakers: breakers,
		chains:   chains,
		sink:     sink,
		log:      log,
		scoreTTL: defaultScoreCacheTTL,
		scores:   map[string]scoreEntry{},
		clock:    time.Now,
	}
}

// Operation is one provider call, parameterized by the candidate being tried.
type Operation func(ctx context.Context, c Candidate) error

// Execute runs op against the primary candidate and then each configured
// fallback, ordered by (-health score, priority). It returns the candidate
// that succeeded. An ErrCircuitOpen from a candidate's breaker is treated the
// same as any transient failure: escalate to the next candidate.
func (e *Executor) Execute(ctx context.Context, callID string, service provider.ServiceType, primary Candidate, op Operation) (Candidate, error) {
	if err := service.Validate(); err != nil {
		return Candidate{}, err
	}
	if err := primary.Provider.Validate(); err != nil {
		return Candidate{}, err
	}

	candidates := e.candidateList(service, primary)
	e.rank(ctx, service, candidates)

	var lastErr error
	for i, c := range candidates {
		br := e.breakers.For(service, c.Provider)
		err := br.Execute(ctx, func(callCtx context.Context) error {
			return op(callCtx, c)
		})
		if err == nil {
			if c.Provider != primary.Provider {
				e.sink.FallbackUsed(ctx, callID, service, primary.Provider, c.Provider, i)
				e.log.Info("provider fallback used",
					"call_id", callID,
					"service", string(service),
					"primary", string(primary.Provider),
					"used", string(c.Provider),
					"position", i,
				)
			}
			return c, nil
		}

		lastErr = err
		e.sink.ProviderFailure(ctx, callID, service, c.Provider, err)
		e.log.Warn("provider attempt failed",
			"call_id", callID,
			"service", string(service),
			"provider", string(c.Provider),
			"err", err,
		)
	}

	e.sink.ChainExhausted(ctx, callID, service, lastErr)
	e.log.Error("provider chain exhausted",
		"call_id", callID,
		"service", string(service),
		"candidates", len(candidates),
		"err", lastErr,
	)
	return Candidate{}, fmt.Errorf("%w: service %s: last error: %v", ErrChainExhausted, service, lastErr)
}

// candidateList puts the primary first and appends configured fallbacks,
// deduplicated by provider.
func (e *Executor) candidateList(service provider.ServiceType, primary Candidate) []Candidate {
	out := []Candidate{primary}
	seen := map[provider.ID]struct{}{primary.Provider: {}}
	for _, c := range e.chains[service] {
		if _, ok := seen[c.Provider]; ok {
			continue
		}
		seen[c.Provider] = struct{}{}
		out = append(out, c)
	}
	return out
}

// rank sorts candidates healthier-first; equal health falls back to declared
// priority ascending. The sort is stable so a fully-tied chain keeps its
// configured order.
func (e *Executor) rank(ctx context.Context, service provider.ServiceType, candidates []Candidate) {
	type ranked struct {
		c     Candidate
		score float64
	}
	rs := make([]ranked, len(candidates))
	for i, c := range candidates {
		rs[i] = ranked{c: c, score: e.healthScore(ctx, service, c.Provider)}
	}
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].score != rs[j].score {
			return rs[i].score > rs[j].score
		}
		return rs[i].c.Priority < rs[j].c.Priority
	})
	for i := range rs {
		candidates[i] = rs[i].c
	}
}

// healthScore maps breaker state to [0,1]: OPEN 0.0, HALF_OPEN 0.3, otherwise
// successes/(successes+failures) with no data defaulting to 1.0. Scores are
// cached for a short TTL to bound lookup cost.
func (e *Executor) healthScore(ctx context.Context, service provider.ServiceType, id provider.ID) float64 {
	key := string(service) + ":" + string(id)
	now := e.clock()

	e.mu.Lock()
	if entry, ok := e.scores[key]; ok && now.Before(entry.expires) {
		e.mu.Unlock()
		return entry.score
	}
	e.mu.Unlock()

	snap, err := e.breakers.For(service, id).Snapshot(ctx)
	score := 1.0
	if err == nil {
		score = scoreFromSnapshot(snap)
	}

	e.mu.Lock()
	e.scores[key] = scoreEntry{score: score, expires: now.Add(e.scoreTTL)}
	e.mu.Unlock()
	return score
}

func scoreFromSnapshot(snap Snapshot) float64 {
	switch snap.State {
	case StateOpen:
		return 0.0
	case StateHalfOpen:
		return 0.3
	}
	total := snap.Successes + snap.Failures
	if total == 0 {
		return 1.0
	}
	return float64(snap.Successes) / float64(total)
}
