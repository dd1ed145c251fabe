package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"voiceai-platform/internal/assistant"
	"voiceai-platform/internal/billing"
	"voiceai-platform/internal/provider"
	"voiceai-platform/internal/rates"
	"voiceai-platform/internal/resilience"
	"voiceai-platform/internal/session"
	"voiceai-platform/internal/usage"
)

var (
	ErrCallNotAccepting = errors.New("call is not accepting audio")
	ErrTooManyCalls     = errors.New("active call limit reached")
	ErrInvalidRequest   = errors.New("invalid orchestrator request")
)

// Config tunes the pipeline.
type Config struct {
	// ChunkFlushCount is how many buffered audio chunks trigger a pipeline turn.
	ChunkFlushCount int
	// HistoryWindow caps the conversation turns handed to the LLM.
	HistoryWindow int
}

func (c Config) withDefaults() Config {
	if c.ChunkFlushCount <= 0 {
		c.ChunkFlushCount = 5
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 20
	}
	return c
}

// Service drives the call lifecycle and the STT -> LLM -> TTS turn pipeline.
//
// Concurrency model: session lookups go through the registry; per-call
// pipeline work is serialized by a per-call state lock so overlapping audio
// chunks cannot interleave turns.
type Service struct {
	registry   *provider.Registry
	executor   *resilience.Executor
	sessions   *session.Registry
	assistants *assistant.Directory
	usage      *usage.Service
	rates      *rates.Service
	billing    *billing.Service
	limiter    ConcurrencyLimiter

	cfg   Config
	clock func() time.Time
	log   *slog.Logger

	mu    sync.Mutex
	calls map[string]*callState
}

type callState struct {
	mu        sync.Mutex
	chunks    [][]byte
	assistant assistant.Assistant
	resolved  bool
}

func NewService(
	registry *provider.Registry,
	executor *resilience.Executor,
	sessions *session.Registry,
	assistants *assistant.Directory,
	usageSvc *usage.Service,
	rateSvc *rates.Service,
	billingSvc *billing.Service,
	limiter ConcurrencyLimiter,
	cfg Config,
	log *slog.Logger,
) *Service {
	if limiter == nil {
		limiter = NewMemoryLimiter(0)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		registry:   registry,
		executor:   executor,
		sessions:   sessions,
		assistants: assistants,
		usage:      usageSvc,
		rates:      rateSvc,
		billing:    billingSvc,
		limiter:    limiter,
		cfg:        cfg.withDefaults(),
		clock:      time.Now,
		log:        log,
		calls:      map[string]*callState{},
	}
}

// InitiateCallRequest starts a call against an assistant.
type InitiateCallRequest struct {
	UserID      string
	AssistantID string
	PhoneNumber string
	Metadata    map[string]string
}

// InitiateCallResult carries the new session and, when the assistant has a
// first message, its synthesized greeting.
type InitiateCallResult struct {
	Context  *session.CallContext
	Greeting []byte
}

// InitiateCall validates the assistant, reserves a concurrency slot and
// registers the session. Provider adapters are resolved up front so a
// misconfigured assistant fails here, not mid-conversation.
func (s *Service) InitiateCall(ctx context.Context, req InitiateCallRequest) (InitiateCallResult, error) {
	if req.UserID == "" || req.AssistantID == "" {
		return InitiateCallResult{}, ErrInvalidRequest
	}

	a, err := s.assistants.Resolve(ctx, req.AssistantID)
	if err != nil {
		return InitiateCallResult{}, err
	}
	if _, err := s.registry.STT(a.STT.Provider); err != nil {
		return InitiateCallResult{}, err
	}
	if _, err := s.registry.LLM(a.LLM.Provider); err != nil {
		return InitiateCallResult{}, err
	}
	if _, err := s.registry.TTS(a.TTS.Provider); err != nil {
		return InitiateCallResult{}, err
	}

	ok, err := s.limiter.Acquire(ctx, req.UserID)
	if err != nil {
		return InitiateCallResult{}, fmt.Errorf("acquire call slot: %w", err)
	}
	if !ok {
		return InitiateCallResult{}, ErrTooManyCalls
	}

	now := s.clock().UTC()
	cc := &session.CallContext{
		CallID:      uuid.NewString(),
		UserID:      req.UserID,
		AssistantID: req.AssistantID,
		PhoneNumber: req.PhoneNumber,
		Status:      session.CallStatusInitiated,
		StartedAt:   now,
		TotalCost:   decimal.Zero,
		Metadata:    req.Metadata,
	}
	if err := s.sessions.Create(ctx, cc); err != nil {
		_ = s.limiter.Release(ctx, req.UserID)
		return InitiateCallResult{}, err
	}

	cc.Status = session.CallStatusConnected
	if err := s.sessions.Save(ctx, cc); err != nil {
		_ = s.limiter.Release(ctx, req.UserID)
		return InitiateCallResult{}, err
	}

	s.mu.Lock()
	s.calls[cc.CallID] = &callState{assistant: a, resolved: true}
	s.mu.Unlock()

	result := InitiateCallResult{Context: cc}
	if a.FirstMessage != "" {
		// A failed greeting never fails the call; the caller just hears
		// nothing until the first exchange.
		audio, err := s.synthesize(ctx, cc, a, a.FirstMessage)
		if err != nil {
			s.log.Warn("first message synthesis failed", "call_id", cc.CallID, "err", err)
		} else {
			cc.AppendTurn(provider.RoleAssistant, a.FirstMessage, a.TTS.Provider, s.clock().UTC())
			result.Greeting = audio
		}
		_ = s.sessions.Save(ctx, cc)
	}

	s.log.Info("call initiated",
		"call_id", cc.CallID,
		"user_id", req.UserID,
		"assistant_id", req.AssistantID,
	)
	return result, nil
}

// TurnResult is one completed conversation turn.
type TurnResult struct {
	Transcript string `json:"transcript"`
	Reply      string `json:"reply"`
	Audio      []byte `json:"audio"`
}

// ProcessAudioChunk buffers inbound audio and, once enough chunks arrived,
// runs a full turn: transcribe, generate, synthesize. It returns nil while
// buffering and a TurnResult when a turn completes.
//
// A provider chain exhaustion surfaces as an error wrapping
// resilience.ErrChainExhausted; the call itself stays live.
func (s *Service) ProcessAudioChunk(ctx context.Context, callID string, chunk []byte) (*TurnResult, error) {
	if callID == "" || len(chunk) == 0 {
		return nil, ErrInvalidRequest
	}

	cc, err := s.sessions.Get(ctx, callID)
	if err != nil {
		return nil, err
	}

	state := s.state(callID)
	state.mu.Lock()
	defer state.mu.Unlock()

	// Status is read under the call lock: EndCall serializes on the same
	// lock, so the call cannot flip to a terminal state mid-turn.
	if !cc.Status.Accepting() {
		return nil, fmt.Errorf("%w: call %s is %s", ErrCallNotAccepting, callID, cc.Status)
	}
	if !state.resolved {
		a, err := s.assistants.Resolve(ctx, cc.AssistantID)
		if err != nil {
			return nil, err
		}
		state.assistant = a
		state.resolved = true
	}

	state.chunks = append(state.chunks, chunk)
	if len(state.chunks) < s.cfg.ChunkFlushCount {
		return nil, nil
	}
	audio := bytes.Join(state.chunks, nil)
	state.chunks = nil

	return s.runTurn(ctx, cc, state.assistant, audio)
}

func (s *Service) runTurn(ctx context.Context, cc *session.CallContext, a assistant.Assistant, audio []byte) (*TurnResult, error) {
	if cc.Status == session.CallStatusConnected {
		cc.Status = session.CallStatusActive
	}

	transcript, err := s.transcribe(ctx, cc, a, audio)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(transcript) == "" {
		// Silence or noise; nothing to answer.
		_ = s.sessions.Save(ctx, cc)
		return nil, nil
	}
	cc.AppendTurn(provider.RoleUser, transcript, a.STT.Provider, s.clock().UTC())
	if err := s.sessions.Save(ctx, cc); err != nil {
		return nil, err
	}

	reply, err := s.generate(ctx, cc, a)
	if err != nil {
		return nil, err
	}
	cc.AppendTurn(provider.RoleAssistant, reply, a.LLM.Provider, s.clock().UTC())
	if err := s.sessions.Save(ctx, cc); err != nil {
		return nil, err
	}

	audioOut, err := s.synthesize(ctx, cc, a, reply)
	if err != nil {
		return nil, err
	}
	_ = s.sessions.Save(ctx, cc)

	return &TurnResult{Transcript: transcript, Reply: reply, Audio: audioOut}, nil
}

func (s *Service) transcribe(ctx context.Context, cc *session.CallContext, a assistant.Assistant, audio []byte) (string, error) {
	var result provider.Transcription
	primary := resilience.Candidate{Provider: a.STT.Provider, Model: a.STT.Model, Priority: 0}

	used, err := s.executor.Execute(ctx, cc.CallID, provider.ServiceSTT, primary, func(callCtx context.Context, c resilience.Candidate) error {
		p, err := s.registry.STT(c.Provider)
		if err != nil {
			return err
		}
		out, err := p.Transcribe(callCtx, audio, provider.Config{Model: c.Model, Language: a.STT.Language})
		if err != nil {
			return err
		}
		result = out
		return nil
	})
	if err != nil {
		return "", err
	}

	s.recordUsage(ctx, cc, used.Provider, provider.ServiceSTT, "transcribe",
		decimal.NewFromFloat(result.AudioSec), usage.UnitSeconds, result.DurationMS, result.Model)
	return result.Text, nil
}

func (s *Service) generate(ctx context.Context, cc *session.CallContext, a assistant.Assistant) (string, error) {
	messages := make([]provider.Message, 0, s.cfg.HistoryWindow+1)
	if a.SystemPrompt != "" {
		messages = append(messages, provider.Message{Role: provider.RoleSystem, Content: a.SystemPrompt})
	}
	messages = append(messages, cc.RecentHistory(s.cfg.HistoryWindow)...)

	var result provider.Generation
	primary := resilience.Candidate{Provider: a.LLM.Provider, Model: a.LLM.Model, Priority: 0}

	used, err := s.executor.Execute(ctx, cc.CallID, provider.ServiceLLM, primary, func(callCtx context.Context, c resilience.Candidate) error {
		p, err := s.registry.LLM(c.Provider)
		if err != nil {
			return err
		}
		out, err := p.Generate(callCtx, messages, provider.Config{Model: c.Model})
		if err != nil {
			return err
		}
		result = out
		return nil
	})
	if err != nil {
		return "", err
	}

	s.recordUsage(ctx, cc, used.Provider, provider.ServiceLLM, "generate",
		decimal.NewFromInt(int64(result.Usage.TotalTokens)), usage.UnitTokens, result.DurationMS, result.Model)
	return result.Content, nil
}

func (s *Service) synthesize(ctx context.Context, cc *session.CallContext, a assistant.Assistant, text string) ([]byte, error) {
	var result provider.Synthesis
	primary := resilience.Candidate{Provider: a.TTS.Provider, Model: a.TTS.Model, Voice: a.TTS.Voice, Priority: 0}

	used, err := s.executor.Execute(ctx, cc.CallID, provider.ServiceTTS, primary, func(callCtx context.Context, c resilience.Candidate) error {
		p, err := s.registry.TTS(c.Provider)
		if err != nil {
			return err
		}
		voice := c.Voice
		if c.Provider == a.TTS.Provider {
			voice = a.TTS.Voice
		}
		out, err := p.Synthesize(callCtx, text, provider.Config{Model: c.Model, Voice: voice})
		if err != nil {
			return err
		}
		result = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordUsage(ctx, cc, used.Provider, provider.ServiceTTS, "synthesize",
		decimal.NewFromInt(int64(result.Characters)), usage.UnitCharacters, result.DurationMS, result.Model)
	return result.Audio, nil
}

// recordUsage appends a usage row and links it to the session. Usage logging
// is best-effort relative to the turn; the rate card prices it at call end.
func (s *Service) recordUsage(ctx context.Context, cc *session.CallContext, id provider.ID, service provider.ServiceType, op string, units decimal.Decimal, unit usage.UnitType, durationMS int64, model string) {
	estimate := decimal.Zero
	if s.rates != nil {
		if rate, err := s.rates.Resolve(ctx, id, service, model, s.clock().UTC()); err == nil {
			estimate = units.Mul(rate.CostPerUnit).Round(4)
		}
	}

	meta := ""
	if model != "" {
		meta = `{"model":"` + model + `"}`
	}
	entry, err := s.usage.Append(ctx, usage.LogEntry{
		CallID:        cc.CallID,
		UserID:        cc.UserID,
		Provider:      id,
		ServiceType:   service,
		Operation:     op,
		UnitsConsumed: units,
		UnitType:      unit,
		CostEstimate:  estimate,
		DurationMS:    durationMS,
		Metadata:      meta,
	})
	if err != nil {
		s.log.Error("usage append failed", "call_id", cc.CallID, "provider", string(id), "err", err)
		return
	}
	cc.UsageEntryIDs = append(cc.UsageEntryIDs, entry.ID)
}

// CallSummary is returned by EndCall.
type CallSummary struct {
	CallID          string                       `json:"call_id"`
	Status          session.CallStatus           `json:"status"`
	DurationSeconds float64                      `json:"duration_seconds"`
	Turns           int                          `json:"turns"`
	ProviderCalls   int                          `json:"provider_calls"`
	CallsByService  map[provider.ServiceType]int `json:"calls_by_service"`
	Invoice         billing.Invoice              `json:"invoice"`
}

// EndCall closes the session, settles billing and releases the caller's
// concurrency slot. It takes the per-call lock, so an in-flight pipeline turn
// finishes (and its usage rows land) before billing runs. Ending an
// already-ended call returns the stored summary; billing is idempotent per
// call.
func (s *Service) EndCall(ctx context.Context, callID string) (CallSummary, error) {
	if callID == "" {
		return CallSummary{}, ErrInvalidRequest
	}

	cc, err := s.sessions.Get(ctx, callID)
	if err != nil {
		return CallSummary{}, err
	}

	state := s.state(callID)
	state.mu.Lock()
	defer state.mu.Unlock()

	if cc.Status.Terminal() {
		inv, err := s.billing.GetInvoice(ctx, callID)
		if err != nil && !errors.Is(err, billing.ErrInvoiceNotFound) {
			return CallSummary{}, err
		}
		s.dropState(callID)
		return s.summary(ctx, cc, inv), nil
	}

	now := s.clock().UTC()
	cc.Status = session.CallStatusEnded
	cc.EndedAt = &now

	inv, err := s.billing.ProcessCallBilling(ctx, callID, cc.UserID)
	if err != nil {
		return CallSummary{}, err
	}
	// TotalCost tracks pass-through provider cost; the platform margin lives
	// only on the invoice.
	cc.TotalCost = inv.BaseCost

	if err := s.sessions.Save(ctx, cc); err != nil {
		return CallSummary{}, err
	}
	s.sessions.Evict(callID)
	s.dropState(callID)

	_ = s.limiter.Release(ctx, cc.UserID)

	s.log.Info("call ended",
		"call_id", callID,
		"user_id", cc.UserID,
		"total_cost", inv.TotalCost.String(),
		"paid", inv.PaymentSuccessful,
	)
	return s.summary(ctx, cc, inv), nil
}

// CallStatus is the live view of a call.
type CallStatus struct {
	CallID          string             `json:"call_id"`
	UserID          string             `json:"user_id"`
	AssistantID     string             `json:"assistant_id"`
	Status          session.CallStatus `json:"status"`
	StartedAt       time.Time          `json:"started_at"`
	EndedAt         *time.Time         `json:"ended_at,omitempty"`
	DurationSeconds float64            `json:"duration_seconds"`
	Turns           int                `json:"turns"`
	TotalCost       decimal.Decimal    `json:"total_cost"`
}

// GetCallStatus reports the current state of a call, live or ended.
func (s *Service) GetCallStatus(ctx context.Context, callID string) (CallStatus, error) {
	if callID == "" {
		return CallStatus{}, ErrInvalidRequest
	}
	cc, err := s.sessions.Get(ctx, callID)
	if err != nil {
		return CallStatus{}, err
	}
	return CallStatus{
		CallID:          cc.CallID,
		UserID:          cc.UserID,
		AssistantID:     cc.AssistantID,
		Status:          cc.Status,
		StartedAt:       cc.StartedAt,
		EndedAt:         cc.EndedAt,
		DurationSeconds: cc.DurationSeconds(s.clock().UTC()),
		Turns:           len(cc.History),
		TotalCost:       cc.TotalCost,
	}, nil
}

func (s *Service) summary(ctx context.Context, cc *session.CallContext, inv billing.Invoice) CallSummary {
	byService := map[provider.ServiceType]int{}
	if entries, err := s.usage.ListByCall(ctx, cc.CallID); err == nil {
		for _, e := range entries {
			byService[e.ServiceType]++
		}
	}
	return CallSummary{
		CallID:          cc.CallID,
		Status:          cc.Status,
		DurationSeconds: cc.DurationSeconds(s.clock().UTC()),
		Turns:           len(cc.History),
		ProviderCalls:   len(cc.UsageEntryIDs),
		CallsByService:  byService,
		Invoice:         inv,
	}
}

// state returns the per-call pipeline state, creating a bare entry when the
// hot one was lost to a restart. The assistant snapshot is resolved lazily
// under the call lock, so ending a call never depends on the directory.
func (s *Service) state(callID string) *callState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.calls[callID]
	if !ok {
		st = &callState{}
		s.calls[callID] = st
	}
	return st
}

func (s *Service) dropState(callID string) {
	s.mu.Lock()
	delete(s.calls, callID)
	s.mu.Unlock()
}
