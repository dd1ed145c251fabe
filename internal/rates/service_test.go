package rates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"voiceai-platform/internal/provider"
)

var rateEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func rate(id provider.ID, service provider.ServiceType, model, cost string, from time.Time, active bool) ProviderRate {
	return ProviderRate{
		ID:            model + "/" + cost,
		Provider:      id,
		ServiceType:   service,
		Model:         model,
		UnitType:      "tokens",
		CostPerUnit:   decimal.RequireFromString(cost),
		Currency:      "USD",
		EffectiveFrom: from,
		Active:        active,
	}
}

func TestService_ExactModelBeatsGeneric(t *testing.T) {
	repo := &MemoryRepo{Rates: []ProviderRate{
		rate(provider.OpenAI, provider.ServiceLLM, "", "0.0000100", rateEpoch, true),
		rate(provider.OpenAI, provider.ServiceLLM, "gpt-4o-mini", "0.0000150", rateEpoch, true),
	}}
	svc := NewService(repo)

	got, err := svc.Resolve(context.Background(), provider.OpenAI, provider.ServiceLLM, "gpt-4o-mini", rateEpoch.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !got.CostPerUnit.Equal(decimal.RequireFromString("0.0000150")) {
		t.Fatalf("expected exact-model rate, got %s", got.CostPerUnit)
	}
}

func TestService_FallsBackToGenericRate(t *testing.T) {
	repo := &MemoryRepo{Rates: []ProviderRate{
		rate(provider.OpenAI, provider.ServiceLLM, "", "0.0000100", rateEpoch, true),
	}}
	svc := NewService(repo)

	got, err := svc.Resolve(context.Background(), provider.OpenAI, provider.ServiceLLM, "gpt-4o", rateEpoch.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Model != "" {
		t.Fatalf("expected generic rate, got model %q", got.Model)
	}
}

func TestService_NewestEffectiveRateWins(t *testing.T) {
	repo := &MemoryRepo{Rates: []ProviderRate{
		rate(provider.Deepgram, provider.ServiceSTT, "nova-2", "0.0043000", rateEpoch, true),
		rate(provider.Deepgram, provider.ServiceSTT, "nova-2", "0.0048000", rateEpoch.Add(30*24*time.Hour), true),
	}}
	svc := NewService(repo)

	// Before the new rate takes effect the old one applies.
	got, err := svc.Resolve(context.Background(), provider.Deepgram, provider.ServiceSTT, "nova-2", rateEpoch.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !got.CostPerUnit.Equal(decimal.RequireFromString("0.0043000")) {
		t.Fatalf("expected old rate, got %s", got.CostPerUnit)
	}

	got, err = svc.Resolve(context.Background(), provider.Deepgram, provider.ServiceSTT, "nova-2", rateEpoch.Add(60*24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !got.CostPerUnit.Equal(decimal.RequireFromString("0.0048000")) {
		t.Fatalf("expected new rate, got %s", got.CostPerUnit)
	}
}

func TestService_InactiveRatesIgnored(t *testing.T) {
	repo := &MemoryRepo{Rates: []ProviderRate{
		rate(provider.ElevenLabs, provider.ServiceTTS, "", "0.0003000", rateEpoch, false),
	}}
	svc := NewService(repo)

	if _, err := svc.Resolve(context.Background(), provider.ElevenLabs, provider.ServiceTTS, "", rateEpoch.Add(time.Hour)); !errors.Is(err, ErrRateNotFound) {
		t.Fatalf("expected ErrRateNotFound, got %v", err)
	}
}

func TestService_RejectsUnknownProvider(t *testing.T) {
	svc := NewService(&MemoryRepo{})

	if _, err := svc.Resolve(context.Background(), "fax-machine", provider.ServiceSTT, "", time.Time{}); !errors.Is(err, ErrInvalidRateReq) {
		t.Fatalf("expected ErrInvalidRateReq, got %v", err)
	}
}
