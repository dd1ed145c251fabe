package assistant

import (
	"context"
	"errors"
	"testing"

	"voiceai-platform/internal/provider"
)

func validAssistant() Assistant {
	return Assistant{
		ID:           "asst-1",
		UserID:       "user-1",
		Name:         "support",
		SystemPrompt: "You are a support agent.",
		FirstMessage: "Hi, how can I help?",
		STT:          ProviderAssignment{Provider: provider.Deepgram, Model: "nova-2"},
		LLM:          ProviderAssignment{Provider: provider.OpenAI, Model: "gpt-4o-mini"},
		TTS:          ProviderAssignment{Provider: provider.ElevenLabs, Model: "eleven_turbo_v2_5"},
		Active:       true,
	}
}

func TestDirectory_ResolveReturnsSnapshot(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Put(validAssistant())
	dir := NewDirectory(repo)

	a, err := dir.Resolve(context.Background(), "asst-1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if a.SystemPrompt == "" || a.LLM.Provider != provider.OpenAI {
		t.Fatalf("expected full config snapshot, got %+v", a)
	}
}

func TestDirectory_ResolveUnknownAssistant(t *testing.T) {
	dir := NewDirectory(NewMemoryRepo())

	if _, err := dir.Resolve(context.Background(), "nope"); !errors.Is(err, ErrAssistantNotFound) {
		t.Fatalf("expected ErrAssistantNotFound, got %v", err)
	}
}

func TestDirectory_ResolveInactiveAssistant(t *testing.T) {
	repo := NewMemoryRepo()
	a := validAssistant()
	a.Active = false
	repo.Put(a)
	dir := NewDirectory(repo)

	if _, err := dir.Resolve(context.Background(), "asst-1"); !errors.Is(err, ErrAssistantInactive) {
		t.Fatalf("expected ErrAssistantInactive, got %v", err)
	}
}

func TestDirectory_ResolveRejectsMissingProviderAssignment(t *testing.T) {
	repo := NewMemoryRepo()
	a := validAssistant()
	a.TTS = ProviderAssignment{}
	repo.Put(a)
	dir := NewDirectory(repo)

	if _, err := dir.Resolve(context.Background(), "asst-1"); !errors.Is(err, ErrInvalidAssistant) {
		t.Fatalf("expected ErrInvalidAssistant, got %v", err)
	}
}

func TestAssignment_SelectsByServiceType(t *testing.T) {
	a := validAssistant()
	if got := Assignment(a, provider.ServiceSTT); got.Provider != provider.Deepgram {
		t.Fatalf("expected deepgram, got %q", got.Provider)
	}
	if got := Assignment(a, provider.ServiceTTS); got.Provider != provider.ElevenLabs {
		t.Fatalf("expected elevenlabs, got %q", got.Provider)
	}
}
