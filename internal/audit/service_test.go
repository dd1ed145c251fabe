package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogFallbackUsed(context.Background(), "call-1", "llm", "openai", "anthropic", 1, "{}"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].Type != EventTypeFallbackUsed {
		t.Fatalf("expected fallback_used, got %q", evs[0].Type)
	}
	if evs[0].Provider != "anthropic" {
		t.Fatalf("expected substituted provider captured, got %q", evs[0].Provider)
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp assigned")
	}
}

func TestService_ChainExhaustedIsCritical(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogChainExhausted(context.Background(), "call-2", "stt", "all candidates failed"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	evs := repo.Events()
	if len(evs) != 1 || evs[0].Severity != SeverityCritical {
		t.Fatalf("expected one critical event, got %+v", evs)
	}
}
