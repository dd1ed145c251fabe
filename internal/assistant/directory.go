package assistant

import (
	"context"
	"errors"

	"voiceai-platform/internal/provider"
)

var (
	ErrAssistantNotFound = errors.New("assistant not found")
	ErrAssistantInactive = errors.New("assistant inactive")
	ErrInvalidAssistant  = errors.New("invalid assistant")
)

// Repository abstracts assistant persistence.
type Repository interface {
	Get(ctx context.Context, id string) (Assistant, error)
}

// Directory resolves assistants for call initiation.
type Directory struct {
	repo Repository
}

func NewDirectory(repo Repository) *Directory {
	return &Directory{repo: repo}
}

// Resolve returns the assistant if it exists, is active and carries a valid
// provider assignment for every service type. Calls must not start against a
// half-configured assistant.
func (d *Directory) Resolve(ctx context.Context, id string) (Assistant, error) {
	if id == "" {
		return Assistant{}, ErrInvalidAssistant
	}
	a, err := d.repo.Get(ctx, id)
	if err != nil {
		return Assistant{}, err
	}
	if !a.Active {
		return Assistant{}, ErrAssistantInactive
	}
	for _, assignment := range []ProviderAssignment{a.STT, a.LLM, a.TTS} {
		if err := assignment.Provider.Validate(); err != nil {
			return Assistant{}, errors.Join(ErrInvalidAssistant, err)
		}
	}
	return a, nil
}

// Assignment returns the assistant's provider assignment for a service type.
func Assignment(a Assistant, service provider.ServiceType) ProviderAssignment {
	switch service {
	case provider.ServiceSTT:
		return a.STT
	case provider.ServiceLLM:
		return a.LLM
	case provider.ServiceTTS:
		return a.TTS
	}
	return ProviderAssignment{}
}
