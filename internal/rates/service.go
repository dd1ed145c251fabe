package rates

import (
	"context"
	"errors"
	"time"

	"voiceai-platform/internal/provider"
)

var (
	ErrRateNotFound   = errors.New("rate not found")
	ErrInvalidRateReq = errors.New("invalid rate request")
)

// Repository abstracts rate-card persistence.
type Repository interface {
	// Find returns active rates for (provider, service) effective at or before
	// the given time, newest effective_from first. Both exact-model and
	// generic (empty model) rows are returned.
	Find(ctx context.Context, id provider.ID, service provider.ServiceType, at time.Time) ([]ProviderRate, error)
}

// Service resolves the effective rate for a provider call.
//
// Resolution order: exact model match first, then the provider's generic rate
// for the service type. Within each bucket the newest effective row wins.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// Resolve returns the applicable rate for (provider, service, model) at the
// given time. A zero time means now.
func (s *Service) Resolve(ctx context.Context, id provider.ID, service provider.ServiceType, model string, at time.Time) (ProviderRate, error) {
	if err := id.Validate(); err != nil {
		return ProviderRate{}, ErrInvalidRateReq
	}
	if err := service.Validate(); err != nil {
		return ProviderRate{}, ErrInvalidRateReq
	}
	if at.IsZero() {
		at = s.clock().UTC()
	}

	rows, err := s.repo.Find(ctx, id, service, at)
	if err != nil {
		return ProviderRate{}, err
	}

	// Rows arrive newest-first; the first exact match beats any generic row.
	var generic *ProviderRate
	for i := range rows {
		r := rows[i]
		if model != "" && r.Model == model {
			return r, nil
		}
		if r.Model == "" && generic == nil {
			generic = &rows[i]
		}
	}
	if generic != nil {
		return *generic, nil
	}
	return ProviderRate{}, ErrRateNotFound
}
