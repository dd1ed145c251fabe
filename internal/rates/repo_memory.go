package rates

import (
	"context"
	"sort"
	"time"

	"voiceai-platform/internal/provider"
)

// MemoryRepo holds the rate card in memory for tests and development.
type MemoryRepo struct {
	Rates []ProviderRate
}

func (r *MemoryRepo) Find(_ context.Context, id provider.ID, service provider.ServiceType, at time.Time) ([]ProviderRate, error) {
	var out []ProviderRate
	for _, rate := range r.Rates {
		if rate.Provider != id || rate.ServiceType != service {
			continue
		}
		if !rate.Active {
			continue
		}
		if at.Before(rate.EffectiveFrom) {
			continue
		}
		out = append(out, rate)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EffectiveFrom.After(out[j].EffectiveFrom)
	})
	return out, nil
}
