package rates

import (
	"context"
	"database/sql"
	"time"

	"voiceai-platform/internal/provider"
)

// PostgresRepo reads the provider_rates table.
//
// Expected schema:
//
//	provider_rates (
//	  id UUID PRIMARY KEY,
//	  provider TEXT NOT NULL,
//	  service_type TEXT NOT NULL,
//	  model TEXT NOT NULL DEFAULT '',
//	  unit_type TEXT NOT NULL,
//	  cost_per_unit NUMERIC(18,7) NOT NULL,
//	  currency TEXT NOT NULL,
//	  effective_from TIMESTAMPTZ NOT NULL,
//	  active BOOLEAN NOT NULL DEFAULT TRUE,
//	  created_at TIMESTAMPTZ NOT NULL
//	)
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Find(ctx context.Context, id provider.ID, service provider.ServiceType, at time.Time) ([]ProviderRate, error) {
	const q = `
SELECT id, provider, service_type, model, unit_type, cost_per_unit, currency,
       effective_from, active, created_at
FROM provider_rates
WHERE provider = $1 AND service_type = $2 AND active = TRUE AND effective_from <= $3
ORDER BY effective_from DESC
`
	rows, err := r.db.QueryContext(ctx, q, id, service, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProviderRate
	for rows.Next() {
		var pr ProviderRate
		if err := rows.Scan(
			&pr.ID,
			&pr.Provider,
			&pr.ServiceType,
			&pr.Model,
			&pr.UnitType,
			&pr.CostPerUnit,
			&pr.Currency,
			&pr.EffectiveFrom,
			&pr.Active,
			&pr.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}
