package usage

import (
	"context"
	"database/sql"
)

// PostgresRepo persists usage rows in the usage_log table.
//
// Expected schema:
//
//	usage_log (
//	  id UUID PRIMARY KEY,
//	  call_id TEXT NOT NULL,
//	  user_id TEXT NOT NULL,
//	  provider TEXT NOT NULL,
//	  service_type TEXT NOT NULL,
//	  operation TEXT NOT NULL,
//	  units_consumed NUMERIC(18,6) NOT NULL,
//	  unit_type TEXT NOT NULL,
//	  cost_estimate NUMERIC(18,4) NOT NULL,
//	  duration_ms BIGINT NOT NULL,
//	  metadata JSONB,
//	  created_at TIMESTAMPTZ NOT NULL
//	)
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e LogEntry) error {
	const q = `
INSERT INTO usage_log (
  id, call_id, user_id, provider, service_type, operation,
  units_consumed, unit_type, cost_estimate, duration_ms, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.CallID,
		e.UserID,
		e.Provider,
		e.ServiceType,
		e.Operation,
		e.UnitsConsumed,
		e.UnitType,
		e.CostEstimate,
		e.DurationMS,
		nullableString(e.Metadata),
		e.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) ListByCall(ctx context.Context, callID string) ([]LogEntry, error) {
	const q = `
SELECT id, call_id, user_id, provider, service_type, operation,
       units_consumed, unit_type, cost_estimate, duration_ms,
       COALESCE(metadata::text, ''), created_at
FROM usage_log
WHERE call_id = $1
ORDER BY created_at, id
`
	rows, err := r.db.QueryContext(ctx, q, callID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(
			&e.ID,
			&e.CallID,
			&e.UserID,
			&e.Provider,
			&e.ServiceType,
			&e.Operation,
			&e.UnitsConsumed,
			&e.UnitType,
			&e.CostEstimate,
			&e.DurationMS,
			&e.Metadata,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
