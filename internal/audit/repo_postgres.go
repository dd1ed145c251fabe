package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo persists events into the append-only audit_events table.
//
// Schema:
//
//	CREATE TABLE audit_events (
//	    id            UUID PRIMARY KEY,
//	    type          TEXT NOT NULL,
//	    severity      TEXT NOT NULL,
//	    actor_user_id TEXT,
//	    actor_role    TEXT,
//	    user_id       TEXT,
//	    call_id       TEXT,
//	    service_type  TEXT,
//	    provider      TEXT,
//	    message       TEXT,
//	    metadata      JSONB,
//	    created_at    TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX audit_events_call_idx ON audit_events (call_id, created_at);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, type, severity, actor_user_id, actor_role, user_id,
                          call_id, service_type, provider, message, metadata, created_at)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''),
        NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, '')::jsonb, $12)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.Type,
		e.Severity,
		e.ActorUserID,
		e.ActorRole,
		e.UserID,
		e.CallID,
		e.ServiceType,
		e.Provider,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}
