package audit

import "time"

// Event is an immutable, append-only operational event record.
//
// Invariants:
// - Events are never updated or deleted.
// - Capture is best-effort; critical flows must not block on audit failures.
//
// Storage recommendation (Postgres):
// - Table audit_events with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.

type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the event.
	Type EventType `json:"type" db:"type"`

	// Severity separates routine observability rows from pages.
	Severity Severity `json:"severity" db:"severity"`

	// ActorUserID is the authenticated user causing the event (if applicable).
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// Target identifiers (optional, depending on the event type).
	UserID      string `json:"user_id,omitempty" db:"user_id"`
	CallID      string `json:"call_id,omitempty" db:"call_id"`
	ServiceType string `json:"service_type,omitempty" db:"service_type"`
	Provider    string `json:"provider,omitempty" db:"provider"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	// EventTypeProviderFailure records one failed provider attempt.
	EventTypeProviderFailure EventType = "provider_failure"

	// EventTypeFallbackUsed records a substitution away from the caller's
	// configured primary provider. Every substitution must be auditable.
	EventTypeFallbackUsed EventType = "fallback_used"

	// EventTypeChainExhausted records a complete outage: every candidate
	// for a service type failed for one operation.
	EventTypeChainExhausted EventType = "chain_exhausted"

	// EventTypeUnpaidCall records a call billed against an insufficient
	// balance (invoice exists, payment_successful=false).
	EventTypeUnpaidCall EventType = "unpaid_call"

	// EventTypeAdminAction records privileged wallet operations.
	EventTypeAdminAction EventType = "admin_action"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)
