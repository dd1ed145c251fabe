package usage

import (
	"time"

	"github.com/shopspring/decimal"

	"voiceai-platform/internal/provider"
)

// UnitType names the billable unit a provider call consumed.
type UnitType string

const (
	UnitSeconds    UnitType = "seconds"
	UnitTokens     UnitType = "tokens"
	UnitCharacters UnitType = "characters"
)

// LogEntry is one immutable usage record. Every provider invocation during a
// call appends exactly one row; billing sums these at call end.
//
// Invariant: UnitsConsumed and CostEstimate are exact decimals, never floats.
type LogEntry struct {
	ID     string `json:"id" db:"id"`
	CallID string `json:"call_id" db:"call_id"`
	UserID string `json:"user_id" db:"user_id"`

	Provider    provider.ID          `json:"provider" db:"provider"`
	ServiceType provider.ServiceType `json:"service_type" db:"service_type"`

	// Operation is the provider method, e.g. "transcribe", "generate", "synthesize".
	Operation string `json:"operation" db:"operation"`

	UnitsConsumed decimal.Decimal `json:"units_consumed" db:"units_consumed"`
	UnitType      UnitType        `json:"unit_type" db:"unit_type"`

	// CostEstimate is units * rate at append time, quantized to 4 decimal
	// places. The invoice recomputes from rates; this is the running estimate.
	CostEstimate decimal.Decimal `json:"cost_estimate" db:"cost_estimate"`

	DurationMS int64  `json:"duration_ms" db:"duration_ms"`
	Metadata   string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
