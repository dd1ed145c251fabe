package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"voiceai-platform/internal/provider"
	"voiceai-platform/internal/usage"
)

// CostLine is one usage entry priced against the rate card.
type CostLine struct {
	Provider    provider.ID          `json:"provider" db:"provider"`
	ServiceType provider.ServiceType `json:"service_type" db:"service_type"`
	Operation   string               `json:"operation" db:"operation"`

	Units    decimal.Decimal `json:"units" db:"units"`
	UnitType usage.UnitType  `json:"unit_type" db:"unit_type"`

	// Rate is the resolved cost per unit; Cost is units * rate, exact.
	Rate decimal.Decimal `json:"rate" db:"rate"`
	Cost decimal.Decimal `json:"cost" db:"cost"`
}

// CostBreakdown is the priced usage of one call.
//
// BaseCost is the sum of line costs quantized to 4 decimal places
// (round half away from zero). Lines stay exact so the quantization
// happens once, on the total.
type CostBreakdown struct {
	CallID   string          `json:"call_id"`
	Currency string          `json:"currency"`
	Lines    []CostLine      `json:"lines"`
	BaseCost decimal.Decimal `json:"base_cost"`
}

// Invoice is the final billing record of a call.
//
// Money invariant: TotalCost = BaseCost + MarginAmount where MarginAmount is
// quantized independently; both carry exactly 4 decimal places.
type Invoice struct {
	ID     string `json:"id" db:"id"`
	CallID string `json:"call_id" db:"call_id"`
	UserID string `json:"user_id" db:"user_id"`

	Currency string `json:"currency" db:"currency"`

	BaseCost     decimal.Decimal `json:"base_cost" db:"base_cost"`
	MarginRate   decimal.Decimal `json:"margin_rate" db:"margin_rate"`
	MarginAmount decimal.Decimal `json:"margin_amount" db:"margin_amount"`
	TotalCost    decimal.Decimal `json:"total_cost" db:"total_cost"`

	Lines []CostLine `json:"lines,omitempty" db:"-"`

	// PaymentSuccessful is false when the wallet debit was refused; the call
	// is still invoiced and the shortfall is audited.
	PaymentSuccessful bool `json:"payment_successful" db:"payment_successful"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
