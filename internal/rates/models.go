package rates

import (
	"time"

	"github.com/shopspring/decimal"

	"voiceai-platform/internal/provider"
)

// ProviderRate is one row of the rate card. Amounts are exact decimals;
// per-unit rates routinely sit below one cent (e.g. 0.0000150 per token).
type ProviderRate struct {
	ID string `json:"id" db:"id"`

	Provider    provider.ID          `json:"provider" db:"provider"`
	ServiceType provider.ServiceType `json:"service_type" db:"service_type"`

	// Model scopes the rate to a specific model. Empty means the provider's
	// generic rate for the service type.
	Model string `json:"model,omitempty" db:"model"`

	// UnitType is the unit the rate is quoted against: seconds, tokens, characters.
	UnitType string `json:"unit_type" db:"unit_type"`

	CostPerUnit decimal.Decimal `json:"cost_per_unit" db:"cost_per_unit"`
	Currency    string          `json:"currency" db:"currency"`

	EffectiveFrom time.Time `json:"effective_from" db:"effective_from"`
	Active        bool      `json:"active" db:"active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
