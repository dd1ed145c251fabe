package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"voiceai-platform/internal/provider"
)

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SpendSummaryRequest requests aggregated spend metrics for one user.
type SpendSummaryRequest struct {
	UserID string    `json:"user_id"`
	Range  TimeRange `json:"range"`
}

// SpendSummary aggregates invoices and ledger activity over a time range.
// All money fields are exact decimals derived from immutable records.
type SpendSummary struct {
	UserID   string `json:"user_id"`
	Currency string `json:"currency"`

	BilledCalls int `json:"billed_calls"`
	UnpaidCalls int `json:"unpaid_calls"`

	TotalSpend   decimal.Decimal `json:"total_spend"`
	TotalMargin  decimal.Decimal `json:"total_margin"`
	TotalCredits decimal.Decimal `json:"total_credits"`
	TotalRefunds decimal.Decimal `json:"total_refunds"`
	NetDelta     decimal.Decimal `json:"net_delta"`

	// SpendByService breaks invoiced base cost down per pipeline stage.
	SpendByService map[provider.ServiceType]decimal.Decimal `json:"spend_by_service"`
}
