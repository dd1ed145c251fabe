package reporting

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"voiceai-platform/internal/billing"
	"voiceai-platform/internal/provider"
	"voiceai-platform/internal/wallet"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository reads the immutable billing records reporting is built on.
// Both listings are user-scoped and bounded by the time range.
type Repository interface {
	ListInvoices(ctx context.Context, userID string, r TimeRange) ([]billing.Invoice, error)
	ListTransactions(ctx context.Context, userID string, r TimeRange) ([]wallet.Transaction, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

// SpendSummary aggregates a user's invoices and ledger over a time range.
// Sums are exact: the report re-adds the same decimals billing charged.
func (s *Service) SpendSummary(ctx context.Context, req SpendSummaryRequest) (SpendSummary, error) {
	if req.UserID == "" {
		return SpendSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return SpendSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return SpendSummary{}, errors.New("reporting: repository not configured")
	}

	invoices, err := s.repo.ListInvoices(ctx, req.UserID, req.Range)
	if err != nil {
		return SpendSummary{}, err
	}
	txs, err := s.repo.ListTransactions(ctx, req.UserID, req.Range)
	if err != nil {
		return SpendSummary{}, err
	}

	out := SpendSummary{
		UserID:         req.UserID,
		TotalSpend:     decimal.Zero,
		TotalMargin:    decimal.Zero,
		TotalCredits:   decimal.Zero,
		TotalRefunds:   decimal.Zero,
		NetDelta:       decimal.Zero,
		SpendByService: map[provider.ServiceType]decimal.Decimal{},
	}

	for _, inv := range invoices {
		out.BilledCalls++
		if !inv.PaymentSuccessful {
			out.UnpaidCalls++
		}
		if out.Currency == "" {
			out.Currency = inv.Currency
		}
		out.TotalSpend = out.TotalSpend.Add(inv.TotalCost)
		out.TotalMargin = out.TotalMargin.Add(inv.MarginAmount)
		for _, line := range inv.Lines {
			prev, ok := out.SpendByService[line.ServiceType]
			if !ok {
				prev = decimal.Zero
			}
			out.SpendByService[line.ServiceType] = prev.Add(line.Cost)
		}
	}

	for _, tx := range txs {
		if out.Currency == "" {
			out.Currency = tx.Currency
		}
		switch tx.Type {
		case wallet.TxTypeCredit:
			out.TotalCredits = out.TotalCredits.Add(tx.Amount)
			out.NetDelta = out.NetDelta.Add(tx.Amount)
		case wallet.TxTypeRefund:
			out.TotalRefunds = out.TotalRefunds.Add(tx.Amount)
			out.NetDelta = out.NetDelta.Add(tx.Amount)
		case wallet.TxTypeDebit:
			out.NetDelta = out.NetDelta.Sub(tx.Amount)
		}
	}

	return out, nil
}
