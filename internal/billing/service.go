package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"voiceai-platform/internal/audit"
	"voiceai-platform/internal/rates"
	"voiceai-platform/internal/usage"
	"voiceai-platform/internal/wallet"
)

// moneyPlaces is the quantization applied to every charged amount.
const moneyPlaces = 4

var (
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrInvalidBillReq  = errors.New("invalid billing request")
)

// InvoiceRepository persists one invoice per call. Upsert is keyed by call_id
// so re-billing a call overwrites rather than duplicates.
type InvoiceRepository interface {
	Upsert(ctx context.Context, inv Invoice) error
	GetByCall(ctx context.Context, callID string) (Invoice, error)
}

// Service prices completed calls and settles them against the wallet.
type Service struct {
	usage    *usage.Service
	rates    *rates.Service
	wallet   *wallet.Service
	invoices InvoiceRepository
	audit    *audit.Service

	marginRate decimal.Decimal
	currency   string

	clock func() time.Time
	log   *slog.Logger
}

type Config struct {
	MarginRate decimal.Decimal
	Currency   string
}

func NewService(usageSvc *usage.Service, rateSvc *rates.Service, walletSvc *wallet.Service, invoices InvoiceRepository, auditSvc *audit.Service, cfg Config, log *slog.Logger) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		usage:      usageSvc,
		rates:      rateSvc,
		wallet:     walletSvc,
		invoices:   invoices,
		audit:      auditSvc,
		marginRate: cfg.MarginRate,
		currency:   cfg.Currency,
		clock:      time.Now,
		log:        log,
	}
}

// CalculateCallCost prices every usage row of the call against the rate card.
// Rows without a matching rate are skipped and logged; they never fail the
// calculation. The same usage log always produces the same breakdown.
func (s *Service) CalculateCallCost(ctx context.Context, callID string) (CostBreakdown, error) {
	if callID == "" {
		return CostBreakdown{}, ErrInvalidBillReq
	}

	entries, err := s.usage.ListByCall(ctx, callID)
	if err != nil {
		return CostBreakdown{}, fmt.Errorf("list usage for call %s: %w", callID, err)
	}

	breakdown := CostBreakdown{CallID: callID, Currency: s.currency}
	sum := decimal.Zero
	for _, e := range entries {
		model, _ := metadataModel(e)
		rate, err := s.rates.Resolve(ctx, e.Provider, e.ServiceType, model, e.CreatedAt)
		if errors.Is(err, rates.ErrRateNotFound) {
			s.log.Warn("no rate for usage entry, skipping",
				"call_id", callID,
				"provider", string(e.Provider),
				"service", string(e.ServiceType),
				"model", model,
			)
			continue
		}
		if err != nil {
			return CostBreakdown{}, fmt.Errorf("resolve rate for %s/%s: %w", e.Provider, e.ServiceType, err)
		}

		cost := e.UnitsConsumed.Mul(rate.CostPerUnit)
		breakdown.Lines = append(breakdown.Lines, CostLine{
			Provider:    e.Provider,
			ServiceType: e.ServiceType,
			Operation:   e.Operation,
			Units:       e.UnitsConsumed,
			UnitType:    e.UnitType,
			Rate:        rate.CostPerUnit,
			Cost:        cost,
		})
		sum = sum.Add(cost)
	}

	breakdown.BaseCost = sum.Round(moneyPlaces)
	return breakdown, nil
}

// ProcessCallBilling settles a completed call: price the usage, apply the
// platform margin, persist the invoice and debit the wallet.
//
// Margin arithmetic: margin = base * rate, quantized on its own; the total is
// the sum of the two already-quantized amounts.
//
// An insufficient balance does not fail the call. The invoice is stored with
// payment_successful=false and the event is audited.
func (s *Service) ProcessCallBilling(ctx context.Context, callID, userID string) (Invoice, error) {
	if callID == "" || userID == "" {
		return Invoice{}, ErrInvalidBillReq
	}

	breakdown, err := s.CalculateCallCost(ctx, callID)
	if err != nil {
		return Invoice{}, err
	}

	margin := breakdown.BaseCost.Mul(s.marginRate).Round(moneyPlaces)
	total := breakdown.BaseCost.Add(margin)

	inv := Invoice{
		ID:           uuid.NewString(),
		CallID:       callID,
		UserID:       userID,
		Currency:     breakdown.Currency,
		BaseCost:     breakdown.BaseCost,
		MarginRate:   s.marginRate,
		MarginAmount: margin,
		TotalCost:    total,
		Lines:        breakdown.Lines,
		CreatedAt:    s.clock().UTC(),
	}

	if total.IsPositive() {
		_, _, err = s.wallet.DeductCredits(ctx, userID, total, callID, "call charge "+callID)
		switch {
		case errors.Is(err, wallet.ErrInsufficientFunds):
			inv.PaymentSuccessful = false
			if s.audit != nil {
				_ = s.audit.LogUnpaidCall(ctx, callID, userID, total.String())
			}
			s.log.Warn("call debit refused",
				"call_id", callID,
				"user_id", userID,
				"amount", total.String(),
			)
		case err != nil:
			return Invoice{}, fmt.Errorf("debit call %s: %w", callID, err)
		default:
			inv.PaymentSuccessful = true
		}
	} else {
		// Nothing to charge; zero-cost calls settle trivially.
		inv.PaymentSuccessful = true
	}

	if err := s.invoices.Upsert(ctx, inv); err != nil {
		return Invoice{}, fmt.Errorf("store invoice for call %s: %w", callID, err)
	}

	s.log.Info("call billed",
		"call_id", callID,
		"user_id", userID,
		"base_cost", inv.BaseCost.String(),
		"total_cost", inv.TotalCost.String(),
		"paid", inv.PaymentSuccessful,
	)
	return inv, nil
}

// GetInvoice returns the invoice for a billed call.
func (s *Service) GetInvoice(ctx context.Context, callID string) (Invoice, error) {
	if callID == "" {
		return Invoice{}, ErrInvalidBillReq
	}
	return s.invoices.GetByCall(ctx, callID)
}

// metadataModel pulls the model name out of a usage entry's metadata JSON.
// An absent or unparseable model means the generic provider rate applies.
func metadataModel(e usage.LogEntry) (string, bool) {
	if e.Metadata == "" {
		return "", false
	}
	var meta struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal([]byte(e.Metadata), &meta); err != nil || meta.Model == "" {
		return "", false
	}
	return meta.Model, true
}
