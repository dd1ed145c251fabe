package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"voiceai-platform/internal/billing"
	"voiceai-platform/internal/provider"
	"voiceai-platform/internal/wallet"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSpendSummary_AggregatesInvoicesAndLedger(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryRepo()
	repo.Invoices = []billing.Invoice{
		{
			CallID: "c1", UserID: "user-1", Currency: "USD",
			BaseCost: dec("10.0000"), MarginAmount: dec("2.5000"), TotalCost: dec("12.5000"),
			Lines: []billing.CostLine{
				{ServiceType: provider.ServiceSTT, Cost: dec("6.0000")},
				{ServiceType: provider.ServiceLLM, Cost: dec("4.0000")},
			},
			PaymentSuccessful: true, CreatedAt: now,
		},
		{
			CallID: "c2", UserID: "user-1", Currency: "USD",
			BaseCost: dec("1.0000"), MarginAmount: dec("0.2500"), TotalCost: dec("1.2500"),
			Lines: []billing.CostLine{
				{ServiceType: provider.ServiceSTT, Cost: dec("1.0000")},
			},
			PaymentSuccessful: false, CreatedAt: now,
		},
	}
	repo.Transactions = []wallet.Transaction{
		{UserID: "user-1", Type: wallet.TxTypeCredit, Amount: dec("50.00"), Currency: "USD", CreatedAt: now},
		{UserID: "user-1", Type: wallet.TxTypeDebit, Amount: dec("12.5000"), Currency: "USD", CreatedAt: now},
		{UserID: "user-1", Type: wallet.TxTypeRefund, Amount: dec("1.0000"), Currency: "USD", CreatedAt: now},
	}
	svc := NewService(repo)

	out, err := svc.SpendSummary(context.Background(), SpendSummaryRequest{
		UserID: "user-1",
		Range:  TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.BilledCalls != 2 || out.UnpaidCalls != 1 {
		t.Fatalf("unexpected call counts %+v", out)
	}
	if !out.TotalSpend.Equal(dec("13.7500")) {
		t.Fatalf("expected 13.7500 spend, got %s", out.TotalSpend)
	}
	if !out.TotalMargin.Equal(dec("2.7500")) {
		t.Fatalf("expected 2.7500 margin, got %s", out.TotalMargin)
	}
	if !out.TotalCredits.Equal(dec("50.00")) || !out.TotalRefunds.Equal(dec("1.0000")) {
		t.Fatalf("unexpected ledger totals %+v", out)
	}
	if !out.NetDelta.Equal(dec("38.5000")) {
		t.Fatalf("expected 38.5000 net, got %s", out.NetDelta)
	}
	if !out.SpendByService[provider.ServiceSTT].Equal(dec("7.0000")) {
		t.Fatalf("expected 7.0000 stt spend, got %s", out.SpendByService[provider.ServiceSTT])
	}
}

func TestSpendSummary_UserIsolation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryRepo()
	repo.Invoices = []billing.Invoice{
		{CallID: "c1", UserID: "user-1", Currency: "USD", TotalCost: dec("5.0000"), PaymentSuccessful: true, CreatedAt: now},
		{CallID: "c2", UserID: "user-2", Currency: "USD", TotalCost: dec("9.0000"), PaymentSuccessful: true, CreatedAt: now},
	}
	svc := NewService(repo)

	out, err := svc.SpendSummary(context.Background(), SpendSummaryRequest{
		UserID: "user-1",
		Range:  TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.BilledCalls != 1 || !out.TotalSpend.Equal(dec("5.0000")) {
		t.Fatalf("expected only user-1 rows, got %+v", out)
	}
}

func TestSpendSummary_TimeRangeBounds(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryRepo()
	repo.Invoices = []billing.Invoice{
		{CallID: "old", UserID: "user-1", Currency: "USD", TotalCost: dec("5.0000"), CreatedAt: now.Add(-48 * time.Hour)},
		{CallID: "in", UserID: "user-1", Currency: "USD", TotalCost: dec("3.0000"), CreatedAt: now},
	}
	svc := NewService(repo)

	out, err := svc.SpendSummary(context.Background(), SpendSummaryRequest{
		UserID: "user-1",
		Range:  TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.BilledCalls != 1 || !out.TotalSpend.Equal(dec("3.0000")) {
		t.Fatalf("expected window applied, got %+v", out)
	}
}

func TestSpendSummary_Validation(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	now := time.Now()

	if _, err := svc.SpendSummary(context.Background(), SpendSummaryRequest{Range: TimeRange{From: now.Add(-time.Hour), To: now}}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := svc.SpendSummary(context.Background(), SpendSummaryRequest{UserID: "u", Range: TimeRange{From: now, To: now.Add(-time.Hour)}}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
