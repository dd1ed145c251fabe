package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestService_NewUserHasZeroBalance(t *testing.T) {
	svc := NewService(NewMemoryStore(), "USD")

	bal, err := svc.GetBalance(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !bal.Amount.IsZero() {
		t.Fatalf("expected zero balance, got %s", bal.Amount)
	}
	if bal.Currency != "USD" {
		t.Fatalf("expected USD, got %q", bal.Currency)
	}
}

func TestService_AddAndDeductCredits(t *testing.T) {
	svc := NewService(NewMemoryStore(), "USD")

	_, bal, err := svc.AddCredits(context.Background(), "user-1", dec("50.00"), "top-up", "topup-1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !bal.Amount.Equal(dec("50.00")) {
		t.Fatalf("expected 50.00, got %s", bal.Amount)
	}

	tx, bal, err := svc.DeductCredits(context.Background(), "user-1", dec("12.5000"), "call-1", "call charge")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if tx.Type != TxTypeDebit {
		t.Fatalf("expected debit, got %q", tx.Type)
	}
	if !bal.Amount.Equal(dec("37.5000")) {
		t.Fatalf("expected 37.5000, got %s", bal.Amount)
	}
}

func TestService_DeductInsufficientFundsLeavesBalanceUntouched(t *testing.T) {
	svc := NewService(NewMemoryStore(), "USD")

	if _, _, err := svc.AddCredits(context.Background(), "user-1", dec("5.00"), "top-up", "topup-1"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	_, _, err := svc.DeductCredits(context.Background(), "user-1", dec("12.5000"), "call-1", "call charge")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	bal, err := svc.GetBalance(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !bal.Amount.Equal(dec("5.00")) {
		t.Fatalf("expected balance unchanged at 5.00, got %s", bal.Amount)
	}
}

func TestService_DeductIsIdempotentPerCall(t *testing.T) {
	svc := NewService(NewMemoryStore(), "USD")

	if _, _, err := svc.AddCredits(context.Background(), "user-1", dec("100.00"), "top-up", "topup-1"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	first, _, err := svc.DeductCredits(context.Background(), "user-1", dec("12.5000"), "call-1", "call charge")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	second, bal, err := svc.DeductCredits(context.Background(), "user-1", dec("12.5000"), "call-1", "call charge")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected original transaction returned on retry")
	}
	if !bal.Amount.Equal(dec("87.5000")) {
		t.Fatalf("expected single charge, balance %s", bal.Amount)
	}
}

func TestService_RefundRestoresFunds(t *testing.T) {
	svc := NewService(NewMemoryStore(), "USD")

	if _, _, err := svc.AddCredits(context.Background(), "user-1", dec("20.00"), "top-up", "topup-1"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, _, err := svc.DeductCredits(context.Background(), "user-1", dec("8.0000"), "call-1", "call charge"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	tx, bal, err := svc.Refund(context.Background(), "user-1", dec("8.0000"), "call-1", "provider outage")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if tx.Type != TxTypeRefund {
		t.Fatalf("expected refund, got %q", tx.Type)
	}
	if !bal.Amount.Equal(dec("20.00")) {
		t.Fatalf("expected 20.00 after refund, got %s", bal.Amount)
	}
}

func TestService_TransactionHistoryNewestFirst(t *testing.T) {
	svc := NewService(NewMemoryStore(), "USD")

	keys := []string{"topup-1", "topup-2", "topup-3"}
	for _, k := range keys {
		if _, _, err := svc.AddCredits(context.Background(), "user-1", dec("1.00"), "top-up", k); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
	}

	hist, err := svc.TransactionHistory(context.Background(), "user-1", 2)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("expected limit applied, got %d", len(hist))
	}
	if hist[0].IdempotencyKey != "topup-3" {
		t.Fatalf("expected newest first, got %q", hist[0].IdempotencyKey)
	}
}

func TestService_Validation(t *testing.T) {
	svc := NewService(NewMemoryStore(), "USD")

	if _, _, err := svc.AddCredits(context.Background(), "", dec("1"), "", "k"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, _, err := svc.AddCredits(context.Background(), "u", dec("-1"), "", "k"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, _, err := svc.AddCredits(context.Background(), "u", dec("1"), "", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, _, err := svc.DeductCredits(context.Background(), "u", dec("1"), "", "x"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, _, err := svc.Refund(context.Background(), "u", dec("1"), "call-1", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
