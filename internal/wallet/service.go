package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Store holds the ledger and its balance projection. Post must be atomic:
// the idempotency check, the funds check for debits, the ledger append and
// the balance update happen as one unit.
type Store interface {
	Balance(ctx context.Context, userID string) (Balance, error)
	Post(ctx context.Context, tx Transaction) (Transaction, Balance, error)
	History(ctx context.Context, userID string, limit int) ([]Transaction, error)
}

// Service provides per-user wallet operations.
//
// Tenancy invariant: every operation is scoped by user_id.
type Service struct {
	store    Store
	currency string
	clock    func() time.Time
}

func NewService(store Store, currency string) *Service {
	if currency == "" {
		currency = "USD"
	}
	return &Service{store: store, currency: currency, clock: time.Now}
}

// GetBalance returns the user's current balance; users with no ledger history
// have a zero balance.
func (s *Service) GetBalance(ctx context.Context, userID string) (Balance, error) {
	if userID == "" {
		return Balance{}, ErrInvalidArgument
	}
	b, err := s.store.Balance(ctx, userID)
	if err != nil {
		return Balance{}, err
	}
	if b.Currency == "" {
		b.Currency = s.currency
	}
	return b, nil
}

// AddCredits tops up the wallet. The idempotency key makes retries safe.
func (s *Service) AddCredits(ctx context.Context, userID string, amount decimal.Decimal, description, idempotencyKey string) (Transaction, Balance, error) {
	if userID == "" || idempotencyKey == "" || !amount.IsPositive() {
		return Transaction{}, Balance{}, ErrInvalidArgument
	}
	return s.store.Post(ctx, Transaction{
		ID:             uuid.NewString(),
		UserID:         userID,
		Type:           TxTypeCredit,
		Amount:         amount,
		Currency:       s.currency,
		Description:    description,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      s.clock().UTC(),
	})
}

// DeductCredits charges the wallet for a completed call. The call ID doubles
// as the idempotency key: re-billing the same call returns the original
// transaction instead of charging again. Returns ErrInsufficientFunds when
// the balance cannot cover the amount.
func (s *Service) DeductCredits(ctx context.Context, userID string, amount decimal.Decimal, callID, description string) (Transaction, Balance, error) {
	if userID == "" || callID == "" || !amount.IsPositive() {
		return Transaction{}, Balance{}, ErrInvalidArgument
	}
	return s.store.Post(ctx, Transaction{
		ID:             uuid.NewString(),
		UserID:         userID,
		Type:           TxTypeDebit,
		Amount:         amount,
		Currency:       s.currency,
		CallID:         callID,
		Description:    description,
		IdempotencyKey: "debit:call:" + callID,
		CreatedAt:      s.clock().UTC(),
	})
}

// Refund returns previously charged funds for a call.
func (s *Service) Refund(ctx context.Context, userID string, amount decimal.Decimal, callID, reason string) (Transaction, Balance, error) {
	if userID == "" || callID == "" || reason == "" || !amount.IsPositive() {
		return Transaction{}, Balance{}, ErrInvalidArgument
	}
	return s.store.Post(ctx, Transaction{
		ID:             uuid.NewString(),
		UserID:         userID,
		Type:           TxTypeRefund,
		Amount:         amount,
		Currency:       s.currency,
		CallID:         callID,
		Description:    reason,
		IdempotencyKey: "refund:call:" + callID,
		CreatedAt:      s.clock().UTC(),
	})
}

// TransactionHistory lists the user's ledger, newest first.
func (s *Service) TransactionHistory(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.History(ctx, userID, limit)
}
