package wallet

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// MemoryStore is the in-memory ledger used by tests and development. Post is
// atomic under a single mutex, mirroring the transactional Postgres store.
type MemoryStore struct {
	mu       sync.Mutex
	ledger   []Transaction
	balances map[string]Balance
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{balances: map[string]Balance{}}
}

func (s *MemoryStore) Balance(_ context.Context, userID string) (Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.balances[userID]; ok {
		return b, nil
	}
	return Balance{UserID: userID, Amount: decimal.Zero}, nil
}

func (s *MemoryStore) Post(_ context.Context, tx Transaction) (Transaction, Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.ledger {
		if existing.UserID == tx.UserID && existing.IdempotencyKey == tx.IdempotencyKey {
			return existing, s.balances[tx.UserID], nil
		}
	}

	current, ok := s.balances[tx.UserID]
	if !ok {
		current = Balance{UserID: tx.UserID, Currency: tx.Currency, Amount: decimal.Zero}
	}

	if tx.Type == TxTypeDebit && current.Amount.LessThan(tx.Amount) {
		return Transaction{}, Balance{}, ErrInsufficientFunds
	}

	s.ledger = append(s.ledger, tx)
	current.Amount = current.Amount.Add(tx.delta())
	current.Currency = tx.Currency
	current.UpdatedAt = tx.CreatedAt
	s.balances[tx.UserID] = current
	return tx, current, nil
}

func (s *MemoryStore) History(_ context.Context, userID string, limit int) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Transaction
	for i := len(s.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		if s.ledger[i].UserID == userID {
			out = append(out, s.ledger[i])
		}
	}
	return out, nil
}
