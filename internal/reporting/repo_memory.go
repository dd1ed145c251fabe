package reporting

import (
	"context"
	"sync"

	"voiceai-platform/internal/billing"
	"voiceai-platform/internal/wallet"
)

// MemoryRepo is the in-memory reporting source for tests and development.
// Reads are user-scoped and bounded by [From, To).
type MemoryRepo struct {
	mu sync.Mutex

	Invoices     []billing.Invoice
	Transactions []wallet.Transaction
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListInvoices(_ context.Context, userID string, tr TimeRange) ([]billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]billing.Invoice, 0)
	for _, inv := range r.Invoices {
		if inv.UserID != userID {
			continue
		}
		if inv.CreatedAt.Before(tr.From) || !inv.CreatedAt.Before(tr.To) {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (r *MemoryRepo) ListTransactions(_ context.Context, userID string, tr TimeRange) ([]wallet.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]wallet.Transaction, 0)
	for _, tx := range r.Transactions {
		if tx.UserID != userID {
			continue
		}
		if tx.CreatedAt.Before(tr.From) || !tx.CreatedAt.Before(tr.To) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}
