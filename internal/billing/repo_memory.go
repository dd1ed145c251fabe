package billing

import (
	"context"
	"sync"
)

// MemoryInvoiceRepo is the in-memory invoice store used by tests.
type MemoryInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[string]Invoice
}

func NewMemoryInvoiceRepo() *MemoryInvoiceRepo {
	return &MemoryInvoiceRepo{invoices: map[string]Invoice{}}
}

func (r *MemoryInvoiceRepo) Upsert(_ context.Context, inv Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices[inv.CallID] = inv
	return nil
}

func (r *MemoryInvoiceRepo) GetByCall(_ context.Context, callID string) (Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[callID]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}
