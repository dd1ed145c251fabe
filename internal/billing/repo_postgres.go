package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PostgresInvoiceRepo stores invoices with the line breakdown as JSONB.
//
// Expected schema:
//
//	invoices (
//	  id UUID PRIMARY KEY,
//	  call_id TEXT NOT NULL UNIQUE,
//	  user_id TEXT NOT NULL,
//	  currency TEXT NOT NULL,
//	  base_cost NUMERIC(18,4) NOT NULL,
//	  margin_rate NUMERIC(8,4) NOT NULL,
//	  margin_amount NUMERIC(18,4) NOT NULL,
//	  total_cost NUMERIC(18,4) NOT NULL,
//	  lines JSONB NOT NULL DEFAULT '[]',
//	  payment_successful BOOLEAN NOT NULL,
//	  created_at TIMESTAMPTZ NOT NULL
//	)
type PostgresInvoiceRepo struct {
	db *sql.DB
}

func NewPostgresInvoiceRepo(db *sql.DB) *PostgresInvoiceRepo {
	return &PostgresInvoiceRepo{db: db}
}

func (r *PostgresInvoiceRepo) Upsert(ctx context.Context, inv Invoice) error {
	lines, err := json.Marshal(inv.Lines)
	if err != nil {
		return fmt.Errorf("encode invoice lines: %w", err)
	}

	const q = `
INSERT INTO invoices (
  id, call_id, user_id, currency, base_cost, margin_rate, margin_amount,
  total_cost, lines, payment_successful, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
ON CONFLICT (call_id)
DO UPDATE SET base_cost = EXCLUDED.base_cost,
              margin_rate = EXCLUDED.margin_rate,
              margin_amount = EXCLUDED.margin_amount,
              total_cost = EXCLUDED.total_cost,
              lines = EXCLUDED.lines,
              payment_successful = EXCLUDED.payment_successful
`
	_, err = r.db.ExecContext(ctx, q,
		inv.ID,
		inv.CallID,
		inv.UserID,
		inv.Currency,
		inv.BaseCost,
		inv.MarginRate,
		inv.MarginAmount,
		inv.TotalCost,
		lines,
		inv.PaymentSuccessful,
		inv.CreatedAt,
	)
	return err
}

func (r *PostgresInvoiceRepo) GetByCall(ctx context.Context, callID string) (Invoice, error) {
	const q = `
SELECT id, call_id, user_id, currency, base_cost, margin_rate, margin_amount,
       total_cost, lines, payment_successful, created_at
FROM invoices
WHERE call_id = $1
`
	var inv Invoice
	var lines []byte
	err := r.db.QueryRowContext(ctx, q, callID).Scan(
		&inv.ID,
		&inv.CallID,
		&inv.UserID,
		&inv.Currency,
		&inv.BaseCost,
		&inv.MarginRate,
		&inv.MarginAmount,
		&inv.TotalCost,
		&lines,
		&inv.PaymentSuccessful,
		&inv.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Invoice{}, ErrInvoiceNotFound
	}
	if err != nil {
		return Invoice{}, err
	}
	if len(lines) > 0 {
		if err := json.Unmarshal(lines, &inv.Lines); err != nil {
			return Invoice{}, fmt.Errorf("decode invoice lines: %w", err)
		}
	}
	return inv, nil
}
