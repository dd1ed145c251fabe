package reporting

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"voiceai-platform/internal/billing"
	"voiceai-platform/internal/wallet"
)

// PostgresRepo reads the invoices and wallet_transactions tables written by
// the billing and wallet stores.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) ListInvoices(ctx context.Context, userID string, tr TimeRange) ([]billing.Invoice, error) {
	const q = `
SELECT id, call_id, user_id, currency, base_cost, margin_rate, margin_amount,
       total_cost, lines, payment_successful, created_at
FROM invoices
WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q, userID, tr.From, tr.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Invoice
	for rows.Next() {
		var inv billing.Invoice
		var lines []byte
		if err := rows.Scan(
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
		); err != nil {
			return nil, err
		}
		if len(lines) > 0 {
			if err := json.Unmarshal(lines, &inv.Lines); err != nil {
				return nil, fmt.Errorf("decode invoice lines: %w", err)
			}
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListTransactions(ctx context.Context, userID string, tr TimeRange) ([]wallet.Transaction, error) {
	const q = `
SELECT id, user_id, type, amount, currency, COALESCE(call_id, ''), COALESCE(description, ''), idempotency_key, created_at
FROM wallet_transactions
WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q, userID, tr.From, tr.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []wallet.Transaction
	for rows.Next() {
		var t wallet.Transaction
		if err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.Type,
			&t.Amount,
			&t.Currency,
			&t.CallID,
			&t.Description,
			&t.IdempotencyKey,
			&t.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
