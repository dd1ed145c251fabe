package wallet

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"voiceai-platform/pkg/utils"
)

// PostgresStore keeps the ledger in wallet_transactions and the balance
// projection in wallet_balances.
//
// Expected schema:
//
//	wallet_transactions (
//	  id UUID PRIMARY KEY,
//	  user_id TEXT NOT NULL,
//	  type TEXT NOT NULL,
//	  amount NUMERIC(18,4) NOT NULL,
//	  currency TEXT NOT NULL,
//	  call_id TEXT,
//	  description TEXT,
//	  idempotency_key TEXT NOT NULL,
//	  created_at TIMESTAMPTZ NOT NULL,
//	  UNIQUE (user_id, idempotency_key)
//	)
//	wallet_balances (
//	  user_id TEXT PRIMARY KEY,
//	  currency TEXT NOT NULL,
//	  amount NUMERIC(18,4) NOT NULL,
//	  updated_at TIMESTAMPTZ NOT NULL
//	)
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Balance(ctx context.Context, userID string) (Balance, error) {
	const q = `
SELECT user_id, currency, amount, updated_at
FROM wallet_balances
WHERE user_id = $1
`
	var b Balance
	err := s.db.QueryRowContext(ctx, q, userID).Scan(&b.UserID, &b.Currency, &b.Amount, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Balance{UserID: userID, Amount: decimal.Zero}, nil
	}
	if err != nil {
		return Balance{}, err
	}
	return b, nil
}

func (s *PostgresStore) Post(ctx context.Context, tx Transaction) (Transaction, Balance, error) {
	var outTx Transaction
	var outBal Balance

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, dbtx *sql.Tx) error {
		// Serialize concurrent money operations per user via the projection row.
		bal, err := lockBalance(ctx, dbtx, tx.UserID, tx.Currency)
		if err != nil {
			return err
		}

		// Idempotency: a matching entry means this posting already happened.
		if existing, ok, err := findByIdempotency(ctx, dbtx, tx.UserID, tx.IdempotencyKey); err != nil {
			return err
		} else if ok {
			outTx = existing
			outBal = bal
			return nil
		}

		if tx.Type == TxTypeDebit && bal.Amount.LessThan(tx.Amount) {
			return ErrInsufficientFunds
		}

		if err := insertTransaction(ctx, dbtx, tx); err != nil {
			return err
		}
		updated, err := applyDelta(ctx, dbtx, tx.UserID, tx.Currency, tx.delta())
		if err != nil {
			return err
		}
		outTx = tx
		outBal = updated
		return nil
	})

	return outTx, outBal, err
}

func (s *PostgresStore) History(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	const q = `
SELECT id, user_id, type, amount, currency, COALESCE(call_id, ''), COALESCE(description, ''), idempotency_key, created_at
FROM wallet_transactions
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`
	rows, err := s.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
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

func lockBalance(ctx context.Context, tx *sql.Tx, userID, currency string) (Balance, error) {
	// Upsert-then-lock so first-time users get a zero row to serialize on.
	const ins = `
INSERT INTO wallet_balances (user_id, currency, amount, updated_at)
VALUES ($1, $2, 0, now())
ON CONFLICT (user_id) DO NOTHING
`
	if _, err := tx.ExecContext(ctx, ins, userID, currency); err != nil {
		return Balance{}, err
	}

	const q = `
SELECT user_id, currency, amount, updated_at
FROM wallet_balances
WHERE user_id = $1
FOR UPDATE
`
	var b Balance
	if err := tx.QueryRowContext(ctx, q, userID).Scan(&b.UserID, &b.Currency, &b.Amount, &b.UpdatedAt); err != nil {
		return Balance{}, err
	}
	return b, nil
}

func findByIdempotency(ctx context.Context, tx *sql.Tx, userID, key string) (Transaction, bool, error) {
	const q = `
SELECT id, user_id, type, amount, currency, COALESCE(call_id, ''), COALESCE(description, ''), idempotency_key, created_at
FROM wallet_transactions
WHERE user_id = $1 AND idempotency_key = $2
LIMIT 1
`
	var t Transaction
	err := tx.QueryRowContext(ctx, q, userID, key).Scan(
		&t.ID,
		&t.UserID,
		&t.Type,
		&t.Amount,
		&t.Currency,
		&t.CallID,
		&t.Description,
		&t.IdempotencyKey,
		&t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Transaction{}, false, nil
	}
	if err != nil {
		return Transaction{}, false, err
	}
	return t, true, nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t Transaction) error {
	const q = `
INSERT INTO wallet_transactions (
  id, user_id, type, amount, currency, call_id, description, idempotency_key, created_at
) VALUES (
  $1,$2,$3,$4,$5,NULLIF($6,''),NULLIF($7,''),$8,$9
)
`
	_, err := tx.ExecContext(ctx, q,
		t.ID,
		t.UserID,
		t.Type,
		t.Amount,
		t.Currency,
		t.CallID,
		t.Description,
		t.IdempotencyKey,
		t.CreatedAt,
	)
	return err
}

func applyDelta(ctx context.Context, tx *sql.Tx, userID, currency string, delta decimal.Decimal) (Balance, error) {
	const q = `
UPDATE wallet_balances
SET amount = amount + $3, currency = $2, updated_at = now()
WHERE user_id = $1
RETURNING user_id, currency, amount, updated_at
`
	var b Balance
	if err := tx.QueryRowContext(ctx, q, userID, currency, delta).Scan(&b.UserID, &b.Currency, &b.Amount, &b.UpdatedAt); err != nil {
		return Balance{}, err
	}
	return b, nil
}
