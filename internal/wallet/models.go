package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is an immutable append-only ledger entry.
//
// Money invariants:
// - Amounts are exact decimals; no float64 anywhere in the money path.
// - Amount is always positive; Type determines the sign applied to the balance.
// - Any balance change MUST have a corresponding transaction row.
type Transaction struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	Type TxType `json:"type" db:"type"`

	Amount   decimal.Decimal `json:"amount" db:"amount"`
	Currency string          `json:"currency" db:"currency"`

	// CallID links usage charges and refunds to the call that produced them.
	CallID string `json:"call_id,omitempty" db:"call_id"`

	Description string `json:"description,omitempty" db:"description"`

	// IdempotencyKey makes money posting safe to retry. Call debits derive it
	// from the call ID so a call is never charged twice.
	IdempotencyKey string `json:"idempotency_key" db:"idempotency_key"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type TxType string

const (
	TxTypeCredit TxType = "credit"
	TxTypeDebit  TxType = "debit"
	TxTypeRefund TxType = "refund"
)

// delta is the signed balance effect of the transaction.
func (t Transaction) delta() decimal.Decimal {
	if t.Type == TxTypeDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Balance is the current projection of a user's ledger. A user with no
// transactions has a zero balance, not a missing one.
type Balance struct {
	UserID    string          `json:"user_id" db:"user_id"`
	Currency  string          `json:"currency" db:"currency"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
