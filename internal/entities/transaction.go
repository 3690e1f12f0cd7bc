package entities

import "time"

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypePurchase   TransactionType = "purchase"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusError     TransactionStatus = "error"
)

// Transaction is an immutable audit record of a balance mutation. It is a log,
// not the source of truth: the balance field on the profile row is.
type Transaction struct {
	ID          int64             `db:"id" json:"id"`
	UserID      int64             `db:"user_id" json:"user_id"`
	Amount      int64             `db:"amount" json:"amount"`
	Type        TransactionType   `db:"type" json:"type"`
	Status      TransactionStatus `db:"status" json:"status"`
	ReferenceID string            `db:"reference_id" json:"reference_id"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}
