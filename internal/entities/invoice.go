package entities

import "time"

// Invoice exists at most once per (order, user) pair. Creation is an
// idempotent create-or-fetch; rendering is outside this core.
type Invoice struct {
	ID        int64     `db:"id" json:"id"`
	OrderID   int64     `db:"order_id" json:"order_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Number    string    `db:"number" json:"number"`
	Amount    int64     `db:"amount" json:"amount"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
