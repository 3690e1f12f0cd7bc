package entities

import "time"

type SecurityEventType string

const (
	SecurityEventLogin    SecurityEventType = "login"
	SecurityEventPurchase SecurityEventType = "purchase"
)

// SecurityEvent is an append-only record consumed by the fraud scorer's
// rolling-window counts. Rows are never mutated; a retention sweep removes
// them after 30 days.
type SecurityEvent struct {
	ID        int64             `db:"id" json:"id"`
	Type      SecurityEventType `db:"type" json:"type"`
	UserID    *int64            `db:"user_id" json:"user_id,omitempty"`
	Email     string            `db:"email" json:"email"`
	IPAddress string            `db:"ip_address" json:"ip_address"`
	Success   bool              `db:"success" json:"success"`
	Country   string            `db:"country" json:"country"`
	City      string            `db:"city" json:"city"`
	Amount    int64             `db:"amount" json:"amount"`
	ProductID *int64            `db:"product_id" json:"product_id,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
}

type AlertStatus string

const (
	AlertStatusOpen     AlertStatus = "open"
	AlertStatusResolved AlertStatus = "resolved"
)

const (
	AlertTypeSuspiciousLogin    = "suspicious_login"
	AlertTypeSuspiciousPurchase = "suspicious_purchase"
	AlertTypeStockLevel         = "stock_level"
	AlertTypeSystemHealth       = "system_health"
)

// SecurityAlert is raised by the scorer or the monitor and resolved by human
// operators; the core never auto-resolves it.
type SecurityAlert struct {
	ID        int64       `db:"id" json:"id"`
	UserID    *int64      `db:"user_id" json:"user_id,omitempty"`
	AlertType string      `db:"alert_type" json:"alert_type"`
	Details   string      `db:"details" json:"details"`
	Status    AlertStatus `db:"status" json:"status"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}
