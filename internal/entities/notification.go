package entities

import "time"

const (
	NotificationSuspiciousPurchase = "suspicious_purchase"
	NotificationOrderAttention     = "order_attention"
	NotificationStockLevel         = "stock_level"
	NotificationSystemHealth       = "system_health"
)

// Notification is a best-effort message for admin operators.
type Notification struct {
	ID        int64     `db:"id" json:"id"`
	Type      string    `db:"type" json:"type"`
	Message   string    `db:"message" json:"message"`
	Read      bool      `db:"read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
