package entities

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusFailed     OrderStatus = "failed"
)

// Order is created once the upstream purchase succeeded. ExternalOrderID is
// the upstream's order identifier and the key for all fulfillment polling.
type Order struct {
	ID              int64       `db:"id" json:"id"`
	UserID          int64       `db:"user_id" json:"user_id"`
	ExternalOrderID *string     `db:"external_order_id" json:"external_order_id,omitempty"`
	Status          OrderStatus `db:"status" json:"status"`
	TotalAmount     int64       `db:"total_amount" json:"total_amount"`
	PromotionCode   *string     `db:"promotion_code" json:"promotion_code,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
}

type OrderItem struct {
	ID                int64  `db:"id" json:"id"`
	OrderID           int64  `db:"order_id" json:"order_id"`
	ProductID         int64  `db:"product_id" json:"product_id"`
	ExternalProductID string `db:"external_product_id" json:"external_product_id"`
	Quantity          int    `db:"quantity" json:"quantity"`
	Price             int64  `db:"price" json:"price"`
}
