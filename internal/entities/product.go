package entities

import "time"

// Product is a resold listing. KioskToken is the upstream's per-listing
// identifier used in stock, buy and fulfillment calls.
type Product struct {
	ID         int64     `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	KioskToken string    `db:"kiosk_token" json:"kiosk_token"`
	Price      int64     `db:"price" json:"price"`
	Stock      int       `db:"stock" json:"stock"`
	Active     bool      `db:"active" json:"active"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
