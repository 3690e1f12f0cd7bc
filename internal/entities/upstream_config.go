package entities

import "time"

// UpstreamConfig holds the credentials and transport used to reach the
// upstream marketplace. Exactly one record is active at a time.
type UpstreamConfig struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	UserToken string    `db:"user_token" json:"-"`
	Proxy     string    `db:"proxy" json:"proxy"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
