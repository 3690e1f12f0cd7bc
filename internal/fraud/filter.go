package fraud

import (
	"time"

	"github.com/dootan2020/deals-hub/backend/internal/entities"
)

// EventFilter narrows rolling-window counts over the security event log.
// Zero-valued fields are ignored.
type EventFilter struct {
	Type      entities.SecurityEventType
	Email     string
	IPAddress string
	UserID    *int64
	Success   *bool
	Since     time.Time
}
