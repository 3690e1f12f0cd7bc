package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tx "github.com/Thiht/transactor/pgx"

	"github.com/dootan2020/deals-hub/backend/internal/entities"
	"github.com/dootan2020/deals-hub/backend/pkg/database"
)

type NotificationsRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewNotificationsRepository(logger *slog.Logger, pg *database.Postgres) *NotificationsRepository {
	return &NotificationsRepository{logger: logger, db: pg.DBGetter}
}

func (r *NotificationsRepository) InsertNotification(ctx context.Context, n *entities.Notification) error {
	err := r.db(ctx).QueryRow(ctx,
		`INSERT INTO notifications (type, message, read, created_at)
		 VALUES ($1, $2, false, $3)
		 RETURNING id`,
		n.Type, n.Message, time.Now(),
	).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}
