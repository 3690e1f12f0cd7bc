package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	tx "github.com/Thiht/transactor/pgx"

	"github.com/dootan2020/deals-hub/backend/internal/entities"
	"github.com/dootan2020/deals-hub/backend/internal/fraud"
	"github.com/dootan2020/deals-hub/backend/pkg/database"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// EventsRepository stores and aggregates the append-only security event log.
type EventsRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewEventsRepository(logger *slog.Logger, pg *database.Postgres) *EventsRepository {
	return &EventsRepository{
		logger: logger,
		db:     pg.DBGetter,
	}
}

// InsertEvent appends a security event. Events are never updated or deleted
// outside the retention sweep.
func (r *EventsRepository) InsertEvent(ctx context.Context, e *entities.SecurityEvent) error {
	query := `INSERT INTO security_events
		(type, user_id, email, ip_address, success, country, city, amount, product_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	err := r.db(ctx).QueryRow(ctx, query,
		e.Type,
		e.UserID,
		e.Email,
		e.IPAddress,
		e.Success,
		e.Country,
		e.City,
		e.Amount,
		e.ProductID,
		time.Now(),
	).Scan(&e.ID)

	if err != nil {
		return fmt.Errorf("failed to insert security event: %w", err)
	}
	return nil
}

// CountEvents counts events matching the filter. The filter composition is
// dynamic, so the query is built with squirrel instead of a fixed statement.
func (r *EventsRepository) CountEvents(ctx context.Context, f fraud.EventFilter) (int, error) {
	builder := psql.Select("COUNT(*)").From("security_events")

	if f.Type != "" {
		builder = builder.Where(sq.Eq{"type": f.Type})
	}
	if f.Email != "" {
		builder = builder.Where(sq.Eq{"email": f.Email})
	}
	if f.IPAddress != "" {
		builder = builder.Where(sq.Eq{"ip_address": f.IPAddress})
	}
	if f.UserID != nil {
		builder = builder.Where(sq.Eq{"user_id": *f.UserID})
	}
	if f.Success != nil {
		builder = builder.Where(sq.Eq{"success": *f.Success})
	}
	if !f.Since.IsZero() {
		builder = builder.Where(sq.GtOrEq{"created_at": f.Since})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build event count query: %w", err)
	}

	var count int
	if err = r.db(ctx).QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count security events: %w", err)
	}
	return count, nil
}

// DistinctCountries counts the distinct countries seen in a user's events
// since the given time.
func (r *EventsRepository) DistinctCountries(ctx context.Context, userID int64, since time.Time) (int, error) {
	query := `SELECT COUNT(DISTINCT country)
		FROM security_events
		WHERE user_id = $1 AND country <> '' AND created_at >= $2`

	var count int
	err := r.db(ctx).QueryRow(ctx, query, userID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count distinct countries: %w", err)
	}
	return count, nil
}

// AveragePurchaseAmount returns the user's rolling average over successful
// purchase events since the given time, zero when there are none.
func (r *EventsRepository) AveragePurchaseAmount(ctx context.Context, userID int64, since time.Time) (float64, error) {
	query := `SELECT COALESCE(AVG(amount), 0)
		FROM security_events
		WHERE user_id = $1 AND type = 'purchase' AND success = true AND created_at >= $2`

	var avg float64
	err := r.db(ctx).QueryRow(ctx, query, userID, since).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("failed to compute average purchase amount: %w", err)
	}
	return avg, nil
}

// InsertAlert persists a security alert for human review.
func (r *EventsRepository) InsertAlert(ctx context.Context, alert *entities.SecurityAlert) error {
	query := `INSERT INTO security_alerts (user_id, alert_type, details, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := r.db(ctx).QueryRow(ctx, query,
		alert.UserID,
		alert.AlertType,
		alert.Details,
		entities.AlertStatusOpen,
		time.Now(),
	).Scan(&alert.ID)

	if err != nil {
		return fmt.Errorf("failed to insert security alert: %w", err)
	}

	r.logger.Info("Security alert raised", "alert_type", alert.AlertType, "alert_id", alert.ID)
	return nil
}

// PurgeEventsOlderThan removes events past the retention horizon.
func (r *EventsRepository) PurgeEventsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx, "DELETE FROM security_events WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge security events: %w", err)
	}
	return tag.RowsAffected(), nil
}
