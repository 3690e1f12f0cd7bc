package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"

	"github.com/dootan2020/deals-hub/backend/internal/entities"
	"github.com/dootan2020/deals-hub/backend/pkg/database"
)

type InvoicesRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewInvoicesRepository(logger *slog.Logger, pg *database.Postgres) *InvoicesRepository {
	return &InvoicesRepository{logger: logger, db: pg.DBGetter}
}

// CreateIfAbsent is an idempotent create-or-fetch keyed on (order_id, user_id):
// the unique index makes the insert a no-op when an invoice already exists.
func (r *InvoicesRepository) CreateIfAbsent(ctx context.Context, invoice *entities.Invoice) (*entities.Invoice, error) {
	err := r.db(ctx).QueryRow(ctx,
		`INSERT INTO invoices (order_id, user_id, number, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (order_id, user_id) DO NOTHING
		 RETURNING id`,
		invoice.OrderID, invoice.UserID, invoice.Number, invoice.Amount, time.Now(),
	).Scan(&invoice.ID)

	if err == nil {
		return invoice, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to insert invoice: %w", err)
	}

	// Conflict path: fetch the existing invoice.
	var existing entities.Invoice
	err = r.db(ctx).QueryRow(ctx,
		`SELECT id, order_id, user_id, number, amount, created_at
		 FROM invoices WHERE order_id = $1 AND user_id = $2`,
		invoice.OrderID, invoice.UserID).Scan(
		&existing.ID,
		&existing.OrderID,
		&existing.UserID,
		&existing.Number,
		&existing.Amount,
		&existing.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch existing invoice: %w", err)
	}

	return &existing, nil
}
