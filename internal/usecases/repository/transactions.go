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

// TransactionsRepository stores the immutable balance audit log.
type TransactionsRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewTransactionsRepository(logger *slog.Logger, pg *database.Postgres) *TransactionsRepository {
	return &TransactionsRepository{logger: logger, db: pg.DBGetter}
}

// InsertTransaction appends an audit record. The record never mutates the
// balance; it documents a mutation that already happened.
func (r *TransactionsRepository) InsertTransaction(ctx context.Context, t *entities.Transaction) error {
	err := r.db(ctx).QueryRow(ctx,
		`INSERT INTO transactions (user_id, amount, type, status, reference_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		t.UserID, t.Amount, t.Type, t.Status, t.ReferenceID, time.Now(),
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	r.logger.Info("Transaction recorded",
		"user_id", t.UserID, "type", t.Type, "amount", t.Amount, "reference_id", t.ReferenceID)
	return nil
}

func (r *TransactionsRepository) FindUserTransactions(ctx context.Context, userID int64) ([]entities.Transaction, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, user_id, amount, type, status, reference_id, created_at
		 FROM transactions WHERE user_id = $1 ORDER BY id DESC`, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	transactions, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.Transaction])
	if err != nil {
		r.logger.Error("failed to collect transactions rows", "error", err)
		return nil, err
	}

	return transactions, nil
}

// CountFailedSince reports the number of errored transactions after the given
// time; the health monitor alerts when it crosses its threshold.
func (r *TransactionsRepository) CountFailedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db(ctx).QueryRow(ctx,
		"SELECT COUNT(*) FROM transactions WHERE status = 'error' AND created_at >= $1", since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count failed transactions: %w", err)
	}
	return count, nil
}
