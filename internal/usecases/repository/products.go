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

type ProductsRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewProductsRepository(logger *slog.Logger, pg *database.Postgres) *ProductsRepository {
	return &ProductsRepository{logger: logger, db: pg.DBGetter}
}

func (r *ProductsRepository) ListActiveProducts(ctx context.Context) ([]entities.Product, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, name, kiosk_token, price, stock, active, updated_at
		 FROM products WHERE active = true ORDER BY id`)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	products, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.Product])
	if err != nil {
		r.logger.Error("failed to collect products rows", "error", err)
		return nil, err
	}

	return products, nil
}

func (r *ProductsRepository) FindProductByID(ctx context.Context, productID int64) (*entities.Product, error) {
	var p entities.Product
	err := r.db(ctx).QueryRow(ctx,
		`SELECT id, name, kiosk_token, price, stock, active, updated_at
		 FROM products WHERE id = $1`, productID).Scan(
		&p.ID,
		&p.Name,
		&p.KioskToken,
		&p.Price,
		&p.Stock,
		&p.Active,
		&p.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	return &p, nil
}

// UpdateStock records the stock and price seen during a sync pass.
func (r *ProductsRepository) UpdateStock(ctx context.Context, productID int64, stock int, price int64) error {
	_, err := r.db(ctx).Exec(ctx,
		"UPDATE products SET stock = $1, price = $2, updated_at = $3 WHERE id = $4",
		stock, price, time.Now(), productID)
	if err != nil {
		return fmt.Errorf("failed to update product %d stock: %w", productID, err)
	}
	return nil
}

// InsertSyncLog records the outcome of one stock sync for a product.
func (r *ProductsRepository) InsertSyncLog(ctx context.Context, productID int64, status, message string) error {
	_, err := r.db(ctx).Exec(ctx,
		"INSERT INTO stock_sync_logs (product_id, status, message, created_at) VALUES ($1, $2, $3, $4)",
		productID, status, message, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert sync log: %w", err)
	}
	return nil
}

// PurgeSyncLogsOlderThan removes sync log rows past the retention horizon.
func (r *ProductsRepository) PurgeSyncLogsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx, "DELETE FROM stock_sync_logs WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sync logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
