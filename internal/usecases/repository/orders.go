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

type OrdersRepository struct {
	logger *slog.Logger

	db         tx.DBGetter
	transactor *tx.Transactor
}

func NewOrdersRepository(logger *slog.Logger, pg *database.Postgres) *OrdersRepository {
	return &OrdersRepository{logger: logger, db: pg.DBGetter, transactor: pg.Transactor}
}

// InsertOrder stores a new order and returns its id.
func (r *OrdersRepository) InsertOrder(ctx context.Context, order *entities.Order) error {
	err := r.db(ctx).QueryRow(ctx,
		`INSERT INTO orders (user_id, external_order_id, status, total_amount, promotion_code, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		order.UserID, order.ExternalOrderID, order.Status, order.TotalAmount, order.PromotionCode, time.Now(),
	).Scan(&order.ID)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (r *OrdersRepository) InsertOrderItem(ctx context.Context, item *entities.OrderItem) error {
	err := r.db(ctx).QueryRow(ctx,
		`INSERT INTO order_items (order_id, product_id, external_product_id, quantity, price)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		item.OrderID, item.ProductID, item.ExternalProductID, item.Quantity, item.Price,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("failed to insert order item: %w", err)
	}
	return nil
}

func (r *OrdersRepository) UpdateOrderStatus(ctx context.Context, orderID int64, status entities.OrderStatus) error {
	_, err := r.db(ctx).Exec(ctx, "UPDATE orders SET status = $1 WHERE id = $2", status, orderID)
	if err != nil {
		return fmt.Errorf("failed to update order %d status: %w", orderID, err)
	}

	r.logger.Info("Order status updated", "order_id", orderID, "status", status)
	return nil
}

func (r *OrdersRepository) FindOrderByID(ctx context.Context, orderID int64) (*entities.Order, error) {
	var order entities.Order
	err := r.db(ctx).QueryRow(ctx,
		`SELECT id, user_id, external_order_id, status, total_amount, promotion_code, created_at
		 FROM orders WHERE id = $1`, orderID).Scan(
		&order.ID,
		&order.UserID,
		&order.ExternalOrderID,
		&order.Status,
		&order.TotalAmount,
		&order.PromotionCode,
		&order.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query order by id: %w", err)
	}

	return &order, nil
}

func (r *OrdersRepository) FindUserOrders(ctx context.Context, userID int64) ([]entities.Order, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, user_id, external_order_id, status, total_amount, promotion_code, created_at
		 FROM orders WHERE user_id = $1 ORDER BY id DESC`, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	orders, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.Order])
	if err != nil {
		r.logger.Error("failed to collect orders rows", "error", err)
		return nil, err
	}

	return orders, nil
}

func (r *OrdersRepository) FindOrderItems(ctx context.Context, orderID int64) ([]entities.OrderItem, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, order_id, product_id, external_product_id, quantity, price
		 FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.OrderItem])
	if err != nil {
		r.logger.Error("failed to collect order items rows", "error", err)
		return nil, err
	}

	return items, nil
}

// WithinTransaction exposes the transactor so the orchestrator can persist an
// order, its items and the invoice atomically.
func (r *OrdersRepository) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.transactor.WithinTransaction(ctx, fn)
}
