package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dootan2020/deals-hub/backend/internal/entities"
)

// OrderService serves read paths for the account pages.
type OrderService struct {
	logger *slog.Logger
	orders OrderStore
}

func NewOrderService(logger *slog.Logger, orders OrderStore) *OrderService {
	return &OrderService{logger: logger, orders: orders}
}

func (s *OrderService) GetUserOrders(ctx context.Context, userID int64) ([]entities.Order, error) {
	orders, err := s.orders.FindUserOrders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %d: %w", userID, err)
	}
	return orders, nil
}

type OrderDetails struct {
	Order entities.Order       `json:"order"`
	Items []entities.OrderItem `json:"items"`
}

func (s *OrderService) GetOrder(ctx context.Context, userID, orderID int64) (*OrderDetails, error) {
	order, err := s.orders.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("loading order %d: %w", orderID, err)
	}
	if order == nil || order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	items, err := s.orders.FindOrderItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("loading items of order %d: %w", orderID, err)
	}
	return &OrderDetails{Order: *order, Items: items}, nil
}
