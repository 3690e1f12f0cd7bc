package notify

import (
	"context"
	"log/slog"

	"github.com/dootan2020/deals-hub/backend/internal/entities"
	"github.com/dootan2020/deals-hub/backend/internal/upstream"
)

// NotificationStore persists admin notifications.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n *entities.Notification) error
}

// Service fans admin notifications into the notifications table. Delivery is
// best-effort everywhere it is used.
type Service struct {
	logger *slog.Logger
	store  NotificationStore
}

func NewService(logger *slog.Logger, store NotificationStore) *Service {
	return &Service{logger: logger, store: store}
}

func (s *Service) NotifyAdmin(ctx context.Context, notificationType, message string) error {
	n := &entities.Notification{
		Type:    notificationType,
		Message: message,
	}
	return s.store.InsertNotification(ctx, n)
}

// Mailer sends customer-facing mail. The implementation is an external
// collaborator; only the contract lives here.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, email string, orderID int64, items []upstream.DeliveredItem) error
}

// LogMailer stands in for a real mail provider in development and tests.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendOrderConfirmation(_ context.Context, email string, orderID int64, items []upstream.DeliveredItem) error {
	m.logger.Info("Order confirmation mail", "email", email, "order_id", orderID, "items", len(items))
	return nil
}
