package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dootan2020/deals-hub/backend/internal/entities"
	"github.com/dootan2020/deals-hub/backend/internal/fraud"
	"github.com/dootan2020/deals-hub/backend/internal/upstream"
)

const (
	defaultPollAttempts = 5
	defaultPollDelay    = 1500 * time.Millisecond
)

type BalanceStore interface {
	GetProfile(ctx context.Context, userID int64) (*entities.Profile, error)
	GetBalance(ctx context.Context, userID int64) (int64, error)
	DebitIfSufficient(ctx context.Context, userID, amount int64) (int64, bool, error)
	Credit(ctx context.Context, userID, amount int64) (int64, error)
}

type OrderStore interface {
	InsertOrder(ctx context.Context, order *entities.Order) error
	InsertOrderItem(ctx context.Context, item *entities.OrderItem) error
	UpdateOrderStatus(ctx context.Context, orderID int64, status entities.OrderStatus) error
	FindOrderByID(ctx context.Context, orderID int64) (*entities.Order, error)
	FindUserOrders(ctx context.Context, userID int64) ([]entities.Order, error)
	FindOrderItems(ctx context.Context, orderID int64) ([]entities.OrderItem, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type LedgerStore interface {
	InsertTransaction(ctx context.Context, t *entities.Transaction) error
}

type ConfigStore interface {
	GetActiveConfig(ctx context.Context) (*entities.UpstreamConfig, error)
}

type InvoiceStore interface {
	CreateIfAbsent(ctx context.Context, invoice *entities.Invoice) (*entities.Invoice, error)
}

type UpstreamClient interface {
	GetStock(ctx context.Context, cfg *entities.UpstreamConfig, kioskToken string) (*upstream.StockRecord, error)
	BuyProducts(ctx context.Context, cfg *entities.UpstreamConfig, kioskToken string, quantity int, promotion *string) (*upstream.BuyRecord, error)
	GetProducts(ctx context.Context, cfg *entities.UpstreamConfig, orderID string) (*upstream.GoodsRecord, error)
}

type FraudChecker interface {
	RecordPurchase(ctx context.Context, event *entities.SecurityEvent) (fraud.PurchaseVerdict, error)
}

type AdminNotifier interface {
	NotifyAdmin(ctx context.Context, notificationType, message string) error
}

type Mailer interface {
	SendOrderConfirmation(ctx context.Context, email string, orderID int64, items []upstream.DeliveredItem) error
}

// StatusPublisher pushes order status transitions to connected clients.
// Implementations must not block the purchase path.
type StatusPublisher interface {
	PublishOrderStatus(orderID int64, status entities.OrderStatus)
}

type OutcomeRecorder interface {
	RecordPurchaseOutcome(outcome string)
}

type PurchaseRequest struct {
	UserID        int64
	ProductID     int64
	KioskToken    string
	Quantity      int
	UnitPrice     int64
	TotalAmount   int64
	PromotionCode *string
	ClientIP      string
}

type PurchaseResult struct {
	OrderID         int64                    `json:"order_id"`
	ExternalOrderID string                   `json:"external_order_id"`
	Status          entities.OrderStatus     `json:"status"`
	Items           []upstream.DeliveredItem `json:"items,omitempty"`
	NewBalance      int64                    `json:"new_balance"`
}

// PurchaseService runs the purchase pipeline. The ordering invariant is that
// money moves only after the upstream confirmed the buy: every failure before
// the debit leaves the account untouched, every failure after it keeps the
// debit and surfaces a StillProcessingError for the manual re-check path.
type PurchaseService struct {
	logger    *slog.Logger
	balances  BalanceStore
	orders    OrderStore
	ledger    LedgerStore
	configs   ConfigStore
	invoices  InvoiceStore
	client    UpstreamClient
	scorer    FraudChecker
	notifier  AdminNotifier
	mailer    Mailer
	publisher StatusPublisher
	outcomes  OutcomeRecorder

	pollAttempts int
	pollDelay    time.Duration
}

func NewPurchaseService(
	logger *slog.Logger,
	balances BalanceStore,
	orders OrderStore,
	ledger LedgerStore,
	configs ConfigStore,
	invoices InvoiceStore,
	client UpstreamClient,
	scorer FraudChecker,
	notifier AdminNotifier,
	mailer Mailer,
	publisher StatusPublisher,
	outcomes OutcomeRecorder,
) *PurchaseService {
	return &PurchaseService{
		logger:       logger,
		balances:     balances,
		orders:       orders,
		ledger:       ledger,
		configs:      configs,
		invoices:     invoices,
		client:       client,
		scorer:       scorer,
		notifier:     notifier,
		mailer:       mailer,
		publisher:    publisher,
		outcomes:     outcomes,
		pollAttempts: defaultPollAttempts,
		pollDelay:    defaultPollDelay,
	}
}

func (s *PurchaseService) Execute(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	if err := validatePurchase(req); err != nil {
		s.recordOutcome("invalid")
		return nil, err
	}

	// Advisory pre-check: a failing balance read aborts before side effects,
	// an insufficient balance short-circuits the upstream call. The debit
	// below re-checks atomically, so a race here cannot overspend.
	balance, err := s.balances.GetBalance(ctx, req.UserID)
	if err != nil {
		s.recordOutcome("error")
		return nil, fmt.Errorf("reading balance: %w", err)
	}
	if balance < req.TotalAmount {
		s.recordOutcome("insufficient_balance")
		return nil, ErrInsufficientBalance
	}

	cfg, err := s.configs.GetActiveConfig(ctx)
	if err != nil {
		s.recordOutcome("error")
		return nil, fmt.Errorf("loading upstream config: %w", err)
	}
	if cfg == nil {
		s.recordOutcome("error")
		return nil, ErrNoActiveConfig
	}

	buy, err := s.client.BuyProducts(ctx, cfg, req.KioskToken, req.Quantity, req.PromotionCode)
	if err != nil {
		s.recordOutcome("upstream_unavailable")
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if buy.Mock {
		// A placeholder record means the upstream answered with something
		// unparseable; treating it as a success would spend money blind.
		s.recordOutcome("upstream_unavailable")
		return nil, fmt.Errorf("%w: unparseable buy response", ErrUpstreamUnavailable)
	}
	if !buy.Success {
		s.recordOutcome("upstream_rejected")
		return nil, fmt.Errorf("%w: %s", ErrUpstreamRejected, buy.Description)
	}
	if buy.OrderID == "" {
		s.recordOutcome("upstream_rejected")
		return nil, fmt.Errorf("%w: buy succeeded without an order id", ErrUpstreamRejected)
	}

	newBalance, debited, err := s.balances.DebitIfSufficient(ctx, req.UserID, req.TotalAmount)
	if err != nil {
		s.attention(ctx, fmt.Sprintf("debit failed after upstream order %s for user %d: %v", buy.OrderID, req.UserID, err))
		s.recordOutcome("error")
		return nil, fmt.Errorf("debiting balance for upstream order %s: %w", buy.OrderID, err)
	}
	if !debited {
		// A concurrent spend won the race between the pre-check and here.
		// The upstream order exists but was never paid for locally.
		s.attention(ctx, fmt.Sprintf("upstream order %s placed but balance of user %d no longer covers %d", buy.OrderID, req.UserID, req.TotalAmount))
		s.recordOutcome("insufficient_balance")
		return nil, ErrInsufficientBalance
	}

	s.recordLedger(ctx, req, buy.OrderID)
	s.recordSecurityEvent(ctx, req)

	order := s.persistOrder(ctx, req, buy.OrderID)
	if order.ID != 0 {
		s.publish(order.ID, entities.OrderStatusProcessing)
	}

	items, err := s.pollFulfillment(ctx, cfg, buy.OrderID)
	if err != nil {
		s.logger.Warn("fulfillment incomplete",
			slog.String("external_order_id", buy.OrderID),
			slog.Int64("order_id", order.ID),
			slog.String("error", err.Error()))
		s.recordOutcome("processing")
		return nil, &StillProcessingError{OrderID: order.ID, ExternalOrderID: buy.OrderID, Err: err}
	}

	if order.ID != 0 {
		if err := s.orders.UpdateOrderStatus(ctx, order.ID, entities.OrderStatusCompleted); err != nil {
			s.logger.Error("completing order", slog.Int64("order_id", order.ID), slog.String("error", err.Error()))
		} else {
			s.publish(order.ID, entities.OrderStatusCompleted)
		}
	}

	s.sendConfirmation(ctx, req.UserID, order.ID, items)
	s.recordOutcome("completed")

	return &PurchaseResult{
		OrderID:         order.ID,
		ExternalOrderID: buy.OrderID,
		Status:          entities.OrderStatusCompleted,
		Items:           items,
		NewBalance:      newBalance,
	}, nil
}

// RecheckOrder re-polls fulfillment once for an order the pipeline left in
// processing. It is the operator and order-page recovery path after the poll
// budget ran out.
func (s *PurchaseService) RecheckOrder(ctx context.Context, userID, orderID int64) (*PurchaseResult, error) {
	order, err := s.orders.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("loading order %d: %w", orderID, err)
	}
	if order == nil || order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	if order.Status == entities.OrderStatusCompleted {
		return &PurchaseResult{OrderID: order.ID, Status: order.Status}, nil
	}
	if order.ExternalOrderID == nil || *order.ExternalOrderID == "" {
		return nil, fmt.Errorf("order %d has no upstream order id", orderID)
	}

	cfg, err := s.configs.GetActiveConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading upstream config: %w", err)
	}
	if cfg == nil {
		return nil, ErrNoActiveConfig
	}

	goods, err := s.client.GetProducts(ctx, cfg, *order.ExternalOrderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if goods.StillProcessing() || goods.Mock {
		return &PurchaseResult{OrderID: order.ID, ExternalOrderID: *order.ExternalOrderID, Status: entities.OrderStatusProcessing}, nil
	}
	if !goods.Success {
		return nil, fmt.Errorf("%w: %s", ErrUpstreamRejected, goods.Description)
	}

	if err := s.orders.UpdateOrderStatus(ctx, order.ID, entities.OrderStatusCompleted); err != nil {
		return nil, fmt.Errorf("completing order %d: %w", order.ID, err)
	}
	s.publish(order.ID, entities.OrderStatusCompleted)
	s.sendConfirmation(ctx, order.UserID, order.ID, goods.Items)

	return &PurchaseResult{
		OrderID:         order.ID,
		ExternalOrderID: *order.ExternalOrderID,
		Status:          entities.OrderStatusCompleted,
		Items:           goods.Items,
	}, nil
}

func (s *PurchaseService) pollFulfillment(ctx context.Context, cfg *entities.UpstreamConfig, externalOrderID string) ([]upstream.DeliveredItem, error) {
	for attempt := 1; attempt <= s.pollAttempts; attempt++ {
		goods, err := s.client.GetProducts(ctx, cfg, externalOrderID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		if goods.Success {
			return goods.Items, nil
		}
		if !goods.StillProcessing() && !goods.Mock {
			return nil, fmt.Errorf("%w: %s", ErrUpstreamRejected, goods.Description)
		}
		if attempt == s.pollAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.pollDelay):
		}
	}
	return nil, ErrFulfillmentTimeout
}

// persistOrder records the order, its items and the invoice in one database
// transaction. The money already moved, so persistence failures degrade to an
// admin notification instead of failing the purchase.
func (s *PurchaseService) persistOrder(ctx context.Context, req PurchaseRequest, externalOrderID string) *entities.Order {
	order := &entities.Order{
		UserID:          req.UserID,
		ExternalOrderID: &externalOrderID,
		Status:          entities.OrderStatusProcessing,
		TotalAmount:     req.TotalAmount,
		PromotionCode:   req.PromotionCode,
	}

	err := s.orders.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.orders.InsertOrder(txCtx, order); err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}
		item := &entities.OrderItem{
			OrderID:           order.ID,
			ProductID:         req.ProductID,
			ExternalProductID: req.KioskToken,
			Quantity:          req.Quantity,
			Price:             req.UnitPrice,
		}
		if err := s.orders.InsertOrderItem(txCtx, item); err != nil {
			return fmt.Errorf("inserting order item: %w", err)
		}
		invoice := &entities.Invoice{
			OrderID: order.ID,
			UserID:  req.UserID,
			Number:  "INV-" + strings.ToUpper(uuid.NewString()[:8]),
			Amount:  req.TotalAmount,
		}
		if _, err := s.invoices.CreateIfAbsent(txCtx, invoice); err != nil {
			return fmt.Errorf("creating invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("persisting order",
			slog.String("external_order_id", externalOrderID),
			slog.String("error", err.Error()))
		s.attention(ctx, fmt.Sprintf("paid upstream order %s for user %d was not persisted: %v", externalOrderID, req.UserID, err))
		order.ID = 0
	}
	return order
}

func (s *PurchaseService) recordLedger(ctx context.Context, req PurchaseRequest, externalOrderID string) {
	t := &entities.Transaction{
		UserID:      req.UserID,
		Amount:      -req.TotalAmount,
		Type:        entities.TransactionTypePurchase,
		Status:      entities.TransactionStatusCompleted,
		ReferenceID: externalOrderID,
	}
	if err := s.ledger.InsertTransaction(ctx, t); err != nil {
		s.logger.Error("recording transaction",
			slog.String("external_order_id", externalOrderID),
			slog.String("error", err.Error()))
	}
}

func (s *PurchaseService) recordSecurityEvent(ctx context.Context, req PurchaseRequest) {
	if s.scorer == nil {
		return
	}
	userID := req.UserID
	productID := req.ProductID
	event := &entities.SecurityEvent{
		Type:      entities.SecurityEventPurchase,
		UserID:    &userID,
		IPAddress: req.ClientIP,
		Success:   true,
		Amount:    req.TotalAmount,
		ProductID: &productID,
	}
	if _, err := s.scorer.RecordPurchase(ctx, event); err != nil {
		s.logger.Warn("recording purchase event", slog.Int64("user_id", req.UserID), slog.String("error", err.Error()))
	}
}

func (s *PurchaseService) sendConfirmation(ctx context.Context, userID, orderID int64, items []upstream.DeliveredItem) {
	if s.mailer == nil {
		return
	}
	profile, err := s.balances.GetProfile(ctx, userID)
	if err != nil || profile == nil {
		s.logger.Warn("loading profile for confirmation mail", slog.Int64("user_id", userID))
		return
	}
	if err := s.mailer.SendOrderConfirmation(ctx, profile.Email, orderID, items); err != nil {
		s.logger.Warn("sending confirmation mail", slog.Int64("order_id", orderID), slog.String("error", err.Error()))
	}
}

func (s *PurchaseService) attention(ctx context.Context, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyAdmin(ctx, entities.NotificationOrderAttention, message); err != nil {
		s.logger.Error("notifying admins", slog.String("error", err.Error()))
	}
}

func (s *PurchaseService) publish(orderID int64, status entities.OrderStatus) {
	if s.publisher != nil {
		s.publisher.PublishOrderStatus(orderID, status)
	}
}

func (s *PurchaseService) recordOutcome(outcome string) {
	if s.outcomes != nil {
		s.outcomes.RecordPurchaseOutcome(outcome)
	}
}

func validatePurchase(req PurchaseRequest) error {
	switch {
	case req.UserID <= 0:
		return &ValidationError{Field: "user_id", Reason: "must be positive"}
	case req.ProductID <= 0:
		return &ValidationError{Field: "product_id", Reason: "must be positive"}
	case strings.TrimSpace(req.KioskToken) == "":
		return &ValidationError{Field: "kiosk_token", Reason: "must not be empty"}
	case req.Quantity < 1:
		return &ValidationError{Field: "quantity", Reason: "must be at least 1"}
	case req.TotalAmount <= 0:
		return &ValidationError{Field: "total_amount", Reason: "must be positive"}
	}
	return nil
}
