package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/dootan2020/deals-hub/backend/internal/entities"
	"github.com/dootan2020/deals-hub/backend/internal/fraud"
	"github.com/dootan2020/deals-hub/backend/internal/ratelimit"
	"github.com/dootan2020/deals-hub/backend/internal/usecases"
)

var _ LoginRecorder = (*fraud.Scorer)(nil)

// LoginRecorder records login attempts and classifies them.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, event *entities.SecurityEvent) (fraud.LoginVerdict, error)
}

type RateLimits struct {
	Purchase func(http.Handler) http.Handler
	Auth     func(http.Handler) http.Handler
}

type HTTPHandler struct {
	logger          *slog.Logger
	purchaseService *usecases.PurchaseService
	orderService    *usecases.OrderService
	accountService  *usecases.AccountService
	configs         usecases.ConfigStore
	client          usecases.UpstreamClient
	logins          LoginRecorder
	limits          RateLimits
}

func NewHTTPHandler(
	logger *slog.Logger,
	purchaseService *usecases.PurchaseService,
	orderService *usecases.OrderService,
	accountService *usecases.AccountService,
	configs usecases.ConfigStore,
	client usecases.UpstreamClient,
	logins LoginRecorder,
	limits RateLimits,
) *HTTPHandler {
	return &HTTPHandler{
		logger:          logger,
		purchaseService: purchaseService,
		orderService:    orderService,
		accountService:  accountService,
		configs:         configs,
		client:          client,
		logins:          logins,
		limits:          limits,
	}
}

func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	limited := func(mw func(http.Handler) http.Handler, fn http.HandlerFunc) http.Handler {
		if mw == nil {
			return fn
		}
		return mw(fn)
	}

	// Purchases
	router.Handle("/purchase", limited(h.limits.Purchase, h.Purchase)).Methods("POST")
	router.HandleFunc("/orders/{orderId:[0-9]+}/recheck", h.RecheckOrder).Methods("POST")

	// Orders
	router.HandleFunc("/orders/user", h.GetUserOrders).Methods("GET")
	router.HandleFunc("/orders/{orderId:[0-9]+}", h.GetOrder).Methods("GET")

	// Account
	router.HandleFunc("/balance", h.GetBalance).Methods("GET")
	router.Handle("/deposit", limited(h.limits.Purchase, h.Deposit)).Methods("POST")
	router.HandleFunc("/transactions/user", h.GetUserTransactions).Methods("GET")

	// Upstream stock
	router.HandleFunc("/stock", h.GetStock).Methods("GET")

	// Security events
	router.Handle("/security/events/login", limited(h.limits.Auth, h.RecordLoginEvent)).Methods("POST")

	router.HandleFunc("/health", h.Health).Methods("GET")
}

type purchaseRequest struct {
	UserID        int64   `json:"user_id"`
	ProductID     int64   `json:"product_id"`
	KioskToken    string  `json:"kiosk_token"`
	Quantity      int     `json:"quantity"`
	UnitPrice     int64   `json:"unit_price"`
	TotalAmount   int64   `json:"total_amount"`
	PromotionCode *string `json:"promotion_code,omitempty"`
}

func (h *HTTPHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.purchaseService.Execute(r.Context(), usecases.PurchaseRequest{
		UserID:        req.UserID,
		ProductID:     req.ProductID,
		KioskToken:    req.KioskToken,
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
		TotalAmount:   req.TotalAmount,
		PromotionCode: req.PromotionCode,
		ClientIP:      ratelimit.ClientIP(r),
	})
	if err != nil {
		h.writePurchaseError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *HTTPHandler) writePurchaseError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *usecases.ValidationError
	var processingErr *usecases.StillProcessingError

	switch {
	case errors.As(err, &validationErr):
		http.Error(w, validationErr.Error(), http.StatusBadRequest)
	case errors.Is(err, usecases.ErrInsufficientBalance):
		http.Error(w, "Insufficient balance", http.StatusBadRequest)
	case errors.As(err, &processingErr):
		// Money already moved; the order stays processing and the client
		// should re-check instead of retrying the purchase.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{
			"order_id":          processingErr.OrderID,
			"external_order_id": processingErr.ExternalOrderID,
			"status":            entities.OrderStatusProcessing,
			"message":           "Order is processing, check back shortly",
		})
	case errors.Is(err, usecases.ErrUpstreamRejected), errors.Is(err, usecases.ErrUpstreamUnavailable):
		h.logger.Error("[Purchase] Upstream failure", "error", err)
		http.Error(w, "Upstream purchase failed", http.StatusBadGateway)
	default:
		h.logger.Error("[Purchase] Error executing purchase", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *HTTPHandler) RecheckOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(mux.Vars(r)["orderId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid order id", http.StatusBadRequest)
		return
	}
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	result, err := h.purchaseService.RecheckOrder(r.Context(), userID, orderID)
	if err != nil {
		switch {
		case errors.Is(err, usecases.ErrOrderNotFound):
			http.Error(w, "Order not found", http.StatusNotFound)
		case errors.Is(err, usecases.ErrUpstreamRejected), errors.Is(err, usecases.ErrUpstreamUnavailable):
			h.logger.Error("[Recheck] Upstream failure", "order_id", orderID, "error", err)
			http.Error(w, "Upstream check failed", http.StatusBadGateway)
		default:
			h.logger.Error("[Recheck] Error rechecking order", "order_id", orderID, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *HTTPHandler) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	orders, err := h.orderService.GetUserOrders(r.Context(), userID)
	if err != nil {
		h.logger.Error("Error getting user orders", "user_id", userID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orders)
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(mux.Vars(r)["orderId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid order id", http.StatusBadRequest)
		return
	}
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	details, err := h.orderService.GetOrder(r.Context(), userID, orderID)
	if err != nil {
		if errors.Is(err, usecases.ErrOrderNotFound) {
			http.Error(w, "Order not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Error getting order", "order_id", orderID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(details)
}

func (h *HTTPHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	balance, err := h.accountService.GetBalance(r.Context(), userID)
	if err != nil {
		h.logger.Error("Error getting balance", "user_id", userID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"user_id": userID, "balance": balance})
}

type depositRequest struct {
	UserID int64 `json:"user_id"`
	Amount int64 `json:"amount"`
}

func (h *HTTPHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	newBalance, err := h.accountService.Deposit(r.Context(), req.UserID, req.Amount)
	if err != nil {
		var validationErr *usecases.ValidationError
		if errors.As(err, &validationErr) {
			http.Error(w, validationErr.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("Error depositing", "user_id", req.UserID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"user_id": req.UserID, "balance": newBalance})
}

func (h *HTTPHandler) GetUserTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	transactions, err := h.accountService.GetUserTransactions(r.Context(), userID)
	if err != nil {
		h.logger.Error("Error getting transactions", "user_id", userID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transactions)
}

// GetStock proxies a stock query through the upstream client. Mock records
// are returned as-is so the caller can show a degraded state instead of a
// hard error.
func (h *HTTPHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	kioskToken := r.URL.Query().Get("kiosk_token")
	if kioskToken == "" {
		http.Error(w, "Missing required parameter: kiosk_token", http.StatusBadRequest)
		return
	}

	cfg, err := h.configs.GetActiveConfig(r.Context())
	if err != nil {
		h.logger.Error("Error loading upstream config", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if cfg == nil {
		http.Error(w, "No active upstream config", http.StatusInternalServerError)
		return
	}

	record, err := h.client.GetStock(r.Context(), cfg, kioskToken)
	if err != nil {
		h.logger.Error("Error querying stock", "kiosk_token", kioskToken, "error", err)
		http.Error(w, "Upstream stock query failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

type loginEventRequest struct {
	UserID  *int64 `json:"user_id,omitempty"`
	Email   string `json:"email"`
	Success bool   `json:"success"`
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
}

func (h *HTTPHandler) RecordLoginEvent(w http.ResponseWriter, r *http.Request) {
	var req loginEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" {
		http.Error(w, "Missing required field: email", http.StatusBadRequest)
		return
	}

	verdict, err := h.logins.RecordLogin(r.Context(), &entities.SecurityEvent{
		Type:      entities.SecurityEventLogin,
		UserID:    req.UserID,
		Email:     req.Email,
		IPAddress: ratelimit.ClientIP(r),
		Success:   req.Success,
		Country:   req.Country,
		City:      req.City,
	})
	if err != nil {
		h.logger.Error("Error recording login event", "email", req.Email, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(verdict)
}

func (h *HTTPHandler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *HTTPHandler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userIDParam := r.URL.Query().Get("user_id")
	if userIDParam == "" {
		http.Error(w, "Missing required parameter: user_id", http.StatusBadRequest)
		return 0, false
	}
	userID, err := strconv.ParseInt(userIDParam, 10, 64)
	if err != nil {
		http.Error(w, "Invalid user_id", http.StatusBadRequest)
		return 0, false
	}
	return userID, true
}
