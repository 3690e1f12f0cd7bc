package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

type WebSocketHandler struct {
	logger           *slog.Logger
	websocketManager *Manager
}

func NewWebSocketHandler(logger *slog.Logger, websocketManager *Manager) *WebSocketHandler {
	return &WebSocketHandler{
		logger:           logger,
		websocketManager: websocketManager,
	}
}

func (h *WebSocketHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws/orders/{orderId:[0-9]+}", h.HandleConnection)
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	orderID, err := strconv.ParseInt(vars["orderId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid order id", http.StatusBadRequest)
		return
	}

	conn, err := h.websocketManager.Upgrade(w, r)
	if err != nil {
		h.logger.Error("Error upgrading connection", "error", err)
		return
	}

	h.logger.Info("New WebSocket connection", "order_id", orderID)
	h.websocketManager.AddSubscriber(orderID, conn)

	// Keep connection open and handle disconnection
	for {
		_, _, readErr := conn.ReadMessage()
		if readErr != nil {
			h.websocketManager.RemoveSubscriber(orderID, conn)
			conn.Close()
			break
		}
	}
}
