package handlers

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dootan2020/deals-hub/backend/internal/entities"
)

type statusUpdate struct {
	OrderID int64                `json:"order_id"`
	Status  entities.OrderStatus `json:"status"`
}

// Manager upgrades connections and fans order status transitions out to the
// subscribers of each order. Slow or dead connections are dropped rather than
// allowed to stall the publisher.
type Manager struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	subscribers map[int64]map[*websocket.Conn]bool
}

func NewWebSocketManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		subscribers: make(map[int64]map[*websocket.Conn]bool),
	}
}

func (m *Manager) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return m.upgrader.Upgrade(w, r, nil)
}

func (m *Manager) AddSubscriber(orderID int64, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribers[orderID] == nil {
		m.subscribers[orderID] = make(map[*websocket.Conn]bool)
	}
	m.subscribers[orderID][conn] = true
}

func (m *Manager) RemoveSubscriber(orderID int64, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers[orderID], conn)
	if len(m.subscribers[orderID]) == 0 {
		delete(m.subscribers, orderID)
	}
}

// PublishOrderStatus sends the transition to every subscriber of the order.
// It never blocks the purchase path on a broken connection.
func (m *Manager) PublishOrderStatus(orderID int64, status entities.OrderStatus) {
	m.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(m.subscribers[orderID]))
	for conn := range m.subscribers[orderID] {
		conns = append(conns, conn)
	}
	m.mu.RUnlock()

	update := statusUpdate{OrderID: orderID, Status: status}
	for _, conn := range conns {
		if err := conn.WriteJSON(update); err != nil {
			m.logger.Error("Error writing status update", "order_id", orderID, "error", err)
			conn.Close()
			m.RemoveSubscriber(orderID, conn)
		}
	}
}
