package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dootan2020/deals-hub/backend/internal/entities"
	"github.com/dootan2020/deals-hub/backend/internal/metrics"
	"github.com/dootan2020/deals-hub/backend/internal/usecases"
)

type ProductCatalog interface {
	ListActiveProducts(ctx context.Context) ([]entities.Product, error)
	UpdateStock(ctx context.Context, productID int64, stock int, price int64) error
	InsertSyncLog(ctx context.Context, productID int64, status, message string) error
	PurgeSyncLogsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type AlertStore interface {
	InsertAlert(ctx context.Context, alert *entities.SecurityAlert) error
	PurgeEventsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type FailedTransactionCounter interface {
	CountFailedSince(ctx context.Context, since time.Time) (int, error)
}

type DatabasePinger interface {
	Ping(ctx context.Context) error
}

// MonitorConfig carries the thresholds of the periodic stock and health sweep.
type MonitorConfig struct {
	SyncInterval      time.Duration
	Retention         time.Duration
	CriticalStock     int
	LowStock          int
	FailedTxThreshold int
	DBLatencyLimit    time.Duration
}

// Monitor periodically re-syncs product stock from the upstream, raises
// stock and health alerts and sweeps expired security events and sync logs.
type Monitor struct {
	logger   *slog.Logger
	cfg      MonitorConfig
	products ProductCatalog
	configs  usecases.ConfigStore
	client   usecases.UpstreamClient
	alerts   AlertStore
	failed   FailedTransactionCounter
	db       DatabasePinger
	notifier usecases.AdminNotifier
	metrics  *metrics.Registry
}

func NewMonitor(
	logger *slog.Logger,
	cfg MonitorConfig,
	products ProductCatalog,
	configs usecases.ConfigStore,
	client usecases.UpstreamClient,
	alerts AlertStore,
	failed FailedTransactionCounter,
	db DatabasePinger,
	notifier usecases.AdminNotifier,
	registry *metrics.Registry,
) *Monitor {
	return &Monitor{
		logger:   logger,
		cfg:      cfg,
		products: products,
		configs:  configs,
		client:   client,
		alerts:   alerts,
		failed:   failed,
		db:       db,
		notifier: notifier,
		metrics:  registry,
	}
}

// Start begins the periodic sweep. It blocks until the context is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.logger.Info("Starting stock and health monitor",
		"sync_interval", m.cfg.SyncInterval.String(),
		"retention", m.cfg.Retention.String())

	m.runCycle(ctx)

	ticker := time.NewTicker(m.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Stock and health monitor stopped")
			return
		case <-ticker.C:
			m.runCycle(ctx)
		}
	}
}

func (m *Monitor) runCycle(ctx context.Context) {
	if err := m.syncStock(ctx); err != nil {
		m.logger.Error("Stock sync failed", "error", err)
	}
	m.checkHealth(ctx)
	m.purgeExpired(ctx)
}

func (m *Monitor) syncStock(ctx context.Context) error {
	cfg, err := m.configs.GetActiveConfig(ctx)
	if err != nil {
		return fmt.Errorf("loading upstream config: %w", err)
	}
	if cfg == nil {
		m.logger.Warn("Skipping stock sync, no active upstream config")
		return nil
	}

	products, err := m.products.ListActiveProducts(ctx)
	if err != nil {
		return fmt.Errorf("listing products: %w", err)
	}

	for _, product := range products {
		record, err := m.client.GetStock(ctx, cfg, product.KioskToken)
		if err != nil {
			m.logger.Error("Stock query failed", "product_id", product.ID, "error", err)
			m.logSync(ctx, product.ID, "error", err.Error())
			continue
		}
		if record.Mock {
			// Placeholder data must never overwrite real stock levels.
			m.logSync(ctx, product.ID, "skipped", "unparseable upstream response")
			continue
		}

		if err := m.products.UpdateStock(ctx, product.ID, record.Stock, int64(record.Price)); err != nil {
			m.logger.Error("Stock update failed", "product_id", product.ID, "error", err)
			m.logSync(ctx, product.ID, "error", err.Error())
			continue
		}
		m.logSync(ctx, product.ID, "ok", fmt.Sprintf("stock %d", record.Stock))
		if m.metrics != nil {
			m.metrics.SetProductStock(product.ID, record.Stock)
		}

		m.checkStockLevel(ctx, product, record.Stock)
	}
	return nil
}

func (m *Monitor) checkStockLevel(ctx context.Context, product entities.Product, stock int) {
	switch {
	case stock == 0:
		m.raiseAlert(ctx, entities.AlertTypeStockLevel,
			fmt.Sprintf("product %d (%s) is out of stock", product.ID, product.Name))
	case stock <= m.cfg.CriticalStock:
		m.raiseAlert(ctx, entities.AlertTypeStockLevel,
			fmt.Sprintf("product %d (%s) is critically low: %d left", product.ID, product.Name, stock))
	case stock <= m.cfg.LowStock:
		m.notify(ctx, entities.NotificationStockLevel,
			fmt.Sprintf("product %d (%s) is running low: %d left", product.ID, product.Name, stock))
	}
}

func (m *Monitor) checkHealth(ctx context.Context) {
	since := time.Now().Add(-24 * time.Hour)
	failed, err := m.failed.CountFailedSince(ctx, since)
	if err != nil {
		m.logger.Error("Counting failed transactions", "error", err)
	} else {
		if m.metrics != nil {
			m.metrics.SetFailedTransactions(failed)
		}
		if failed > m.cfg.FailedTxThreshold {
			m.raiseAlert(ctx, entities.AlertTypeSystemHealth,
				fmt.Sprintf("%d failed transactions in the last 24h", failed))
		}
	}

	start := time.Now()
	if err := m.db.Ping(ctx); err != nil {
		m.raiseAlert(ctx, entities.AlertTypeSystemHealth, fmt.Sprintf("database unreachable: %v", err))
		return
	}
	latency := time.Since(start)
	if m.metrics != nil {
		m.metrics.ObserveDBPing(latency.Seconds())
	}
	if latency > m.cfg.DBLatencyLimit {
		m.raiseAlert(ctx, entities.AlertTypeSystemHealth,
			fmt.Sprintf("database probe took %s", latency.Round(time.Millisecond)))
	}
}

func (m *Monitor) purgeExpired(ctx context.Context) {
	cutoff := time.Now().Add(-m.cfg.Retention)

	events, err := m.alerts.PurgeEventsOlderThan(ctx, cutoff)
	if err != nil {
		m.logger.Error("Purging security events", "error", err)
	} else if events > 0 {
		m.logger.Info("Purged security events", "count", events)
		if m.metrics != nil {
			m.metrics.AddPurgedRows("security_events", events)
		}
	}

	logs, err := m.products.PurgeSyncLogsOlderThan(ctx, cutoff)
	if err != nil {
		m.logger.Error("Purging sync logs", "error", err)
	} else if logs > 0 {
		m.logger.Info("Purged sync logs", "count", logs)
		if m.metrics != nil {
			m.metrics.AddPurgedRows("stock_sync_logs", logs)
		}
	}
}

func (m *Monitor) logSync(ctx context.Context, productID int64, status, message string) {
	if err := m.products.InsertSyncLog(ctx, productID, status, message); err != nil {
		m.logger.Error("Inserting sync log", "product_id", productID, "error", err)
	}
}

func (m *Monitor) raiseAlert(ctx context.Context, alertType, details string) {
	m.logger.Warn("Raising alert", "type", alertType, "details", details)
	if err := m.alerts.InsertAlert(ctx, &entities.SecurityAlert{
		AlertType: alertType,
		Details:   details,
		Status:    entities.AlertStatusOpen,
	}); err != nil {
		m.logger.Error("Inserting alert", "error", err)
	}
	m.notify(ctx, alertType, details)
}

func (m *Monitor) notify(ctx context.Context, notificationType, message string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyAdmin(ctx, notificationType, message); err != nil {
		m.logger.Error("Notifying admins", "error", err)
	}
}
